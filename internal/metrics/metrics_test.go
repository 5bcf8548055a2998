package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostCreated(t *testing.T) {
	before := testutil.ToFloat64(postsCreatedTotal)

	PostCreated()
	PostCreated()

	assert.Equal(t, before+2, testutil.ToFloat64(postsCreatedTotal))
}

func TestPostViewed(t *testing.T) {
	counted := testutil.ToFloat64(postViewsTotal.WithLabelValues(ViewCounted))
	dedup := testutil.ToFloat64(postViewsTotal.WithLabelValues(ViewDeduplicated))

	PostViewed(ViewCounted)
	PostViewed(ViewDeduplicated)
	PostViewed(ViewDeduplicated)

	assert.Equal(t, counted+1, testutil.ToFloat64(postViewsTotal.WithLabelValues(ViewCounted)))
	assert.Equal(t, dedup+2, testutil.ToFloat64(postViewsTotal.WithLabelValues(ViewDeduplicated)))
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/posts/:id", "200"))

	RecordRequest("GET", "/api/v1/posts/:id", http.StatusOK, 12*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/posts/:id", "200")))
}

func TestRecordRequest_UnmatchedRoute(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))

	RecordRequest("GET", "", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandler_ExposesBoardMetrics(t *testing.T) {
	PostCreated()
	PostViewed(ViewCounted)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "board_posts_created_total"))
	assert.True(t, strings.Contains(body, `board_post_views_total{result="counted"}`))
}

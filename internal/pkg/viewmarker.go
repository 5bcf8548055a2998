package pkg

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ViewMarkerPrefix prefixes the cookie name of every view marker.
const ViewMarkerPrefix = "VIEWCOUNT"

// ViewMarker is the client-side cookie that records "post already viewed today".
type ViewMarker struct {
	Name     string
	Value    string
	MaxAge   int
	HTTPOnly bool
}

// Cookie converts the marker into an *http.Cookie scoped to the whole site.
func (m *ViewMarker) Cookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     m.Name,
		Value:    m.Value,
		Path:     "/",
		MaxAge:   m.MaxAge,
		HttpOnly: m.HTTPOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// MarkerSet holds the markers presented by a client, keyed by cookie name.
type MarkerSet map[string]string

// MarkersFromCookies collects the view markers among the request cookies.
func MarkersFromCookies(cookies []*http.Cookie) MarkerSet {
	set := make(MarkerSet)
	for _, c := range cookies {
		if strings.HasPrefix(c.Name, ViewMarkerPrefix) {
			set[c.Name] = c.Value
		}
	}
	return set
}

// ViewDecision is the outcome of ShouldIncrement. Marker is set only when
// Increment is true.
type ViewDecision struct {
	Increment bool
	Marker    *ViewMarker
}

// ViewDeduplicator decides whether a view counts, allowing at most one count
// per client, post and calendar day. The guarantee is client-side only: a
// client that drops the cookie is counted again.
//
// With a non-empty secret, marker values are HMAC-signed and markers whose
// signature does not verify are treated as absent.
type ViewDeduplicator struct {
	secret string
}

// NewViewDeduplicator creates a ViewDeduplicator. An empty secret disables signing.
func NewViewDeduplicator(secret string) *ViewDeduplicator {
	return &ViewDeduplicator{secret: strings.TrimSpace(secret)}
}

// MarkerName returns the cookie name for postID.
func MarkerName(postID uint) string {
	return ViewMarkerPrefix + strconv.FormatUint(uint64(postID), 10)
}

// ShouldIncrement reports whether the view of postID should be counted given
// the markers the client sent, and if so, the marker to hand back.
func (d *ViewDeduplicator) ShouldIncrement(postID uint, markers MarkerSet, now time.Time) ViewDecision {
	name := MarkerName(postID)
	if value, ok := markers[name]; ok && d.valid(postID, value) {
		return ViewDecision{}
	}

	value := strconv.FormatUint(uint64(postID), 10)
	if d.secret != "" {
		value = SignedValue(value, d.secret)
	}

	return ViewDecision{
		Increment: true,
		Marker: &ViewMarker{
			Name:     name,
			Value:    value,
			MaxAge:   SecondsUntilMidnight(now),
			HTTPOnly: true,
		},
	}
}

func (d *ViewDeduplicator) valid(postID uint, value string) bool {
	if d.secret == "" {
		return true
	}
	payload, ok := VerifySigned(value, d.secret)
	return ok && payload == strconv.FormatUint(uint64(postID), 10)
}

// SecondsUntilMidnight returns the seconds from now to the start of the next
// calendar day in now's location, rounded up so the result is never zero; a
// zero MaxAge would turn the marker into a session cookie. At exactly midnight
// it returns a full day.
func SecondsUntilMidnight(now time.Time) int {
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return int((next.Sub(now) + time.Second - 1) / time.Second)
}

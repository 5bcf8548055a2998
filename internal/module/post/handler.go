package post

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/board/internal/domain"
	"github.com/simp-lee/board/internal/pkg"
)

// PostHandler handles REST API requests for the post resource.
type PostHandler struct {
	svc          Service
	pageSize     int
	secureCookie bool
}

// NewPostHandler creates a new PostHandler. pageSize is used when a list
// request carries no page_size; secureCookie marks view markers Secure.
func NewPostHandler(svc Service, pageSize int, secureCookie bool) *PostHandler {
	return &PostHandler{svc: svc, pageSize: pageSize, secureCookie: secureCookie}
}

// Create handles POST /api/v1/posts.
func (h *PostHandler) Create(c *gin.Context) {
	var req PostRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	id, err := h.svc.Create(c.Request.Context(), req.input())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Created(c, IDResponse{ID: id})
}

// List handles GET /api/v1/posts.
func (h *PostHandler) List(c *gin.Context) {
	req := pkg.ParsePageRequest(c, h.pageSize)

	page, err := h.svc.ListPage(c.Request.Context(), req)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, page)
}

// ListAll handles GET /api/v1/posts/all.
func (h *PostHandler) ListAll(c *gin.Context) {
	posts, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, posts)
}

// TotalPages handles GET /api/v1/posts/total-pages.
func (h *PostHandler) TotalPages(c *gin.Context) {
	pageSize := h.pageSize
	if raw, ok := c.GetQuery("page_size"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			pkg.Error(c, domain.InvalidArgument("page_size must be an integer"))
			return
		}
		pageSize = n
	}

	total, err := h.svc.GetTotalPages(c.Request.Context(), pageSize)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, TotalPagesResponse{PageSize: pageSize, TotalPages: total})
}

// Get handles GET /api/v1/posts/:id.
func (h *PostHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.InvalidArgument(err.Error()))
		return
	}

	post, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, post)
}

// Update handles PUT /api/v1/posts/:id.
func (h *PostHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.InvalidArgument(err.Error()))
		return
	}

	var req PostRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	id, err = h.svc.Update(c.Request.Context(), id, req.input())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, IDResponse{ID: id})
}

// Delete handles DELETE /api/v1/posts/:id.
func (h *PostHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.InvalidArgument(err.Error()))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, nil)
}

// RegisterView handles POST /api/v1/posts/:id/views. The post must exist;
// the marker cookie is set only when the view was counted.
func (h *PostHandler) RegisterView(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.InvalidArgument(err.Error()))
		return
	}

	if _, err := h.svc.GetByID(c.Request.Context(), id); err != nil {
		pkg.Error(c, err)
		return
	}

	result, err := registerView(c, h.svc, id, h.secureCookie)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Success(c, ViewResponse{Incremented: result.Incremented})
}

// registerView runs the view registration for the request's markers and
// writes the new marker cookie, if any.
func registerView(c *gin.Context, svc Service, id uint, secure bool) (*ViewResult, error) {
	result, err := svc.RegisterView(c.Request.Context(), id, pkg.MarkersFromCookies(c.Request.Cookies()))
	if err != nil {
		return nil, err
	}
	if result.Marker != nil {
		http.SetCookie(c.Writer, result.Marker.Cookie(secure))
	}
	return result, nil
}

// parseID extracts and validates the "id" URL parameter.
func parseID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id: %s", idStr)
	}
	if id > uint64(^uint(0)) {
		return 0, fmt.Errorf("invalid id: %s", idStr)
	}
	return uint(id), nil
}

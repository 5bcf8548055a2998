package post

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/board/internal/domain"
	"github.com/simp-lee/board/internal/middleware"
	"github.com/simp-lee/board/internal/pkg"
)

const listURL = "/posts"

// PostPageHandler renders the board pages and serves their htmx endpoints.
type PostPageHandler struct {
	svc          Service
	pageSize     int
	secureCookie bool
}

// NewPostPageHandler creates a new PostPageHandler.
func NewPostPageHandler(svc Service, pageSize int, secureCookie bool) *PostPageHandler {
	return &PostPageHandler{svc: svc, pageSize: pageSize, secureCookie: secureCookie}
}

// ListPage renders the board with its page window.
// GET /posts
func (h *PostPageHandler) ListPage(c *gin.Context) {
	req := pkg.ParsePageRequest(c, h.pageSize)

	page, err := h.svc.ListPage(c.Request.Context(), req)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "list posts failed", slog.Any("error", err))
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	c.HTML(http.StatusOK, "post/list.html", gin.H{
		"Posts":      page.Items,
		"Pagination": page.Pagination,
		"BaseURL":    listURL,
		"TitleLike":  req.Filter["title__like"],
		"WriterLike": req.Filter["writer__like"],
		"CSRFToken":  middleware.GetCSRFToken(c),
	})
}

// DetailPage renders one post and counts the view at most once per day per client.
// GET /posts/:id
func (h *PostPageHandler) DetailPage(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}

	ctx := c.Request.Context()
	// A missing post updates no row, so no marker is issued for it.
	result, err := registerView(c, h.svc, id, h.secureCookie)
	if err != nil {
		slog.ErrorContext(ctx, "register view failed", slog.Uint64("post_id", uint64(id)), slog.Any("error", err))
		c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
		return
	}

	// Loaded after counting so the rendered count includes this view.
	post, err := h.svc.GetByID(ctx, id)
	if err != nil {
		h.renderLoadError(c, err)
		return
	}

	c.HTML(http.StatusOK, "post/detail.html", gin.H{
		"Post":      post,
		"Counted":   result.Incremented > 0,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// NewPage renders the new post form.
// GET /posts/new
func (h *PostPageHandler) NewPage(c *gin.Context) {
	c.HTML(http.StatusOK, "post/form.html", gin.H{
		"IsEdit":    false,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// EditPage renders the edit form.
// GET /posts/:id/edit
func (h *PostPageHandler) EditPage(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}

	post, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.renderLoadError(c, err)
		return
	}

	c.HTML(http.StatusOK, "post/form.html", gin.H{
		"Post":      post,
		"IsEdit":    true,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

// CreateHTMX handles post creation via htmx form submission.
// POST /posts
func (h *PostPageHandler) CreateHTMX(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "create post: bind error", slog.Any("error", err))
		h.renderForm(c, nil, &req, "Please fill in title, content and writer.")
		return
	}

	id, err := h.svc.Create(c.Request.Context(), req.input())
	if err != nil {
		h.renderForm(c, nil, &req, safePageErrorMessage(err, "Could not create the post. Please try again later."))
		return
	}

	setShowToastHeader(c, "Post created", "success")
	c.Header("HX-Redirect", listURL+"/"+strconv.FormatUint(uint64(id), 10))
	c.Status(http.StatusOK)
}

// UpdateHTMX handles post update via htmx form submission.
// PUT /posts/:id
func (h *PostPageHandler) UpdateHTMX(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "errors/400.html", gin.H{})
		return
	}

	var req PostRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "update post: bind error", slog.Any("error", err), slog.Uint64("post_id", uint64(id)))
		h.renderEditError(c, id, &req, "Please fill in title, content and writer.")
		return
	}

	if _, err := h.svc.Update(c.Request.Context(), id, req.input()); err != nil {
		if domain.IsNotFound(err) {
			c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
			return
		}
		h.renderEditError(c, id, &req, safePageErrorMessage(err, "Could not update the post. Please try again later."))
		return
	}

	setShowToastHeader(c, "Post updated", "success")
	c.Header("HX-Redirect", listURL+"/"+strconv.FormatUint(uint64(id), 10))
	c.Status(http.StatusOK)
}

// DeleteHTMX handles post deletion via htmx.
// DELETE /posts/:id
func (h *PostPageHandler) DeleteHTMX(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Header("HX-Reswap", "none")
		setShowToastHeader(c, "Invalid post id", "error")
		c.Status(http.StatusOK)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		c.Header("HX-Reswap", "none")
		if domain.IsNotFound(err) {
			setShowToastHeader(c, "The post does not exist or was already deleted", "error")
		} else {
			setShowToastHeader(c, "Delete failed. Please try again later.", "error")
		}
		c.Status(http.StatusOK)
		return
	}

	setShowToastHeader(c, "Post deleted", "success")
	c.Header("HX-Redirect", listURL)
	c.Status(http.StatusOK)
}

// renderEditError re-renders the edit form with the submitted values. The
// stored post is loaded so the form keeps its id and timestamps.
func (h *PostPageHandler) renderEditError(c *gin.Context, id uint, req *PostRequest, msg string) {
	post, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.renderLoadError(c, err)
		return
	}
	h.renderForm(c, post, req, msg)
}

// renderForm renders post/form.html with an error. The submitted values
// replace the stored ones so the user does not lose their edits.
func (h *PostPageHandler) renderForm(c *gin.Context, post *domain.Post, req *PostRequest, msg string) {
	isEdit := post != nil
	if post == nil {
		post = &domain.Post{}
	}
	view := *post
	view.Title, view.Content, view.Writer = req.Title, req.Content, req.Writer

	c.HTML(http.StatusOK, "post/form.html", gin.H{
		"Post":      &view,
		"IsEdit":    isEdit,
		"Error":     msg,
		"CSRFToken": middleware.GetCSRFToken(c),
	})
}

func (h *PostPageHandler) renderLoadError(c *gin.Context, err error) {
	_ = c.Error(err)
	if domain.IsNotFound(err) {
		c.HTML(http.StatusNotFound, "errors/404.html", gin.H{})
		return
	}
	slog.ErrorContext(c.Request.Context(), "load post failed", slog.Any("error", err))
	c.HTML(http.StatusInternalServerError, "errors/500.html", gin.H{})
}

// setShowToastHeader sets the HX-Trigger response header with a showToast event.
func setShowToastHeader(c *gin.Context, message, toastType string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{
			"message": message,
			"type":    toastType,
		},
	})
	c.Header("HX-Trigger", string(trigger))
}

// safePageErrorMessage extracts a user-safe error message from an AppError.
// Only messages from user-facing error codes (NotFound, AlreadyExists, Validation)
// are returned. Storage, internal or unknown error codes always return the
// fallback to prevent leaking technical details to end users.
func safePageErrorMessage(err error, fallback string) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		switch appErr.Code {
		case domain.CodeNotFound, domain.CodeAlreadyExists, domain.CodeValidation:
			return appErr.Message
		}
	}
	return fallback
}

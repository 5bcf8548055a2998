package post

import "github.com/gin-gonic/gin"

// PostModule implements the app.Module interface for the board.
type PostModule struct {
	handler     *PostHandler
	pageHandler *PostPageHandler
}

// NewModule creates a new PostModule with the given handlers.
// Panics if h or ph is nil.
func NewModule(h *PostHandler, ph *PostPageHandler) *PostModule {
	if h == nil {
		panic("post.NewModule: handler must not be nil")
	}
	if ph == nil {
		panic("post.NewModule: pageHandler must not be nil")
	}
	return &PostModule{handler: h, pageHandler: ph}
}

// RegisterRoutes registers post API and page routes.
func (m *PostModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	// API routes
	api.POST("/posts", m.handler.Create)
	api.GET("/posts", m.handler.List)
	api.GET("/posts/all", m.handler.ListAll)
	api.GET("/posts/total-pages", m.handler.TotalPages)
	api.GET("/posts/:id", m.handler.Get)
	api.PUT("/posts/:id", m.handler.Update)
	api.DELETE("/posts/:id", m.handler.Delete)
	api.POST("/posts/:id/views", m.handler.RegisterView)

	// Page routes
	pages.GET("/posts", m.pageHandler.ListPage)
	pages.GET("/posts/new", m.pageHandler.NewPage)
	pages.GET("/posts/:id", m.pageHandler.DetailPage)
	pages.GET("/posts/:id/edit", m.pageHandler.EditPage)
	pages.POST("/posts", m.pageHandler.CreateHTMX)
	pages.PUT("/posts/:id", m.pageHandler.UpdateHTMX)
	pages.DELETE("/posts/:id", m.pageHandler.DeleteHTMX)
}

package post

// PostRequest is the body of create and update requests, JSON for the API
// and form-encoded for the pages.
type PostRequest struct {
	Title   string `json:"title" form:"title" binding:"required,max=200"`
	Content string `json:"content" form:"content" binding:"required,max=20000"`
	Writer  string `json:"writer" form:"writer" binding:"required,max=50"`
}

func (r PostRequest) input() PostInput {
	return PostInput{Title: r.Title, Content: r.Content, Writer: r.Writer}
}

// IDResponse is returned by create and update.
type IDResponse struct {
	ID uint `json:"id"`
}

// ViewResponse is returned by the view registration endpoint.
type ViewResponse struct {
	Incremented int64 `json:"incremented"`
}

// TotalPagesResponse is returned by the total pages endpoint.
type TotalPagesResponse struct {
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

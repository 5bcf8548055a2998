package domain

import "context"

// Post is a discussion-board post.
type Post struct {
	BaseModel
	Title     string `gorm:"size:200;not null" json:"title"`
	Content   string `gorm:"type:text;not null" json:"content"`
	Writer    string `gorm:"size:50;not null;index" json:"writer"`
	ViewCount int64  `gorm:"not null;default:0" json:"view_count"`
	Deleted   bool   `gorm:"not null;default:false;index" json:"-"`
}

// PostRepository defines the data access interface for posts.
// Every read excludes soft-deleted rows.
type PostRepository interface {
	// Transaction runs fn inside a single unit of work. The repository handed
	// to fn is bound to the transaction; it commits when fn returns nil and
	// rolls back on error or panic.
	Transaction(ctx context.Context, fn func(repo PostRepository) error) error

	Save(ctx context.Context, post *Post) error
	Update(ctx context.Context, post *Post) error
	FindByID(ctx context.Context, id uint) (*Post, error)
	FindAllSorted(ctx context.Context, sort SortSpec) ([]Post, error)
	// FindPageSorted takes a 0-indexed page.
	FindPageSorted(ctx context.Context, pageIndex, pageSize int, sort SortSpec, filter map[string]string) ([]Post, error)
	// CountActive counts the rows FindPageSorted pages over for filter.
	CountActive(ctx context.Context, filter map[string]string) (int64, error)
	IncrementViewCount(ctx context.Context, id uint) (int64, error)
	SoftDelete(ctx context.Context, id uint) (int64, error)
}

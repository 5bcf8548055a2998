package post

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/simp-lee/board/internal/domain"
	"github.com/simp-lee/board/internal/pkg"
)

// sortColumns fixes the column behind every sort key; nothing from the
// request is interpolated into ORDER BY.
var sortColumns = map[domain.SortField]string{
	domain.SortByID:        "id",
	domain.SortByCreatedAt: "created_at",
	domain.SortByViewCount: "view_count",
	domain.SortByTitle:     "title",
}

var allowedFilterFields = []string{"title", "writer", "content"}

// postRepository implements domain.PostRepository using GORM.
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a PostRepository backed by the given GORM database.
func NewPostRepository(db *gorm.DB) domain.PostRepository {
	return &postRepository{db: db}
}

// Transaction runs fn with a repository bound to a single database transaction.
func (r *postRepository) Transaction(ctx context.Context, fn func(repo domain.PostRepository) error) error {
	return pkg.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		return fn(&postRepository{db: tx})
	})
}

// Save inserts a new post and fills in its id and timestamps.
func (r *postRepository) Save(ctx context.Context, post *domain.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// Update writes title, content and writer of an active post. created_at and
// view_count are never touched.
func (r *postRepository) Update(ctx context.Context, post *domain.Post) error {
	result := r.db.WithContext(ctx).
		Model(post).
		Where("deleted = ?", false).
		Select("title", "content", "writer", "updated_at").
		Updates(post)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// FindByID retrieves an active post by its primary key.
func (r *postRepository) FindByID(ctx context.Context, id uint) (*domain.Post, error) {
	var post domain.Post
	if err := r.active(ctx).First(&post, id).Error; err != nil {
		return nil, mapError(err)
	}
	return &post, nil
}

// FindAllSorted returns every active post in the given order.
func (r *postRepository) FindAllSorted(ctx context.Context, sort domain.SortSpec) ([]domain.Post, error) {
	posts := []domain.Post{}
	if err := r.active(ctx).Scopes(pkg.Sort(sort, sortColumns)).Find(&posts).Error; err != nil {
		return nil, mapError(err)
	}
	return posts, nil
}

// FindPageSorted returns the 0-indexed page pageIndex of active posts
// matching filter.
func (r *postRepository) FindPageSorted(ctx context.Context, pageIndex, pageSize int, sort domain.SortSpec, filter map[string]string) ([]domain.Post, error) {
	posts := []domain.Post{}
	if err := r.matching(ctx, filter).Scopes(
		pkg.Sort(sort, sortColumns),
		pkg.Paginate(pageIndex, pageSize),
	).Find(&posts).Error; err != nil {
		return nil, mapError(err)
	}
	return posts, nil
}

// CountActive counts posts that are not soft-deleted and match filter. A nil
// filter counts every active post.
func (r *postRepository) CountActive(ctx context.Context, filter map[string]string) (int64, error) {
	var n int64
	if err := r.matching(ctx, filter).Count(&n).Error; err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// IncrementViewCount adds one to the view count of an active post in a single
// UPDATE and returns the number of rows changed.
func (r *postRepository) IncrementViewCount(ctx context.Context, id uint) (int64, error) {
	result := r.active(ctx).
		Model(&domain.Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if result.Error != nil {
		return 0, mapError(result.Error)
	}
	return result.RowsAffected, nil
}

// SoftDelete flags an active post as deleted and returns the rows changed.
func (r *postRepository) SoftDelete(ctx context.Context, id uint) (int64, error) {
	result := r.active(ctx).
		Model(&domain.Post{}).
		Where("id = ?", id).
		UpdateColumn("deleted", true)
	if result.Error != nil {
		return 0, mapError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *postRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("deleted = ?", false)
}

func (r *postRepository) matching(ctx context.Context, filter map[string]string) *gorm.DB {
	return pkg.Filter(filter, allowedFilterFields)(r.active(ctx).Model(&domain.Post{}))
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrPostNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewAppError(domain.CodeTimeout, "request timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewAppError(domain.CodeCanceled, "request canceled", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "post already exists", err)
	}
	return domain.NewAppError(domain.CodeStorage, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. Not all GORM dialectors translate driver-level errors to
// gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

package post

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/simp-lee/board/internal/domain"
	"github.com/simp-lee/board/internal/metrics"
	"github.com/simp-lee/board/internal/pkg"
)

const (
	maxTitleLen   = 200
	maxWriterLen  = 50
	maxContentLen = 20000

	defaultPageSize    = 10
	defaultWindowSize  = 5
	defaultMaxPageSize = 100
)

// PostInput carries the user-editable fields of a post.
type PostInput struct {
	Title   string
	Content string
	Writer  string
}

// PostPage is one page of posts plus the navigation window around it.
type PostPage struct {
	Items      []domain.Post  `json:"items"`
	Pagination pkg.Pagination `json:"pagination"`
}

// ViewResult reports a view registration. Incremented is the number of rows
// updated, 0 or 1. Marker is non-nil only when the view was counted and must
// be handed back to the client.
type ViewResult struct {
	Incremented int64
	Marker      *pkg.ViewMarker
}

// Service is the post use-case layer.
type Service interface {
	Create(ctx context.Context, in PostInput) (uint, error)
	ListAll(ctx context.Context) ([]domain.Post, error)
	ListPage(ctx context.Context, req domain.PageRequest) (*PostPage, error)
	GetTotalPages(ctx context.Context, pageSize int) (int, error)
	GetByID(ctx context.Context, id uint) (*domain.Post, error)
	Update(ctx context.Context, id uint, in PostInput) (uint, error)
	RegisterView(ctx context.Context, id uint, markers pkg.MarkerSet) (*ViewResult, error)
	Delete(ctx context.Context, id uint) error
}

// Options tunes the service. Zero values select the defaults.
type Options struct {
	PageSize     int
	MaxPageSize  int
	WindowSize   int
	MarkerSecret string
	// Location is the zone whose midnight ends a view marker. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

type postService struct {
	repo        domain.PostRepository
	dedup       *pkg.ViewDeduplicator
	pageSize    int
	maxPageSize int
	windowSize  int
	loc         *time.Location
	clock       func() time.Time
	log         *slog.Logger
}

// NewPostService creates a Service backed by repo.
func NewPostService(repo domain.PostRepository, opts Options) Service {
	s := &postService{
		repo:        repo,
		dedup:       pkg.NewViewDeduplicator(opts.MarkerSecret),
		pageSize:    opts.PageSize,
		maxPageSize: opts.MaxPageSize,
		windowSize:  opts.WindowSize,
		loc:         opts.Location,
		clock:       opts.Now,
		log:         opts.Logger,
	}
	if s.maxPageSize <= 0 {
		s.maxPageSize = defaultMaxPageSize
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	s.pageSize = min(s.pageSize, s.maxPageSize)
	if s.windowSize <= 0 {
		s.windowSize = defaultWindowSize
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Create validates in and stores a new post, returning its id.
func (s *postService) Create(ctx context.Context, in PostInput) (uint, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return 0, err
	}

	post := &domain.Post{Title: in.Title, Content: in.Content, Writer: in.Writer}
	err = s.repo.Transaction(ctx, func(repo domain.PostRepository) error {
		return repo.Save(ctx, post)
	})
	if err != nil {
		return 0, err
	}

	metrics.PostCreated()
	s.log.InfoContext(ctx, "post created", slog.Uint64("post_id", uint64(post.ID)))
	return post.ID, nil
}

// ListAll returns every active post, newest first.
func (s *postService) ListAll(ctx context.Context) ([]domain.Post, error) {
	return s.repo.FindAllSorted(ctx, domain.NewestFirst)
}

// ListPage returns the 1-indexed page req.Page. A non-positive page size
// selects the configured default; sizes above the maximum are capped. A page
// past the end is clamped to the last page.
func (s *postService) ListPage(ctx context.Context, req domain.PageRequest) (*PostPage, error) {
	size := req.PageSize
	if size <= 0 {
		size = s.pageSize
	}
	size = min(size, s.maxPageSize)
	page := max(req.Page, 1)
	sort := req.Sort
	if len(sort) == 0 {
		sort = domain.NewestFirst
	}

	total, err := s.repo.CountActive(ctx, req.Filter)
	if err != nil {
		return nil, err
	}
	totalPages, err := pkg.TotalPages(total, size)
	if err != nil {
		return nil, err
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	window, err := pkg.ComputeWindow(page, size, s.windowSize, total)
	if err != nil {
		return nil, err
	}

	items := []domain.Post{}
	if total > 0 {
		if items, err = s.repo.FindPageSorted(ctx, page-1, size, sort, req.Filter); err != nil {
			return nil, err
		}
		if items == nil {
			items = []domain.Post{}
		}
	}
	return &PostPage{Items: items, Pagination: window}, nil
}

// GetTotalPages returns how many pages of pageSize the active posts fill.
func (s *postService) GetTotalPages(ctx context.Context, pageSize int) (int, error) {
	if pageSize <= 0 {
		return 0, domain.InvalidArgument("page size must be positive")
	}
	count, err := s.repo.CountActive(ctx, nil)
	if err != nil {
		return 0, err
	}
	return pkg.TotalPages(count, pageSize)
}

// GetByID returns an active post or ErrPostNotFound.
func (s *postService) GetByID(ctx context.Context, id uint) (*domain.Post, error) {
	return s.repo.FindByID(ctx, id)
}

// Update replaces title, content and writer of an active post. The id and
// creation time never change.
func (s *postService) Update(ctx context.Context, id uint, in PostInput) (uint, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return 0, err
	}

	err = s.repo.Transaction(ctx, func(repo domain.PostRepository) error {
		post, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		post.Title = in.Title
		post.Content = in.Content
		post.Writer = in.Writer
		return repo.Update(ctx, post)
	})
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "post updated", slog.Uint64("post_id", uint64(id)))
	return id, nil
}

// RegisterView counts a view of post id unless the client already holds a
// marker for it. The increment runs in its own transaction.
func (s *postService) RegisterView(ctx context.Context, id uint, markers pkg.MarkerSet) (*ViewResult, error) {
	decision := s.dedup.ShouldIncrement(id, markers, s.now())
	if !decision.Increment {
		metrics.PostViewed(metrics.ViewDeduplicated)
		s.log.DebugContext(ctx, "view deduplicated", slog.Uint64("post_id", uint64(id)))
		return &ViewResult{}, nil
	}

	var rows int64
	err := s.repo.Transaction(ctx, func(repo domain.PostRepository) error {
		n, err := repo.IncrementViewCount(ctx, id)
		rows = n
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &ViewResult{Incremented: rows}
	if rows > 0 {
		result.Marker = decision.Marker
		metrics.PostViewed(metrics.ViewCounted)
		s.log.DebugContext(ctx, "view counted", slog.Uint64("post_id", uint64(id)))
	}
	return result, nil
}

// Delete soft-deletes an active post.
func (s *postService) Delete(ctx context.Context, id uint) error {
	err := s.repo.Transaction(ctx, func(repo domain.PostRepository) error {
		n, err := repo.SoftDelete(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrPostNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "post deleted", slog.Uint64("post_id", uint64(id)))
	return nil
}

func (s *postService) now() time.Time {
	return s.clock().In(s.loc)
}

// normalizeInput trims every field and checks its length in runes.
func normalizeInput(in PostInput) (PostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Writer = strings.TrimSpace(in.Writer)

	if err := checkLen("title", in.Title, maxTitleLen); err != nil {
		return in, err
	}
	if err := checkLen("content", in.Content, maxContentLen); err != nil {
		return in, err
	}
	if err := checkLen("writer", in.Writer, maxWriterLen); err != nil {
		return in, err
	}
	return in, nil
}

func checkLen(field, value string, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return domain.InvalidArgument(field + " is required")
	}
	if n > maxLen {
		return domain.InvalidArgument(field + " is too long")
	}
	return nil
}

package post

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/simp-lee/board/internal/domain"
	"github.com/simp-lee/board/internal/pkg"
)

// --- mock repository ---

type mockPostRepo struct {
	posts  map[uint]*domain.Post
	nextID uint
	// hooks for error injection
	saveErr      error
	findErr      error
	countErr     error
	incrementErr error
	// call counters
	txCalls        int
	countCalls     int
	countFilter    map[string]string
	pageCalls      []int
	incrementCalls int
	updated        *domain.Post
}

func newMockRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[uint]*domain.Post), nextID: 1}
}

func (m *mockPostRepo) add(title string) *domain.Post {
	p := &domain.Post{Title: title, Content: "content", Writer: "writer"}
	p.ID = m.nextID
	p.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(p.ID) * time.Minute)
	m.nextID++
	m.posts[p.ID] = p
	return p
}

func (m *mockPostRepo) active() []domain.Post {
	out := make([]domain.Post, 0, len(m.posts))
	for _, p := range m.posts {
		if !p.Deleted {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Post) int { return int(b.ID) - int(a.ID) })
	return out
}

func (m *mockPostRepo) Transaction(_ context.Context, fn func(repo domain.PostRepository) error) error {
	m.txCalls++
	return fn(m)
}

func (m *mockPostRepo) Save(_ context.Context, post *domain.Post) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	post.ID = m.nextID
	post.CreatedAt = time.Now()
	m.nextID++
	stored := *post
	m.posts[post.ID] = &stored
	return nil
}

func (m *mockPostRepo) Update(_ context.Context, post *domain.Post) error {
	stored, ok := m.posts[post.ID]
	if !ok || stored.Deleted {
		return domain.ErrPostNotFound
	}
	stored.Title, stored.Content, stored.Writer = post.Title, post.Content, post.Writer
	m.updated = post
	return nil
}

func (m *mockPostRepo) FindByID(_ context.Context, id uint) (*domain.Post, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.posts[id]
	if !ok || p.Deleted {
		return nil, domain.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPostRepo) FindAllSorted(_ context.Context, _ domain.SortSpec) ([]domain.Post, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.active(), nil
}

func (m *mockPostRepo) FindPageSorted(_ context.Context, pageIndex, pageSize int, _ domain.SortSpec, _ map[string]string) ([]domain.Post, error) {
	m.pageCalls = append(m.pageCalls, pageIndex)
	if m.findErr != nil {
		return nil, m.findErr
	}
	all := m.active()
	start := min(pageIndex*pageSize, len(all))
	end := min(start+pageSize, len(all))
	return all[start:end], nil
}

func (m *mockPostRepo) CountActive(_ context.Context, filter map[string]string) (int64, error) {
	m.countCalls++
	m.countFilter = filter
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.active())), nil
}

func (m *mockPostRepo) IncrementViewCount(_ context.Context, id uint) (int64, error) {
	m.incrementCalls++
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	p, ok := m.posts[id]
	if !ok || p.Deleted {
		return 0, nil
	}
	p.ViewCount++
	return 1, nil
}

func (m *mockPostRepo) SoftDelete(_ context.Context, id uint) (int64, error) {
	p, ok := m.posts[id]
	if !ok || p.Deleted {
		return 0, nil
	}
	p.Deleted = true
	return 1, nil
}

func newTestService(repo domain.PostRepository, opts Options) Service {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewPostService(repo, opts)
}

// --- tests ---

func TestCreatePost(t *testing.T) {
	tests := []struct {
		name    string
		in      PostInput
		saveErr error
		wantErr bool
		errCode int
	}{
		{"success", PostInput{"Hello", "Body", "alice"}, nil, false, 0},
		{"empty title", PostInput{"", "Body", "alice"}, nil, true, domain.CodeValidation},
		{"whitespace writer", PostInput{"Hello", "Body", "   "}, nil, true, domain.CodeValidation},
		{"empty content", PostInput{"Hello", "", "alice"}, nil, true, domain.CodeValidation},
		{"title too long", PostInput{strings.Repeat("가", maxTitleLen+1), "Body", "alice"}, nil, true, domain.CodeValidation},
		{"title at limit in runes", PostInput{strings.Repeat("가", maxTitleLen), "Body", "alice"}, nil, false, 0},
		{"writer too long", PostInput{"Hello", "Body", strings.Repeat("w", maxWriterLen+1)}, nil, true, domain.CodeValidation},
		{"repo error", PostInput{"Hello", "Body", "alice"}, domain.NewAppError(domain.CodeStorage, "database error", errors.New("boom")), true, domain.CodeStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			repo.saveErr = tt.saveErr
			svc := newTestService(repo, Options{})

			id, err := svc.Create(context.Background(), tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var appErr *domain.AppError
				if !errors.As(err, &appErr) || appErr.Code != tt.errCode {
					t.Errorf("expected error code %d, got %v", tt.errCode, err)
				}
				if len(repo.posts) != 0 {
					t.Errorf("expected nothing stored, got %d posts", len(repo.posts))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id == 0 {
				t.Fatal("expected non-zero id")
			}
			if repo.txCalls != 1 {
				t.Errorf("Transaction calls=%d; want 1", repo.txCalls)
			}
		})
	}
}

func TestCreatePost_TrimsFields(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, Options{})

	id, err := svc.Create(context.Background(), PostInput{"  Hello  ", "\tBody\n", " alice "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got := repo.posts[id]
	if got.Title != "Hello" || got.Content != "Body" || got.Writer != "alice" {
		t.Errorf("stored %+v; want trimmed fields", got)
	}
}

func TestListAll(t *testing.T) {
	repo := newMockRepo()
	for _, title := range []string{"a", "b", "c"} {
		repo.add(title)
	}
	repo.posts[2].Deleted = true
	svc := newTestService(repo, Options{})

	posts, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != 3 || posts[1].ID != 1 {
		t.Errorf("ListAll ids = %v; want [3 1]", ids(posts))
	}
}

func TestListPage(t *testing.T) {
	repo := newMockRepo()
	for range 47 {
		repo.add("post")
	}
	svc := newTestService(repo, Options{PageSize: 10, WindowSize: 5})

	page, err := svc.ListPage(context.Background(), domain.PageRequest{Page: 5, PageSize: 10})
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	want := pkg.Pagination{Page: 5, Total: 47, PageSize: 10, WindowSize: 5, StartPage: 1, LastPage: 5, TotalPages: 5}
	if page.Pagination != want {
		t.Errorf("Pagination = %+v; want %+v", page.Pagination, want)
	}
	if len(page.Items) != 7 {
		t.Errorf("Items=%d; want 7", len(page.Items))
	}
}

func TestListPage_Defaults(t *testing.T) {
	repo := newMockRepo()
	for range 25 {
		repo.add("post")
	}
	svc := newTestService(repo, Options{PageSize: 10, MaxPageSize: 20})

	tests := []struct {
		name         string
		req          domain.PageRequest
		wantPage     int
		wantPageSize int
	}{
		{"zero page size uses default", domain.PageRequest{Page: 1, PageSize: 0}, 1, 10},
		{"negative page size uses default", domain.PageRequest{Page: 1, PageSize: -3}, 1, 10},
		{"page size capped", domain.PageRequest{Page: 1, PageSize: 500}, 1, 20},
		{"zero page becomes first", domain.PageRequest{Page: 0, PageSize: 10}, 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListPage(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("ListPage: %v", err)
			}
			if page.Pagination.Page != tt.wantPage || page.Pagination.PageSize != tt.wantPageSize {
				t.Errorf("page=%d size=%d; want %d and %d",
					page.Pagination.Page, page.Pagination.PageSize, tt.wantPage, tt.wantPageSize)
			}
		})
	}
}

func TestListPage_ClampsPastTheEnd(t *testing.T) {
	repo := newMockRepo()
	for range 12 {
		repo.add("post")
	}
	svc := newTestService(repo, Options{PageSize: 5})

	page, err := svc.ListPage(context.Background(), domain.PageRequest{Page: 9, PageSize: 5})
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if page.Pagination.Page != 3 {
		t.Errorf("Page=%d; want 3", page.Pagination.Page)
	}
	if len(page.Items) != 2 {
		t.Errorf("Items=%d; want 2", len(page.Items))
	}
	if repo.countCalls != 1 {
		t.Errorf("count queries = %d; want 1", repo.countCalls)
	}
	if !slices.Equal(repo.pageCalls, []int{2}) {
		t.Errorf("page queries = %v; want [2]", repo.pageCalls)
	}
}

func TestListPage_CountsWithFilter(t *testing.T) {
	repo := newMockRepo()
	for range 3 {
		repo.add("post")
	}
	svc := newTestService(repo, Options{PageSize: 5})
	filter := map[string]string{"writer": "writer"}

	if _, err := svc.ListPage(context.Background(), domain.PageRequest{Page: 1, Filter: filter}); err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if repo.countFilter["writer"] != "writer" {
		t.Errorf("count filter = %v; want %v", repo.countFilter, filter)
	}
}

func TestListPage_Empty(t *testing.T) {
	svc := newTestService(newMockRepo(), Options{})

	page, err := svc.ListPage(context.Background(), domain.PageRequest{Page: 3})
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("Items = %#v; want empty non-nil slice", page.Items)
	}
	if page.Pagination.TotalPages != 0 || page.Pagination.LastPage != 0 {
		t.Errorf("Pagination = %+v; want no pages", page.Pagination)
	}
}

func TestListPage_EmptySkipsPageQuery(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, Options{})

	if _, err := svc.ListPage(context.Background(), domain.PageRequest{Page: 1}); err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(repo.pageCalls) != 0 {
		t.Errorf("page queries = %v; want none", repo.pageCalls)
	}
}

func TestListPage_RepoError(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*mockPostRepo)
	}{
		{"count fails", func(m *mockPostRepo) { m.countErr = domain.ErrStorageFailure }},
		{"page fails", func(m *mockPostRepo) { m.findErr = domain.ErrStorageFailure }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			repo.add("post")
			tt.inject(repo)
			svc := newTestService(repo, Options{})

			if _, err := svc.ListPage(context.Background(), domain.PageRequest{Page: 1}); !domain.IsStorageFailure(err) {
				t.Errorf("expected storage failure, got %v", err)
			}
		})
	}
}

func TestGetTotalPages(t *testing.T) {
	repo := newMockRepo()
	for range 21 {
		repo.add("post")
	}
	svc := newTestService(repo, Options{})

	tests := []struct {
		pageSize int
		want     int
		wantErr  bool
	}{
		{10, 3, false},
		{21, 1, false},
		{7, 3, false},
		{100, 1, false},
		{0, 0, true},
		{-1, 0, true},
	}
	for _, tt := range tests {
		got, err := svc.GetTotalPages(context.Background(), tt.pageSize)
		if tt.wantErr {
			if !domain.IsValidation(err) {
				t.Errorf("GetTotalPages(%d): expected validation error, got %v", tt.pageSize, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("GetTotalPages(%d): %v", tt.pageSize, err)
		}
		if got != tt.want {
			t.Errorf("GetTotalPages(%d) = %d; want %d", tt.pageSize, got, tt.want)
		}
	}
}

func TestGetTotalPages_NoPosts(t *testing.T) {
	svc := newTestService(newMockRepo(), Options{})

	got, err := svc.GetTotalPages(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetTotalPages: %v", err)
	}
	if got != 0 {
		t.Errorf("GetTotalPages = %d; want 0", got)
	}
}

func TestGetByID(t *testing.T) {
	repo := newMockRepo()
	p := repo.add("hello")
	svc := newTestService(repo, Options{})

	got, err := svc.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "hello" {
		t.Errorf("Title=%q; want hello", got.Title)
	}

	_, err = svc.GetByID(context.Background(), 404)
	if domain.KindOf(err) != domain.KindPostNotFound {
		t.Errorf("expected POST_NOT_FOUND, got %v", err)
	}
}

func TestUpdatePost(t *testing.T) {
	repo := newMockRepo()
	p := repo.add("before")
	p.ViewCount = 9
	createdAt := p.CreatedAt
	svc := newTestService(repo, Options{})

	id, err := svc.Update(context.Background(), p.ID, PostInput{"after", "new body", "bob"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if id != p.ID {
		t.Errorf("Update id=%d; want %d", id, p.ID)
	}

	stored := repo.posts[p.ID]
	if stored.Title != "after" || stored.Content != "new body" || stored.Writer != "bob" {
		t.Errorf("stored %+v; want updated fields", stored)
	}
	if repo.updated.ID != p.ID || !repo.updated.CreatedAt.Equal(createdAt) || repo.updated.ViewCount != 9 {
		t.Errorf("Update wrote %+v; id, created_at and view_count must be preserved", repo.updated)
	}
}

func TestUpdatePost_Errors(t *testing.T) {
	repo := newMockRepo()
	p := repo.add("before")
	svc := newTestService(repo, Options{})

	if _, err := svc.Update(context.Background(), 999, PostInput{"t", "c", "w"}); domain.KindOf(err) != domain.KindPostNotFound {
		t.Errorf("missing post: expected POST_NOT_FOUND, got %v", err)
	}
	if _, err := svc.Update(context.Background(), p.ID, PostInput{"", "c", "w"}); !domain.IsValidation(err) {
		t.Errorf("empty title: expected validation error, got %v", err)
	}
	if repo.posts[p.ID].Title != "before" {
		t.Errorf("failed update changed the post: %+v", repo.posts[p.ID])
	}
}

func TestRegisterView(t *testing.T) {
	repo := newMockRepo()
	p := repo.add("hello")
	loc := time.FixedZone("KST", 9*60*60)
	now := time.Date(2026, 5, 1, 23, 0, 0, 0, loc)
	svc := newTestService(repo, Options{Location: loc, Now: func() time.Time { return now }})
	ctx := context.Background()

	first, err := svc.RegisterView(ctx, p.ID, pkg.MarkerSet{})
	if err != nil {
		t.Fatalf("RegisterView: %v", err)
	}
	if first.Incremented != 1 {
		t.Errorf("Incremented=%d; want 1", first.Incremented)
	}
	if first.Marker == nil {
		t.Fatal("expected a marker for a counted view")
	}
	if first.Marker.Name != "VIEWCOUNT1" || first.Marker.MaxAge != 3600 || !first.Marker.HTTPOnly {
		t.Errorf("Marker = %+v; want VIEWCOUNT1, 3600s, http-only", first.Marker)
	}

	cookies := []*http.Cookie{first.Marker.Cookie(false)}
	second, err := svc.RegisterView(ctx, p.ID, pkg.MarkersFromCookies(cookies))
	if err != nil {
		t.Fatalf("second RegisterView: %v", err)
	}
	if second.Incremented != 0 || second.Marker != nil {
		t.Errorf("second view = %+v; want deduplicated", second)
	}
	if repo.posts[p.ID].ViewCount != 1 {
		t.Errorf("ViewCount=%d; want 1", repo.posts[p.ID].ViewCount)
	}
	if repo.incrementCalls != 1 {
		t.Errorf("increment calls=%d; want 1", repo.incrementCalls)
	}
}

func TestRegisterView_MissingPostIssuesNoMarker(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, Options{})

	result, err := svc.RegisterView(context.Background(), 42, pkg.MarkerSet{})
	if err != nil {
		t.Fatalf("RegisterView: %v", err)
	}
	if result.Incremented != 0 || result.Marker != nil {
		t.Errorf("result = %+v; want nothing counted", result)
	}
}

func TestRegisterView_SignedMarkers(t *testing.T) {
	repo := newMockRepo()
	p := repo.add("hello")
	svc := newTestService(repo, Options{MarkerSecret: "s3cret"})
	ctx := context.Background()

	// An unsigned marker is ignored when signing is on.
	forged := pkg.MarkerSet{pkg.MarkerName(p.ID): "1"}
	result, err := svc.RegisterView(ctx, p.ID, forged)
	if err != nil {
		t.Fatalf("RegisterView: %v", err)
	}
	if result.Incremented != 1 || result.Marker == nil {
		t.Fatalf("forged marker deduplicated the view: %+v", result)
	}

	signed := pkg.MarkerSet{result.Marker.Name: result.Marker.Value}
	again, err := svc.RegisterView(ctx, p.ID, signed)
	if err != nil {
		t.Fatalf("RegisterView: %v", err)
	}
	if again.Incremented != 0 {
		t.Errorf("signed marker not honored: %+v", again)
	}
}

func TestRegisterView_RepoError(t *testing.T) {
	repo := newMockRepo()
	p := repo.add("hello")
	repo.incrementErr = domain.NewAppError(domain.CodeStorage, "database error", errors.New("boom"))
	svc := newTestService(repo, Options{})

	result, err := svc.RegisterView(context.Background(), p.ID, pkg.MarkerSet{})
	if !domain.IsStorageFailure(err) {
		t.Errorf("expected storage failure, got %v", err)
	}
	if result != nil {
		t.Errorf("result = %+v; want nil on error", result)
	}
}

func TestDeletePost(t *testing.T) {
	repo := newMockRepo()
	p := repo.add("hello")
	svc := newTestService(repo, Options{})
	ctx := context.Background()

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, p.ID); domain.KindOf(err) != domain.KindPostNotFound {
		t.Errorf("GetByID after delete: expected POST_NOT_FOUND, got %v", err)
	}
	if err := svc.Delete(ctx, p.ID); domain.KindOf(err) != domain.KindPostNotFound {
		t.Errorf("second Delete: expected POST_NOT_FOUND, got %v", err)
	}
}

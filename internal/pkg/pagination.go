package pkg

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/board/internal/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// reservedParams lists query parameter names used for pagination/sorting, not for filtering.
var reservedParams = map[string]bool{
	"page":      true,
	"page_size": true,
	"sort":      true,
}

// sortFieldNames maps the public sort key names accepted in ?sort= to fields.
var sortFieldNames = map[string]domain.SortField{
	"id":         domain.SortByID,
	"created_at": domain.SortByCreatedAt,
	"view_count": domain.SortByViewCount,
	"title":      domain.SortByTitle,
}

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParsePageRequest extracts pagination, sorting, and filtering parameters from
// query params. A missing or non-positive page becomes 1; page_size falls back
// to fallbackPageSize and is capped at maxPageSize.
//
// sort accepts a comma separated list of key:direction pairs, for example
// "view_count:desc,id:desc". Unknown keys are dropped; an empty result means
// the repository default (newest first).
func ParsePageRequest(c *gin.Context, fallbackPageSize int) domain.PageRequest {
	if fallbackPageSize < 1 {
		fallbackPageSize = defaultPageSize
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if page < 1 {
		page = defaultPage
	}

	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(fallbackPageSize)))
	if pageSize < 1 {
		pageSize = fallbackPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] {
			continue
		}
		if len(values) > 0 && values[0] != "" {
			filter[key] = values[0]
		}
	}

	return domain.PageRequest{
		Page:     page,
		PageSize: pageSize,
		Sort:     ParseSortSpec(c.Query("sort")),
		Filter:   filter,
	}
}

// ParseSortSpec parses "key:dir[,key:dir...]" into a SortSpec.
func ParseSortSpec(raw string) domain.SortSpec {
	var spec domain.SortSpec
	for _, part := range strings.Split(raw, ",") {
		name, dir, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		field, known := sortFieldNames[strings.TrimSpace(name)]
		if !known {
			continue
		}
		var direction domain.SortDirection
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "asc":
			direction = domain.Asc
		case "desc":
			direction = domain.Desc
		default:
			continue
		}
		spec = append(spec, domain.SortOrder{Field: field, Direction: direction})
	}
	return spec
}

// Paginate returns a GORM scope that applies LIMIT and OFFSET for a 0-indexed page.
func Paginate(pageIndex, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageIndex < 0 {
			pageIndex = 0
		}
		return db.Offset(pageIndex * pageSize).Limit(pageSize)
	}
}

// Sort returns a GORM scope that applies ORDER BY for each key in spec.
// columns maps every sortable field to its column; keys without a column are skipped.
func Sort(spec domain.SortSpec, columns map[domain.SortField]string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, order := range spec {
			column, ok := columns[order.Field]
			if !ok {
				continue
			}
			db = db.Order(clause.OrderByColumn{
				Column: clause.Column{Name: column},
				Desc:   order.Direction == domain.Desc,
			})
		}
		return db
	}
}

// Filter returns a GORM scope that applies WHERE conditions from the filter map.
// Only keys present in the allowed list are applied; others are silently ignored.
// Keys ending with "__like" produce a LIKE '%value%' condition; others use exact match.
func Filter(filter map[string]string, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for key, value := range filter {
			field, like := strings.CutSuffix(key, "__like")
			if !validFieldName.MatchString(field) || !slices.Contains(allowed, field) {
				continue
			}
			if like {
				db = db.Where(field+" LIKE ?", "%"+value+"%")
			} else {
				db = db.Where(field+" = ?", value)
			}
		}
		return db
	}
}

// Pagination describes one page of a list and the block ("window") of page
// links shown around it.
type Pagination struct {
	Page       int   `json:"page"`
	Total      int64 `json:"total"`
	PageSize   int   `json:"page_size"`
	WindowSize int   `json:"window_size"`
	StartPage  int   `json:"start_page"`
	LastPage   int   `json:"last_page"`
	TotalPages int   `json:"total_pages"`
}

// TotalPages returns ceil(total/pageSize), or 0 when there are no records.
func TotalPages(total int64, pageSize int) (int, error) {
	if pageSize <= 0 {
		return 0, domain.InvalidArgument("page size must be positive")
	}
	if total <= 0 {
		return 0, nil
	}
	size := int64(pageSize)
	return int((total + size - 1) / size), nil
}

// ComputeWindow builds the Pagination for currentPage. Pages are grouped into
// fixed blocks of pagesPerWindow: page 7 with a window of 5 falls in 6..10.
// The block end is cut at the last page.
//
// currentPage is taken as-is. A page past the end yields a window whose
// StartPage exceeds LastPage; callers clamp before calling when that matters.
func ComputeWindow(currentPage, recordsPerPage, pagesPerWindow int, total int64) (Pagination, error) {
	if pagesPerWindow <= 0 {
		return Pagination{}, domain.InvalidArgument("pages per window must be positive")
	}
	totalPages, err := TotalPages(total, recordsPerPage)
	if err != nil {
		return Pagination{}, err
	}

	start := ((currentPage-1)/pagesPerWindow)*pagesPerWindow + 1
	last := min(start+pagesPerWindow-1, totalPages)

	return Pagination{
		Page:       currentPage,
		Total:      total,
		PageSize:   recordsPerPage,
		WindowSize: pagesPerWindow,
		StartPage:  start,
		LastPage:   last,
		TotalPages: totalPages,
	}, nil
}

// Pages lists the page numbers of the window, StartPage through LastPage.
func (p Pagination) Pages() []int {
	if p.StartPage > p.LastPage {
		return nil
	}
	pages := make([]int, 0, p.LastPage-p.StartPage+1)
	for i := p.StartPage; i <= p.LastPage; i++ {
		pages = append(pages, i)
	}
	return pages
}

// HasPrevWindow reports whether a block precedes this one.
func (p Pagination) HasPrevWindow() bool {
	return p.StartPage > 1
}

// PrevWindowPage is the last page of the previous block.
func (p Pagination) PrevWindowPage() int {
	return p.StartPage - 1
}

// HasNextWindow reports whether a block follows this one.
func (p Pagination) HasNextWindow() bool {
	return p.LastPage < p.TotalPages
}

// NextWindowPage is the first page of the next block.
func (p Pagination) NextWindowPage() int {
	return p.LastPage + 1
}

package domain

import "time"

// BaseModel is the common base struct for all domain models.
// It replaces gorm.Model to avoid the implicit soft delete behavior of DeletedAt.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SortField enumerates the columns a list query may be ordered by.
type SortField int

const (
	SortByID SortField = iota + 1
	SortByCreatedAt
	SortByViewCount
	SortByTitle
)

// SortDirection is the ordering direction of a single sort key.
type SortDirection int

const (
	Asc SortDirection = iota
	Desc
)

// SortOrder is one key of a sort specification.
type SortOrder struct {
	Field     SortField
	Direction SortDirection
}

// SortSpec is an ordered list of sort keys; earlier keys take precedence.
type SortSpec []SortOrder

// NewestFirst orders by id then creation time, both descending.
var NewestFirst = SortSpec{
	{Field: SortByID, Direction: Desc},
	{Field: SortByCreatedAt, Direction: Desc},
}

// PageRequest holds pagination, sorting, and filtering parameters.
// Page is 1-indexed.
type PageRequest struct {
	Page     int
	PageSize int
	Sort     SortSpec
	Filter   map[string]string
}

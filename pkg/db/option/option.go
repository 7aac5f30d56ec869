package option

import (
	"strings"
	"time"

	"github.com/adscopehq/adscope/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryFunc func(*gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type QuerySortBy struct {
	Allow   map[string]bool
	Column  string
	Desc    bool
	Default string
}

// WithSortBy orders results by an allow-listed column, newest first by default.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.Column)
		if column == "" || !sort.Allow[column] {
			column = sort.Default
		}
		if column == "" {
			column = "created_at"
		}
		direction := "DESC"
		if !sort.Desc && sort.Column != "" {
			direction = "ASC"
		}
		return db.Order(column + " " + direction).Order("id DESC")
	})
}

// ApplyPagination applies keyset pagination. One extra row is fetched so the
// caller can detect a further page.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 10
		}
		if token := strings.TrimSpace(p.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil {
				createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt)
				if parseErr == nil {
					db = db.Where("(created_at, id) < (?, ?)", createdAt, cursor.ID)
				}
			}
		}
		return db.Limit(size + 1)
	})
}

// WithLimit caps the number of rows returned.
func WithLimit(limit int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

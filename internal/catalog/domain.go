// internal/catalog/domain.go
package catalog

import (
	"time"
)

// Book represents a title in the catalog. AvailableCopies is never stored: it
// is derived from the loan ledger on every read, so a denormalized counter can
// never drift from the loans that actually exist.
type Book struct {
	ID              int64     `json:"id" db:"id"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	Publisher       *string   `json:"publisher,omitempty" db:"publisher"`
	PublicationYear *int      `json:"publication_year,omitempty" db:"publication_year"`
	Genre           *string   `json:"genre,omitempty" db:"genre"`
	Description     *string   `json:"description,omitempty" db:"description"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	AvailableCopies int       `json:"available_copies" db:"available_copies"`
	Location        *string   `json:"location,omitempty" db:"location"`
	CoverImageURL   *string   `json:"cover_image_url,omitempty" db:"cover_image_url"`
	CategoryID      *int64    `json:"category_id,omitempty" db:"category_id"`
	CategoryName    *string   `json:"category_name,omitempty" db:"category_name"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Category groups books. Deleting a category is blocked while active books
// still reference it.
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

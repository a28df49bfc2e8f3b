// internal/catalog/service.go
package catalog

import (
	"context"
)

// BookService defines the catalog operations for books.
type BookService interface {
	Create(ctx context.Context, book *Book) (*Book, error)
	Update(ctx context.Context, id int64, book *Book) (*Book, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Book, error)
	List(ctx context.Context) ([]Book, error)
	ListAvailable(ctx context.Context) ([]Book, error)
	FindByAuthor(ctx context.Context, author string) ([]Book, error)
	FindByCategory(ctx context.Context, categoryID int64) ([]Book, error)
	IsISBNUnique(ctx context.Context, isbn string, excludeID int64) (bool, error)
	AvailableCopies(ctx context.Context, bookID int64) (int, error)
}

// CategoryService defines the catalog operations for categories.
type CategoryService interface {
	Create(ctx context.Context, category *Category) (*Category, error)
	Update(ctx context.Context, id int64, category *Category) (*Category, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	IsNameUnique(ctx context.Context, name string, excludeID int64) (bool, error)
	BookCount(ctx context.Context, categoryID int64) (int, error)
}

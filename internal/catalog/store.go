// internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"librarium/internal/database"
)

// BookStore is the persistence contract for books. Every method takes the
// Querier chosen by the caller, so the same store works against the pool for
// reads and against a transaction handle inside a workflow.
type BookStore interface {
	Insert(ctx context.Context, q database.Querier, book *Book) error
	Update(ctx context.Context, q database.Querier, book *Book) error
	SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error
	GetByID(ctx context.Context, q database.Querier, id int64) (*Book, error)
	GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Book, error)
	ListActive(ctx context.Context, q database.Querier) ([]Book, error)
	ListAvailable(ctx context.Context, q database.Querier) ([]Book, error)
	FindByAuthor(ctx context.Context, q database.Querier, author string) ([]Book, error)
	FindByCategory(ctx context.Context, q database.Querier, categoryID int64) ([]Book, error)
	CountActiveISBN(ctx context.Context, q database.Querier, isbn string, excludeID int64) (int, error)
	CountBorrowed(ctx context.Context, q database.Querier, bookID int64) (int, error)
	AvailableCopies(ctx context.Context, q database.Querier, bookID int64) (int, error)
}

// CategoryStore is the persistence contract for categories.
type CategoryStore interface {
	Insert(ctx context.Context, q database.Querier, category *Category) error
	Update(ctx context.Context, q database.Querier, category *Category) error
	SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error
	GetByID(ctx context.Context, q database.Querier, id int64) (*Category, error)
	ListActive(ctx context.Context, q database.Querier) ([]Category, error)
	CountActiveName(ctx context.Context, q database.Querier, name string, excludeID int64) (int, error)
	CountActiveBooks(ctx context.Context, q database.Querier, categoryID int64) (int, error)
}

// bookSelect derives available_copies from the ledger in the same query that
// reads the book, instead of trusting a stored counter.
const bookSelect = `
	SELECT b.id, b.isbn, b.title, b.author, b.publisher, b.publication_year,
	       b.genre, b.description, b.total_copies,
	       GREATEST(0, b.total_copies - COUNT(l.id) FILTER (WHERE l.status = 'Borrowed'))::int AS available_copies,
	       b.location, b.cover_image_url, b.category_id, c.name AS category_name,
	       b.is_active, b.created_at, b.updated_at
	FROM books b
	LEFT JOIN categories c ON c.id = b.category_id
	LEFT JOIN loans l ON l.book_id = b.id`

const bookGroupBy = ` GROUP BY b.id, c.name`

// PGBookStore implements BookStore against Postgres.
type PGBookStore struct{}

func NewBookStore() *PGBookStore {
	return &PGBookStore{}
}

func (s *PGBookStore) Insert(ctx context.Context, q database.Querier, book *Book) error {
	query := `
		INSERT INTO books (isbn, title, author, publisher, publication_year, genre,
		                   description, total_copies, location, cover_image_url,
		                   category_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	err := q.QueryRowxContext(ctx, query,
		book.ISBN, book.Title, book.Author, book.Publisher, book.PublicationYear,
		book.Genre, book.Description, book.TotalCopies, book.Location,
		book.CoverImageURL, book.CategoryID, book.IsActive, book.CreatedAt, book.UpdatedAt,
	).Scan(&book.ID)
	if err != nil {
		return database.TranslateError(fmt.Errorf("insert book: %w", err))
	}
	return nil
}

func (s *PGBookStore) Update(ctx context.Context, q database.Querier, book *Book) error {
	query := `
		UPDATE books
		SET title = $1, author = $2, publisher = $3, publication_year = $4,
		    genre = $5, description = $6, total_copies = $7, location = $8,
		    cover_image_url = $9, category_id = $10, updated_at = $11
		WHERE id = $12`

	_, err := q.ExecContext(ctx, query,
		book.Title, book.Author, book.Publisher, book.PublicationYear, book.Genre,
		book.Description, book.TotalCopies, book.Location, book.CoverImageURL,
		book.CategoryID, book.UpdatedAt, book.ID,
	)
	if err != nil {
		return database.TranslateError(fmt.Errorf("update book: %w", err))
	}
	return nil
}

func (s *PGBookStore) SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE books SET is_active = FALSE, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("soft delete book: %w", err)
	}
	return nil
}

func (s *PGBookStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Book, error) {
	var book Book
	err := sqlx.GetContext(ctx, q, &book, bookSelect+` WHERE b.id = $1`+bookGroupBy, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// GetByIDForUpdate locks the book row for the remainder of the transaction.
// This is the serialization point for concurrent borrows: two transactions
// cannot both hold the lock, so availability is always read after the other
// writer committed or rolled back. FOR UPDATE cannot be combined with the
// aggregate select, so the derived count is left at zero here.
func (s *PGBookStore) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Book, error) {
	query := `
		SELECT id, isbn, title, author, publisher, publication_year, genre,
		       description, total_copies, location, cover_image_url, category_id,
		       is_active, created_at, updated_at
		FROM books
		WHERE id = $1
		FOR UPDATE`

	var book Book
	err := sqlx.GetContext(ctx, q, &book, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	return &book, nil
}

func (s *PGBookStore) ListActive(ctx context.Context, q database.Querier) ([]Book, error) {
	books := []Book{}
	err := sqlx.SelectContext(ctx, q, &books,
		bookSelect+` WHERE b.is_active`+bookGroupBy+` ORDER BY b.title`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *PGBookStore) ListAvailable(ctx context.Context, q database.Querier) ([]Book, error) {
	query := bookSelect + ` WHERE b.is_active` + bookGroupBy + `
		HAVING GREATEST(0, b.total_copies - COUNT(l.id) FILTER (WHERE l.status = 'Borrowed')) > 0
		ORDER BY b.title`

	books := []Book{}
	if err := sqlx.SelectContext(ctx, q, &books, query); err != nil {
		return nil, fmt.Errorf("list available books: %w", err)
	}
	return books, nil
}

func (s *PGBookStore) FindByAuthor(ctx context.Context, q database.Querier, author string) ([]Book, error) {
	books := []Book{}
	err := sqlx.SelectContext(ctx, q, &books,
		bookSelect+` WHERE b.is_active AND b.author ILIKE '%' || $1 || '%'`+bookGroupBy+` ORDER BY b.title`,
		author)
	if err != nil {
		return nil, fmt.Errorf("find books by author: %w", err)
	}
	return books, nil
}

func (s *PGBookStore) FindByCategory(ctx context.Context, q database.Querier, categoryID int64) ([]Book, error) {
	books := []Book{}
	err := sqlx.SelectContext(ctx, q, &books,
		bookSelect+` WHERE b.is_active AND b.category_id = $1`+bookGroupBy+` ORDER BY b.title`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("find books by category: %w", err)
	}
	return books, nil
}

func (s *PGBookStore) CountActiveISBN(ctx context.Context, q database.Querier, isbn string, excludeID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM books WHERE isbn = $1 AND is_active AND ($2 = 0 OR id <> $2)`,
		isbn, excludeID)
	if err != nil {
		return 0, fmt.Errorf("count books by ISBN: %w", err)
	}
	return count, nil
}

func (s *PGBookStore) CountBorrowed(ctx context.Context, q database.Querier, bookID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM loans WHERE book_id = $1 AND status = 'Borrowed'`, bookID)
	if err != nil {
		return 0, fmt.Errorf("count borrowed loans: %w", err)
	}
	return count, nil
}

// AvailableCopies returns 0 for missing or soft-deleted books, matching the
// read semantics of the availability endpoint.
func (s *PGBookStore) AvailableCopies(ctx context.Context, q database.Querier, bookID int64) (int, error) {
	query := `
		SELECT GREATEST(0, b.total_copies - COUNT(l.id) FILTER (WHERE l.status = 'Borrowed'))::int
		FROM books b
		LEFT JOIN loans l ON l.book_id = b.id
		WHERE b.id = $1 AND b.is_active
		GROUP BY b.id`

	var available int
	err := sqlx.GetContext(ctx, q, &available, query, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("compute available copies: %w", err)
	}
	return available, nil
}

// PGCategoryStore implements CategoryStore against Postgres.
type PGCategoryStore struct{}

func NewCategoryStore() *PGCategoryStore {
	return &PGCategoryStore{}
}

const categoryColumns = `id, name, description, is_active, created_at, updated_at`

func (s *PGCategoryStore) Insert(ctx context.Context, q database.Querier, category *Category) error {
	query := `
		INSERT INTO categories (name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := q.QueryRowxContext(ctx, query,
		category.Name, category.Description, category.IsActive, category.CreatedAt, category.UpdatedAt,
	).Scan(&category.ID)
	if err != nil {
		return database.TranslateError(fmt.Errorf("insert category: %w", err))
	}
	return nil
}

func (s *PGCategoryStore) Update(ctx context.Context, q database.Querier, category *Category) error {
	_, err := q.ExecContext(ctx,
		`UPDATE categories SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		category.Name, category.Description, category.UpdatedAt, category.ID)
	if err != nil {
		return database.TranslateError(fmt.Errorf("update category: %w", err))
	}
	return nil
}

func (s *PGCategoryStore) SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE categories SET is_active = FALSE, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("soft delete category: %w", err)
	}
	return nil
}

func (s *PGCategoryStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Category, error) {
	var category Category
	err := sqlx.GetContext(ctx, q, &category,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &category, nil
}

func (s *PGCategoryStore) ListActive(ctx context.Context, q database.Querier) ([]Category, error) {
	categories := []Category{}
	err := sqlx.SelectContext(ctx, q, &categories,
		`SELECT `+categoryColumns+` FROM categories WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *PGCategoryStore) CountActiveName(ctx context.Context, q database.Querier, name string, excludeID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM categories WHERE LOWER(name) = LOWER($1) AND is_active AND ($2 = 0 OR id <> $2)`,
		name, excludeID)
	if err != nil {
		return 0, fmt.Errorf("count categories by name: %w", err)
	}
	return count, nil
}

func (s *PGCategoryStore) CountActiveBooks(ctx context.Context, q database.Querier, categoryID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT COUNT(*) FROM books WHERE category_id = $1 AND is_active`, categoryID)
	if err != nil {
		return 0, fmt.Errorf("count books in category: %w", err)
	}
	return count, nil
}

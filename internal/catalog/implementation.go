// internal/catalog/implementation.go
package catalog

import (
	"context"
	"strings"
	"time"

	"librarium/internal/apperror"
	"librarium/internal/database"
	"librarium/pkg/logger"
)

type bookService struct {
	run   database.Runner
	books BookStore
	log   logger.Logger
	now   func() time.Time
}

// NewBookService creates the catalog book service.
func NewBookService(run database.Runner, books BookStore, log logger.Logger) BookService {
	return &bookService{
		run:   run,
		books: books,
		log:   log,
		now:   time.Now,
	}
}

func (s *bookService) Create(ctx context.Context, book *Book) (*Book, error) {
	if err := validateBook(book); err != nil {
		return nil, err
	}

	err := s.run.WithTx(ctx, func(q database.Querier) error {
		count, err := s.books.CountActiveISBN(ctx, q, book.ISBN, 0)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Duplicatef("book with ISBN %s already exists", book.ISBN)
		}

		now := s.now().UTC()
		book.IsActive = true
		book.CreatedAt = now
		book.UpdatedAt = now
		return s.books.Insert(ctx, q, book)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("book created", map[string]interface{}{"book_id": book.ID, "isbn": book.ISBN})
	return book, nil
}

// Update replaces the mutable fields only. The ISBN itself is immutable; the
// supplied value is still checked for collisions so a client sending a taken
// ISBN gets a duplicate-key error rather than a silent no-op.
func (s *bookService) Update(ctx context.Context, id int64, book *Book) (*Book, error) {
	var updated *Book
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.books.GetByID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("book with ID %d not found", id)
		}

		if book.ISBN != "" {
			count, err := s.books.CountActiveISBN(ctx, q, book.ISBN, id)
			if err != nil {
				return err
			}
			if count > 0 {
				return apperror.Duplicatef("book with ISBN %s already exists", book.ISBN)
			}
		}

		existing.Title = book.Title
		existing.Author = book.Author
		existing.Publisher = book.Publisher
		existing.PublicationYear = book.PublicationYear
		existing.Genre = book.Genre
		existing.Description = book.Description
		existing.TotalCopies = book.TotalCopies
		existing.Location = book.Location
		existing.CoverImageURL = book.CoverImageURL
		existing.CategoryID = book.CategoryID
		existing.UpdatedAt = s.now().UTC()

		if err := s.books.Update(ctx, q, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes the book under the same row lock the borrow workflow
// takes, so the borrowed count cannot change between the check and the update.
func (s *bookService) Delete(ctx context.Context, id int64) error {
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.books.GetByIDForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("book with ID %d not found", id)
		}

		borrowed, err := s.books.CountBorrowed(ctx, q, id)
		if err != nil {
			return err
		}
		if borrowed > 0 {
			return apperror.Conflictf("cannot delete book with ID %d: it has %d active loan(s)", id, borrowed)
		}

		return s.books.SoftDelete(ctx, q, id, s.now().UTC())
	})
	if err != nil {
		return err
	}

	s.log.Info("book soft-deleted", map[string]interface{}{"book_id": id})
	return nil
}

func (s *bookService) GetByID(ctx context.Context, id int64) (*Book, error) {
	book, err := s.books.GetByID(ctx, s.run.Querier(), id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, apperror.NotFoundf("book with ID %d not found", id)
	}
	return book, nil
}

func (s *bookService) List(ctx context.Context) ([]Book, error) {
	return s.books.ListActive(ctx, s.run.Querier())
}

func (s *bookService) ListAvailable(ctx context.Context) ([]Book, error) {
	return s.books.ListAvailable(ctx, s.run.Querier())
}

func (s *bookService) FindByAuthor(ctx context.Context, author string) ([]Book, error) {
	return s.books.FindByAuthor(ctx, s.run.Querier(), author)
}

func (s *bookService) FindByCategory(ctx context.Context, categoryID int64) ([]Book, error) {
	return s.books.FindByCategory(ctx, s.run.Querier(), categoryID)
}

func (s *bookService) IsISBNUnique(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	count, err := s.books.CountActiveISBN(ctx, s.run.Querier(), isbn, excludeID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *bookService) AvailableCopies(ctx context.Context, bookID int64) (int, error) {
	return s.books.AvailableCopies(ctx, s.run.Querier(), bookID)
}

func validateBook(book *Book) error {
	switch {
	case strings.TrimSpace(book.ISBN) == "":
		return apperror.Invalidf("ISBN is required")
	case strings.TrimSpace(book.Title) == "":
		return apperror.Invalidf("title is required")
	case strings.TrimSpace(book.Author) == "":
		return apperror.Invalidf("author is required")
	case book.TotalCopies < 0:
		return apperror.Invalidf("total copies must not be negative")
	}
	return nil
}

type categoryService struct {
	run        database.Runner
	categories CategoryStore
	log        logger.Logger
	now        func() time.Time
}

// NewCategoryService creates the catalog category service.
func NewCategoryService(run database.Runner, categories CategoryStore, log logger.Logger) CategoryService {
	return &categoryService{
		run:        run,
		categories: categories,
		log:        log,
		now:        time.Now,
	}
}

func (s *categoryService) Create(ctx context.Context, category *Category) (*Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, apperror.Invalidf("category name is required")
	}

	err := s.run.WithTx(ctx, func(q database.Querier) error {
		count, err := s.categories.CountActiveName(ctx, q, category.Name, 0)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Duplicatef("category with name %q already exists", category.Name)
		}

		now := s.now().UTC()
		category.IsActive = true
		category.CreatedAt = now
		category.UpdatedAt = now
		return s.categories.Insert(ctx, q, category)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id int64, category *Category) (*Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, apperror.Invalidf("category name is required")
	}

	var updated *Category
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.categories.GetByID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("category with ID %d not found", id)
		}

		count, err := s.categories.CountActiveName(ctx, q, category.Name, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Duplicatef("category with name %q already exists", category.Name)
		}

		existing.Name = category.Name
		existing.Description = category.Description
		existing.UpdatedAt = s.now().UTC()

		if err := s.categories.Update(ctx, q, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *categoryService) Delete(ctx context.Context, id int64) error {
	return s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.categories.GetByID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("category with ID %d not found", id)
		}

		books, err := s.categories.CountActiveBooks(ctx, q, id)
		if err != nil {
			return err
		}
		if books > 0 {
			return apperror.Conflictf("cannot delete category with ID %d: %d active book(s) reference it", id, books)
		}

		return s.categories.SoftDelete(ctx, q, id, s.now().UTC())
	})
}

func (s *categoryService) GetByID(ctx context.Context, id int64) (*Category, error) {
	category, err := s.categories.GetByID(ctx, s.run.Querier(), id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, apperror.NotFoundf("category with ID %d not found", id)
	}
	return category, nil
}

func (s *categoryService) List(ctx context.Context) ([]Category, error) {
	return s.categories.ListActive(ctx, s.run.Querier())
}

func (s *categoryService) IsNameUnique(ctx context.Context, name string, excludeID int64) (bool, error) {
	count, err := s.categories.CountActiveName(ctx, s.run.Querier(), name, excludeID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *categoryService) BookCount(ctx context.Context, categoryID int64) (int, error) {
	return s.categories.CountActiveBooks(ctx, s.run.Querier(), categoryID)
}

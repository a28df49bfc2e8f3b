// internal/circulation/service.go
package circulation

import (
	"context"

	"librarium/internal/catalog"
	"librarium/internal/database"
	"librarium/internal/membership"
)

// LoanService drives the borrow/return workflow and the ledger queries.
type LoanService interface {
	Borrow(ctx context.Context, memberID, bookID int64) (*Loan, error)
	Return(ctx context.Context, loanID int64) (*Loan, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Loan, error)
	List(ctx context.Context) ([]Loan, error)
	ListActive(ctx context.Context) ([]Loan, error)
	ListOverdue(ctx context.Context) ([]Loan, error)
	FindByStatus(ctx context.Context, status string) ([]Loan, error)
	FindByMember(ctx context.Context, memberID int64) ([]Loan, error)
	FindByBook(ctx context.Context, bookID int64) ([]Loan, error)
}

// BookLocker is the slice of the catalog circulation needs: a locking
// read that serializes concurrent borrows of the same book.
type BookLocker interface {
	GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*catalog.Book, error)
}

// MemberLocker is the slice of membership circulation needs: a locking read
// that serializes the borrow against a concurrent member soft delete. Every
// workflow touching both rows locks the book before the member.
type MemberLocker interface {
	GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*membership.Member, error)
}

// internal/circulation/implementation.go
package circulation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarium/internal/apperror"
	"librarium/internal/database"
	"librarium/internal/membership"
	"librarium/pkg/logger"
)

// loanPeriod is how long a member may keep a book.
const loanPeriod = 14 * 24 * time.Hour

type loanService struct {
	run     database.Runner
	loans   LoanStore
	books   BookLocker
	members MemberLocker
	log     logger.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewLoanService creates the circulation workflow service.
func NewLoanService(run database.Runner, loans LoanStore, books BookLocker, members MemberLocker, log logger.Logger) LoanService {
	return &loanService{
		run:     run,
		loans:   loans,
		books:   books,
		members: members,
		log:     log,
		tracer:  otel.Tracer("librarium/circulation"),
		now:     time.Now,
	}
}

// Borrow checks out a book. The entire check-then-insert sequence runs in
// one transaction holding row locks on the book and the member (book first),
// so concurrent borrows of the same title serialize against each other and
// against soft deletes of either row.
func (s *loanService) Borrow(ctx context.Context, memberID, bookID int64) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.Borrow",
		trace.WithAttributes(
			attribute.Int64("member.id", memberID),
			attribute.Int64("book.id", bookID),
		))
	defer span.End()

	var loan *Loan
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		book, err := s.books.GetByIDForUpdate(ctx, q, bookID)
		if err != nil {
			return err
		}
		if book == nil || !book.IsActive {
			return apperror.NotFoundf("book with id %d not found", bookID)
		}

		member, err := s.members.GetByIDForUpdate(ctx, q, memberID)
		if err != nil {
			return err
		}
		if member == nil || !member.IsActive {
			return apperror.NotFoundf("member with id %d not found", memberID)
		}
		if member.MembershipStatus != membership.StatusActive {
			return apperror.Conflictf("member %s is not in good standing", member.MemberNumber)
		}

		open, err := s.loans.CountBorrowedByPair(ctx, q, memberID, bookID)
		if err != nil {
			return err
		}
		if open > 0 {
			return apperror.Conflictf("member already has this book on loan")
		}

		borrowed, err := s.loans.CountBorrowedForBook(ctx, q, bookID)
		if err != nil {
			return err
		}
		if book.TotalCopies-borrowed <= 0 {
			return apperror.Conflictf("no copies of %q available", book.Title)
		}

		now := s.now().UTC()
		loan = &Loan{
			BookID:    bookID,
			MemberID:  memberID,
			LoanDate:  now,
			DueDate:   now.Add(loanPeriod),
			Status:    StatusBorrowed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.loans.Insert(ctx, q, loan)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("book borrowed", map[string]interface{}{
		"loan_id":   loan.ID,
		"book_id":   bookID,
		"member_id": memberID,
		"due_date":  loan.DueDate,
	})
	return loan, nil
}

// Return closes an open loan. Returning twice is a conflict.
func (s *loanService) Return(ctx context.Context, loanID int64) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.Return",
		trace.WithAttributes(attribute.Int64("loan.id", loanID)))
	defer span.End()

	var loan *Loan
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		var err error
		loan, err = s.loans.GetByID(ctx, q, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return apperror.NotFoundf("loan with id %d not found", loanID)
		}
		if loan.Status != StatusBorrowed {
			return apperror.Conflictf("loan %d has already been returned", loanID)
		}

		now := s.now().UTC()
		loan.ReturnDate = &now
		loan.Status = StatusReturned
		loan.UpdatedAt = now
		return s.loans.Update(ctx, q, loan)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("book returned", map[string]interface{}{
		"loan_id":   loan.ID,
		"book_id":   loan.BookID,
		"member_id": loan.MemberID,
	})
	return loan, nil
}

// Delete removes a closed loan from the ledger. Open loans cannot be
// deleted because they back the availability derivation.
func (s *loanService) Delete(ctx context.Context, id int64) error {
	return s.run.WithTx(ctx, func(q database.Querier) error {
		loan, err := s.loans.GetByID(ctx, q, id)
		if err != nil {
			return err
		}
		if loan == nil {
			return apperror.NotFoundf("loan with id %d not found", id)
		}
		if loan.Status == StatusBorrowed {
			return apperror.Conflictf("cannot delete loan %d while the book is still out", id)
		}
		return s.loans.Delete(ctx, q, id)
	})
}

func (s *loanService) GetByID(ctx context.Context, id int64) (*Loan, error) {
	loan, err := s.loans.GetByID(ctx, s.run.Querier(), id)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, apperror.NotFoundf("loan with id %d not found", id)
	}
	return loan, nil
}

func (s *loanService) List(ctx context.Context) ([]Loan, error) {
	return s.loans.List(ctx, s.run.Querier())
}

func (s *loanService) ListActive(ctx context.Context) ([]Loan, error) {
	return s.loans.ListByStatus(ctx, s.run.Querier(), StatusBorrowed)
}

// ListOverdue compares due dates against the start of the current UTC day,
// so a loan due earlier today is not yet overdue.
func (s *loanService) ListOverdue(ctx context.Context) ([]Loan, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.loans.ListOverdue(ctx, s.run.Querier(), today)
}

// FindByStatus returns an empty slice for a status the ledger does not
// know, mirroring the lookup endpoints that treat bad filters as no match.
func (s *loanService) FindByStatus(ctx context.Context, status string) ([]Loan, error) {
	parsed, ok := ParseLoanStatus(status)
	if !ok {
		return []Loan{}, nil
	}
	return s.loans.ListByStatus(ctx, s.run.Querier(), parsed)
}

func (s *loanService) FindByMember(ctx context.Context, memberID int64) ([]Loan, error) {
	return s.loans.ListByMember(ctx, s.run.Querier(), memberID)
}

func (s *loanService) FindByBook(ctx context.Context, bookID int64) ([]Loan, error) {
	return s.loans.ListByBook(ctx, s.run.Querier(), bookID)
}

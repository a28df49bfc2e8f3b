// internal/circulation/store.go
package circulation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"

	"librarium/internal/database"
)

// LoanStore is the persistence boundary for the loan ledger.
type LoanStore interface {
	Insert(ctx context.Context, q database.Querier, loan *Loan) error
	Update(ctx context.Context, q database.Querier, loan *Loan) error
	Delete(ctx context.Context, q database.Querier, id int64) error
	GetByID(ctx context.Context, q database.Querier, id int64) (*Loan, error)
	List(ctx context.Context, q database.Querier) ([]Loan, error)
	ListByStatus(ctx context.Context, q database.Querier, status LoanStatus) ([]Loan, error)
	ListByMember(ctx context.Context, q database.Querier, memberID int64) ([]Loan, error)
	ListByBook(ctx context.Context, q database.Querier, bookID int64) ([]Loan, error)
	ListOverdue(ctx context.Context, q database.Querier, before time.Time) ([]Loan, error)
	CountBorrowedByPair(ctx context.Context, q database.Querier, memberID, bookID int64) (int, error)
	CountBorrowedForBook(ctx context.Context, q database.Querier, bookID int64) (int, error)
}

var pg = goqu.Dialect("postgres")

// loanDataset joins the ledger with books and members so read paths
// carry the display fields in one round trip.
func loanDataset() *goqu.SelectDataset {
	return pg.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("l.member_id").Eq(goqu.I("m.id")))).
		Select(
			goqu.I("l.id"), goqu.I("l.book_id"), goqu.I("l.member_id"),
			goqu.I("l.loan_date"), goqu.I("l.due_date"), goqu.I("l.return_date"),
			goqu.I("l.status"), goqu.I("l.notes"),
			goqu.I("l.created_at"), goqu.I("l.updated_at"),
			goqu.I("b.title").As("book_title"),
			goqu.L("m.first_name || ' ' || m.last_name").As("member_name"),
		)
}

// PGLoanStore persists loans in Postgres.
type PGLoanStore struct{}

func NewPGLoanStore() *PGLoanStore {
	return &PGLoanStore{}
}

func (s *PGLoanStore) Insert(ctx context.Context, q database.Querier, loan *Loan) error {
	query, args, err := pg.Insert("loans").
		Rows(goqu.Record{
			"book_id":     loan.BookID,
			"member_id":   loan.MemberID,
			"loan_date":   loan.LoanDate,
			"due_date":    loan.DueDate,
			"return_date": loan.ReturnDate,
			"status":      loan.Status,
			"notes":       loan.Notes,
			"created_at":  loan.CreatedAt,
			"updated_at":  loan.UpdatedAt,
		}).
		Returning("id").
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	if err := q.QueryRowxContext(ctx, query, args...).Scan(&loan.ID); err != nil {
		return database.TranslateError(err)
	}
	return nil
}

func (s *PGLoanStore) Update(ctx context.Context, q database.Querier, loan *Loan) error {
	query, args, err := pg.Update("loans").
		Set(goqu.Record{
			"return_date": loan.ReturnDate,
			"status":      loan.Status,
			"notes":       loan.Notes,
			"updated_at":  loan.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(loan.ID)).
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, query, args...)
	return database.TranslateError(err)
}

func (s *PGLoanStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	query, args, err := pg.Delete("loans").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, query, args...)
	return database.TranslateError(err)
}

func (s *PGLoanStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Loan, error) {
	query, args, err := loanDataset().
		Where(goqu.I("l.id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var loan Loan
	if err := sqlx.GetContext(ctx, q, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, database.TranslateError(err)
	}
	return &loan, nil
}

func (s *PGLoanStore) List(ctx context.Context, q database.Querier) ([]Loan, error) {
	query, args, err := loanDataset().
		Order(goqu.I("l.loan_date").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return s.selectLoans(ctx, q, query, args)
}

func (s *PGLoanStore) ListByStatus(ctx context.Context, q database.Querier, status LoanStatus) ([]Loan, error) {
	query, args, err := loanDataset().
		Where(goqu.I("l.status").Eq(status)).
		Order(goqu.I("l.loan_date").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return s.selectLoans(ctx, q, query, args)
}

func (s *PGLoanStore) ListByMember(ctx context.Context, q database.Querier, memberID int64) ([]Loan, error) {
	query, args, err := loanDataset().
		Where(goqu.I("l.member_id").Eq(memberID)).
		Order(goqu.I("l.loan_date").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return s.selectLoans(ctx, q, query, args)
}

func (s *PGLoanStore) ListByBook(ctx context.Context, q database.Querier, bookID int64) ([]Loan, error) {
	query, args, err := loanDataset().
		Where(goqu.I("l.book_id").Eq(bookID)).
		Order(goqu.I("l.loan_date").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return s.selectLoans(ctx, q, query, args)
}

// ListOverdue returns open loans due strictly before the cutoff. Callers pass
// the start of the current day, not the current instant.
func (s *PGLoanStore) ListOverdue(ctx context.Context, q database.Querier, before time.Time) ([]Loan, error) {
	query, args, err := loanDataset().
		Where(
			goqu.I("l.status").Eq(StatusBorrowed),
			goqu.I("l.due_date").Lt(before),
		).
		Order(goqu.I("l.due_date").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return s.selectLoans(ctx, q, query, args)
}

func (s *PGLoanStore) CountBorrowedByPair(ctx context.Context, q database.Querier, memberID, bookID int64) (int, error) {
	query, args, err := pg.From("loans").
		Select(goqu.COUNT("*")).
		Where(
			goqu.C("member_id").Eq(memberID),
			goqu.C("book_id").Eq(bookID),
			goqu.C("status").Eq(StatusBorrowed),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}

	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, args...); err != nil {
		return 0, database.TranslateError(err)
	}
	return count, nil
}

func (s *PGLoanStore) CountBorrowedForBook(ctx context.Context, q database.Querier, bookID int64) (int, error) {
	query, args, err := pg.From("loans").
		Select(goqu.COUNT("*")).
		Where(
			goqu.C("book_id").Eq(bookID),
			goqu.C("status").Eq(StatusBorrowed),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}

	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, args...); err != nil {
		return 0, database.TranslateError(err)
	}
	return count, nil
}

func (s *PGLoanStore) selectLoans(ctx context.Context, q database.Querier, query string, args []interface{}) ([]Loan, error) {
	loans := []Loan{}
	if err := sqlx.SelectContext(ctx, q, &loans, query, args...); err != nil {
		return nil, database.TranslateError(err)
	}
	return loans, nil
}

// internal/circulation/domain.go
package circulation

import (
	"strings"
	"time"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	StatusBorrowed LoanStatus = "Borrowed"
	StatusReturned LoanStatus = "Returned"
)

// ParseLoanStatus matches a status case-insensitively.
func ParseLoanStatus(s string) (LoanStatus, bool) {
	switch strings.ToLower(s) {
	case "borrowed":
		return StatusBorrowed, true
	case "returned":
		return StatusReturned, true
	}
	return "", false
}

// Loan is one checkout of a book by a member. The loan ledger is the
// source of truth for availability: a book's available copies are its
// total copies minus its open loans.
type Loan struct {
	ID         int64      `json:"id" db:"id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	MemberID   int64      `json:"member_id" db:"member_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	Notes      *string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`

	// Populated from joins on read paths.
	BookTitle  *string `json:"book_title,omitempty" db:"book_title"`
	MemberName *string `json:"member_name,omitempty" db:"member_name"`
}

// IsOverdue reports whether the loan is open and past due as of the day
// containing the given instant. The comparison truncates to the UTC date,
// so a loan is never overdue on its due day; it becomes overdue at the
// start of the next day.
func (l *Loan) IsOverdue(asOf time.Time) bool {
	u := asOf.UTC()
	today := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return l.Status == StatusBorrowed && l.DueDate.Before(today)
}

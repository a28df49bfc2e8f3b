// internal/circulation/implementation_test.go
package circulation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"librarium/internal/apperror"
	"librarium/internal/catalog"
	"librarium/internal/database"
	"librarium/internal/membership"
	"librarium/pkg/logger"
)

// fakeRunner serializes WithTx calls with a mutex, standing in for the
// row lock the Postgres store takes on the book during a borrow.
type fakeRunner struct {
	mu sync.Mutex
}

func (r *fakeRunner) Querier() database.Querier { return nil }

func (r *fakeRunner) WithTx(ctx context.Context, fn func(q database.Querier) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

type fakeLoanStore struct {
	mu     sync.Mutex
	nextID int64
	loans  map[int64]*Loan
}

func newFakeLoanStore() *fakeLoanStore {
	return &fakeLoanStore{loans: map[int64]*Loan{}}
}

func (s *fakeLoanStore) Insert(ctx context.Context, q database.Querier, loan *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	loan.ID = s.nextID
	cp := *loan
	s.loans[loan.ID] = &cp
	return nil
}

func (s *fakeLoanStore) Update(ctx context.Context, q database.Querier, loan *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *loan
	s.loans[loan.ID] = &cp
	return nil
}

func (s *fakeLoanStore) Delete(ctx context.Context, q database.Querier, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loans, id)
	return nil
}

func (s *fakeLoanStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		return nil, nil
	}
	cp := *loan
	return &cp, nil
}

func (s *fakeLoanStore) List(ctx context.Context, q database.Querier) ([]Loan, error) {
	return s.filter(func(*Loan) bool { return true }), nil
}

func (s *fakeLoanStore) ListByStatus(ctx context.Context, q database.Querier, status LoanStatus) ([]Loan, error) {
	return s.filter(func(l *Loan) bool { return l.Status == status }), nil
}

func (s *fakeLoanStore) ListByMember(ctx context.Context, q database.Querier, memberID int64) ([]Loan, error) {
	return s.filter(func(l *Loan) bool { return l.MemberID == memberID }), nil
}

func (s *fakeLoanStore) ListByBook(ctx context.Context, q database.Querier, bookID int64) ([]Loan, error) {
	return s.filter(func(l *Loan) bool { return l.BookID == bookID }), nil
}

func (s *fakeLoanStore) ListOverdue(ctx context.Context, q database.Querier, before time.Time) ([]Loan, error) {
	return s.filter(func(l *Loan) bool {
		return l.Status == StatusBorrowed && l.DueDate.Before(before)
	}), nil
}

func (s *fakeLoanStore) CountBorrowedByPair(ctx context.Context, q database.Querier, memberID, bookID int64) (int, error) {
	return len(s.filter(func(l *Loan) bool {
		return l.MemberID == memberID && l.BookID == bookID && l.Status == StatusBorrowed
	})), nil
}

func (s *fakeLoanStore) CountBorrowedForBook(ctx context.Context, q database.Querier, bookID int64) (int, error) {
	return len(s.filter(func(l *Loan) bool {
		return l.BookID == bookID && l.Status == StatusBorrowed
	})), nil
}

func (s *fakeLoanStore) filter(keep func(*Loan) bool) []Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Loan{}
	for _, l := range s.loans {
		if keep(l) {
			out = append(out, *l)
		}
	}
	return out
}

type fakeBooks struct {
	mu    sync.Mutex
	books map[int64]*catalog.Book
}

func (s *fakeBooks) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*catalog.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return nil, nil
	}
	cp := *book
	return &cp, nil
}

type fakeMembers struct {
	members map[int64]*membership.Member
}

func (s *fakeMembers) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*membership.Member, error) {
	member, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	cp := *member
	return &cp, nil
}

type fixture struct {
	svc     *loanService
	loans   *fakeLoanStore
	books   *fakeBooks
	members *fakeMembers
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		loans:   newFakeLoanStore(),
		books:   &fakeBooks{books: map[int64]*catalog.Book{}},
		members: &fakeMembers{members: map[int64]*membership.Member{}},
		clock:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	log := logger.New("error", "test", io.Discard)
	f.svc = NewLoanService(&fakeRunner{}, f.loans, f.books, f.members, log).(*loanService)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) addBook(id int64, title string, copies int) {
	f.books.books[id] = &catalog.Book{ID: id, Title: title, TotalCopies: copies, IsActive: true}
}

func (f *fixture) addMember(id int64, status membership.MembershipStatus) {
	f.members.members[id] = &membership.Member{
		ID:               id,
		MemberNumber:     "LIB-TEST0001",
		MembershipStatus: status,
		IsActive:         true,
	}
}

func TestBorrowCreatesOpenLoan(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "The Go Programming Language", 3)
	f.addMember(10, membership.StatusActive)

	loan, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)
	require.Equal(t, StatusBorrowed, loan.Status)
	require.Equal(t, f.clock, loan.LoanDate)
	require.Equal(t, f.clock.Add(14*24*time.Hour), loan.DueDate)
	require.Nil(t, loan.ReturnDate)
}

func TestBorrowUnknownBook(t *testing.T) {
	f := newFixture(t)
	f.addMember(10, membership.StatusActive)

	_, err := f.svc.Borrow(context.Background(), 10, 99)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBorrowInactiveBook(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Retired Title", 3)
	f.books.books[1].IsActive = false
	f.addMember(10, membership.StatusActive)

	_, err := f.svc.Borrow(context.Background(), 10, 1)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBorrowSuspendedMember(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Clean Architecture", 3)
	f.addMember(10, membership.StatusSuspended)

	_, err := f.svc.Borrow(context.Background(), 10, 1)
	require.ErrorIs(t, err, apperror.ErrConflict)
}

func TestBorrowSameBookTwice(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Domain-Driven Design", 5)
	f.addMember(10, membership.StatusActive)

	_, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)

	_, err = f.svc.Borrow(context.Background(), 10, 1)
	require.ErrorIs(t, err, apperror.ErrConflict)
}

func TestBorrowExhaustsCopies(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Scarce Volume", 2)
	f.addMember(10, membership.StatusActive)
	f.addMember(11, membership.StatusActive)
	f.addMember(12, membership.StatusActive)

	_, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)
	_, err = f.svc.Borrow(context.Background(), 11, 1)
	require.NoError(t, err)

	_, err = f.svc.Borrow(context.Background(), 12, 1)
	require.ErrorIs(t, err, apperror.ErrConflict)
	require.ErrorContains(t, err, "no copies")
}

func TestConcurrentBorrowsNeverOversell(t *testing.T) {
	f := newFixture(t)
	const copies = 3
	f.addBook(1, "Hot Title", copies)
	for id := int64(1); id <= 20; id++ {
		f.addMember(id, membership.StatusActive)
	}

	var wg sync.WaitGroup
	for id := int64(1); id <= 20; id++ {
		wg.Add(1)
		go func(memberID int64) {
			defer wg.Done()
			f.svc.Borrow(context.Background(), memberID, 1)
		}(id)
	}
	wg.Wait()

	open, err := f.loans.CountBorrowedForBook(context.Background(), nil, 1)
	require.NoError(t, err)
	require.Equal(t, copies, open)
}

func TestReturnClosesLoan(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Borrowable", 1)
	f.addMember(10, membership.StatusActive)

	loan, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)

	f.clock = f.clock.Add(48 * time.Hour)
	returned, err := f.svc.Return(context.Background(), loan.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	require.Equal(t, f.clock, *returned.ReturnDate)

	// The copy is available again.
	_, err = f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)
}

func TestReturnTwice(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Once Only", 1)
	f.addMember(10, membership.StatusActive)

	loan, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)

	_, err = f.svc.Return(context.Background(), loan.ID)
	require.NoError(t, err)

	_, err = f.svc.Return(context.Background(), loan.ID)
	require.ErrorIs(t, err, apperror.ErrConflict)
}

func TestReturnUnknownLoan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Return(context.Background(), 404)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteOpenLoan(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Still Out", 1)
	f.addMember(10, membership.StatusActive)

	loan, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), loan.ID)
	require.ErrorIs(t, err, apperror.ErrConflict)

	_, err = f.svc.Return(context.Background(), loan.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(context.Background(), loan.ID))

	_, err = f.svc.GetByID(context.Background(), loan.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestFindByStatusUnknownStatus(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Ledger Entry", 1)
	f.addMember(10, membership.StatusActive)
	_, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)

	loans, err := f.svc.FindByStatus(context.Background(), "Misplaced")
	require.NoError(t, err)
	require.Empty(t, loans)

	loans, err = f.svc.FindByStatus(context.Background(), "borrowed")
	require.NoError(t, err)
	require.Len(t, loans, 1)
}

func TestListOverdue(t *testing.T) {
	f := newFixture(t)
	f.addBook(1, "Late Book", 5)
	f.addMember(10, membership.StatusActive)
	f.addMember(11, membership.StatusActive)

	// Borrowed June 1st 12:00, due June 15th 12:00.
	_, err := f.svc.Borrow(context.Background(), 10, 1)
	require.NoError(t, err)

	// Second loan starts 10 days later and is still within its window
	// when the first one goes overdue.
	f.clock = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	_, err = f.svc.Borrow(context.Background(), 11, 1)
	require.NoError(t, err)

	// On the due day itself, even hours past the due instant, nothing is
	// overdue yet.
	f.clock = time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	overdue, err := f.svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Empty(t, overdue)

	// From the next day on, the first loan is overdue.
	f.clock = time.Date(2025, 6, 16, 6, 0, 0, 0, time.UTC)
	overdue, err = f.svc.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, int64(10), overdue[0].MemberID)
}

func TestLoanIsOverdue(t *testing.T) {
	asOf := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

	dueEarlierToday := Loan{Status: StatusBorrowed, DueDate: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	require.False(t, dueEarlierToday.IsOverdue(asOf))

	dueYesterday := Loan{Status: StatusBorrowed, DueDate: time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)}
	require.True(t, dueYesterday.IsOverdue(asOf))

	returnedLate := Loan{Status: StatusReturned, DueDate: time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)}
	require.False(t, returnedLate.IsOverdue(asOf))
}

// TestAvailabilityInvariant drives random borrow/return traffic and checks
// that open loans never exceed total copies and no member ever holds two
// open loans for the same book.
func TestAvailabilityInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		copies := rapid.IntRange(1, 4).Draw(rt, "copies")
		f.addBook(1, "Property Book", copies)
		memberCount := rapid.Int64Range(1, 8).Draw(rt, "members")
		for id := int64(1); id <= memberCount; id++ {
			f.addMember(id, membership.StatusActive)
		}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		var openIDs []int64
		for i := 0; i < steps; i++ {
			if len(openIDs) > 0 && rapid.Bool().Draw(rt, "return") {
				idx := rapid.IntRange(0, len(openIDs)-1).Draw(rt, "loan")
				_, err := f.svc.Return(context.Background(), openIDs[idx])
				require.NoError(rt, err)
				openIDs = append(openIDs[:idx], openIDs[idx+1:]...)
				continue
			}

			memberID := rapid.Int64Range(1, memberCount).Draw(rt, "member")
			loan, err := f.svc.Borrow(context.Background(), memberID, 1)
			if err != nil {
				require.True(rt, errors.Is(err, apperror.ErrConflict))
				continue
			}
			openIDs = append(openIDs, loan.ID)
		}

		open, err := f.loans.CountBorrowedForBook(context.Background(), nil, 1)
		require.NoError(rt, err)
		require.LessOrEqual(rt, open, copies)

		for id := int64(1); id <= memberCount; id++ {
			pair, err := f.loans.CountBorrowedByPair(context.Background(), nil, id, 1)
			require.NoError(rt, err)
			require.LessOrEqual(rt, pair, 1)
		}
	})
}

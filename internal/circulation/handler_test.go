// internal/circulation/handler_test.go
package circulation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"librarium/internal/apperror"
	"librarium/internal/web"
	"librarium/pkg/logger"
)

// stubLoanService returns canned results so handler tests exercise only the
// HTTP layer.
type stubLoanService struct {
	loan *Loan
	err  error
}

func (s *stubLoanService) Borrow(ctx context.Context, memberID, bookID int64) (*Loan, error) {
	return s.loan, s.err
}
func (s *stubLoanService) Return(ctx context.Context, loanID int64) (*Loan, error) {
	return s.loan, s.err
}
func (s *stubLoanService) Delete(ctx context.Context, id int64) error { return s.err }
func (s *stubLoanService) GetByID(ctx context.Context, id int64) (*Loan, error) {
	return s.loan, s.err
}
func (s *stubLoanService) List(ctx context.Context) ([]Loan, error)       { return []Loan{}, s.err }
func (s *stubLoanService) ListActive(ctx context.Context) ([]Loan, error) { return []Loan{}, s.err }
func (s *stubLoanService) ListOverdue(ctx context.Context) ([]Loan, error) {
	return []Loan{}, s.err
}
func (s *stubLoanService) FindByStatus(ctx context.Context, status string) ([]Loan, error) {
	return []Loan{}, s.err
}
func (s *stubLoanService) FindByMember(ctx context.Context, memberID int64) ([]Loan, error) {
	return []Loan{}, s.err
}
func (s *stubLoanService) FindByBook(ctx context.Context, bookID int64) ([]Loan, error) {
	return []Loan{}, s.err
}

func serveLoans(t *testing.T, svc LoanService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	respond := web.NewResponder(logger.New("error", "test", io.Discard))
	handler := NewHandler(svc, respond)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)
	return rec
}

func TestBorrowEndpointCreated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubLoanService{loan: &Loan{
		ID: 7, BookID: 1, MemberID: 10,
		LoanDate: now, DueDate: now.Add(14 * 24 * time.Hour),
		Status: StatusBorrowed,
	}}

	rec := serveLoans(t, svc, http.MethodPost, "/borrow", `{"member_id":10,"book_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/loans/7", rec.Header().Get("Location"))
	require.Contains(t, rec.Body.String(), `"loan"`)
}

func TestBorrowEndpointConflict(t *testing.T) {
	svc := &stubLoanService{err: apperror.Conflictf("no copies available")}

	rec := serveLoans(t, svc, http.MethodPost, "/borrow", `{"member_id":10,"book_id":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "no copies available")
}

func TestBorrowEndpointMalformedBody(t *testing.T) {
	rec := serveLoans(t, &stubLoanService{}, http.MethodPost, "/borrow", `{"member_id":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReturnEndpoint(t *testing.T) {
	returned := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	svc := &stubLoanService{loan: &Loan{ID: 7, Status: StatusReturned, ReturnDate: &returned}}

	rec := serveLoans(t, svc, http.MethodPost, "/return", `{"loan_id":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"Returned"`)
}

func TestGetLoanInvalidID(t *testing.T) {
	rec := serveLoans(t, &stubLoanService{}, http.MethodGet, "/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLoanNotFound(t *testing.T) {
	svc := &stubLoanService{err: apperror.NotFoundf("loan with id 9 not found")}

	rec := serveLoans(t, svc, http.MethodGet, "/9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteLoanNoContent(t *testing.T) {
	rec := serveLoans(t, &stubLoanService{}, http.MethodDelete, "/9", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestByStatusRequiresParam(t *testing.T) {
	rec := serveLoans(t, &stubLoanService{}, http.MethodGet, "/by-status", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveLoans(t, &stubLoanService{}, http.MethodGet, "/by-status?status=Borrowed", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

// internal/circulation/handler.go
package circulation

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarium/internal/web"
)

// Handler exposes the loan ledger and workflow over HTTP.
type Handler struct {
	loans   LoanService
	respond *web.Responder
}

func NewHandler(loans LoanService, respond *web.Responder) *Handler {
	return &Handler{loans: loans, respond: respond}
}

// Routes returns the /loans subrouter.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/borrow", h.borrow)
	r.Post("/return", h.giveBack)
	r.Get("/active", h.listActive)
	r.Get("/overdue", h.listOverdue)
	r.Get("/by-status", h.byStatus)
	r.Get("/by-member/{memberID}", h.byMember)
	r.Get("/by-book/{bookID}", h.byBook)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.delete)
	})
	return r
}

func (h *Handler) borrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID int64 `json:"member_id"`
		BookID   int64 `json:"book_id"`
	}
	if err := web.ReadJSON(w, r, &req); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	loan, err := h.loans.Borrow(r.Context(), req.MemberID, req.BookID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	headers := http.Header{}
	headers.Set("Location", fmt.Sprintf("/api/v1/loans/%d", loan.ID))
	web.WriteJSON(w, http.StatusCreated, web.Envelope{"loan": loan}, headers)
}

func (h *Handler) giveBack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanID int64 `json:"loan_id"`
	}
	if err := web.ReadJSON(w, r, &req); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	loan, err := h.loans.Return(r.Context(), req.LoanID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loan": loan}, nil)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.List(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loans": loans}, nil)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	loan, err := h.loans.GetByID(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loan": loan}, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	if err := h.loans.Delete(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListActive(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loans": loans}, nil)
}

func (h *Handler) listOverdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListOverdue(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loans": loans}, nil)
}

func (h *Handler) byStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		h.respond.BadRequest(w, r, "status cannot be empty")
		return
	}

	loans, err := h.loans.FindByStatus(r.Context(), status)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loans": loans}, nil)
}

func (h *Handler) byMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := web.IDParam(r, "memberID")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	loans, err := h.loans.FindByMember(r.Context(), memberID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loans": loans}, nil)
}

func (h *Handler) byBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := web.IDParam(r, "bookID")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	loans, err := h.loans.FindByBook(r.Context(), bookID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"loans": loans}, nil)
}

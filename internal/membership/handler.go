// internal/membership/handler.go
package membership

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarium/internal/web"
)

// Handler exposes members and users over HTTP.
type Handler struct {
	members MemberService
	users   UserService
	respond *web.Responder
}

func NewHandler(members MemberService, users UserService, respond *web.Responder) *Handler {
	return &Handler{members: members, users: users, respond: respond}
}

// MemberRoutes returns the /members subrouter.
func (h *Handler) MemberRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listMembers)
	r.Post("/", h.createMember)
	r.Get("/by-user/{userID}", h.memberByUser)
	r.Get("/check-phone-unique", h.checkPhoneUnique)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getMember)
		r.Put("/", h.updateMember)
		r.Delete("/", h.deleteMember)
		r.Get("/active-loan-count", h.memberActiveLoanCount)
	})
	return r
}

// UserRoutes returns the /users subrouter.
func (h *Handler) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
	r.Post("/login", h.login)
	r.Get("/by-username", h.userByUsername)
	r.Get("/by-email", h.userByEmail)
	r.Get("/by-role", h.usersByRole)
	r.Get("/check-username-unique", h.checkUsernameUnique)
	r.Get("/check-email-unique", h.checkEmailUnique)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getUser)
		r.Put("/", h.updateUser)
		r.Delete("/", h.deleteUser)
	})
	return r
}

func (h *Handler) createMember(w http.ResponseWriter, r *http.Request) {
	var member Member
	if err := web.ReadJSON(w, r, &member); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	created, err := h.members.Create(r.Context(), &member)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	headers := http.Header{}
	headers.Set("Location", fmt.Sprintf("/api/v1/members/%d", created.ID))
	web.WriteJSON(w, http.StatusCreated, web.Envelope{"member": created}, headers)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"members": members}, nil)
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	member, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"member": member}, nil)
}

func (h *Handler) memberByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := web.IDParam(r, "userID")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	member, err := h.members.GetByUserID(r.Context(), userID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"member": member}, nil)
}

func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	var member Member
	if err := web.ReadJSON(w, r, &member); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	updated, err := h.members.Update(r.Context(), id, &member)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"member": updated}, nil)
}

func (h *Handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	if err := h.members.Delete(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkPhoneUnique(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	phone := qs.Get("phone")
	if phone == "" {
		h.respond.BadRequest(w, r, "phone cannot be empty")
		return
	}

	unique, err := h.members.IsPhoneUnique(r.Context(), phone, web.QueryInt64(qs, "excludeId", 0))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"is_unique": unique}, nil)
}

func (h *Handler) memberActiveLoanCount(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	count, err := h.members.ActiveLoanCount(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"active_loan_count": count}, nil)
}

type userRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := web.ReadJSON(w, r, &req); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	user := &User{Username: req.Username, Email: req.Email, Role: Role(req.Role)}
	created, err := h.users.Create(r.Context(), user, req.Password)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	headers := http.Header{}
	headers.Set("Location", fmt.Sprintf("/api/v1/users/%d", created.ID))
	web.WriteJSON(w, http.StatusCreated, web.Envelope{"user": created}, headers)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"users": users}, nil)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"user": user}, nil)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	var req userRequest
	if err := web.ReadJSON(w, r, &req); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	user := &User{Username: req.Username, Email: req.Email, Role: Role(req.Role)}
	updated, err := h.users.Update(r.Context(), id, user, req.Password)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"user": updated}, nil)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userByUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		h.respond.BadRequest(w, r, "username cannot be empty")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"user": user}, nil)
}

func (h *Handler) userByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.respond.BadRequest(w, r, "email cannot be empty")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"user": user}, nil)
}

func (h *Handler) usersByRole(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		h.respond.BadRequest(w, r, "role cannot be empty")
		return
	}

	users, err := h.users.FindByRole(r.Context(), role)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"users": users}, nil)
}

func (h *Handler) checkUsernameUnique(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	username := qs.Get("username")
	if username == "" {
		h.respond.BadRequest(w, r, "username cannot be empty")
		return
	}

	unique, err := h.users.IsUsernameUnique(r.Context(), username, web.QueryInt64(qs, "excludeId", 0))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"is_unique": unique}, nil)
}

func (h *Handler) checkEmailUnique(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	email := qs.Get("email")
	if email == "" {
		h.respond.BadRequest(w, r, "email cannot be empty")
		return
	}

	unique, err := h.users.IsEmailUnique(r.Context(), email, web.QueryInt64(qs, "excludeId", 0))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"is_unique": unique}, nil)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := web.ReadJSON(w, r, &req); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	user, token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"user": user, "token": token}, nil)
}

// internal/catalog/handler.go
package catalog

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarium/internal/web"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	books      BookService
	categories CategoryService
	respond    *web.Responder
}

func NewHandler(books BookService, categories CategoryService, respond *web.Responder) *Handler {
	return &Handler{books: books, categories: categories, respond: respond}
}

// BookRoutes returns the /books subrouter.
func (h *Handler) BookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listBooks)
	r.Post("/", h.createBook)
	r.Get("/available", h.listAvailableBooks)
	r.Get("/by-author", h.booksByAuthor)
	r.Get("/by-category/{categoryID}", h.booksByCategory)
	r.Get("/check-isbn-unique", h.checkISBNUnique)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getBook)
		r.Put("/", h.updateBook)
		r.Delete("/", h.deleteBook)
		r.Get("/available-copies", h.availableCopies)
	})
	return r
}

// CategoryRoutes returns the /categories subrouter.
func (h *Handler) CategoryRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listCategories)
	r.Post("/", h.createCategory)
	r.Get("/check-name-unique", h.checkNameUnique)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getCategory)
		r.Put("/", h.updateCategory)
		r.Delete("/", h.deleteCategory)
		r.Get("/book-count", h.categoryBookCount)
	})
	return r
}

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	var book Book
	if err := web.ReadJSON(w, r, &book); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	created, err := h.books.Create(r.Context(), &book)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	headers := http.Header{}
	headers.Set("Location", fmt.Sprintf("/api/v1/books/%d", created.ID))
	web.WriteJSON(w, http.StatusCreated, web.Envelope{"book": created}, headers)
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"books": books}, nil)
}

func (h *Handler) listAvailableBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.ListAvailable(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"books": books}, nil)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	book, err := h.books.GetByID(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"book": book}, nil)
}

func (h *Handler) updateBook(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	var book Book
	if err := web.ReadJSON(w, r, &book); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	updated, err := h.books.Update(r.Context(), id, &book)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"book": updated}, nil)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	if err := h.books.Delete(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) booksByAuthor(w http.ResponseWriter, r *http.Request) {
	author := r.URL.Query().Get("author")
	if author == "" {
		h.respond.BadRequest(w, r, "author cannot be empty")
		return
	}

	books, err := h.books.FindByAuthor(r.Context(), author)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"books": books}, nil)
}

func (h *Handler) booksByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := web.IDParam(r, "categoryID")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	books, err := h.books.FindByCategory(r.Context(), categoryID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"books": books}, nil)
}

func (h *Handler) checkISBNUnique(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	isbn := qs.Get("isbn")
	if isbn == "" {
		h.respond.BadRequest(w, r, "isbn cannot be empty")
		return
	}

	unique, err := h.books.IsISBNUnique(r.Context(), isbn, web.QueryInt64(qs, "excludeId", 0))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"is_unique": unique}, nil)
}

func (h *Handler) availableCopies(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	available, err := h.books.AvailableCopies(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"available_copies": available}, nil)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var category Category
	if err := web.ReadJSON(w, r, &category); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	created, err := h.categories.Create(r.Context(), &category)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	headers := http.Header{}
	headers.Set("Location", fmt.Sprintf("/api/v1/categories/%d", created.ID))
	web.WriteJSON(w, http.StatusCreated, web.Envelope{"category": created}, headers)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"categories": categories}, nil)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	category, err := h.categories.GetByID(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"category": category}, nil)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	var category Category
	if err := web.ReadJSON(w, r, &category); err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	updated, err := h.categories.Update(r.Context(), id, &category)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"category": updated}, nil)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	if err := h.categories.Delete(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkNameUnique(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	name := qs.Get("name")
	if name == "" {
		h.respond.BadRequest(w, r, "name cannot be empty")
		return
	}

	unique, err := h.categories.IsNameUnique(r.Context(), name, web.QueryInt64(qs, "excludeId", 0))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"is_unique": unique}, nil)
}

func (h *Handler) categoryBookCount(w http.ResponseWriter, r *http.Request) {
	id, err := web.IDParam(r, "id")
	if err != nil {
		h.respond.BadRequest(w, r, err.Error())
		return
	}

	count, err := h.categories.BookCount(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{"book_count": count}, nil)
}

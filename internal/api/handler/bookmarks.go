package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/etapaper/etapaper/internal/api/models"
	"github.com/etapaper/etapaper/internal/api/response"
	"github.com/etapaper/etapaper/internal/store"
	"github.com/etapaper/etapaper/internal/transit"
)

// BookmarkHandler serves the bookmark CRUD endpoints.
type BookmarkHandler struct {
	store *store.Store
}

// NewBookmarkHandler creates a new BookmarkHandler.
func NewBookmarkHandler(st *store.Store) *BookmarkHandler {
	return &BookmarkHandler{store: st}
}

// bookmarkView is the wire shape of a bookmark.
type bookmarkView struct {
	ID       string             `json:"id"`
	Ordering int                `json:"ordering"`
	Query    transit.RouteQuery `json:"query"`
	Enabled  bool               `json:"enabled"`
}

func view(b store.Bookmark) bookmarkView {
	return bookmarkView{ID: b.ID, Ordering: b.Ordering, Query: b.Query, Enabled: b.Enabled}
}

// List handles GET /v1/bookmarks.
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := h.store.ListBookmarks(r.Context())
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	out := make([]bookmarkView, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, view(b))
	}
	response.JSON(w, r, http.StatusOK, out)
}

// Get handles GET /v1/bookmarks/{id}.
func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBookmark(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, view(b))
}

// Create handles POST /v1/bookmarks.
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.BookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	b, err := h.store.CreateBookmark(r.Context(), queryFromRequest(req))
	if err != nil {
		response.BadRequest(w, r, err.Error())
		return
	}
	response.JSON(w, r, http.StatusCreated, view(b))
}

// Update handles PUT /v1/bookmarks/{id}.
func (h *BookmarkHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.BookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	b, err := h.store.UpdateBookmark(r.Context(), chi.URLParam(r, "id"), queryFromRequest(req), enabled)
	if err != nil {
		response.DomainError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, view(b))
}

// Delete handles DELETE /v1/bookmarks/{id}.
func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteBookmark(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.DomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles PUT /v1/bookmarks/order.
func (h *BookmarkHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		response.BadRequest(w, r, "ids must not be empty")
		return
	}
	if err := h.store.ReorderBookmarks(r.Context(), req.IDs); err != nil {
		response.DomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryFromRequest(req models.BookmarkRequest) transit.RouteQuery {
	q := transit.RouteQuery{
		Company:     transit.Company(req.Company),
		No:          req.No,
		Direction:   transit.Direction(req.Direction),
		StopID:      req.StopID,
		ServiceType: req.ServiceType,
		Locale:      transit.Locale(req.Locale),
	}
	if q.ServiceType == "" {
		q.ServiceType = "1"
	}
	if q.Locale == "" {
		q.Locale = transit.LocaleTC
	}
	return q
}

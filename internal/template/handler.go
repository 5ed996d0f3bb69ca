package template

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teeforge/customizer/internal/geometry"
)

// Store is the part of Service the HTTP handler needs.
type Store interface {
	Create(ctx context.Context, p CreateParams) (*Template, error)
	Get(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context) ([]Template, error)
	Delete(ctx context.Context, id string) error
	UpdatePrintArea(ctx context.Context, id string, area *geometry.Rect) (*Template, error)
	Resolve(ctx context.Context, id string) (geometry.Rect, error)
}

type Handler struct {
	store            Store
	printAreaChanged func(*Template)
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// WithPrintAreaHook calls fn after every successful print area update so
// open design rooms can follow the new rectangle.
func (h *Handler) WithPrintAreaHook(fn func(*Template)) *Handler {
	h.printAreaChanged = fn
	return h
}

// Routes mounts the template endpoints on r. Reads are open to the
// storefront; writes go through protect.
func (h *Handler) Routes(r *mux.Router, protect mux.MiddlewareFunc) {
	r.HandleFunc("/templates", h.List).Methods("GET")
	r.HandleFunc("/templates/{templateId}", h.Get).Methods("GET")
	r.HandleFunc("/templates/{templateId}/print-area", h.GetPrintArea).Methods("GET")

	r.Handle("/templates", protect(http.HandlerFunc(h.Create))).Methods("POST", "OPTIONS")
	r.Handle("/templates/{templateId}", protect(http.HandlerFunc(h.Delete))).Methods("DELETE", "OPTIONS")
	r.Handle("/templates/{templateId}/print-area", protect(http.HandlerFunc(h.UpdatePrintArea))).Methods("PUT", "OPTIONS")
}

type printAreaRequest struct {
	PrintArea *geometry.Rect `json:"printArea"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	t, err := h.store.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Get(r.Context(), mux.Vars(r)["templateId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["templateId"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPrintArea returns the effective rectangle, explicit or derived.
func (h *Handler) GetPrintArea(w http.ResponseWriter, r *http.Request) {
	area, err := h.store.Resolve(r.Context(), mux.Vars(r)["templateId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, area)
}

func (h *Handler) UpdatePrintArea(w http.ResponseWriter, r *http.Request) {
	var req printAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	t, err := h.store.UpdatePrintArea(r.Context(), mux.Vars(r)["templateId"], req.PrintArea)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.printAreaChanged != nil {
		h.printAreaChanged(t)
	}

	writeJSON(w, http.StatusOK, t)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
	case errors.Is(err, ErrNameTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("template service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

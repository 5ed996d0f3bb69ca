package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teeforge/customizer/internal/template"
)

// TemplateGetter looks up the template a session is opened on.
type TemplateGetter interface {
	Get(ctx context.Context, id string) (*template.Template, error)
}

type Handler struct {
	tokens    *Tokens
	templates TemplateGetter
	adminKey  string
}

func NewHandler(tokens *Tokens, templates TemplateGetter) *Handler {
	return &Handler{tokens: tokens, templates: templates}
}

// WithAdminKey enables POST /auth/admin for callers presenting key. With
// no key set admin login is refused.
func (h *Handler) WithAdminKey(key string) *Handler {
	h.adminKey = key
	return h
}

type sessionRequest struct {
	TemplateID  string `json:"templateId"`
	DisplayName string `json:"displayName"`
}

type SessionResult struct {
	Token     string             `json:"token"`
	SessionID string             `json:"sessionId"`
	ExpiresAt int64              `json:"expiresAt"`
	Template  *template.Template `json:"template"`
}

// CreateSession handles POST /auth/session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TemplateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "templateId is required"})
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = "Guest"
	}

	tpl, err := h.templates.Get(r.Context(), req.TemplateID)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
			return
		}
		slog.Error("session template lookup failed", "error", err, "template", req.TemplateID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	token, claims, err := h.tokens.Issue(tpl.ID, req.DisplayName)
	if err != nil {
		slog.Error("issue session token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, SessionResult{
		Token:     token,
		SessionID: claims.SessionID(),
		ExpiresAt: claims.ExpiresAt.Unix(),
		Template:  tpl,
	})
}

type adminRequest struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

type AdminResult struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// AdminSession handles POST /auth/admin.
func (h *Handler) AdminSession(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.adminKey)) != 1 {
		slog.Warn("admin login refused", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid admin key"})
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = "Admin"
	}

	token, claims, err := h.tokens.IssueAdmin(req.DisplayName)
	if err != nil {
		slog.Error("issue admin token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, AdminResult{Token: token, ExpiresAt: claims.ExpiresAt.Unix()})
}

// Me handles GET /api/session, echoing the caller's claims.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c := ClaimsFromContext(r.Context())
	if c == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no session"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId":   c.SessionID(),
		"templateId":  c.TemplateID,
		"displayName": c.DisplayName,
		"role":        c.Role,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

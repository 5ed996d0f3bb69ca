package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeforge/customizer/internal/asset"
	"github.com/teeforge/customizer/internal/auth"
	"github.com/teeforge/customizer/internal/collab"
	"github.com/teeforge/customizer/internal/geometry"
	"github.com/teeforge/customizer/internal/template"
)

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:5173", "https://shop.example.com", "*.example.com"})
	assert.Equal(t, []string{"localhost:5173", "shop.example.com", "*.example.com"}, got)
}

// templates is an in-memory template.Store.
type templates map[string]*template.Template

func (m templates) Create(_ context.Context, p template.CreateParams) (*template.Template, error) {
	t := &template.Template{ID: "tmpl_" + p.Name, Name: p.Name, CanvasWidth: p.CanvasWidth, CanvasHeight: p.CanvasHeight}
	m[t.ID] = t
	return t, nil
}

func (m templates) Get(_ context.Context, id string) (*template.Template, error) {
	t, ok := m[id]
	if !ok {
		return nil, template.ErrNotFound
	}
	return t, nil
}

func (m templates) List(context.Context) ([]template.Template, error) {
	out := make([]template.Template, 0, len(m))
	for _, t := range m {
		out = append(out, *t)
	}
	return out, nil
}

func (m templates) Delete(_ context.Context, id string) error {
	if _, ok := m[id]; !ok {
		return template.ErrNotFound
	}
	delete(m, id)
	return nil
}

func (m templates) UpdatePrintArea(ctx context.Context, id string, area *geometry.Rect) (*template.Template, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.PrintArea = area
	return t, nil
}

func (m templates) Resolve(ctx context.Context, id string) (geometry.Rect, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return geometry.Rect{}, err
	}
	return geometry.Rect{Width: t.CanvasWidth, Height: t.CanvasHeight}, nil
}

func newTestServer(t *testing.T) (http.Handler, templates) {
	t.Helper()
	store := templates{"tmpl_tee": {ID: "tmpl_tee", Name: "tee", CanvasWidth: 1000, CanvasHeight: 800}}
	tokens := auth.NewTokens("secret", time.Hour)
	r := newRouter(server{
		templates: template.NewHandler(store),
		auth:      auth.NewHandler(tokens, store).WithAdminKey("letmein"),
		tokens:    tokens,
		assets:    asset.NewHandler(t.TempDir(), "/assets/mockups"),
		hub:       collab.NewHub(nil, slog.New(slog.NewTextHandler(io.Discard, nil))),
		ping:      func(context.Context) error { return nil },
	})
	return r, store
}

func call(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, h http.Handler, path, body string) string {
	t.Helper()
	rec := call(h, http.MethodPost, path, "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res.Token
}

func TestRouter_WritesNeedAdmin(t *testing.T) {
	h, store := newTestServer(t)
	guest := token(t, h, "/auth/session", `{"templateId":"tmpl_tee"}`)
	admin := token(t, h, "/auth/admin", `{"key":"letmein"}`)

	writes := []struct {
		name, method, path, body string
	}{
		{"create template", http.MethodPost, "/api/templates", `{"name":"hoodie","canvasWidth":900,"canvasHeight":1100}`},
		{"delete template", http.MethodDelete, "/api/templates/tmpl_tee", ""},
		{"update print area", http.MethodPut, "/api/templates/tmpl_tee/print-area", `{"printArea":{"left":100,"top":100,"width":400,"height":400}}`},
		{"upload mockup", http.MethodPost, "/assets/mockups", ""},
		{"delete mockup", http.MethodDelete, "/assets/mockups/asset_x", ""},
	}
	for _, w := range writes {
		t.Run(w.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, call(h, w.method, w.path, "", w.body).Code)
			assert.Equal(t, http.StatusForbidden, call(h, w.method, w.path, guest, w.body).Code)
		})
	}
	require.Contains(t, store, "tmpl_tee")
	assert.Nil(t, store["tmpl_tee"].PrintArea)
	assert.Len(t, store, 1)

	assert.Equal(t, http.StatusOK, call(h, http.MethodGet, "/api/templates", "", "").Code)
	assert.Equal(t, http.StatusOK, call(h, http.MethodGet, "/api/templates/tmpl_tee", "", "").Code)
	assert.Equal(t, http.StatusOK, call(h, http.MethodGet, "/api/session", guest, "").Code)
	assert.Equal(t, http.StatusOK, call(h, http.MethodGet, "/health", "", "").Code)

	assert.Equal(t, http.StatusNotFound, call(h, http.MethodDelete, "/assets/mockups/asset_x", admin, "").Code)
	assert.Equal(t, http.StatusOK, call(h, http.MethodPut, "/api/templates/tmpl_tee/print-area", admin, `{"printArea":{"left":100,"top":100,"width":400,"height":400}}`).Code)
	assert.Equal(t, http.StatusNoContent, call(h, http.MethodDelete, "/api/templates/tmpl_tee", admin, "").Code)
	assert.NotContains(t, store, "tmpl_tee")
}

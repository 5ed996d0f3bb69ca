package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeforge/customizer/internal/template"
	"github.com/teeforge/customizer/internal/typeid"
)

type templateMap map[string]*template.Template

func (m templateMap) Get(_ context.Context, id string) (*template.Template, error) {
	t, ok := m[id]
	if !ok {
		return nil, template.ErrNotFound
	}
	return t, nil
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	signed, issued, err := tokens.Issue("tmpl_tee", "Ada")
	require.NoError(t, err)

	claims, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, issued.SessionID(), claims.SessionID())
	assert.Equal(t, "tmpl_tee", claims.TemplateID)
	assert.Equal(t, "Ada", claims.DisplayName)
	assert.NoError(t, typeid.Validate(claims.SessionID(), typeid.PrefixSession))
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	signed, _, err := tokens.Issue("tmpl_tee", "Ada")
	require.NoError(t, err)

	other := NewTokens("other-secret", time.Hour)
	_, err = other.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokens("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token without a template binding is not a design session.
	bare, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "sess_x"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tokens.Validate(bare)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	signed, _, err := tokens.Issue("tmpl_tee", "Ada")
	require.NoError(t, err)

	h := NewHandler(tokens, templateMap{})
	protected := tokens.Middleware(http.HandlerFunc(h.Me))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid", "Bearer " + signed, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + signed, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCreateSession(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	h := NewHandler(tokens, templateMap{"tmpl_tee": {ID: "tmpl_tee", Name: "tee", CanvasWidth: 1000, CanvasHeight: 800}})

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.CreateSession(rec, httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"templateId":"tmpl_tee"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var res SessionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "tee", res.Template.Name)

	claims, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, claims.SessionID())
	assert.Equal(t, "Guest", claims.DisplayName)

	assert.Equal(t, http.StatusNotFound, post(`{"templateId":"tmpl_gone"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)
}

func TestAdminOnly(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	guest, _, err := tokens.Issue("tmpl_tee", "Ada")
	require.NoError(t, err)
	admin, claims, err := tokens.IssueAdmin("Grace")
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Empty(t, claims.TemplateID)

	guarded := tokens.AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"admin", "Bearer " + admin, http.StatusNoContent},
		{"design session", "Bearer " + guest, http.StatusForbidden},
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/templates/tmpl_tee", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAdminSession(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	post := func(h *Handler, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.AdminSession(rec, httptest.NewRequest(http.MethodPost, "/auth/admin", strings.NewReader(body)))
		return rec
	}

	disabled := NewHandler(tokens, templateMap{})
	assert.Equal(t, http.StatusUnauthorized, post(disabled, `{"key":""}`).Code)

	h := NewHandler(tokens, templateMap{}).WithAdminKey("letmein")
	assert.Equal(t, http.StatusUnauthorized, post(h, `{"key":"guess"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h, `{`).Code)

	rec := post(h, `{"key":"letmein"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var res AdminResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	claims, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "Admin", claims.DisplayName)
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teeforge/customizer/internal/typeid"
)

var ErrInvalidToken = errors.New("invalid token")

const defaultTTL = 12 * time.Hour

// RoleAdmin marks tokens allowed to change templates and mockups.
const RoleAdmin = "admin"

// Claims bind a design session to the template it edits. Admin tokens
// carry a role instead of a template.
type Claims struct {
	TemplateID  string `json:"tpl,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SessionID is the token subject.
func (c *Claims) SessionID() string { return c.Subject }

func (c *Claims) IsAdmin() bool { return c.Role == RoleAdmin }

// Tokens issues and validates HS256 design-session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue starts a new session on templateID and returns its signed token.
func (t *Tokens) Issue(templateID, displayName string) (string, *Claims, error) {
	return t.sign(&Claims{TemplateID: templateID, DisplayName: displayName})
}

// IssueAdmin returns a token for the template and mockup management
// endpoints.
func (t *Tokens) IssueAdmin(displayName string) (string, *Claims, error) {
	return t.sign(&Claims{Role: RoleAdmin, DisplayName: displayName})
}

func (t *Tokens) sign(claims *Claims) (string, *Claims, error) {
	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   typeid.NewSessionID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Validate parses a token and returns its claims. Any failure, including
// expiry or a foreign signing method, is reported as ErrInvalidToken.
func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || (claims.TemplateID == "" && !claims.IsAdmin()) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

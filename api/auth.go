package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/warp/retail-ledger/ledger"
)

// =============================================================================
// AUTHENTICATION - HS256 bearer tokens -> ledger.Principal
// =============================================================================

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Role   string `json:"role"`
	ShopID string `json:"shop_id,omitempty"`
	jwt.StandardClaims
}

// Authenticator verifies tokens issued by the identity service.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p ledger.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached by the middleware.
func PrincipalFrom(ctx context.Context) (ledger.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(ledger.Principal)
	return p, ok
}

// Sign issues a token for p. Used by tests and the dev tooling.
func (a *Authenticator) Sign(p ledger.Principal, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role:   string(p.Role),
		ShopID: p.ShopID,
		StandardClaims: jwt.StandardClaims{
			Subject:   p.UserID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies tokenString and returns its principal.
func (a *Authenticator) Parse(tokenString string) (ledger.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return ledger.Principal{}, err
	}
	if !token.Valid {
		return ledger.Principal{}, errors.New("invalid token")
	}

	p := ledger.Principal{UserID: claims.Subject, Role: ledger.Role(claims.Role), ShopID: claims.ShopID}
	if p.UserID == "" {
		return ledger.Principal{}, errors.New("token has no subject")
	}
	if !p.Role.Valid() {
		return ledger.Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	if p.Role != ledger.RoleAdmin && p.ShopID == "" {
		return ledger.Principal{}, errors.New("shop-scoped role without shop_id")
	}
	return p, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token", Code: CodeUnauthorized})
			return
		}

		p, err := a.Parse(tokenString)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: CodeUnauthorized, Details: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
	IsSeller bool   `json:"isSeller"`
}

type Claims struct {
	Identity
	jwt.RegisteredClaims
}

type Capability int

const (
	Authenticated Capability = iota
	Admin
	SellerOrAdmin
)

func (c Capability) String() string {
	switch c {
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	case SellerOrAdmin:
		return "seller-or-admin"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

type Decision int

const (
	Allowed Decision = iota
	Unauthorized
	Forbidden
)

// Check decides whether id holds capability c. A nil id is an anonymous caller.
func (c Capability) Check(id *Identity) Decision {
	if id == nil {
		return Unauthorized
	}
	switch c {
	case Authenticated:
		return Allowed
	case Admin:
		if id.IsAdmin {
			return Allowed
		}
	case SellerOrAdmin:
		if id.IsAdmin || id.IsSeller {
			return Allowed
		}
	}
	return Forbidden
}

var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
)

type Guard struct {
	secret []byte
	ttl    time.Duration
}

func NewGuard(secret string) *Guard {
	return &Guard{secret: []byte(secret), ttl: 30 * 24 * time.Hour}
}

// Issue signs a token for id. Sign-in lives outside this service; Issue is for tooling and tests.
func (g *Guard) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Resolve reads the caller from the Authorization header.
func (g *Guard) Resolve(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return Identity{}, ErrNoToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Identity.ID == "" {
		return Identity{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims.Identity, nil
}

// Require rejects requests whose caller lacks c, and stores the caller in the request context otherwise.
func (g *Guard) Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var caller *Identity
			if id, err := g.Resolve(r); err == nil {
				caller = &id
			}
			switch c.Check(caller) {
			case Unauthorized:
				writeDenied(w, http.StatusUnauthorized, "Invalid Token")
				return
			case Forbidden:
				writeDenied(w, http.StatusForbidden, "Invalid "+c.String()+" Token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *caller)))
		})
	}
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func writeDenied(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleTherapist = "therapist"
	RoleClient    = "client"
)

const issuer = "socialworkboard"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the caller and the role the token was issued for. The
// user id is also carried as the JWT subject.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	Secret     []byte
	BcryptCost int
}

func NewManager(secret string) *Manager {
	return &Manager{Secret: []byte(secret), BcryptCost: bcrypt.DefaultCost}
}

func (m *Manager) HashPassword(password string) (string, error) {
	cost := m.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (m *Manager) ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (m *Manager) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	if !validRole(role) {
		return "", errors.New("unknown role " + role)
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.Secret)
}

// ParseToken verifies signature, expiry and issuer. Expired tokens return an
// error matching jwt.ErrTokenExpired.
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" || claims.Subject != claims.UserID || !validRole(claims.Role) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validRole(role string) bool {
	return role == RoleTherapist || role == RoleClient
}

func TokenFromRequest(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Role   string
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != ""
}

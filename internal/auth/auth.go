package auth

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey int

// ClaimsKey is the request context key the authentication middleware stores Claims under.
const ClaimsKey ctxKey = 1

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity attached to an authenticated request.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64    `json:"userId"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
}

func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Keys signs and verifies HS256 tokens.
type Keys struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewKeys(secret string, ttl time.Duration) (*Keys, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Keys{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (k *Keys) TTL() time.Duration {
	return k.ttl
}

// NewClaims builds the claims for a user; admins get both roles.
func NewClaims(userID int64, name string, isAdmin bool) Claims {
	roles := []string{RoleUser}
	if isAdmin {
		roles = append(roles, RoleAdmin)
	}
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(userID, 10)},
		UserID:           userID,
		Name:             name,
		Roles:            roles,
	}
}

// GenerateToken stamps id, issue and expiry times on c and signs it.
func (k *Keys) GenerateToken(c Claims) (string, Claims, error) {
	now := k.now()
	c.ID = uuid.NewString()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(k.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(k.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, c, nil
}

func (k *Keys) ValidateToken(tokenStr string) (Claims, error) {
	var c Claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		return k.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(k.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || c.UserID == 0 {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Principal is the already-authenticated caller. Identity resolution
// (credential storage, registration, token issuance) lives outside this
// service; we only verify the token and trust its id/role claims.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoToken      = errors.New("no token provided")
)

// Verifier turns bearer tokens into principals.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verify parses and validates a signed token and extracts the principal.
func (v *Verifier) Verify(tokenString string) (Principal, error) {
	if tokenString == "" {
		return Principal{}, ErrNoToken
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	role := Role(c.Role)
	if !role.Valid() {
		return Principal{}, ErrInvalidToken
	}

	return Principal{ID: id, Role: role}, nil
}

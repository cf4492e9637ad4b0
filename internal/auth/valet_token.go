package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const valetIssuer = "eventpilot-valet"

var (
	ErrInvalidToken = errors.New("invalid valet token")
	ErrTokenRevoked = errors.New("valet token revoked")
)

// ValetClaims identify a logged-in valet employee.
type ValetClaims struct {
	EmployeeID string `json:"employeeId"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	jwt.RegisteredClaims
}

// RevocationStore records logged-out tokens.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ValetTokens issues and checks HS256 valet session tokens.
type ValetTokens struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

func NewValetTokens(secret string, ttl time.Duration, revoked RevocationStore) *ValetTokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ValetTokens{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

// Issue signs a token for the employee and returns it with its expiry.
func (v *ValetTokens) Issue(employeeID, username, name string) (string, time.Time, error) {
	now := v.now()
	expiresAt := now.Add(v.ttl)
	claims := ValetClaims{
		EmployeeID: employeeID,
		Username:   username,
		Name:       name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    valetIssuer,
			Subject:   employeeID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign valet token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry and revocation.
func (v *ValetTokens) Verify(ctx context.Context, raw string) (*ValetClaims, error) {
	claims := &ValetClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(valetIssuer),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.EmployeeID == "" {
		return nil, fmt.Errorf("%w: missing employee id", ErrInvalidToken)
	}

	if v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates a verified token for the rest of its lifetime.
func (v *ValetTokens) Revoke(ctx context.Context, claims *ValetClaims) error {
	if v.revoked == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return v.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

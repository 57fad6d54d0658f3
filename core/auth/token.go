package auth

import (
	"context"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrInvalidCredentials = core.NewError(core.KindInvalidCredentials, "invalid username or password")
	ErrTokenNotFound      = core.NewError(core.KindTokenNotFound, "token not found")
	ErrTokenRevoked       = core.NewError(core.KindTokenRevoked, "token has been revoked")
	ErrTokenExpired       = core.NewError(core.KindTokenExpired, "token has expired")
	ErrTokenInvalid       = core.NewError(core.KindTokenInvalid, "invalid token")
	ErrForbidden          = core.NewError(core.KindForbidden, "permission denied")
)

type TokenState int

const (
	TokenActive TokenState = iota
	TokenRevoked
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenActive:
		return "active"
	case TokenRevoked:
		return "revoked"
	case TokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Token is one issued session.
type Token struct {
	ID        int       `json:"id"`
	Token     string    `json:"token"`
	UserID    int       `json:"user_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	ExpiresAt time.Time `json:"expires_at"` // UTC
}

// State reports the token state at `now`. Expiry wins over revocation.
func (t Token) State(now time.Time) TokenState {
	if !now.Before(t.ExpiresAt) {
		return TokenExpired
	}
	if !t.Active {
		return TokenRevoked
	}
	return TokenActive
}

func (t Token) IsValid(now time.Time) bool {
	return t.State(now) == TokenActive
}

type Repository interface {
	// CreateToken stores tkn; token strings are unique.
	CreateToken(ctx context.Context, tkn Token) (Token, error)
	// GetToken finds a Token by its exact string or returns ErrTokenNotFound.
	GetToken(ctx context.Context, token string) (Token, error)
	DeactivateToken(ctx context.Context, token string) error
	// DeleteTokensExpiredBefore deletes tokens with ExpiresAt < t and returns how many were deleted.
	DeleteTokensExpiredBefore(ctx context.Context, t time.Time) (int, error)
}

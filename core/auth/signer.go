package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const audience = "Academia"

// Claims represents the claims signed into a session token.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
}

// Signer signs and verifies session token strings (HS256).
// It only checks signature & expiry; the persisted token state is checked by Service.
type Signer struct {
	key    []byte
	issuer string
	method jwt.SigningMethod
}

func NewSigner(secretKey, issuer string) *Signer {
	return &Signer{
		key:    []byte(secretKey),
		issuer: issuer,
		method: jwt.SigningMethodHS256,
	}
}

// Sign generates a signed token string for username, valid for ttl from issuedAt.
// each token carries a random ID so that token strings never collide.
func (s *Signer) Sign(username string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   username,
			Audience:  audience,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: issuedAt.Add(ttl).Unix(),
		},
		Username: username,
	}
	ss, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify checks the signature of tokenString and that it has not expired at `now`.
func (s *Signer) Verify(tokenString string, now time.Time) (*Claims, error) {
	parser := jwt.Parser{
		ValidMethods:         []string{s.method.Alg()},
		SkipClaimsValidation: true, // expiry is checked against `now` below
	}
	claims := new(Claims)
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Issuer != s.issuer || !claims.VerifyAudience(audience, true) {
		return nil, ErrTokenInvalid
	}
	if !claims.VerifyExpiresAt(now.Unix(), true) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

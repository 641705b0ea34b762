package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated identity the external auth collaborator
// hands us. The streaming gateway needs nothing beyond its existence.
type Principal struct {
	UserID int64
	Email  string
}

type tokenClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService validates the signed access tokens issued by the identity
// provider. Issuance and refresh live outside this service; Sign exists for
// operators and tests that need a valid credential.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Sign mints an HS256 access token for the given identity.
func (s *TokenService) Sign(userID int64, email string, ttl time.Duration) (string, error) {
	claims := tokenClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates an access token, returning the principal it
// carries or ErrInvalidToken. Expired, malformed and wrongly signed tokens
// are indistinguishable to the caller.
func (s *TokenService) Verify(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

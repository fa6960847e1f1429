package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the bearer token payload issued by the identity provider.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthService(jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

func (s *AuthService) GenerateJWT(identity model.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyJWT validates the signature and expiry and returns the caller's
// identity. Tokens without a subject are rejected.
func (s *AuthService) VerifyJWT(tokenString string) (model.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	identity := model.Identity{UserID: claims.Subject, Email: claims.Email}
	if !token.Valid || !identity.Valid() {
		return model.Identity{}, ErrInvalidToken
	}

	return identity, nil
}

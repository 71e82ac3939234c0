package api

import (
	"errors"
	"time"

	"github.com/ghaggin/automl/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errInvalidToken = errors.New("invalid token")
)

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Tokens issues and checks HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(c *config.Config) *Tokens {
	return &Tokens{
		secret: []byte(c.API.TokenSecret),
		ttl:    c.API.TokenTTL,
		now:    time.Now,
	}
}

func (t *Tokens) Issue(userID, email string) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Email: email,
	})

	return token.SignedString(t.secret)
}

// Verify returns the claims of a valid, unexpired token.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}

	return claims, nil
}

package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID    uint64 `json:"sub"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

var secretOverride []byte

func getSecret() []byte {
	if secretOverride != nil {
		return secretOverride
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}
	return []byte(secret)
}

// SetSecret overrides the JWT_SECRET env var; used by main when the secret
// comes from config instead of the environment.
func SetSecret(secret string) {
	if secret == "" {
		secretOverride = nil
		return
	}
	secretOverride = []byte(secret)
}

func SignAccessToken(id Identity, ttl time.Duration) (string, time.Time, error) {
	claims := &Claims{
		UserID:    id.ID,
		Name:      id.Name,
		Email:     id.Email,
		AvatarURL: id.AvatarURL,
		Type:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(getSecret())
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(ttl), nil
}

// ParseToken validates an access token and returns its claims.
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return getSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTSecret -> diisi dari config saat startup; nilai default hanya untuk development
var JWTSecret = []byte("TestSecretKeyAUTH1945")

var ErrInvalidToken = errors.New("invalid or expired token")

func SetJWTSecret(secret string) {
	if secret != "" {
		JWTSecret = []byte(secret)
	}
}

// CustomClaims -> identitas terminal yang dipakai untuk roster presence
type CustomClaims struct {
	UserID   uint   `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	PhotoURL string `json:"photo_url,omitempty"`
	jwt.RegisteredClaims
}

func GenerateToken(userID uint, name, role, photoURL string) (string, error) {
	claims := &CustomClaims{
		UserID:   userID,
		Name:     name,
		Role:     role,
		PhotoURL: photoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 24)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "RestaurantFloorSync",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(JWTSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

func ParseToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

package utils

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "socialpilot"

// Claims identify a dashboard user and the profiles they may act on.
type Claims struct {
	UserID   string   `json:"user_id"`
	Profiles []string `json:"profiles"`
	jwt.RegisteredClaims
}

func (c *Claims) CanAccess(profileID string) bool {
	return slices.Contains(c.Profiles, profileID)
}

func GenerateToken(secretKey, userID string, profiles []string, tokenDuration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Profiles: profiles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

func ValidateToken(secretKey, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

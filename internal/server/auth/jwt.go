// Package auth issues and parses the bearer tokens that identify callers.
// A token names the user and the role granted on each project.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// Claims carries the standard claims plus the caller's identity and roles.
type Claims struct {
	jwt.RegisteredClaims
	Email string                 `json:"email"`
	Name  string                 `json:"name"`
	Roles map[string]models.Role `json:"roles,omitempty"`
}

// Actor returns the acting user for project; unknown projects yield RoleNone.
func (c *Claims) Actor(project string) models.Actor {
	return models.Actor{Email: c.Email, Name: c.Name, Role: c.Roles[project]}
}

func GenerateToken(email, name string, roles map[string]models.Role, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Email: email,
		Name:  name,
		Roles: roles,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Email == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

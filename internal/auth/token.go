package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type operatorClaims struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
}

// operator prefers the human-readable username printed on invoices.
func (c operatorClaims) operator() (string, error) {
	if c.PreferredUsername != "" {
		return c.PreferredUsername, nil
	}
	if c.Sub != "" {
		return c.Sub, nil
	}
	return "", errors.New("subject claim not found in token")
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// OperatorFromJWT reads the operator claims without checking the signature.
func OperatorFromJWT(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	var c operatorClaims
	c.Sub, _ = claims["sub"].(string)
	c.PreferredUsername, _ = claims["preferred_username"].(string)
	return c.operator()
}

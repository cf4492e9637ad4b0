package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ValetTokenHeader is the header the valet app sends its session token in.
const ValetTokenHeader = "x-valet-token"

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ExtractValetToken prefers the x-valet-token header and falls back to the
// Authorization bearer token.
func ExtractValetToken(r *http.Request) (string, error) {
	if token := strings.TrimSpace(r.Header.Get(ValetTokenHeader)); token != "" {
		return token, nil
	}
	return ExtractTokenFromRequest(r)
}

package utils

import (
	"github.com/google/uuid"
)

// NewID returns a random UUID string used as a primary key.
func NewID() string {
	return uuid.NewString()
}

// NewToken returns an unguessable public token, such as a valet tracking token.
func NewToken() string {
	return uuid.NewString()
}

package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"eventpilot/internal/apperr"
	"eventpilot/internal/validation"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON body into v and runs the struct validator on it.
// Any failure is reported as apperr.ErrBadInput.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrBadInput, err)
	}
	return nil
}

// QueryInt reads a positive integer query parameter, falling back to def.
func QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// QueryBool returns nil when the parameter is absent.
func QueryBool(r *http.Request, name string) *bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errThing = NotFound("THING_NOT_FOUND", "غير موجود")

func TestFromWrapped(t *testing.T) {
	err := fmt.Errorf("load thing 42: %w", errThing)

	assert.True(t, errors.Is(err, errThing))
	assert.Equal(t, errThing, From(err))
	assert.Equal(t, http.StatusNotFound, Status(err))
}

func TestFromUnknownIsInternal(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, ErrInternal, From(err))
	assert.Equal(t, http.StatusInternalServerError, Status(err))
	assert.Equal(t, http.StatusOK, Status(nil))
}

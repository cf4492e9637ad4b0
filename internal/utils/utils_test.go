package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eventpilot/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatArabicDateTime(t *testing.T) {
	// 17:30 UTC is 20:30 in Riyadh
	ts := time.Date(2026, time.October, 20, 17, 30, 0, 0, time.UTC)

	assert.Equal(t, "الثلاثاء، 20 أكتوبر 2026", FormatArabicDate(ts))
	assert.Equal(t, "8:30 م", FormatArabicTime(ts))
	assert.Equal(t, "الثلاثاء، 20 أكتوبر 2026 - 8:30 م", FormatArabicDateTime(ts))
}

func TestFormatArabicTimeMidnight(t *testing.T) {
	ts := time.Date(2026, time.January, 1, 21, 5, 0, 0, time.UTC)
	assert.Equal(t, "12:05 ص", FormatArabicTime(ts))
}

func TestWriteErrorMapsDomainError(t *testing.T) {
	notFound := apperr.NotFound("SESSION_NOT_FOUND", "الجلسة غير موجودة")
	rec := httptest.NewRecorder()

	WriteError(rec, fmt.Errorf("get session: %w", notFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "الجلسة غير موجودة", body.Message)
	assert.Equal(t, "SESSION_NOT_FOUND", body.Error)
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, fmt.Errorf("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestDecodeJSONValidates(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}

	var ok body
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"سارة"}`))
	require.NoError(t, DecodeJSON(req, &ok))
	assert.Equal(t, "سارة", ok.Name)

	var missing body
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	err := DecodeJSON(req, &missing)
	assert.ErrorIs(t, err, apperr.ErrBadInput)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.ErrorIs(t, DecodeJSON(req, &missing), apperr.ErrBadInput)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&approved=true&bad=x", nil)

	assert.Equal(t, 3, QueryInt(req, "page", 1))
	assert.Equal(t, 1, QueryInt(req, "bad", 1))
	assert.Equal(t, 20, QueryInt(req, "limit", 20))
	require.NotNil(t, QueryBool(req, "approved"))
	assert.True(t, *QueryBool(req, "approved"))
	assert.Nil(t, QueryBool(req, "missing"))
}

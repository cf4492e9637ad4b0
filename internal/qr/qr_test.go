package qr

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)
	assert.False(t, codec.Sealed())

	encoded, err := codec.Encode(NewCheckInPayload("reg-1", "sess-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"attendance","registrationId":"reg-1","sessionId":"sess-1"}`, encoded)

	p, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "reg-1", p.RegistrationID)
	assert.Equal(t, "sess-1", p.SessionID)
}

func TestSealedCodec(t *testing.T) {
	codec, err := NewCodec("top-secret")
	require.NoError(t, err)

	encoded, err := codec.Encode(NewCheckInPayload("reg-1", "sess-1"))
	require.NoError(t, err)
	assert.NotContains(t, encoded, "reg-1")

	p, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "reg-1", p.RegistrationID)

	// hand-written JSON would let anyone pick the ids
	_, err = codec.Decode(`{"type":"attendance","registrationId":"r","sessionId":"s"}`)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	other, err := NewCodec("another-secret")
	require.NoError(t, err)
	_, err = other.Decode(encoded)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	_, err = codec.Decode(base64.RawURLEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeRejectsIncompletePayloads(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)

	for _, raw := range []string{
		"",
		"not json",
		`{"type":"ticket","registrationId":"r","sessionId":"s"}`,
		`{"type":"attendance","sessionId":"s"}`,
		`{"type":"attendance","registrationId":"r"}`,
		"c2VhbGVk",
	} {
		_, err := codec.Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidPayload, raw)
	}
}

func TestPNG(t *testing.T) {
	data, err := PNG(`{"type":"attendance"}`, 200)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	url, err := DataURL("hello", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestSessionCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := SessionCode()
		require.Len(t, code, 8)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(sessionCodeAlphabet, r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

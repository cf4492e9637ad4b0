package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	TypeAttendance = "attendance"
	DefaultSize    = 256

	sessionCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	sessionCodeLength   = 8
)

var ErrInvalidPayload = errors.New("invalid QR payload")

// CheckInPayload is what every registration's QR code carries.
type CheckInPayload struct {
	Type           string `json:"type"`
	RegistrationID string `json:"registrationId"`
	SessionID      string `json:"sessionId"`
}

func NewCheckInPayload(registrationID, sessionID string) CheckInPayload {
	return CheckInPayload{Type: TypeAttendance, RegistrationID: registrationID, SessionID: sessionID}
}

// Codec turns payloads into QR strings. With a secret the JSON is sealed with
// AES-GCM so a scanned code cannot be forged by editing the ids.
type Codec struct {
	aead cipher.AEAD
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return &Codec{}, nil
	}

	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

func (c *Codec) Sealed() bool {
	return c.aead != nil
}

func (c *Codec) Encode(p CheckInPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if c.aead == nil {
		return string(data), nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode reads the form Encode produces: plain JSON without a secret, sealed
// payloads only with one. It rejects anything that is not a complete
// attendance payload.
func (c *Codec) Decode(raw string) (*CheckInPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidPayload
	}

	data := []byte(raw)
	plain := strings.HasPrefix(raw, "{")
	if plain != (c.aead == nil) {
		return nil, ErrInvalidPayload
	}
	if !plain {
		sealed, err := base64.RawURLEncoding.DecodeString(raw)
		if err != nil || len(sealed) < c.aead.NonceSize() {
			return nil, ErrInvalidPayload
		}
		nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
		data, err = c.aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, ErrInvalidPayload
		}
	}

	var p CheckInPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidPayload
	}
	if p.Type != TypeAttendance || p.RegistrationID == "" || p.SessionID == "" {
		return nil, ErrInvalidPayload
	}
	return &p, nil
}

// PNG renders data as a QR image with low error correction.
func PNG(data string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(data, qrcode.Low, size)
}

// DataURL is PNG wrapped for embedding in HTML and JSON responses.
func DataURL(data string, size int) (string, error) {
	png, err := PNG(data, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// SessionCode returns a random 8 character code from A-Z and 0-9.
func SessionCode() string {
	var sb strings.Builder
	max := big.NewInt(int64(len(sessionCodeAlphabet)))
	for i := 0; i < sessionCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		sb.WriteByte(sessionCodeAlphabet[n.Int64()])
	}
	return sb.String()
}

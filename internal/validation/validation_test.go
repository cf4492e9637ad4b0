package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhone(t *testing.T) {
	cases := map[string]string{
		"0501234567":      "+966501234567",
		"050 123 4567":    "+966501234567",
		"501234567":       "+966501234567",
		"966501234567":    "+966501234567",
		"+966 50 123 4567": "+966501234567",
		"00447700900123":  "+00447700900123",
		"1234":            "+1234",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatPhone(in), in)
	}
}

func TestValidSaudiPhone(t *testing.T) {
	valid := []string{"0501234567", "501234567", "966501234567", "+966-50-123-4567"}
	invalid := []string{"", "0401234567", "50123456", "96650123456", "966401234567", "05012345678"}

	for _, p := range valid {
		assert.True(t, ValidSaudiPhone(p), p)
	}
	for _, p := range invalid {
		assert.False(t, ValidSaudiPhone(p), p)
	}
}

func TestFormattedPhoneStaysValid(t *testing.T) {
	for _, p := range []string{"0551234567", "551234567", "966551234567"} {
		assert.True(t, ValidSaudiPhone(FormatPhone(p)), p)
		assert.Equal(t, FormatPhone(p), FormatPhone(FormatPhone(p)))
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("user.name+tag@example.com.sa"))
	assert.False(t, ValidEmail("user@localhost"))
	assert.False(t, ValidEmail("not an email"))
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestValidSocialURL(t *testing.T) {
	assert.True(t, ValidSocialURL("", "instagram"))
	assert.True(t, ValidSocialURL("https://www.instagram.com/eventpilot", "instagram"))
	assert.True(t, ValidSocialURL("snapchat.com/add/eventpilot", "snapchat"))
	assert.True(t, ValidSocialURL("https://x.com/eventpilot", "twitter"))
	assert.True(t, ValidSocialURL("HTTP://TWITTER.COM/eventpilot", "twitter"))
	assert.False(t, ValidSocialURL("https://snapchat.com/eventpilot", "snapchat"))
	assert.False(t, ValidSocialURL("https://instagram.com/x", "tiktok"))
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("secret"))
	assert.Empty(t, ValidatePassword("كلمةسر"))
	assert.Len(t, ValidatePassword("abc"), 1)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "ثلوثية-الأمل-12", Slugify("  ثلوثية الأمل 12 "))
	assert.Equal(t, "hello-world", Slugify("Hello__World!!"))
	assert.Equal(t, "a-b", Slugify("--a - b--"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestUsernameBase(t *testing.T) {
	assert.Equal(t, "أحمد_علي", UsernameBase("أحمد  علي!"))
	assert.Equal(t, "john_smith", UsernameBase("John Smith."))
}

func TestUniqueUsername(t *testing.T) {
	taken := map[string]bool{"sara": true, "sara_1": true}
	lookup := func(_ context.Context, u string) (bool, error) { return taken[u], nil }

	username, err := UniqueUsername(context.Background(), "Sara", lookup)
	require.NoError(t, err)
	assert.Equal(t, "sara_2", username)

	username, err = UniqueUsername(context.Background(), "!!!", lookup)
	require.NoError(t, err)
	assert.Equal(t, "user", username)

	failing := func(context.Context, string) (bool, error) { return false, errors.New("db down") }
	_, err = UniqueUsername(context.Background(), "Sara", failing)
	assert.Error(t, err)
}

type guestForm struct {
	Name  string `validate:"required,min=2"`
	Phone string `validate:"required,saudiphone"`
	Type  string `validate:"omitempty,sponsorshiptype"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(guestForm{Name: "سارة", Phone: "0501234567", Type: "dinner"}))

	err := Struct(guestForm{Name: "س", Phone: "123", Type: "lunch"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "Phone: saudiphone")
	assert.Contains(t, err.Error(), "Type: sponsorshiptype")
	assert.Contains(t, err.Error(), "Name: min")
}

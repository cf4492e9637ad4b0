package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MinPasswordLength = 6

var (
	nonDigit      = regexp.MustCompile(`\D`)
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	slugSpaces    = regexp.MustCompile(`[\s_]+`)
	slugInvalid   = regexp.MustCompile(`[^\w\x{0600}-\x{06FF}-]`)
	slugDashes    = regexp.MustCompile(`-+`)
	nameInvalid   = regexp.MustCompile(`[^\w\s\x{0600}-\x{06FF}]`)
	spaceRun      = regexp.MustCompile(`\s+`)
	socialPattern = map[string]*regexp.Regexp{
		"instagram": regexp.MustCompile(`(?i)^(https?://)?(www\.)?(instagram\.com/)`),
		"snapchat":  regexp.MustCompile(`(?i)^(https?://)?(www\.)?(snapchat\.com/add/)`),
		"twitter":   regexp.MustCompile(`(?i)^(https?://)?(www\.)?(twitter\.com/|x\.com/)`),
	}
)

func digitsOnly(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// FormatPhone converts a Saudi number in any common notation to +966XXXXXXXXX.
// Numbers that are not recognisably Saudi are returned as "+digits".
func FormatPhone(phone string) string {
	clean := digitsOnly(phone)
	switch {
	case strings.HasPrefix(clean, "966"):
		return "+" + clean
	case strings.HasPrefix(clean, "05"):
		return "+966" + clean[1:]
	case len(clean) == 9 && strings.HasPrefix(clean, "5"):
		return "+966" + clean
	}
	return "+" + clean
}

// ValidSaudiPhone accepts 05XXXXXXXX, 5XXXXXXXX and 9665XXXXXXXX, ignoring
// any non-digit characters.
func ValidSaudiPhone(phone string) bool {
	clean := digitsOnly(phone)
	switch {
	case len(clean) == 10 && strings.HasPrefix(clean, "05"):
		return true
	case len(clean) == 9 && strings.HasPrefix(clean, "5"):
		return true
	case len(clean) == 12 && strings.HasPrefix(clean, "9665"):
		return true
	}
	return false
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail is the form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidSocialURL checks a profile link for instagram, snapchat or twitter
// (x.com included). Empty links are allowed.
func ValidSocialURL(url, platform string) bool {
	if url == "" {
		return true
	}
	pattern, ok := socialPattern[platform]
	if !ok {
		return false
	}
	return pattern.MatchString(url)
}

// ValidatePassword returns the Arabic messages for every rule the password breaks.
func ValidatePassword(password string) []string {
	var problems []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("يجب أن تكون كلمة المرور %d أحرف على الأقل", MinPasswordLength))
	}
	return problems
}

// Slugify builds a URL slug from Arabic or English text.
func Slugify(text string) string {
	s := strings.TrimSpace(strings.ToLower(text))
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// UsernameBase turns a display name into the username stem.
func UsernameBase(name string) string {
	clean := strings.TrimSpace(nameInvalid.ReplaceAllString(name, ""))
	return strings.ToLower(spaceRun.ReplaceAllString(clean, "_"))
}

// UniqueUsername appends _1, _2, ... to the stem until taken reports false.
func UniqueUsername(ctx context.Context, name string, taken func(context.Context, string) (bool, error)) (string, error) {
	base := UsernameBase(name)
	if base == "" {
		base = "user"
	}

	username := base
	for counter := 1; ; counter++ {
		exists, err := taken(ctx, username)
		if err != nil {
			return "", fmt.Errorf("check username %s: %w", username, err)
		}
		if !exists {
			return username, nil
		}
		username = fmt.Sprintf("%s_%d", base, counter)
	}
}

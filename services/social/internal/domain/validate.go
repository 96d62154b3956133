package domain

import (
	"unicode/utf8"

	"github.com/example/orbit/services/social/internal/richtext"
)

const (
	MaxContentLength  = 1000
	MaxBioLength      = 160
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// CleanContent strips markup from post/comment text and checks its length.
// It returns the text to store.
func CleanContent(op, raw string) (string, error) {
	s := richtext.Plain(raw)
	if s == "" {
		return "", Invalid(op, "content must not be empty")
	}
	if utf8.RuneCountInString(s) > MaxContentLength {
		return "", Invalid(op, "content must not exceed %d characters", MaxContentLength)
	}
	return s, nil
}

// ValidateUsername accepts 3-30 characters of lowercase letters, digits and
// underscores.
func ValidateUsername(op, username string) error {
	n := len(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return Invalid(op, "username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return Invalid(op, "username may only contain a-z, 0-9 and _")
		}
	}
	return nil
}

// CleanBio strips markup and bounds the length. Empty bios are allowed.
func CleanBio(op, raw string) (string, error) {
	s := richtext.Plain(raw)
	if utf8.RuneCountInString(s) > MaxBioLength {
		return "", Invalid(op, "bio must not exceed %d characters", MaxBioLength)
	}
	return s, nil
}

// Package validation holds input checks shared by the HTTP handlers and the
// chat service.
package validation

import (
	"fmt"
	"strings"
)

const (
	// MaxBodyLen is the maximum message body length in characters.
	MaxBodyLen = 2000

	// MaxIDLen bounds externally supplied identifiers.
	MaxIDLen = 128

	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
	DefaultThreadLimit  = 20
	MaxThreadLimit      = 50
)

// validIDRune reports whether r may appear in an external identifier.
// Identifiers are embedded in composite storage keys, so the key separator
// ':' and anything else exotic is rejected outright.
func validIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	}
	return false
}

func checkID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id must not be empty", kind)
	}
	if len(id) > MaxIDLen {
		return fmt.Errorf("%s id exceeds %d characters", kind, MaxIDLen)
	}
	for _, r := range id {
		if !validIDRune(r) {
			return fmt.Errorf("%s id contains invalid character %q", kind, r)
		}
	}
	return nil
}

// CheckUserID validates an externally supplied user id.
func CheckUserID(id string) error { return checkID("user", id) }

// CheckPostID validates an externally supplied post id.
func CheckPostID(id string) error { return checkID("post", id) }

// CheckThreadID validates an externally supplied thread id.
func CheckThreadID(id string) error { return checkID("thread", id) }

// CheckBody rejects message bodies over the length cap. An empty body is
// fine on its own; content presence is checked against the attachment too.
func CheckBody(body string) error {
	if len([]rune(body)) > MaxBodyLen {
		return fmt.Errorf("message body exceeds %d characters", MaxBodyLen)
	}
	return nil
}

// MessageLimit validates a requested page size for message listing. Zero
// means unset and falls back to the default; anything out of range is an
// error, never silently coerced.
func MessageLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultMessageLimit, nil
	}
	if limit < 0 || limit > MaxMessageLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", MaxMessageLimit)
	}
	return limit, nil
}

// ThreadLimit validates a requested page size for thread listing.
func ThreadLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultThreadLimit, nil
	}
	if limit < 0 || limit > MaxThreadLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", MaxThreadLimit)
	}
	return limit, nil
}

// Offset validates a listing offset.
func Offset(offset int) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("offset must not be negative")
	}
	return offset, nil
}

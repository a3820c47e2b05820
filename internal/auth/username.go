package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	usernameBaseMaxLength = 16
	defaultUsernameBase   = "user"
)

// UsernameChecker reports whether a username is already claimed. The probe is
// advisory; the users.username unique constraint is what actually decides.
type UsernameChecker interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// UsernameBase derives the username stem from a display name.
func UsernameBase(displayName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(displayName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == usernameBaseMaxLength {
				break
			}
		}
	}
	if b.Len() == 0 {
		return defaultUsernameBase
	}
	return b.String()
}

// GenerateUsername returns the first free username among base, base1, base2...
func GenerateUsername(ctx context.Context, displayName string, checker UsernameChecker) (string, error) {
	base := UsernameBase(displayName)
	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := checker.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(suffix)
	}
}

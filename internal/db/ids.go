package db

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"

	"huddle/internal/constants"
)

func GenerateID(prefix string) (string, error) {
	b := make([]byte, constants.IDRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}

// NewSessionID returns the identifier shared by a session row and the jti
// claim of its token.
func NewSessionID() string {
	return uuid.NewString()
}

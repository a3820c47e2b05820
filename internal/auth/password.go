package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor applied to every stored password hash.
const BcryptCost = 12

// bcrypt rejects inputs longer than this many bytes.
const bcryptMaxInput = 72

var ErrHashing = errors.New("hashing password")

// dummyHash is compared against when no account matches, so a failed
// sign-in costs the same whether or not the email exists.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("huddle-timing-equalizer"), BcryptCost)
	if err != nil {
		panic(err)
	}
	return hash
})

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(plain), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}
	return string(hash), nil
}

// ValidatePassword reports whether plain matches hash. A malformed hash is
// indistinguishable from a wrong password.
func ValidatePassword(plain, hash string) bool {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		EqualizeTiming(plain)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain)) == nil
}

// EqualizeTiming burns one bcrypt comparison. Call it on paths that reject
// a credential before any real comparison took place.
func EqualizeTiming(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), bcryptInput(plain))
}

func bcryptInput(plain string) []byte {
	if len(plain) <= bcryptMaxInput {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

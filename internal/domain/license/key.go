package license

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"regexp"
	"strings"

	ierr "github.com/tradingbrain/licensing/internal/errors"
)

const (
	keyPrefix = "TB"
	// keyGroups of keyGroupBytes random bytes give 64 bits of entropy
	keyGroups     = 4
	keyGroupBytes = 2
)

var keyPattern = regexp.MustCompile(`^TB-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)

// entropy is the randomness source for keys; swapped only in tests
var entropy io.Reader = rand.Reader

// GenerateKey returns a new license key in the form TB-XXXX-XXXX-XXXX-XXXX
// where every X is an uppercase hex digit drawn from crypto/rand.
// There is no fallback source: if crypto/rand fails the error is returned.
func GenerateKey() (string, error) {
	buf := make([]byte, keyGroups*keyGroupBytes)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return "", ierr.WithError(err).
			WithHint("Secure random source unavailable").
			Mark(ierr.ErrSystem)
	}

	parts := make([]string, 0, keyGroups+1)
	parts = append(parts, keyPrefix)
	for i := 0; i < keyGroups; i++ {
		group := buf[i*keyGroupBytes : (i+1)*keyGroupBytes]
		parts = append(parts, strings.ToUpper(hex.EncodeToString(group)))
	}
	return strings.Join(parts, "-"), nil
}

// MustGenerateKey is like GenerateKey but panics if the entropy source fails
func MustGenerateKey() string {
	key, err := GenerateKey()
	if err != nil {
		panic(err)
	}
	return key
}

// IsValidKey reports whether key has the TB-XXXX-XXXX-XXXX-XXXX shape
func IsValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// MaskKey hides all but the last group of a key for logging, ex TB-****-****-****-7A8B
func MaskKey(key string) string {
	if !IsValidKey(key) {
		return "****"
	}
	return keyPrefix + "-****-****-****-" + key[len(key)-4:]
}

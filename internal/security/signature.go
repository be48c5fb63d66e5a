package security

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"

	ierr "github.com/tradingbrain/licensing/internal/errors"
)

// Sign computes the hex encoded HMAC-SHA512 of the canonical payload
func Sign(payload map[string]interface{}, secret string) (string, error) {
	return sign(payload, secret, Canonicalize)
}

// SignASCII signs the ASCII-escaped canonical form
func SignASCII(payload map[string]interface{}, secret string) (string, error) {
	return sign(payload, secret, CanonicalizeASCII)
}

func sign(payload map[string]interface{}, secret string, canonicalize func(map[string]interface{}) ([]byte, error)) (string, error) {
	if secret == "" {
		return "", ierr.NewError("signing secret is empty").
			Mark(ierr.ErrNotConfigured)
	}

	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	return computeSignature(canonical, secret), nil
}

// VerifySignature authenticates a notification payload against the shared secret.
// The digest may cover either the raw UTF-8 canonical form or its ASCII-escaped
// variant. It never panics and returns false when the secret or signature is
// empty, when the payload cannot be canonicalised, or when the digests differ.
func VerifySignature(payload map[string]interface{}, signature string, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	canonical, err := Canonicalize(payload)
	if err != nil {
		return false
	}

	if hmac.Equal([]byte(computeSignature(canonical, secret)), []byte(signature)) {
		return true
	}

	escaped := escapeNonASCII(canonical)
	if bytes.Equal(escaped, canonical) {
		return false
	}
	return hmac.Equal([]byte(computeSignature(escaped, secret)), []byte(signature))
}

func computeSignature(canonical []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

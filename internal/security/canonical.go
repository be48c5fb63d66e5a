package security

import (
	"bytes"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	ierr "github.com/tradingbrain/licensing/internal/errors"
)

// canonicalJSON sorts map keys at every depth, keeps number literals exactly as
// received and leaves <, > and & unescaped.
var canonicalJSON = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// DecodePayload parses a notification body into a generic payload.
// Numbers are kept as json.Number so that re-serialising them for the
// signature check reproduces the sender's digits.
func DecodePayload(body []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ierr.NewError("notification body must be a JSON object").
			WithHint("Malformed notification body").
			Mark(ierr.ErrValidation)
	}

	var payload map[string]interface{}
	if err := canonicalJSON.Unmarshal(trimmed, &payload); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed notification body").
			Mark(ierr.ErrValidation)
	}
	return payload, nil
}

// Canonicalize returns the byte-exact form a payload is signed over:
// keys sorted lexicographically and no whitespace between tokens.
func Canonicalize(payload map[string]interface{}) ([]byte, error) {
	if payload == nil {
		return nil, ierr.NewError("payload is nil").
			Mark(ierr.ErrValidation)
	}

	b, err := canonicalJSON.Marshal(payload)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Payload cannot be serialised").
			Mark(ierr.ErrValidation)
	}
	return b, nil
}

// CanonicalizeASCII is Canonicalize with every non-ASCII character written as
// a lowercase \uXXXX escape, surrogate pairs above the BMP. Senders that
// serialise with ASCII-only output sign this form instead of raw UTF-8.
func CanonicalizeASCII(payload map[string]interface{}) ([]byte, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, err
	}
	return escapeNonASCII(canonical), nil
}

// escapeNonASCII rewrites multi-byte runes in b. Outside strings canonical
// JSON is pure ASCII, so only string contents change.
func escapeNonASCII(b []byte) []byte {
	if isASCII(b) {
		return b
	}

	out := make([]byte, 0, len(b)+len(b)/2)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			out = fmt.Appendf(out, `\u%04x\u%04x`, r1, r2)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

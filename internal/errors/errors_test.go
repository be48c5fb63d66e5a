package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"permission denied", NewError("bad sig").Mark(ErrPermissionDenied), http.StatusUnauthorized},
		{"validation", NewError("bad body").Mark(ErrValidation), http.StatusBadRequest},
		{"not found", NewError("missing").Mark(ErrNotFound), http.StatusNotFound},
		{"already exists", NewError("dup").Mark(ErrAlreadyExists), http.StatusConflict},
		{"delivery", NewError("smtp").Mark(ErrDelivery), http.StatusBadGateway},
		{"too many requests", NewError("slow down").Mark(ErrTooManyRequests), http.StatusTooManyRequests},
		{"not configured", NewError("no creds").Mark(ErrNotConfigured), http.StatusServiceUnavailable},
		{"unmarked", fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestDisplayMessage(t *testing.T) {
	err := NewError("notification signature mismatch").
		WithHint("Invalid signature").
		Mark(ErrPermissionDenied)
	assert.Equal(t, "Invalid signature", DisplayMessage(err))

	assert.Equal(t, "plain", DisplayMessage(fmt.Errorf("plain")))
}

func TestMarkedErrorsAreDistinct(t *testing.T) {
	err := WithError(context.DeadlineExceeded).
		WithHint("Timed out").
		Mark(ErrDatabase)

	assert.True(t, IsDatabase(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

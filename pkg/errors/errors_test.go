package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrFormat, http.StatusTeapot, "x"), http.StatusTeapot},
		{"invalid query", fmt.Errorf("parse: %w", ErrInvalidQuery), http.StatusBadRequest},
		{"format error", fmt.Errorf("load: %w", ErrFormat), http.StatusServiceUnavailable},
		{"not loaded", ErrIndexNotLoaded, http.StatusServiceUnavailable},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrBuildInput, http.StatusBadRequest, "record %d", 3)
	assert.True(t, errors.Is(err, ErrBuildInput))
	assert.Equal(t, "invalid document record: record 3", err.Error())
}

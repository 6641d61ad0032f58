package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped fmt", fmt.Errorf("nominatim: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"plain", errors.New("invalid request"), false},
		{"conn reset", fmt.Errorf("read tcp: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"no such host", errors.New("dial tcp: lookup nominatim.example: no such host"), true},
		{"client timeout", errors.New("Get \"https://x\": context deadline exceeded (Client.Timeout exceeded while awaiting headers)"), true},
		{"parse", errors.New("geocode: nominatim parse response: invalid character"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewTransientError(inner, 502)
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, 502, err.StatusCode)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassNone, Classify(nil))
	assert.Equal(t, ClassCancelled, Classify(fmt.Errorf("geocode: nominatim rate limit: %w", context.Canceled)))
	assert.Equal(t, ClassTransient, Classify(NewTransientError(errors.New("503"), 503)))
	assert.Equal(t, ClassPermanent, Classify(errors.New("geocode: google returned status 403")))
}

package resilience

import (
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"feed host throttling", NewTransientError(eris.New("status 429"), 429), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("status 503"), 503), "push decisions"), true},
		{"network timeout", timeoutErr{}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", eris.Wrap(syscall.ECONNREFUSED, "dial feed host"), true},
		{"dns failure message", eris.New("lookup feeds.broker.example: no such host"), true},
		{"tls handshake message", eris.New("net/http: TLS handshake timeout"), true},
		{"crm validation rejection", eris.New("REQUIRED_FIELD_MISSING: LastName"), false},
		{"malformed feed row", eris.New("parse row 17: employee count is not a number"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := eris.New("status 502 from crm")
	te := NewTransientError(inner, 502)

	assert.Equal(t, inner.Error(), te.Error())
	require.ErrorIs(t, te, inner)
	assert.Equal(t, 502, te.StatusCode)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	// Client errors mean the request itself is wrong; retrying will not help.
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "transient", ClassifyError(NewTransientError(eris.New("status 503"), 503)))
	assert.Equal(t, "permanent", ClassifyError(eris.New("duplicate external id")))
	assert.Equal(t, "permanent", ClassifyError(nil))
}

package resilience

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadflow/internal/model"
)

func TestNewFailedLead_Transient(t *testing.T) {
	lead := model.Lead{ID: "lead-1", Company: "ABC Construction"}
	err := NewTransientError(eris.New("feed host returned 503"), 503)

	f := NewFailedLead(lead, "score", err)
	assert.Equal(t, "lead-1", f.Lead.ID)
	assert.Equal(t, "score", f.Stage)
	assert.Equal(t, "transient", f.ErrorType)
	assert.True(t, f.Retryable())
	assert.WithinDuration(t, time.Now().UTC(), f.FailedAt, time.Minute)
}

func TestNewFailedLead_Permanent(t *testing.T) {
	f := NewFailedLead(model.Lead{ID: "lead-2"}, "qualify", eris.New("score 150 out of range"))
	assert.Equal(t, "permanent", f.ErrorType)
	assert.False(t, f.Retryable())
}

func TestRetryFromConfig(t *testing.T) {
	cfg := RetryFromConfig(5, 250)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)

	// Unset values fall back to defaults.
	cfg = RetryFromConfig(0, 0)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
}

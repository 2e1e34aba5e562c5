package resilience

import (
	"time"

	"github.com/sells-group/leadflow/internal/model"
)

// FailedLead records a lead that could not be processed, along with enough
// context to retry it later or hand it to an operator.
type FailedLead struct {
	Lead      model.Lead `json:"lead"`
	Stage     string     `json:"stage"` // "score", "qualify", "route", "persist", "dispatch", or "sync"
	Error     string     `json:"error"`
	ErrorType string     `json:"error_type"` // "transient" or "permanent"
	FailedAt  time.Time  `json:"failed_at"`
}

// NewFailedLead builds a FailedLead from a processing error, classifying the
// error so callers can decide whether a retry is worthwhile.
func NewFailedLead(lead model.Lead, stage string, err error) FailedLead {
	return FailedLead{
		Lead:      lead,
		Stage:     stage,
		Error:     err.Error(),
		ErrorType: ClassifyError(err),
		FailedAt:  time.Now().UTC(),
	}
}

// Retryable reports whether the failure is worth retrying automatically.
func (f FailedLead) Retryable() bool {
	return f.ErrorType == "transient"
}

// Package outreach hands routing decisions to whatever actually sends email
// and places calls. Retry and failure handling for delivery live behind the
// Executor, decoupled from scoring and routing.
package outreach

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
)

// Executor consumes an outreach sequence and schedules its steps.
type Executor interface {
	Dispatch(ctx context.Context, lead model.Lead, seq []model.OutreachStep) error
}

// LogExecutor records what would be sent without sending anything. Used for
// dry runs and as the default until a real dispatcher is wired in.
type LogExecutor struct{}

// NewLogExecutor creates a LogExecutor.
func NewLogExecutor() *LogExecutor { return &LogExecutor{} }

func (e *LogExecutor) Dispatch(_ context.Context, lead model.Lead, seq []model.OutreachStep) error {
	if len(seq) == 0 {
		zap.L().Debug("outreach: nothing to dispatch",
			zap.String("lead_id", lead.ID),
		)
		return nil
	}
	for _, step := range seq {
		zap.L().Info("outreach: scheduled step",
			zap.String("lead_id", lead.ID),
			zap.String("company", lead.Company),
			zap.String("channel", string(step.Channel)),
			zap.Int("delay_minutes", step.DelayMinutes),
			zap.String("template_id", step.TemplateID),
		)
	}
	return nil
}

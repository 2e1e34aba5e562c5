package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
)

// defaultCheckInterval applies when the config leaves the interval unset.
const defaultCheckInterval = 5 * time.Minute

// Checker drives the collect-evaluate-alert cycle on a schedule. The monitor
// command runs one Checker for the life of the process.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker wires a collector and alerter into a periodic checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run blocks until ctx is cancelled. The first check fires immediately so a
// backlog of overdue leads surfaces on startup rather than one interval later.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("alert checker running",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	c.check(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("metrics collection failed", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("pipeline healthy",
			zap.Int("decisions", snap.DecisionsTotal),
			zap.Int("sla_breaches", snap.SLABreaches),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("pipeline degraded",
		zap.Int("decisions", snap.DecisionsTotal),
		zap.Int("sla_breaches", snap.SLABreaches),
		zap.Float64("unqualified_rate", snap.UnqualifiedRate),
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}

// Package agents answers "is an agent slot free?" for the router. The
// provider returns a read-only snapshot per call; keeping workload accounting
// consistent under concurrent assignment is the implementation's problem, not
// the router's.
package agents

import (
	"context"
	"sync"

	"github.com/sells-group/leadflow/internal/model"
)

// AvailabilityProvider supplies the availability snapshot consumed by the
// router.
type AvailabilityProvider interface {
	Snapshot(ctx context.Context) (model.AvailabilitySnapshot, error)
	// Reserve records that a slot of the given class was consumed by an
	// assignment. Automated assignments are free and ignored.
	Reserve(ctx context.Context, class model.HandlerClass) error
}

// ConfigProvider tracks slots in memory starting from configured capacities.
// Suitable for single-process batch runs; a deployment with multiple workers
// needs a shared directory behind the same interface.
type ConfigProvider struct {
	mu      sync.Mutex
	senior  int
	regular int
}

// NewConfigProvider creates a provider with the given starting capacities.
func NewConfigProvider(seniorSlots, regularSlots int) *ConfigProvider {
	return &ConfigProvider{senior: seniorSlots, regular: regularSlots}
}

func (p *ConfigProvider) Snapshot(_ context.Context) (model.AvailabilitySnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.AvailabilitySnapshot{
		SeniorSlots:  p.senior,
		RegularSlots: p.regular,
	}, nil
}

func (p *ConfigProvider) Reserve(_ context.Context, class model.HandlerClass) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch class {
	case model.HandlerSenior:
		if p.senior > 0 {
			p.senior--
		}
	case model.HandlerRegular:
		if p.regular > 0 {
			p.regular--
		}
	}
	return nil
}

// internal/milestone/tracker.go
package milestone

import (
	"context"
	"sort"
	"sync"

	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(eventType string, data interface{})
}

// Celebration is published once per reached milestone.
type Celebration struct {
	MilestoneID int             `json:"milestoneId"`
	Label       string          `json:"label"`
	TargetGB    float64         `json:"target"`
	Reward      decimal.Decimal `json:"reward"`
}

// Tracker accumulates bandwidth and fires each milestone of the ladder once.
type Tracker struct {
	state *store.State
	pub   Publisher
	mu    sync.Mutex
}

func NewTracker(state *store.State, pub Publisher) *Tracker {
	return &Tracker{state: state, pub: pub}
}

func (t *Tracker) Progress(ctx context.Context) (models.Progress, error) {
	return t.state.Progress(ctx)
}

// Add raises the cumulative counter by gb and returns the milestones reached
// by this update, in ascending order.
func (t *Tracker) Add(ctx context.Context, gb float64) (models.Progress, []Celebration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		reached []Celebration
		final   bool
	)
	progress, err := t.state.UpdateProgress(ctx, func(p *models.Progress) error {
		// The update may run more than once under contention.
		reached, final = nil, false

		if len(p.Milestones) == 0 {
			p.Milestones = models.DefaultMilestones()
		}
		sort.SliceStable(p.Milestones, func(i, j int) bool { return p.Milestones[i].Target < p.Milestones[j].Target })

		if gb > 0 {
			p.TotalBandwidthGB += gb
		}
		p.TotalUpdates++

		for i := range p.Milestones {
			m := &p.Milestones[i]
			if m.Reached || m.Target > p.TotalBandwidthGB {
				continue
			}
			m.Reached = true
			reached = append(reached, Celebration{
				MilestoneID: m.ID,
				Label:       m.Label,
				TargetGB:    m.Target,
				Reward:      m.RewardDoge,
			})
		}

		last := p.Milestones[len(p.Milestones)-1]
		if !p.FinalReached && p.TotalBandwidthGB >= last.Target {
			p.FinalReached = true
			final = true
		}
		return nil
	})
	if err != nil {
		return progress, nil, err
	}

	for _, c := range reached {
		logging.Info("Milestone reached", zap.String("label", c.Label), zap.String("reward", c.Reward.String()))
		t.pub.Publish(events.TypeCelebration, c)
	}
	if final {
		logging.Info("Final milestone reached", zap.Float64("totalGB", progress.TotalBandwidthGB))
		t.pub.Publish(events.TypeFinalCelebration, progress)
	}
	return progress, reached, nil
}

// internal/ledgerserver/settle.go
package ledgerserver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"go.uber.org/zap"
)

// Settler runs Service.Settle on a fixed interval.
type Settler struct {
	scheduler gocron.Scheduler
}

func NewSettler(svc *Service, interval time.Duration) (*Settler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			n, err := svc.Settle(ctx)
			if err != nil {
				logging.Error("Settlement failed", zap.Error(err))
				return
			}
			if n > 0 {
				logging.Debug("Settlement pass", zap.Int("advanced", n))
			}
		}),
		gocron.WithName("settle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule settlement: %w", err)
	}
	return &Settler{scheduler: s}, nil
}

func (s *Settler) Start() {
	s.scheduler.Start()
}

func (s *Settler) Shutdown() error {
	return s.scheduler.Shutdown()
}

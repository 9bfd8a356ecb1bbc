// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	JobHealth      = "health"
	JobPrice       = "price"
	JobWithdrawals = "withdrawals"
)

// Engine is the part of the session engine the background jobs drive.
type Engine interface {
	CheckHealth(ctx context.Context) error
	RefreshPrice(ctx context.Context) decimal.Decimal
	RefreshWithdrawals(ctx context.Context) (int, error)
}

type Intervals struct {
	Health         time.Duration
	Price          time.Duration
	WithdrawalPoll time.Duration
}

// Scheduler runs the app-level periodic jobs: backend health, DOGE price and
// withdrawal status polling.
type Scheduler struct {
	sched  gocron.Scheduler
	jobs   map[string]gocron.Job
	ctx    context.Context
	cancel context.CancelFunc
}

func New(engine Engine, iv Intervals) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{sched: sched, jobs: make(map[string]gocron.Job)}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	tasks := []struct {
		name     string
		interval time.Duration
		run      func(ctx context.Context)
	}{
		{JobHealth, iv.Health, func(ctx context.Context) {
			if err := engine.CheckHealth(ctx); err != nil {
				logging.Debug("Health check failed", zap.Error(err))
			}
		}},
		{JobPrice, iv.Price, func(ctx context.Context) {
			price := engine.RefreshPrice(ctx)
			logging.Debug("DOGE price refreshed", zap.String("price", price.String()))
		}},
		{JobWithdrawals, iv.WithdrawalPoll, func(ctx context.Context) {
			n, err := engine.RefreshWithdrawals(ctx)
			if err != nil {
				logging.Warn("Withdrawal status refresh failed", zap.Error(err))
			}
			if n > 0 {
				logging.Info("Withdrawals updated", zap.Int("count", n))
			}
		}},
	}

	for _, task := range tasks {
		if task.interval <= 0 {
			continue
		}
		run := task.run
		job, err := sched.NewJob(
			gocron.DurationJob(task.interval),
			gocron.NewTask(func() { run(s.ctx) }),
			gocron.WithName(task.name),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s job: %w", task.name, err)
		}
		s.jobs[task.name] = job
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	logging.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// RunNow triggers a job outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

// internal/session/engine.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/accrual"
	"github.com/rovshanmuradov/dogenode/internal/config"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/milestone"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/store"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const SourceMining = "mining"

// Ledger is the remote ledger as seen by the engine.
type Ledger interface {
	Health(ctx context.Context) (*ledger.Health, error)
	GetBalance(ctx context.Context, userID string) (*ledger.Balance, error)
	SubmitEarning(ctx context.Context, userID string, amount decimal.Decimal, source string) (*ledger.EarningReceipt, error)
	GetTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
	EstimateWithdrawal(ctx context.Context, amount decimal.Decimal) (*ledger.Estimate, error)
	RequestWithdrawal(ctx context.Context, userID, address string, amount decimal.Decimal) (*ledger.WithdrawalReceipt, error)
	GetWithdrawalStatus(ctx context.Context, transactionID string) (*ledger.WithdrawalStatus, error)
	GetPrice(ctx context.Context) (decimal.Decimal, error)
}

type Publisher interface {
	Publish(eventType string, data interface{})
}

type Config struct {
	AccrualInterval time.Duration
	UptimeInterval  time.Duration
	SyncInterval    time.Duration

	MinEarning     decimal.Decimal
	MaxEarning     decimal.Decimal
	MinBandwidthMB decimal.Decimal
	MaxBandwidthMB decimal.Decimal
	MinWithdrawal  decimal.Decimal
	DefaultPrice   decimal.Decimal

	Chain             string
	TransactionsLimit int
}

func DefaultConfig() Config {
	return Config{
		AccrualInterval:   5 * time.Second,
		UptimeInterval:    time.Second,
		SyncInterval:      30 * time.Second,
		MinEarning:        decimal.RequireFromString("0.1"),
		MaxEarning:        decimal.RequireFromString("0.5"),
		MinBandwidthMB:    decimal.NewFromInt(50),
		MaxBandwidthMB:    decimal.NewFromInt(150),
		MinWithdrawal:     decimal.NewFromInt(10),
		DefaultPrice:      decimal.RequireFromString("0.08"),
		Chain:             wallet.ChainDoge,
		TransactionsLimit: 10,
	}
}

func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.AccrualInterval = cfg.AccrualInterval
	c.UptimeInterval = cfg.UptimeInterval
	c.SyncInterval = cfg.SyncInterval
	c.MinEarning = cfg.MinEarning
	c.MaxEarning = cfg.MaxEarning
	c.MinBandwidthMB = cfg.MinBandwidthMB
	c.MaxBandwidthMB = cfg.MaxBandwidthMB
	c.MinWithdrawal = cfg.MinWithdrawal
	c.DefaultPrice = cfg.DefaultPrice
	c.Chain = cfg.WithdrawChain
	return c
}

type Deps struct {
	State     *store.State
	Ledger    Ledger
	Events    Publisher
	Tracker   *milestone.Tracker
	Amounts   accrual.AmountSource
	Bandwidth accrual.AmountSource
	Clock     clockwork.Clock
}

// Engine owns the mining session: its timers, the reconciliation with the
// remote ledger and the local fallback.
type Engine struct {
	cfg       Config
	state     *store.State
	ledger    Ledger
	events    Publisher
	tracker   *milestone.Tracker
	amounts   accrual.AmountSource
	bandwidth accrual.AmountSource
	clock     clockwork.Clock

	runCtx context.Context
	cancel context.CancelFunc

	accrualLoop *accrual.Loop
	uptimeLoop  *accrual.Loop
	syncLoop    *accrual.Loop

	mu       sync.Mutex
	active   bool
	wallet   *models.WalletRef
	disposed bool

	status status
}

func New(cfg Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Amounts == nil {
		deps.Amounts = accrual.NewRandomSource(deps.Clock.Now().UnixNano())
	}
	if deps.Bandwidth == nil {
		deps.Bandwidth = accrual.NewRandomSource(deps.Clock.Now().UnixNano() + 1)
	}
	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}
	if deps.Tracker == nil {
		deps.Tracker = milestone.NewTracker(deps.State, deps.Events)
	}
	if cfg.TransactionsLimit <= 0 {
		cfg.TransactionsLimit = 10
	}

	e := &Engine{
		cfg:       cfg,
		state:     deps.State,
		ledger:    deps.Ledger,
		events:    deps.Events,
		tracker:   deps.Tracker,
		amounts:   deps.Amounts,
		bandwidth: deps.Bandwidth,
		clock:     deps.Clock,
	}
	e.status.price = cfg.DefaultPrice
	e.runCtx, e.cancel = context.WithCancel(context.Background())

	e.accrualLoop = accrual.NewLoop("accrual", e.clock, cfg.AccrualInterval, e.accrualTick)
	e.uptimeLoop = accrual.NewLoop("uptime", e.clock, cfg.UptimeInterval, e.uptimeTick)
	e.syncLoop = accrual.NewLoop("sync", e.clock, cfg.SyncInterval, e.syncTick)
	return e
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// Run prepares local state, restores a previously active session and starts
// the periodic backend sync.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.LoadUser(ctx); err != nil {
		return err
	}
	if _, err := e.RestoreSession(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrEngineDisposed
	}
	e.syncLoop.Start(e.runCtx)
	return nil
}

// Dispose stops every timer and waits for running ticks. The persisted
// session keeps its active flag so the next Run resumes it.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	e.active = false
	e.accrualLoop.Stop()
	e.uptimeLoop.Stop()
	e.syncLoop.Stop()
	e.cancel()
	e.mu.Unlock()

	// In-flight ticks take e.mu, so they are awaited after unlocking.
	e.accrualLoop.Wait()
	e.uptimeLoop.Wait()
	e.syncLoop.Wait()
	logging.Info("Session engine disposed")
}

func (e *Engine) currentWallet() *models.WalletRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wallet
}

// Wallet returns the connected wallet, or nil.
func (e *Engine) Wallet(ctx context.Context) (*models.WalletRef, error) {
	if w := e.currentWallet(); w != nil {
		return w, nil
	}
	w, err := e.state.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.wallet == nil {
		e.wallet = w
	}
	e.mu.Unlock()
	return w, nil
}

func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) logger() *zap.Logger {
	if w := e.currentWallet(); w != nil {
		return logging.With(zap.String("userId", w.UserID))
	}
	return logging.GetLogger()
}

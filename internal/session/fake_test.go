package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/accrual"
	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/store"
	"github.com/shopspring/decimal"
)

const validAddress = "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L"

var errOffline = &ledger.NetworkError{Op: "test", Err: errors.New("connection refused")}

type fakeLedger struct {
	mu sync.Mutex

	offline     bool
	balance     ledger.Balance
	newBalance  decimal.Decimal
	earningID   string
	remoteTxs   []models.Transaction
	receipt     *ledger.WithdrawalReceipt
	withdrawErr error
	statuses    map[string]ledger.WithdrawalStatus
	price       decimal.Decimal
	// hold, when set, blocks SubmitEarning until it is closed.
	hold chan struct{}

	calls map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		statuses: make(map[string]ledger.WithdrawalStatus),
		calls:    make(map[string]int),
	}
}

func (f *fakeLedger) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *fakeLedger) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeLedger) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeLedger) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.offline {
		return errOffline
	}
	return nil
}

func (f *fakeLedger) Health(context.Context) (*ledger.Health, error) {
	if err := f.enter("health"); err != nil {
		return nil, err
	}
	return &ledger.Health{Success: true, Status: "ok", Services: map[string]bool{"database": true}}, nil
}

func (f *fakeLedger) GetBalance(context.Context, string) (*ledger.Balance, error) {
	if err := f.enter("balance"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.balance
	return &b, nil
}

func (f *fakeLedger) SubmitEarning(ctx context.Context, _ string, _ decimal.Decimal, _ string) (*ledger.EarningReceipt, error) {
	if err := f.enter("earning"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, &ledger.NetworkError{Op: "submit earning", Err: ctx.Err()}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &ledger.EarningReceipt{NewBalance: f.newBalance, TransactionID: f.earningID}, nil
}

func (f *fakeLedger) GetTransactions(context.Context, string, int) ([]models.Transaction, error) {
	if err := f.enter("transactions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteTxs, nil
}

func (f *fakeLedger) EstimateWithdrawal(_ context.Context, amount decimal.Decimal) (*ledger.Estimate, error) {
	if err := f.enter("estimate"); err != nil {
		return nil, err
	}
	fee := decimal.NewFromInt(1)
	return &ledger.Estimate{Fee: fee, TotalAmount: amount.Add(fee), YouWillReceive: amount, EstimatedTime: "10-30 minutes"}, nil
}

func (f *fakeLedger) RequestWithdrawal(context.Context, string, string, decimal.Decimal) (*ledger.WithdrawalReceipt, error) {
	if err := f.enter("withdraw"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	return f.receipt, nil
}

func (f *fakeLedger) GetWithdrawalStatus(_ context.Context, id string) (*ledger.WithdrawalStatus, error) {
	if err := f.enter("status"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[id]
	if !ok {
		return nil, &ledger.RemoteError{Op: "withdrawal status", Status: 404, Message: "not found"}
	}
	return &st, nil
}

func (f *fakeLedger) GetPrice(context.Context) (decimal.Decimal, error) {
	if err := f.enter("price"); err != nil {
		return decimal.Zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, nil
}

type harness struct {
	engine *Engine
	ledger *fakeLedger
	state  *store.State
	mem    *store.Memory
	clock  *clockwork.FakeClock
	hub    *events.Hub
}

func newHarness(t *testing.T, fl *fakeLedger, amount string) *harness {
	t.Helper()
	mem := store.NewMemory()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	st := store.NewState(mem, clock)
	hub := events.NewHub()

	eng := New(DefaultConfig(), Deps{
		State:     st,
		Ledger:    fl,
		Events:    hub,
		Amounts:   accrual.Fixed(decimal.RequireFromString(amount)),
		Bandwidth: accrual.Fixed(decimal.NewFromInt(100)),
		Clock:     clock,
	})
	t.Cleanup(eng.Dispose)
	return &harness{engine: eng, ledger: fl, state: st, mem: mem, clock: clock, hub: hub}
}

func (h *harness) connect(t *testing.T) *models.WalletRef {
	t.Helper()
	w, err := h.engine.ConnectWallet(context.Background(), "dogecoin-core", validAddress)
	if err != nil {
		t.Fatalf("connect wallet: %v", err)
	}
	return w
}

func (h *harness) setBalance(t *testing.T, balance string) {
	t.Helper()
	_, err := h.state.UpdateUser(context.Background(), func(u *models.User) error {
		u.Balance = decimal.RequireFromString(balance)
		return nil
	})
	if err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

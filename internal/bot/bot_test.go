package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/milestone"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/session"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/tucnak/telebot.v2"
)

type fakeEngine struct {
	connectErr  error
	startErr    error
	stopped     bool
	snapshot    session.Snapshot
	txs         []models.Transaction
	withdrawErr error
	withdrawn   decimal.Decimal
}

func (f *fakeEngine) ConnectWallet(_ context.Context, provider, address string) (*models.WalletRef, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &models.WalletRef{Address: address, Provider: provider, Chain: wallet.ChainDoge}, nil
}

func (f *fakeEngine) Start(context.Context) (models.Session, error) {
	return models.Session{IsActive: f.startErr == nil}, f.startErr
}

func (f *fakeEngine) StopSession(context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeEngine) Snapshot(context.Context) (*session.Snapshot, error) {
	s := f.snapshot
	return &s, nil
}

func (f *fakeEngine) LoadTransactions(context.Context, int) ([]models.Transaction, bool, error) {
	return f.txs, false, nil
}

func (f *fakeEngine) RequestWithdrawal(_ context.Context, address string, amount decimal.Decimal) (*models.Transaction, error) {
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	f.withdrawn = amount
	return &models.Transaction{ID: "w-1", Type: models.TransactionTypeWithdrawal, Amount: amount, Status: models.TransactionStatusPending, Address: address}, nil
}

const dogeAddress = "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L"

func newTestBot(f *fakeEngine) *Bot {
	return &Bot{engine: f, hub: events.NewHub(), ownerID: 42, stopChan: make(chan struct{})}
}

func TestAuthorizedOnlyOwner(t *testing.T) {
	b := newTestBot(&fakeEngine{})
	assert.True(t, b.authorized(&telebot.User{ID: 42}))
	assert.False(t, b.authorized(&telebot.User{ID: 7}))
	assert.False(t, b.authorized(nil))
}

func TestRespondConnect(t *testing.T) {
	b := newTestBot(&fakeEngine{})
	ctx := context.Background()

	assert.Equal(t, "Usage: /connect <address>", b.respond(ctx, "/connect", ""))
	assert.Equal(t, "Wallet connected: "+dogeAddress, b.respond(ctx, "/connect", dogeAddress))

	b.engine = &fakeEngine{connectErr: &wallet.ValidationError{Field: "address", Message: "invalid Dogecoin address"}}
	assert.Equal(t, "Could not connect wallet: invalid Dogecoin address", b.respond(ctx, "/connect", "nope"))
}

func TestRespondMineWithoutWallet(t *testing.T) {
	f := &fakeEngine{startErr: &session.PreconditionError{Op: "start", Err: session.ErrWalletNotConnected}}
	b := newTestBot(f)

	reply := b.respond(context.Background(), "/mine", "")
	assert.Equal(t, "Could not start mining: connect a wallet first with /connect.", reply)
}

func TestRespondStop(t *testing.T) {
	f := &fakeEngine{}
	b := newTestBot(f)

	assert.Equal(t, "Mining stopped.", b.respond(context.Background(), "/stop", ""))
	assert.True(t, f.stopped)
}

func TestRespondWithdraw(t *testing.T) {
	f := &fakeEngine{}
	b := newTestBot(f)
	ctx := context.Background()

	assert.Equal(t, "Usage: /withdraw <address> <amount>", b.respond(ctx, "/withdraw", dogeAddress))

	reply := b.respond(ctx, "/withdraw", dogeAddress+" 12.5")
	assert.Contains(t, reply, "Withdrawal of 12.50 DOGE requested.")
	assert.Contains(t, reply, "Status: pending")
	assert.True(t, decimal.RequireFromString("12.5").Equal(f.withdrawn))

	reply = b.respond(ctx, "/withdraw", dogeAddress+" lots")
	assert.Contains(t, reply, "Withdrawal rejected:")

	f.withdrawErr = &ledger.RemoteError{Op: "withdraw", Status: 400, Message: "Insufficient balance"}
	assert.Equal(t, "Withdrawal rejected: Insufficient balance", b.respond(ctx, "/withdraw", dogeAddress+" 20"))

	f.withdrawErr = &ledger.NetworkError{Op: "withdraw", Err: errors.New("connection refused")}
	assert.Equal(t, "Withdrawal rejected: the backend is unreachable, try again later.", b.respond(ctx, "/withdraw", dogeAddress+" 20"))
}

func TestRespondUnknown(t *testing.T) {
	b := newTestBot(&fakeEngine{})
	assert.Equal(t, "Unknown command. Use /help.", b.respond(context.Background(), "/dance", ""))
	assert.Equal(t, helpText, b.respond(context.Background(), "/help", ""))
}

func TestFormatBalance(t *testing.T) {
	snap := &session.Snapshot{
		User: models.User{
			Balance:          decimal.RequireFromString("25"),
			TodayEarnings:    decimal.RequireFromString("1.234"),
			TotalEarnings:    decimal.RequireFromString("40"),
			TotalWithdrawals: 2,
		},
		Session: models.Session{IsActive: true, UptimeSeconds: 3725},
		Status:  session.Status{Online: true, Known: true, Price: decimal.RequireFromString("0.08")},
		Active:  true,
	}

	text := formatBalance(snap)
	assert.Contains(t, text, "Balance: 25.00 DOGE (~$2.00)")
	assert.Contains(t, text, "Today: 1.23 DOGE")
	assert.Contains(t, text, "Withdrawals: 2")
	assert.Contains(t, text, "Mining: running, uptime 01:02:05")
	assert.Contains(t, text, "Backend: online")
}

func TestFormatHistory(t *testing.T) {
	assert.Contains(t, formatHistory(nil), "No transactions yet")

	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	text := formatHistory([]models.Transaction{
		{Type: models.TransactionTypeEarning, Amount: decimal.RequireFromString("0.25"), Status: models.TransactionStatusCompleted, CreatedAt: at},
		{Type: models.TransactionTypeWithdrawal, Amount: decimal.RequireFromString("10"), Status: models.TransactionStatusPending, CreatedAt: at},
	})
	assert.Contains(t, text, "+ 0.25 DOGE  completed  01.03.2024 10:30:00")
	assert.Contains(t, text, "- 10.00 DOGE  pending")
}

func TestFormatProgress(t *testing.T) {
	milestones := models.DefaultMilestones()
	milestones[0].Reached = true
	text := formatProgress(models.Progress{TotalBandwidthGB: 1500, Milestones: milestones})

	assert.Contains(t, text, "Bandwidth shared: 1500.00 GB")
	assert.Contains(t, text, "[x] 1 TB - 10 DOGE")
	assert.Contains(t, text, "[ ] 10 TB - 50 DOGE")
}

func TestFormatEvent(t *testing.T) {
	text, ok := formatEvent(events.Event{Type: events.TypeCelebration, Data: milestone.Celebration{Label: "1 TB", Reward: decimal.NewFromInt(10)}})
	require.True(t, ok)
	assert.Equal(t, "Milestone reached: 1 TB! Reward 10 DOGE", text)

	_, ok = formatEvent(events.Event{Type: events.TypeFinalCelebration})
	assert.True(t, ok)

	url := "https://dogechain.info/tx/abc"
	text, ok = formatEvent(events.Event{Type: events.TypeWithdrawal, Data: models.Transaction{ID: "w-1", Status: models.TransactionStatusCompleted, ExplorerURL: &url}})
	require.True(t, ok)
	assert.Equal(t, "Withdrawal w-1: completed\n"+url, text)

	_, ok = formatEvent(events.Event{Type: events.TypeWithdrawal, Data: models.Transaction{ID: "w-2", Status: models.TransactionStatusPending}})
	assert.False(t, ok)

	_, ok = formatEvent(events.Event{Type: events.TypeAccrual})
	assert.False(t, ok)
}

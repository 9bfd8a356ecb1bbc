package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/session"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	snapshot    session.Snapshot
	err         error
	connected   string
	limit       int
	withdrawn   decimal.Decimal
	referred    string
	stopCalls   int
	disconnects int
}

func (f *fakeEngine) Snapshot(context.Context) (*session.Snapshot, error) {
	s := f.snapshot
	return &s, nil
}

func (f *fakeEngine) ConnectWallet(_ context.Context, provider, address string) (*models.WalletRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.connected = address
	return &models.WalletRef{Address: address, Provider: provider, Chain: wallet.ChainDoge}, nil
}

func (f *fakeEngine) DisconnectWallet(context.Context) error {
	f.disconnects++
	return f.err
}

func (f *fakeEngine) Start(context.Context) (models.Session, error) {
	if f.err != nil {
		return models.Session{}, f.err
	}
	return models.Session{IsActive: true}, nil
}

func (f *fakeEngine) StopSession(context.Context) error {
	f.stopCalls++
	return f.err
}

func (f *fakeEngine) SyncWithBackend(context.Context) error { return f.err }

func (f *fakeEngine) LoadTransactions(_ context.Context, limit int) ([]models.Transaction, bool, error) {
	f.limit = limit
	return []models.Transaction{{ID: "t-1", Type: models.TransactionTypeEarning, Amount: decimal.RequireFromString("0.3"), Status: models.TransactionStatusCompleted}}, true, f.err
}

func (f *fakeEngine) EstimateWithdrawal(_ context.Context, amount decimal.Decimal) (*ledger.Estimate, error) {
	if f.err != nil {
		return nil, f.err
	}
	fee := decimal.NewFromInt(1)
	return &ledger.Estimate{Fee: fee, TotalAmount: amount.Add(fee), YouWillReceive: amount, EstimatedTime: "10-30 minutes"}, nil
}

func (f *fakeEngine) RequestWithdrawal(_ context.Context, address string, amount decimal.Decimal) (*models.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.withdrawn = amount
	return &models.Transaction{ID: "w-1", Type: models.TransactionTypeWithdrawal, Amount: amount, Status: models.TransactionStatusPending, Address: address}, nil
}

func (f *fakeEngine) ApplyReferral(_ context.Context, code string) (models.Referrals, error) {
	f.referred = code
	return models.Referrals{Code: "ABCDEF12", ReferredBy: code}, f.err
}

func (f *fakeEngine) ReferralLink(_ context.Context, base string) (string, error) {
	return base + "?ref=ABCDEF12", nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, s *Server, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

const dogeAddress = "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L"

func TestSnapshot(t *testing.T) {
	f := &fakeEngine{snapshot: session.Snapshot{
		User:   models.User{ID: "u-1", Balance: decimal.RequireFromString("12.5")},
		Active: true,
	}}
	s := New(":0", f, events.NewHub())

	code, env := do(t, s, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "u-1", snap.User.ID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(snap.User.Balance))
	assert.True(t, snap.Active)
}

func TestConnectWallet(t *testing.T) {
	f := &fakeEngine{}
	s := New(":0", f, events.NewHub())

	code, env := do(t, s, http.MethodPost, "/api/wallet", `{"address":"`+dogeAddress+`","provider":"manual"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, dogeAddress, f.connected)

	code, env = do(t, s, http.MethodPost, "/api/wallet", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, _ = do(t, s, http.MethodDelete, "/api/wallet", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.disconnects)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &wallet.ValidationError{Field: "amount", Message: "minimum withdrawal is 10 DOGE"}, http.StatusBadRequest},
		{"precondition", &session.PreconditionError{Op: "start session", Err: session.ErrWalletNotConnected}, http.StatusConflict},
		{"ledger rejected", &ledger.RemoteError{Op: "request withdrawal", Status: 400, Message: "Insufficient balance"}, http.StatusBadGateway},
		{"ledger unreachable", &ledger.NetworkError{Op: "request withdrawal", Err: errors.New("refused")}, http.StatusBadGateway},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", &fakeEngine{err: tt.err}, events.NewHub())
			code, env := do(t, s, http.MethodPost, "/api/withdrawals", `{"address":"`+dogeAddress+`","amount":"20"}`)
			assert.Equal(t, tt.status, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestSessionControl(t *testing.T) {
	f := &fakeEngine{}
	s := New(":0", f, events.NewHub())

	code, env := do(t, s, http.MethodPost, "/api/session/start", "")
	require.Equal(t, http.StatusOK, code)
	var sess models.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.True(t, sess.IsActive)

	code, _ = do(t, s, http.MethodPost, "/api/session/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, f.stopCalls)

	code, _ = do(t, s, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestTransactions(t *testing.T) {
	f := &fakeEngine{}
	s := New(":0", f, events.NewHub())

	code, env := do(t, s, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, defaultTransactionLimit, f.limit)

	var body struct {
		Transactions []models.Transaction `json:"transactions"`
		Remote       bool                 `json:"remote"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Transactions, 1)
	assert.True(t, body.Remote)

	do(t, s, http.MethodGet, "/api/transactions?limit=5", "")
	assert.Equal(t, 5, f.limit)

	code, _ = do(t, s, http.MethodGet, "/api/transactions?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWithdrawalFlow(t *testing.T) {
	f := &fakeEngine{}
	s := New(":0", f, events.NewHub())

	code, env := do(t, s, http.MethodPost, "/api/withdrawals/estimate", `{"amount":"20"}`)
	require.Equal(t, http.StatusOK, code)
	var est ledger.Estimate
	require.NoError(t, json.Unmarshal(env.Data, &est))
	assert.True(t, decimal.NewFromInt(21).Equal(est.TotalAmount))

	code, env = do(t, s, http.MethodPost, "/api/withdrawals", `{"address":"`+dogeAddress+`","amount":20}`)
	require.Equal(t, http.StatusOK, code)
	var tx models.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &tx))
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.True(t, decimal.NewFromInt(20).Equal(f.withdrawn))
}

func TestReferral(t *testing.T) {
	f := &fakeEngine{}
	s := New(":0", f, events.NewHub())

	code, _ := do(t, s, http.MethodPost, "/api/referral", `{"code":"friend01"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "friend01", f.referred)

	code, env := do(t, s, http.MethodGet, "/api/referral/link?base=https://example.org/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "https://example.org/?ref=ABCDEF12")
}

func TestWebsocketFeed(t *testing.T) {
	hub := events.NewHub()
	f := &fakeEngine{snapshot: session.Snapshot{User: models.User{ID: "u-1"}}}
	s := New(":0", f, hub)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first struct {
		Type string           `json:"type"`
		Data session.Snapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	assert.Equal(t, "u-1", first.Data.User.ID)

	hub.Publish(events.TypePrice, decimal.RequireFromString("0.09"))

	var ev struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.TypePrice, ev.Type)
	assert.Equal(t, "0.09", ev.Data)
}

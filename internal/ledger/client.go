// internal/ledger/client.go
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client talks to the remote ledger. Reads are retried with backoff; writes
// are sent once because the ledger offers no idempotency keys.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func NewClient(baseURL string, timeout time.Duration, attempts uint, opts ...Option) *Client {
	if attempts == 0 {
		attempts = 1
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &LoggingTransport{Transport: http.DefaultTransport},
		},
		attempts:   attempts,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) send(ctx context.Context, op, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("ledger %s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("ledger %s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &NetworkError{Op: op, Err: err}
	}
	return resp.StatusCode, data, nil
}

// call sends one request and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, op, method, path string, body, out interface{}) error {
	status, data, err := c.send(ctx, op, method, path, body)
	if err != nil {
		return err
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if status < 200 || status >= 300 {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &RemoteError{Op: op, Status: status, Message: msg}
	}
	if decodeErr != nil {
		return &RemoteError{Op: op, Status: status, Message: fmt.Sprintf("malformed response: %v", decodeErr)}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request was not successful"
		}
		return &RemoteError{Op: op, Status: status, Message: msg}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &RemoteError{Op: op, Status: status, Message: fmt.Sprintf("malformed data: %v", err)}
	}
	return nil
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			logging.Warn("Ledger retry attempt", zap.String("op", op), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func (c *Client) get(ctx context.Context, op, path string, out interface{}) error {
	return c.retry(ctx, op, func() error {
		return c.call(ctx, op, http.MethodGet, path, nil, out)
	})
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	err := c.retry(ctx, "health", func() error {
		status, data, err := c.send(ctx, "health", http.MethodGet, "/health", nil)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return &RemoteError{Op: "health", Status: status, Message: http.StatusText(status)}
		}
		if err := json.Unmarshal(data, &h); err != nil {
			return &RemoteError{Op: "health", Status: status, Message: fmt.Sprintf("malformed response: %v", err)}
		}
		if !h.Success {
			return &RemoteError{Op: "health", Status: status, Message: "unhealthy"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	var b Balance
	if err := c.get(ctx, "balance", "/api/users/"+url.PathEscape(userID)+"/balance", &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) SubmitEarning(ctx context.Context, userID string, amount decimal.Decimal, source string) (*EarningReceipt, error) {
	var r EarningReceipt
	req := EarningRequest{UserID: userID, Amount: amount, Source: source}
	if err := c.call(ctx, "submit earning", http.MethodPost, "/api/earnings", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	var list TransactionList
	path := "/api/users/" + url.PathEscape(userID) + "/transactions?limit=" + strconv.Itoa(limit)
	if err := c.get(ctx, "transactions", path, &list); err != nil {
		return nil, err
	}
	return list.Transactions, nil
}

func (c *Client) EstimateWithdrawal(ctx context.Context, amount decimal.Decimal) (*Estimate, error) {
	var e Estimate
	// Estimation has no side effects, so it is retried like a read.
	err := c.retry(ctx, "estimate withdrawal", func() error {
		return c.call(ctx, "estimate withdrawal", http.MethodPost, "/api/withdrawals/estimate", EstimateRequest{Amount: amount}, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) RequestWithdrawal(ctx context.Context, userID, address string, amount decimal.Decimal) (*WithdrawalReceipt, error) {
	var r WithdrawalReceipt
	req := WithdrawalRequest{UserID: userID, Address: address, Amount: amount}
	if err := c.call(ctx, "request withdrawal", http.MethodPost, "/api/withdrawals", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetWithdrawalStatus(ctx context.Context, transactionID string) (*WithdrawalStatus, error) {
	var s WithdrawalStatus
	if err := c.get(ctx, "withdrawal status", "/api/withdrawals/"+url.PathEscape(transactionID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	var p Price
	if err := c.get(ctx, "price", "/api/price", &p); err != nil {
		return decimal.Zero, err
	}
	return p.Price, nil
}

// internal/store/state.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"go.uber.org/zap"
)

const (
	KeyUser         = "user"
	KeySession      = "session"
	KeyTransactions = "transactions"
	KeyReferrals    = "referrals"
	KeyWallet       = "wallet"
	KeyProgress     = "progress"
)

// MaxTransactions bounds the local history; the oldest records are dropped first.
const MaxTransactions = 1000

// State is the typed view of the local store. Every mutation goes through
// KV.Update so a read-modify-write of one record is atomic.
type State struct {
	kv    KV
	clock clockwork.Clock
}

func NewState(kv KV, clock clockwork.Clock) *State {
	return &State{kv: kv, clock: clock}
}

func (s *State) Close() error {
	return s.kv.Close()
}

// decode falls back to the default value when the record is absent or malformed.
func decode[T any](key string, raw []byte, def func() T) T {
	if raw == nil {
		return def()
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logging.Warn("Malformed local state, using defaults", zap.String("key", key), zap.Error(err))
		return def()
	}
	return v
}

func load[T any](ctx context.Context, kv KV, key string, def func() T) (T, bool, error) {
	raw, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def(), false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return decode(key, raw, def), true, nil
}

// errUnchanged aborts an update without writing.
var errUnchanged = errors.New("store: unchanged")

func update[T any](ctx context.Context, kv KV, key string, def func() T, fn func(*T) error) (T, error) {
	var result T
	err := kv.Update(ctx, key, func(current []byte) ([]byte, error) {
		v := decode(key, current, def)
		if err := fn(&v); err != nil {
			return nil, err
		}
		next, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		result = v
		return next, nil
	})
	return result, err
}

func noop[T any](*T) error { return nil }

func (s *State) newUser() models.User {
	return models.NewUser(uuid.NewString(), s.clock.Now())
}

// User returns the cached user, creating and persisting a fresh one on first use.
func (s *State) User(ctx context.Context) (models.User, error) {
	u, found, err := load(ctx, s.kv, KeyUser, s.newUser)
	if err != nil || found {
		return u, err
	}
	return update(ctx, s.kv, KeyUser, s.newUser, noop[models.User])
}

func (s *State) UpdateUser(ctx context.Context, fn func(*models.User) error) (models.User, error) {
	return update(ctx, s.kv, KeyUser, s.newUser, fn)
}

func defaultSession() models.Session { return models.Session{} }

func (s *State) Session(ctx context.Context) (models.Session, error) {
	sess, _, err := load(ctx, s.kv, KeySession, defaultSession)
	return sess, err
}

func (s *State) UpdateSession(ctx context.Context, fn func(*models.Session) error) (models.Session, error) {
	return update(ctx, s.kv, KeySession, defaultSession, fn)
}

func noWallet() *models.WalletRef { return nil }

// Wallet returns nil when no wallet is connected.
func (s *State) Wallet(ctx context.Context) (*models.WalletRef, error) {
	w, _, err := load(ctx, s.kv, KeyWallet, noWallet)
	return w, err
}

// SetWallet persists the wallet reference; nil disconnects.
func (s *State) SetWallet(ctx context.Context, w *models.WalletRef) error {
	_, err := update(ctx, s.kv, KeyWallet, noWallet, func(cur **models.WalletRef) error {
		*cur = w
		return nil
	})
	return err
}

func noTransactions() []models.Transaction { return nil }

// Transactions returns the local history, oldest first.
func (s *State) Transactions(ctx context.Context) ([]models.Transaction, error) {
	txs, _, err := load(ctx, s.kv, KeyTransactions, noTransactions)
	return txs, err
}

func (s *State) AppendTransaction(ctx context.Context, tx models.Transaction) error {
	_, err := update(ctx, s.kv, KeyTransactions, noTransactions, func(txs *[]models.Transaction) error {
		*txs = append(*txs, tx)
		if extra := len(*txs) - MaxTransactions; extra > 0 {
			*txs = append([]models.Transaction(nil), (*txs)[extra:]...)
		}
		return nil
	})
	return err
}

// UpdateTransaction applies fn to the transaction with the given id. fn
// reports whether it changed anything and the list is only rewritten when it
// did. found is false when no such id exists.
func (s *State) UpdateTransaction(ctx context.Context, id string, fn func(*models.Transaction) bool) (found bool, err error) {
	_, err = update(ctx, s.kv, KeyTransactions, noTransactions, func(txs *[]models.Transaction) error {
		for i := range *txs {
			if (*txs)[i].ID == id {
				found = true
				if fn(&(*txs)[i]) {
					return nil
				}
				return errUnchanged
			}
		}
		return errUnchanged
	})
	if errors.Is(err, errUnchanged) {
		err = nil
	}
	return found, err
}

func defaultReferrals() models.Referrals {
	return models.Referrals{Code: NewReferralCode()}
}

// NewReferralCode returns 8 upper-case hex characters.
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Referrals returns the referral record, generating the user's code on first use.
func (s *State) Referrals(ctx context.Context) (models.Referrals, error) {
	r, found, err := load(ctx, s.kv, KeyReferrals, defaultReferrals)
	if err != nil || (found && r.Code != "") {
		return r, err
	}
	return s.UpdateReferrals(ctx, noop[models.Referrals])
}

func (s *State) UpdateReferrals(ctx context.Context, fn func(*models.Referrals) error) (models.Referrals, error) {
	return update(ctx, s.kv, KeyReferrals, defaultReferrals, func(r *models.Referrals) error {
		if r.Code == "" {
			r.Code = NewReferralCode()
		}
		return fn(r)
	})
}

func defaultProgress() models.Progress {
	return models.Progress{Milestones: models.DefaultMilestones()}
}

func (s *State) Progress(ctx context.Context) (models.Progress, error) {
	p, _, err := load(ctx, s.kv, KeyProgress, defaultProgress)
	return p, err
}

func (s *State) UpdateProgress(ctx context.Context, fn func(*models.Progress) error) (models.Progress, error) {
	return update(ctx, s.kv, KeyProgress, defaultProgress, fn)
}

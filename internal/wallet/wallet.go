// internal/wallet/wallet.go
package wallet

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

const (
	ChainDoge = "doge"
	ChainTON  = "ton"
)

// ValidationError reports malformed or out-of-range user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// P2PKH mainnet addresses: version byte 0x1e gives a leading D, base58 body.
var dogeAddress = regexp.MustCompile(`^D[5-9A-HJ-NP-U][1-9A-HJ-NP-Za-km-z]{32}$`)

var validators = map[string]func(string) error{
	ChainDoge: validateDoge,
	ChainTON:  validateTON,
}

func validateDoge(addr string) error {
	if !dogeAddress.MatchString(addr) {
		return invalid("address", "not a Dogecoin address")
	}
	return nil
}

func validateTON(addr string) error {
	if _, err := address.ParseAddr(addr); err != nil {
		return invalid("address", "not a TON address: %v", err)
	}
	return nil
}

// SupportedChain reports whether addresses of the chain can be validated.
func SupportedChain(chain string) bool {
	_, ok := validators[chain]
	return ok
}

func ValidateAddress(chain, addr string) error {
	validate, ok := validators[chain]
	if !ok {
		return invalid("chain", "unsupported chain %q", chain)
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return invalid("address", "address is required")
	}
	return validate(addr)
}

// ValidateAmount checks a withdrawal amount against the minimum and the
// locally known balance.
func ValidateAmount(amount, minimum, balance decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "amount must be positive")
	}
	if amount.LessThan(minimum) {
		return invalid("amount", "minimum withdrawal is %s DOGE", minimum)
	}
	if amount.GreaterThan(balance) {
		return invalid("amount", "amount %s exceeds balance %s", amount, balance)
	}
	return nil
}

// ParseAmount parses user input such as "15" or "12.5".
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, invalid("amount", "invalid amount format")
	}
	return amount, nil
}

// UserID derives a stable ledger user id from the wallet, so reconnecting the
// same wallet resumes the same remote account.
func UserID(chain, addr string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chain+":"+addr)).String()
}

func Connect(chain, provider, addr string, now time.Time) (*models.WalletRef, error) {
	addr = strings.TrimSpace(addr)
	if err := ValidateAddress(chain, addr); err != nil {
		return nil, err
	}
	if provider == "" {
		provider = "manual"
	}

	ref := &models.WalletRef{
		UserID:      UserID(chain, addr),
		Address:     addr,
		Chain:       chain,
		Provider:    provider,
		ConnectedAt: now,
	}
	logging.With(zap.String("chain", chain), zap.String("provider", provider)).
		Info("Wallet connected", zap.String("userId", ref.UserID))
	return ref, nil
}

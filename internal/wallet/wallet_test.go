package wallet

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
)

const validDoge = "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L"

func TestValidateAddress(t *testing.T) {
	tonAddr := address.NewAddress(0, 0, make([]byte, 32)).String()

	tests := []struct {
		name    string
		chain   string
		address string
		wantErr bool
	}{
		{"valid doge", ChainDoge, validDoge, false},
		{"doge with spaces", ChainDoge, "  " + validDoge + " ", false},
		{"invalid doge", ChainDoge, "D_invalid_address", true},
		{"bitcoin address", ChainDoge, "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", true},
		{"empty", ChainDoge, "", true},
		{"valid ton", ChainTON, tonAddr, false},
		{"invalid ton", ChainTON, "EQ-not-an-address", true},
		{"unknown chain", "eth", validDoge, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.chain, tt.address)
			if tt.wantErr {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	min := decimal.NewFromInt(10)
	balance := decimal.NewFromInt(20)

	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"at minimum", "10", false},
		{"whole balance", "20", false},
		{"below minimum", "9.99", true},
		{"above balance", "20.01", true},
		{"zero", "0", true},
		{"negative", "-5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount), min, balance)
			if tt.wantErr {
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 12.5 ")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("12.5")))

	_, err = ParseAmount("ten")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestConnectDerivesStableUserID(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	a, err := Connect(ChainDoge, "", validDoge, now)
	require.NoError(t, err)
	b, err := Connect(ChainDoge, "dogecoin-core", validDoge, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, a.UserID, b.UserID)
	assert.Equal(t, "manual", a.Provider)
	assert.Equal(t, UserID(ChainDoge, validDoge), a.UserID)

	_, err = Connect(ChainDoge, "", "nope", now)
	assert.Error(t, err)
}

package validate

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manga/offchain/internal/errs"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"checksummed", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", false},
		{"lowercase", "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", false},
		{"uppercase body", "0xF39FD6E51AAD88F6F4CE6AB8827279CFFFB92266", false},
		{"surrounding spaces", "  0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266 ", false},
		{"bad checksum", "0xF39fd6e51aad88F6F4ce6aB8827279cffFb92266", true},
		{"too short", "0xf39fd6e51aad88f6f4ce6ab8827279cfffb9226", true},
		{"too long", "0xf39fd6e51aad88f6f4ce6ab8827279cfffb922660", true},
		{"no prefix", "f39fd6e51aad88f6f4ce6ab8827279cfffb92266", true},
		{"non hex", "0xg39fd6e51aad88f6f4ce6ab8827279cfffb92266", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Address(tt.input)
			if tt.wantErr {
				var validation *errs.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, "address", validation.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), addr)
		})
	}
}

func TestTokenID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1", "1", false},
		{"1753619893000001", "1753619893000001", false},
		{"0", "", true},
		{"-5", "", true},
		{"abc", "", true},
		{"1.5", "", true},
		{"0x10", "", true},
		{"", "", true},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639936", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, err := TokenID(tt.input)
			if tt.wantErr {
				assert.Equal(t, errs.ExitValidation, errs.ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}
}

func TestAmount(t *testing.T) {
	n, err := Amount("3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n.Int64())

	_, err = Amount("0")
	assert.Error(t, err)
}

func TestTxHash(t *testing.T) {
	const hash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"

	h, err := TxHash(hash)
	require.NoError(t, err)
	assert.Equal(t, hash, h.Hex())

	for _, bad := range []string{"", hash[2:], hash[:65], hash + "00", "0x" + strings.Repeat("zz", 32)} {
		_, err := TxHash(bad)
		assert.Equal(t, errs.ExitValidation, errs.ExitCode(err), bad)
	}
}

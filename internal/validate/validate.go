// Package validate checks command arguments before any chain interaction.
package validate

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"manga/offchain/internal/errs"
)

// Address parses a 0x-prefixed 20-byte hex address. All-lowercase and
// all-uppercase input is accepted as is; mixed case must be a valid EIP-55
// checksum.
func Address(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, errs.Invalid("address", s, "missing 0x prefix")
	}
	if len(s) != 2+2*common.AddressLength {
		return common.Address{}, errs.Invalid("address", s, "must be 40 hex characters after 0x")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, errs.Invalid("address", s, "contains non-hex characters")
	}

	addr := common.HexToAddress(s)
	body := s[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != "0x"+body {
		return common.Address{}, errs.Invalid("address", s, "bad EIP-55 checksum")
	}
	return addr, nil
}

// TokenID parses a positive base-10 token identifier
func TokenID(s string) (*big.Int, error) {
	return positive("token id", s)
}

// Amount parses a positive base-10 quantity
func Amount(s string) (*big.Int, error) {
	return positive("amount", s)
}

func positive(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errs.Invalid(field, s, "must not be empty")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errs.Invalid(field, s, "not a base-10 integer")
	}
	if n.Sign() <= 0 {
		return nil, errs.Invalid(field, s, "must be greater than zero")
	}
	// uint256 bound
	if n.BitLen() > 256 {
		return nil, errs.Invalid(field, s, "exceeds uint256")
	}
	return n, nil
}

// TxHash parses a 0x-prefixed 32-byte transaction hash
func TxHash(s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Hash{}, errs.Invalid("tx hash", s, "missing 0x prefix")
	}
	if len(s) != 2+2*common.HashLength {
		return common.Hash{}, errs.Invalid("tx hash", s, "must be 64 hex characters after 0x")
	}
	b, err := hexutil.Decode("0x" + s[2:])
	if err != nil {
		return common.Hash{}, errs.Invalid("tx hash", s, "contains non-hex characters")
	}
	return common.BytesToHash(b), nil
}

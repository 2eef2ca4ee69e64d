package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SentinelAddress stands in for a contract address that does not exist yet.
// The hub is constructed with it and rebound once the asset is deployed.
var SentinelAddress = common.Address{}

// PredictCreateAddress computes the address a CREATE deployment will land on
//
// CREATE formula: address = keccak256(rlp([deployer, nonce]))[12:]
//
// Parameters:
//   - deployer: account sending the contract-creation transaction
//   - nonce: nonce the creation transaction is signed with
func PredictCreateAddress(deployer common.Address, nonce uint64) (common.Address, error) {
	if deployer == (common.Address{}) {
		return common.Address{}, fmt.Errorf("deployer address cannot be empty")
	}
	return crypto.CreateAddress(deployer, nonce), nil
}

// VerifyCreateAddress checks that a receipt's contract address matches the
// CREATE prediction for deployer and nonce
func VerifyCreateAddress(actual, deployer common.Address, nonce uint64) (bool, error) {
	expected, err := PredictCreateAddress(deployer, nonce)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// IsSentinel reports whether addr is the unbound placeholder
func IsSentinel(addr common.Address) bool {
	return addr == SentinelAddress
}

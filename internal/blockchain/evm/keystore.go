package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"manga/offchain/internal/errs"
)

// KeyStore holds a credential and signs outgoing transactions
type KeyStore interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// PrivateKeyStore signs with an in-memory secp256k1 key
type PrivateKeyStore struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewPrivateKeyStore parses a hex private key, with or without 0x prefix
func NewPrivateKeyStore(privateKeyHex string) (*PrivateKeyStore, error) {
	if privateKeyHex == "" {
		return nil, errs.Invalid("private key", "", "missing")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		// never echo the key
		return nil, errs.Invalid("private key", "", err.Error())
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}

	return &PrivateKeyStore{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
	}, nil
}

// Address returns the account address derived from the key
func (k *PrivateKeyStore) Address() common.Address {
	return k.address
}

// SignTx signs a transaction for the given chain
func (k *PrivateKeyStore) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), k.privateKey)
}

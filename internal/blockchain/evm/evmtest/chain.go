// Package evmtest provides an in-memory evm.Chain for tests.
package evmtest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

// Contract is a simulated contract living at one address
type Contract interface {
	// Call executes a state-changing call. A returned error reverts it.
	Call(from common.Address, data []byte, block uint64) ([]*types.Log, error)
	// Query executes a read-only call
	Query(data []byte) ([]byte, error)
}

// Deployer builds a simulated contract from creation code
type Deployer func(initCode []byte, address common.Address) (Contract, error)

// Submission is one transaction accepted by the fake chain
type Submission struct {
	Seq      int
	Kind     string
	To       *common.Address
	Data     []byte
	Opts     evm.TxOptions
	Result   *evm.TransactionResult
	executed bool
}

// Chain implements evm.Chain in memory. Transactions execute when their
// confirmation is awaited.
type Chain struct {
	mu sync.Mutex

	sender    common.Address
	network   models.NetworkIdentity
	nonce     uint64
	block     uint64
	contracts map[common.Address]Contract
	balances  map[common.Address]*big.Int
	subs      []*Submission
	// rejected submissions still consume a sequence number
	failedSubmits int

	// Deploy builds contracts for creation transactions
	Deploy Deployer
	// SubmitErrors fails the submission with the given sequence number
	SubmitErrors map[int]error
	// ConfirmErrors replaces the outcome of the given submission. A
	// TimeoutError leaves it pending, anything else marks it failed.
	ConfirmErrors map[int]error
	// QueryErr, when set, fails every read-only call
	QueryErr error
}

// NewChain creates an empty chain whose signer is sender
func NewChain(sender common.Address) *Chain {
	return &Chain{
		sender:        sender,
		network:       models.NetworkIdentity{Name: "anvil", ChainID: 31337},
		block:         1,
		contracts:     make(map[common.Address]Contract),
		balances:      make(map[common.Address]*big.Int),
		SubmitErrors:  make(map[int]error),
		ConfirmErrors: make(map[int]error),
	}
}

// SetBalance sets the native balance of an account
func (c *Chain) SetBalance(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = wei
}

// Install places a simulated contract at addr
func (c *Chain) Install(addr common.Address, contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = contract
}

// ContractAt returns the simulated contract at addr
func (c *Chain) ContractAt(addr common.Address) Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contracts[addr]
}

// Submissions returns every accepted submission in order
func (c *Chain) Submissions() []*Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Submission, len(c.subs))
	copy(out, c.subs)
	return out
}

// NextSeq is the sequence number the next submission will get
func (c *Chain) NextSeq() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs) + c.failedSubmits
}

func (c *Chain) From() common.Address { return c.sender }

func (c *Chain) NetworkIdentity(ctx context.Context) (models.NetworkIdentity, error) {
	return c.network, nil
}

func (c *Chain) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *Chain) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.contracts[addr]; ok {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

func (c *Chain) SubmitDeploy(ctx context.Context, initCode []byte, opts evm.TxOptions) (*evm.TransactionResult, error) {
	return c.submit(nil, initCode, opts, "deploy")
}

func (c *Chain) SubmitCall(ctx context.Context, to common.Address, data []byte, opts evm.TxOptions) (*evm.TransactionResult, error) {
	return c.submit(&to, data, opts, "call")
}

func (c *Chain) submit(to *common.Address, data []byte, opts evm.TxOptions, kind string) (*evm.TransactionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := len(c.subs) + c.failedSubmits
	if err, ok := c.SubmitErrors[seq]; ok {
		c.failedSubmits++
		return nil, err
	}

	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s/%d/%s", c.sender.Hex(), c.nonce, kind)))
	result := evm.NewPendingResult(hash, kind, c.nonce)
	c.nonce++

	c.subs = append(c.subs, &Submission{
		Seq:    seq,
		Kind:   kind,
		To:     to,
		Data:   append([]byte(nil), data...),
		Opts:   opts,
		Result: result,
	})
	return result, nil
}

func (c *Chain) WaitForConfirmation(ctx context.Context, tx *evm.TransactionResult, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sub *Submission
	for _, s := range c.subs {
		if s.Result == tx {
			sub = s
			break
		}
	}
	if sub == nil {
		return fmt.Errorf("unknown transaction %s", tx.Hash.Hex())
	}
	if sub.executed {
		return fmt.Errorf("transaction %s already %s", tx.Hash.Hex(), tx.Status)
	}

	if err, ok := c.ConfirmErrors[sub.Seq]; ok {
		if _, isTimeout := err.(*errs.TimeoutError); isTimeout {
			return err
		}
		sub.executed = true
		c.block++
		tx.BlockNumber = c.block
		tx.Status = models.TxStatusFailed
		return err
	}

	sub.executed = true
	c.block++
	tx.BlockNumber = c.block
	tx.GasUsed = 21000

	if sub.To == nil {
		addr := crypto.CreateAddress(c.sender, tx.Nonce())
		if c.Deploy == nil {
			tx.Status = models.TxStatusFailed
			return &errs.RevertError{TxHash: tx.Hash.Hex(), Reason: "no deployer configured"}
		}
		contract, err := c.Deploy(sub.Data, addr)
		if err != nil {
			tx.Status = models.TxStatusFailed
			return &errs.RevertError{TxHash: tx.Hash.Hex(), Reason: err.Error()}
		}
		// a nil contract models creation code that leaves no runtime code
		if contract != nil {
			c.contracts[addr] = contract
		}
		tx.ContractAddress = addr
		tx.Status = models.TxStatusConfirmed
		return nil
	}

	contract, ok := c.contracts[*sub.To]
	if !ok {
		// plain value transfer to an account without code
		tx.Status = models.TxStatusConfirmed
		return nil
	}
	logs, err := contract.Call(c.sender, sub.Data, c.block)
	if err != nil {
		tx.Status = models.TxStatusFailed
		return &errs.RevertError{TxHash: tx.Hash.Hex(), Reason: err.Error()}
	}
	for i, l := range logs {
		if l.Address == (common.Address{}) {
			l.Address = *sub.To
		}
		l.TxHash = tx.Hash
		l.BlockNumber = c.block
		l.Index = uint(i)
	}
	tx.Logs = logs
	tx.Status = models.TxStatusConfirmed
	return nil
}

func (c *Chain) Query(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	contract, ok := c.contracts[to]
	queryErr := c.QueryErr
	c.mu.Unlock()

	if queryErr != nil {
		return nil, queryErr
	}
	if !ok {
		// eth_call against an address without code returns empty data
		return nil, nil
	}
	return contract.Query(data)
}

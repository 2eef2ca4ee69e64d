package evmtest

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"manga/offchain/internal/blockchain/evm"
)

// Creation bytecode markers for the simulated contracts
var (
	HubBytecode   = []byte{0x60, 0x80, 0x60, 0x40, 0x01}
	AssetBytecode = []byte{0x60, 0x80, 0x60, 0x40, 0x02}
)

// FirstTokenID is the id given to the first chapter created on an Asset
const FirstTokenID = 1000001

// Descriptors returns deployable hub and asset descriptors using the
// simulated bytecode
func Descriptors() (hub, asset *evm.Descriptor) {
	var err error
	hub, err = evm.NewDescriptor(evm.MonthlyDataUploaderName, evm.MonthlyDataUploaderABI, HubBytecode)
	if err != nil {
		panic(err)
	}
	asset, err = evm.NewDescriptor(evm.MangaNFTName, evm.MangaNFTABI, AssetBytecode)
	if err != nil {
		panic(err)
	}
	return hub, asset
}

// MangaDeployer recognizes the simulated hub and asset creation code
func MangaDeployer() Deployer {
	hubDesc, assetDesc := Descriptors()
	return func(initCode []byte, address common.Address) (Contract, error) {
		switch {
		case bytes.HasPrefix(initCode, HubBytecode):
			args, err := hubDesc.ABI.Constructor.Inputs.Unpack(initCode[len(HubBytecode):])
			if err != nil {
				return nil, err
			}
			return NewHub(args[0].(common.Address), args[1].(common.Address)), nil
		case bytes.HasPrefix(initCode, AssetBytecode):
			args, err := assetDesc.ABI.Constructor.Inputs.Unpack(initCode[len(AssetBytecode):])
			if err != nil {
				return nil, err
			}
			return NewAsset(args[0].(string), args[1].(common.Address), args[2].(common.Address), args[3].(common.Address)), nil
		default:
			return nil, errors.New("unknown creation code")
		}
	}
}

type pair struct {
	a, b int64
}

type creatorStats struct {
	published, acquired, held int64
}

// Hub simulates MonthlyDataUploader
type Hub struct {
	mu  sync.Mutex
	abi abi.ABI

	Platform common.Address
	MangaNFT common.Address

	creators       map[common.Address]creatorStats
	investors      map[common.Address]pair // acquired, held
	creatorRoster  []common.Address
	investorRoster []common.Address
	monthly        map[common.Address]map[uint64]int64
	viewErrors     map[string]error

	// IgnoreUpdate makes updateMangaNFTContract succeed without storing
	IgnoreUpdate bool
	// Reference overrides what mangaNFTContract() reports when non-zero
	Reference common.Address
}

// NewHub creates a simulated hub
func NewHub(platform, mangaNFT common.Address) *Hub {
	hubDesc, _ := Descriptors()
	return &Hub{
		abi:        hubDesc.ABI,
		Platform:   platform,
		MangaNFT:   mangaNFT,
		creators:   make(map[common.Address]creatorStats),
		investors:  make(map[common.Address]pair),
		monthly:    make(map[common.Address]map[uint64]int64),
		viewErrors: make(map[string]error),
	}
}

// SetCreator records creator statistics and roster membership
func (h *Hub) SetCreator(addr common.Address, published, acquired, held int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.creators[addr]; !ok {
		h.creatorRoster = append(h.creatorRoster, addr)
	}
	h.creators[addr] = creatorStats{published, acquired, held}
}

// SetInvestor records investor statistics and roster membership
func (h *Hub) SetInvestor(addr common.Address, acquired, held int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.investors[addr]; !ok {
		h.investorRoster = append(h.investorRoster, addr)
	}
	h.investors[addr] = pair{acquired, held}
}

// SetMonthly records the investor's acquired count for period
func (h *Hub) SetMonthly(addr common.Address, period uint64, acquired int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.monthly[addr] == nil {
		h.monthly[addr] = make(map[uint64]int64)
	}
	h.monthly[addr][period] = acquired
}

// FailView makes a view method return err
func (h *Hub) FailView(method string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewErrors[method] = err
}

func (h *Hub) Call(from common.Address, data []byte, block uint64) ([]*types.Log, error) {
	method, args, err := decodeCall(h.abi, data)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch method.Name {
	case "updateMangaNFTContract":
		next := args[0].(common.Address)
		if next == (common.Address{}) {
			return nil, errors.New("Invalid address")
		}
		old := h.MangaNFT
		if !h.IgnoreUpdate {
			h.MangaNFT = next
		}
		event := h.abi.Events["MangaNFTContractUpdated"]
		return []*types.Log{{
			Topics: []common.Hash{event.ID, common.BytesToHash(old.Bytes()), common.BytesToHash(next.Bytes())},
		}}, nil
	default:
		return nil, fmt.Errorf("method %s is not state-changing", method.Name)
	}
}

func (h *Hub) Query(data []byte) ([]byte, error) {
	method, args, err := decodeCall(h.abi, data)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.viewErrors[method.Name]; err != nil {
		return nil, err
	}

	switch method.Name {
	case "mangaNFTContract":
		if h.Reference != (common.Address{}) {
			return method.Outputs.Pack(h.Reference)
		}
		return method.Outputs.Pack(h.MangaNFT)
	case "platformAddress":
		return method.Outputs.Pack(h.Platform)
	case "getCreatorStats":
		c, ok := h.creators[args[0].(common.Address)]
		if !ok {
			return nil, reverted("Creator data not found")
		}
		return method.Outputs.Pack(big.NewInt(c.published), big.NewInt(c.acquired), big.NewInt(c.held))
	case "isCreator":
		_, ok := h.creators[args[0].(common.Address)]
		return method.Outputs.Pack(ok)
	case "getAllCreators":
		return method.Outputs.Pack(append([]common.Address{}, h.creatorRoster...))
	case "getInvestorStats":
		i, ok := h.investors[args[0].(common.Address)]
		if !ok {
			return nil, reverted("Investor data not found")
		}
		return method.Outputs.Pack(big.NewInt(i.a), big.NewInt(i.b))
	case "isInvestor":
		_, ok := h.investors[args[0].(common.Address)]
		return method.Outputs.Pack(ok)
	case "getAllInvestors":
		return method.Outputs.Pack(append([]common.Address{}, h.investorRoster...))
	case "getCurrentHeldNFTCountByInvestorExternal":
		i := h.investors[args[0].(common.Address)]
		return method.Outputs.Pack(big.NewInt(i.b))
	case "getInvestorMonthlyStats":
		acquired := h.monthly[args[0].(common.Address)][args[1].(*big.Int).Uint64()]
		return method.Outputs.Pack(big.NewInt(acquired))
	default:
		return nil, fmt.Errorf("unsupported view %s", method.Name)
	}
}

// Asset simulates MangaNFT
type Asset struct {
	mu  sync.Mutex
	abi abi.ABI

	URI          string
	Platform     common.Address
	PaymentToken common.Address
	Uploader     common.Address

	balances  map[common.Address]map[uint64]*big.Int
	creatorOf map[uint64]common.Address
	acquired  map[common.Address]int64
	nextToken uint64

	// MintTime is reported in ChapterMinted events
	MintTime int64
}

// NewAsset creates a simulated asset
func NewAsset(uri string, platform, paymentToken, uploader common.Address) *Asset {
	_, assetDesc := Descriptors()
	return &Asset{
		abi:          assetDesc.ABI,
		URI:          uri,
		Platform:     platform,
		PaymentToken: paymentToken,
		Uploader:     uploader,
		balances:     make(map[common.Address]map[uint64]*big.Int),
		creatorOf:    make(map[uint64]common.Address),
		acquired:     make(map[common.Address]int64),
		nextToken:    FirstTokenID,
		MintTime:     1700000000,
	}
}

// SetBalance sets an account's balance of tokenID
func (a *Asset) SetBalance(owner common.Address, tokenID uint64, amount int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.credit(owner, tokenID, big.NewInt(amount))
}

// Balance returns an account's balance of tokenID
func (a *Asset) Balance(owner common.Address, tokenID uint64) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance(owner, tokenID)
}

func (a *Asset) credit(owner common.Address, tokenID uint64, amount *big.Int) {
	if a.balances[owner] == nil {
		a.balances[owner] = make(map[uint64]*big.Int)
	}
	cur := a.balances[owner][tokenID]
	if cur == nil {
		cur = new(big.Int)
	}
	a.balances[owner][tokenID] = new(big.Int).Add(cur, amount)
}

func (a *Asset) balance(owner common.Address, tokenID uint64) *big.Int {
	if b := a.balances[owner][tokenID]; b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (a *Asset) Call(from common.Address, data []byte, block uint64) ([]*types.Log, error) {
	method, args, err := decodeCall(a.abi, data)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch method.Name {
	case "freeMint":
		to := args[0].(common.Address)
		tokenID := args[1].(*big.Int)
		amount := args[2].(*big.Int)
		if amount.Sign() <= 0 {
			return nil, errors.New("Invalid amount")
		}
		a.credit(to, tokenID.Uint64(), amount)
		return []*types.Log{
			a.transferLog(from, common.Address{}, to, tokenID, amount),
			a.mintedLog(tokenID, to, amount),
		}, nil

	case "createChapter":
		if from != a.Platform {
			return nil, errors.New("Only platform")
		}
		maxCopies := args[6].(*big.Int)
		if new(big.Int).Mod(maxCopies, big.NewInt(10)).Sign() != 0 {
			return nil, errors.New("maxCopies must be a multiple of 10")
		}
		creator := args[8].(common.Address)
		tokenID := new(big.Int).SetUint64(a.nextToken)
		a.creatorOf[a.nextToken] = creator
		a.nextToken++

		one := big.NewInt(1)
		a.credit(creator, tokenID.Uint64(), one)

		created := a.abi.Events["ChapterCreated"]
		payload, err := created.Inputs.NonIndexed().Pack(args[0], args[1], args[2])
		if err != nil {
			return nil, err
		}
		return []*types.Log{
			{
				Topics: []common.Hash{created.ID, common.BigToHash(tokenID), common.BytesToHash(creator.Bytes())},
				Data:   payload,
			},
			a.transferLog(from, common.Address{}, creator, tokenID, one),
			a.mintedLog(tokenID, creator, one),
		}, nil

	case "investorRegistration":
		investor := args[0].(common.Address)
		tokenID := args[1].(*big.Int)
		if a.balance(investor, tokenID.Uint64()).Sign() == 0 {
			return nil, errors.New("Investor does not hold token")
		}
		a.acquired[investor]++

		event := a.abi.Events["InvestorNFTAcquired"]
		payload, err := event.Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(a.acquired[investor]))
		if err != nil {
			return nil, err
		}
		return []*types.Log{{
			Topics: []common.Hash{event.ID, common.BytesToHash(investor.Bytes())},
			Data:   payload,
		}}, nil

	default:
		return nil, fmt.Errorf("method %s is not state-changing", method.Name)
	}
}

func (a *Asset) transferLog(operator, from, to common.Address, id, value *big.Int) *types.Log {
	event := a.abi.Events["TransferSingle"]
	payload, _ := event.Inputs.NonIndexed().Pack(id, value)
	return &types.Log{
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(operator.Bytes()),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: payload,
	}
}

func (a *Asset) mintedLog(tokenID *big.Int, to common.Address, amount *big.Int) *types.Log {
	event := a.abi.Events["ChapterMinted"]
	payload, _ := event.Inputs.NonIndexed().Pack(amount, big.NewInt(a.MintTime))
	return &types.Log{
		Topics: []common.Hash{event.ID, common.BigToHash(tokenID), common.BytesToHash(to.Bytes())},
		Data:   payload,
	}
}

func (a *Asset) Query(data []byte) ([]byte, error) {
	method, args, err := decodeCall(a.abi, data)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch method.Name {
	case "platformAddress":
		return method.Outputs.Pack(a.Platform)
	case "monthlyDataUploader":
		return method.Outputs.Pack(a.Uploader)
	case "balanceOf":
		return method.Outputs.Pack(a.balance(args[0].(common.Address), args[1].(*big.Int).Uint64()))
	default:
		return nil, fmt.Errorf("unsupported view %s", method.Name)
	}
}

func decodeCall(contractABI abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("calldata too short")
	}
	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

// reverted mimics the error text a node returns for a reverting eth_call
func reverted(reason string) error {
	return fmt.Errorf("execution reverted: %s", reason)
}

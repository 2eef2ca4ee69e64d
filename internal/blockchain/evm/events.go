package evm

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"manga/offchain/internal/models"
)

// Asset contract event names
const (
	EventChapterCreated      = "ChapterCreated"
	EventChapterMinted       = "ChapterMinted"
	EventInvestorNFTAcquired = "InvestorNFTAcquired"
	EventTransferSingle      = "TransferSingle"
)

// MatchOutcome says whether a log belongs to the decoder's contract
type MatchOutcome int

const (
	// Unmatched logs are skipped. They usually come from another contract
	// touched by the same transaction.
	Unmatched MatchOutcome = iota
	Matched
)

// LogMatch is the result of matching one log against the known events
type LogMatch struct {
	Outcome MatchOutcome
	Event   models.DomainEvent
	// Reason is set for unmatched logs
	Reason string
}

// EventDecoder turns receipt logs into DomainEvents using a contract's ABI
type EventDecoder struct {
	desc    *Descriptor
	address common.Address
}

// NewEventDecoder creates a decoder for desc. A non-zero address restricts
// matching to logs emitted by that address.
func NewEventDecoder(desc *Descriptor, address common.Address) *EventDecoder {
	return &EventDecoder{desc: desc, address: address}
}

// Match decodes a single log
func (d *EventDecoder) Match(log *types.Log) LogMatch {
	switch {
	case log == nil || log.Removed:
		return LogMatch{Outcome: Unmatched, Reason: "removed"}
	case len(log.Topics) == 0:
		return LogMatch{Outcome: Unmatched, Reason: "no topics"}
	case d.address != (common.Address{}) && log.Address != d.address:
		return LogMatch{Outcome: Unmatched, Reason: "foreign address"}
	}

	event, err := d.desc.ABI.EventByID(log.Topics[0])
	if err != nil {
		return LogMatch{Outcome: Unmatched, Reason: "unknown signature"}
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := event.Inputs.UnpackIntoMap(values, log.Data); err != nil {
		return LogMatch{Outcome: Unmatched, Reason: fmt.Sprintf("%s data: %v", event.Name, err)}
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return LogMatch{Outcome: Unmatched, Reason: fmt.Sprintf("%s topics: %v", event.Name, err)}
	}

	fields := make([]models.EventField, 0, len(event.Inputs))
	for _, input := range event.Inputs {
		fields = append(fields, models.EventField{
			Name:    input.Name,
			Value:   values[input.Name],
			Indexed: input.Indexed,
		})
	}

	return LogMatch{
		Outcome: Matched,
		Event: models.DomainEvent{
			Name:     event.Name,
			Fields:   fields,
			TxHash:   log.TxHash.Hex(),
			LogIndex: log.Index,
			Address:  log.Address.Hex(),
		},
	}
}

// DecodeLogs returns the known events among logs, in log index order
func (d *EventDecoder) DecodeLogs(logs []*types.Log) []models.DomainEvent {
	ordered := make([]*types.Log, 0, len(logs))
	for _, l := range logs {
		if l != nil {
			ordered = append(ordered, l)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	events := make([]models.DomainEvent, 0, len(ordered))
	for _, l := range ordered {
		if m := d.Match(l); m.Outcome == Matched {
			events = append(events, m.Event)
		}
	}
	return events
}

// Decode returns the known events emitted in a confirmed transaction
func (d *EventDecoder) Decode(tx *TransactionResult) []models.DomainEvent {
	if tx == nil {
		return nil
	}
	events := d.DecodeLogs(tx.Logs)
	for i := range events {
		if events[i].TxHash == (common.Hash{}).Hex() {
			events[i].TxHash = tx.Hash.Hex()
		}
	}
	return events
}

// ChapterCreated is emitted when a creator publishes a chapter
type ChapterCreated struct {
	TokenID *big.Int
	Creator common.Address
	TitleZh string
	TitleEn string
	TitleJp string
}

// ChapterMinted is emitted for every mint of a chapter token
type ChapterMinted struct {
	TokenID  *big.Int
	To       common.Address
	Amount   *big.Int
	MintTime *big.Int
}

// InvestorNFTAcquired is emitted when an investor registration counts
type InvestorNFTAcquired struct {
	Investor      common.Address
	AcquiredCount *big.Int
	TotalAcquired *big.Int
}

// TransferSingle is the ERC-1155 transfer event
type TransferSingle struct {
	Operator common.Address
	From     common.Address
	To       common.Address
	ID       *big.Int
	Value    *big.Int
}

// AsChapterCreated projects a decoded event onto ChapterCreated
func AsChapterCreated(e models.DomainEvent) (ChapterCreated, bool) {
	if e.Name != EventChapterCreated {
		return ChapterCreated{}, false
	}
	return ChapterCreated{
		TokenID: fieldBigInt(e, "tokenId"),
		Creator: fieldAddress(e, "creator"),
		TitleZh: fieldString(e, "mangaTitleZh"),
		TitleEn: fieldString(e, "mangaTitleEn"),
		TitleJp: fieldString(e, "mangaTitleJp"),
	}, true
}

// AsChapterMinted projects a decoded event onto ChapterMinted
func AsChapterMinted(e models.DomainEvent) (ChapterMinted, bool) {
	if e.Name != EventChapterMinted {
		return ChapterMinted{}, false
	}
	return ChapterMinted{
		TokenID:  fieldBigInt(e, "tokenId"),
		To:       fieldAddress(e, "to"),
		Amount:   fieldBigInt(e, "amountMinted"),
		MintTime: fieldBigInt(e, "mintTime"),
	}, true
}

// AsInvestorNFTAcquired projects a decoded event onto InvestorNFTAcquired
func AsInvestorNFTAcquired(e models.DomainEvent) (InvestorNFTAcquired, bool) {
	if e.Name != EventInvestorNFTAcquired {
		return InvestorNFTAcquired{}, false
	}
	return InvestorNFTAcquired{
		Investor:      fieldAddress(e, "investor"),
		AcquiredCount: fieldBigInt(e, "acquiredCount"),
		TotalAcquired: fieldBigInt(e, "totalAcquired"),
	}, true
}

// AsTransferSingle projects a decoded event onto TransferSingle
func AsTransferSingle(e models.DomainEvent) (TransferSingle, bool) {
	if e.Name != EventTransferSingle {
		return TransferSingle{}, false
	}
	return TransferSingle{
		Operator: fieldAddress(e, "operator"),
		From:     fieldAddress(e, "from"),
		To:       fieldAddress(e, "to"),
		ID:       fieldBigInt(e, "id"),
		Value:    fieldBigInt(e, "value"),
	}, true
}

func fieldBigInt(e models.DomainEvent, name string) *big.Int {
	v, _ := e.Field(name)
	if n, ok := v.(*big.Int); ok {
		return n
	}
	return nil
}

func fieldAddress(e models.DomainEvent, name string) common.Address {
	v, _ := e.Field(name)
	if a, ok := v.(common.Address); ok {
		return a
	}
	return common.Address{}
}

func fieldString(e models.DomainEvent, name string) string {
	v, _ := e.Field(name)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"manga/offchain/internal/blockchain/evm"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

// ActionService runs the state-changing MangaNFT operations: minting,
// publishing chapters and investor registration
type ActionService struct {
	asset   *evm.Contract
	decoder *evm.EventDecoder
	signer  common.Address
	opts    evm.TxOptions
	logger  *zap.Logger
}

// NewActionService creates a service sending transactions to asset as
// signer. Zero opts let the client estimate gas and price.
func NewActionService(asset *evm.Contract, signer common.Address, opts evm.TxOptions, logger *zap.Logger) *ActionService {
	return &ActionService{
		asset:   asset,
		decoder: evm.NewEventDecoder(asset.Descriptor(), asset.Address()),
		signer:  signer,
		opts:    opts,
		logger:  logger.Named("actions"),
	}
}

// Outcome is a confirmed transaction and the events it emitted
type Outcome struct {
	Tx     *evm.TransactionResult
	Events []models.DomainEvent
}

// Minted returns the ChapterMinted events in emission order
func (o *Outcome) Minted() []evm.ChapterMinted {
	var out []evm.ChapterMinted
	for _, e := range o.Events {
		if m, ok := evm.AsChapterMinted(e); ok {
			out = append(out, m)
		}
	}
	return out
}

// Chapter returns the ChapterCreated event, if any
func (o *Outcome) Chapter() (evm.ChapterCreated, bool) {
	for _, e := range o.Events {
		if c, ok := evm.AsChapterCreated(e); ok {
			return c, true
		}
	}
	return evm.ChapterCreated{}, false
}

// Acquisition returns the InvestorNFTAcquired event, if any
func (o *Outcome) Acquisition() (evm.InvestorNFTAcquired, bool) {
	for _, e := range o.Events {
		if a, ok := evm.AsInvestorNFTAcquired(e); ok {
			return a, true
		}
	}
	return evm.InvestorNFTAcquired{}, false
}

// Chapter is the content of a new chapter
type Chapter struct {
	TitleZh       string
	TitleEn       string
	TitleJp       string
	DescriptionZh string
	DescriptionEn string
	DescriptionJp string
	MaxCopies     *big.Int
	URI           string
	Creator       common.Address
}

// Validate checks the chapter before anything is sent
func (c Chapter) Validate() error {
	if c.MaxCopies == nil || c.MaxCopies.Sign() <= 0 {
		return errs.Invalid("maxCopies", bigString(c.MaxCopies), "must be positive")
	}
	if new(big.Int).Mod(c.MaxCopies, big.NewInt(10)).Sign() != 0 {
		return errs.Invalid("maxCopies", c.MaxCopies.String(), "must be a multiple of 10")
	}
	if strings.TrimSpace(c.URI) == "" {
		return errs.Invalid("uri", "", "required")
	}
	if c.Creator == (common.Address{}) {
		return errs.Invalid("creator", c.Creator.Hex(), "must not be the zero address")
	}
	return nil
}

// Mint mints amount copies of tokenID to the recipient
func (s *ActionService) Mint(ctx context.Context, to common.Address, tokenID, amount *big.Int) (*Outcome, error) {
	if err := positive("tokenId", tokenID); err != nil {
		return nil, err
	}
	if err := positive("amount", amount); err != nil {
		return nil, err
	}

	s.logger.Info("Minting",
		zap.String("to", to.Hex()),
		zap.String("token_id", tokenID.String()),
		zap.String("amount", amount.String()))

	return s.send(ctx, "freeMint", to, tokenID, amount)
}

// Publish creates a chapter. Only the platform account may publish; a
// different signer is reported but still submitted.
func (s *ActionService) Publish(ctx context.Context, chapter Chapter) (*Outcome, error) {
	if err := chapter.Validate(); err != nil {
		return nil, err
	}

	s.checkPlatform(ctx)
	if uploader, err := s.asset.QueryAddress(ctx, "monthlyDataUploader"); err == nil {
		s.logger.Info("Publishing chapter",
			zap.String("title", chapter.TitleEn),
			zap.String("creator", chapter.Creator.Hex()),
			zap.String("monthly_data_uploader", uploader.Hex()))
	}

	return s.send(ctx, "createChapter",
		chapter.TitleZh, chapter.TitleEn, chapter.TitleJp,
		chapter.DescriptionZh, chapter.DescriptionEn, chapter.DescriptionJp,
		chapter.MaxCopies, chapter.URI, chapter.Creator)
}

// Register records investor as a holder of tokenID. The investor must
// already hold the token; otherwise nothing is submitted.
func (s *ActionService) Register(ctx context.Context, investor common.Address, tokenID *big.Int) (*Outcome, error) {
	if err := positive("tokenId", tokenID); err != nil {
		return nil, err
	}

	s.checkPlatform(ctx)

	balance, err := s.asset.QueryBigInt(ctx, "balanceOf", investor, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check investor balance: %w", err)
	}
	s.logger.Info("Investor balance",
		zap.String("investor", investor.Hex()),
		zap.String("token_id", tokenID.String()),
		zap.String("balance", balance.String()))
	if balance.Sign() == 0 {
		return nil, errs.Invalid("investor", investor.Hex(), "does not hold token "+tokenID.String())
	}

	return s.send(ctx, "investorRegistration", investor, tokenID)
}

func (s *ActionService) send(ctx context.Context, method string, args ...interface{}) (*Outcome, error) {
	tx, err := s.asset.Call(ctx, s.opts, method, args...)
	if err != nil {
		return &Outcome{Tx: tx}, err
	}

	events := s.decoder.Decode(tx)
	s.logger.Info("Transaction confirmed",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash.Hex()),
		zap.Uint64("block_number", tx.BlockNumber),
		zap.Int("events", len(events)))

	return &Outcome{Tx: tx, Events: events}, nil
}

// checkPlatform warns when the signer is not the contract's platform account
func (s *ActionService) checkPlatform(ctx context.Context) {
	platform, err := s.asset.QueryAddress(ctx, "platformAddress")
	if err != nil {
		s.logger.Warn("Failed to read platform address", zap.Error(err))
		return
	}
	if platform != s.signer {
		s.logger.Warn("Signer is not the platform address",
			zap.String("signer", s.signer.Hex()),
			zap.String("platform", platform.Hex()))
	}
}

func positive(field string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return errs.Invalid(field, bigString(v), "must be positive")
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

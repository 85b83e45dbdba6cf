// Package quoter implements the per-chain pricing store: ChainInfo and
// QuoteBody, both mutable only by the fixed updater identity, and the two
// read-only operations (RequestQuote, RequestExecutionQuote) the router
// dispatches into.
package quoter

import (
	"time"

	"github.com/relaykit/quoterkernel/internal/cache"
	"github.com/relaykit/quoterkernel/internal/codec"
	"github.com/relaykit/quoterkernel/internal/pricing"
	"github.com/relaykit/quoterkernel/internal/qerr"
	"github.com/relaykit/quoterkernel/internal/storage"
	"github.com/relaykit/quoterkernel/internal/u256"
)

const maxDecimals = 32

// Quoter is one deployed pricing implementation: a store of per-chain
// configuration, fronted by a read-through cache on the hot path.
type Quoter struct {
	store           *storage.Store
	chainInfoCache  *cache.Cache[storage.ChainInfo]
	quoteBodyCache  *cache.Cache[storage.QuoteBody]
}

func New(store *storage.Store, cacheTTL time.Duration) *Quoter {
	return &Quoter{
		store:          store,
		chainInfoCache: cache.NewCache[storage.ChainInfo](cacheTTL),
		quoteBodyCache: cache.NewCache[storage.QuoteBody](cacheTTL),
	}
}

// Initialize sets the quoter's one-shot updater and payee identities.
func (q *Quoter) Initialize(updater, payee [32]byte) error {
	return q.store.InitQuoterConfig(updater, payee)
}

func (q *Quoter) requireUpdater(signer [32]byte) error {
	cfg, err := q.store.GetQuoterConfig()
	if err != nil {
		return err
	}
	if cfg.UpdaterAddress != signer {
		return qerr.New(qerr.CodeInvalidUpdater, "quoter: signer is not the configured updater")
	}
	return nil
}

// UpdateChainInfo upserts chain_info[chain_id]. Only the configured
// updater may call this.
func (q *Quoter) UpdateChainInfo(signer [32]byte, chainID uint16, enabled bool, gasPriceDecimals, nativeDecimals uint8) error {
	if err := q.requireUpdater(signer); err != nil {
		return err
	}
	if gasPriceDecimals > maxDecimals || nativeDecimals > maxDecimals {
		return qerr.New(qerr.CodeInvalidInstructionData, "quoter: decimals exceed 32")
	}

	existing, err := q.store.GetChainInfo(chainID)
	price := u256.U256{}
	gasPrice := u256.U256{}
	if err == nil {
		price = existing.Price
		gasPrice = existing.GasPrice
	} else if !qerr.Has(err, qerr.CodeChainDisabled) {
		return err
	}

	if err := q.store.UpsertChainInfo(storage.ChainInfo{
		ChainID:          chainID,
		Price:            price,
		GasPrice:         gasPrice,
		GasPriceDecimals: gasPriceDecimals,
		NativeDecimals:   nativeDecimals,
		Enabled:          enabled,
	}); err != nil {
		return err
	}
	q.chainInfoCache.Invalidate(cacheKey(chainID))
	return nil
}

// UpdateQuote upserts quote_body[chain_id]. Only the configured updater
// may call this.
func (q *Quoter) UpdateQuote(signer [32]byte, chainID uint16, dstPrice, srcPrice, dstGasPrice, baseFee uint64) error {
	if err := q.requireUpdater(signer); err != nil {
		return err
	}

	body := codec.EQ01{
		BaseFee:     baseFee,
		DstGasPrice: dstGasPrice,
		SrcPrice:    srcPrice,
		DstPrice:    dstPrice,
	}.Encode()

	if err := q.store.UpsertQuoteBody(chainID, body); err != nil {
		return err
	}
	q.quoteBodyCache.Invalidate(cacheKey(chainID))
	return nil
}

func cacheKey(chainID uint16) string {
	return string([]byte{byte(chainID >> 8), byte(chainID)})
}

func (q *Quoter) loadChainInfo(chainID uint16) (storage.ChainInfo, error) {
	return q.chainInfoCache.GetOrFetch(cacheKey(chainID), func() (storage.ChainInfo, error) {
		return q.store.GetChainInfo(chainID)
	})
}

func (q *Quoter) loadQuoteBody(chainID uint16) (codec.EQ01, error) {
	row, err := q.quoteBodyCache.GetOrFetch(cacheKey(chainID), func() (storage.QuoteBody, error) {
		return q.store.GetQuoteBody(chainID)
	})
	if err != nil {
		return codec.EQ01{}, err
	}
	return codec.DecodeEQ01(row.Body[:])
}

func toPricingBody(b codec.EQ01) pricing.QuoteBody {
	return pricing.QuoteBody{
		BaseFee:     u256.FromU64(b.BaseFee),
		DstGasPrice: u256.FromU64(b.DstGasPrice),
		SrcPrice:    u256.FromU64(b.SrcPrice),
		DstPrice:    u256.FromU64(b.DstPrice),
	}
}

// RequestQuote prices a relay program against chain_id's current
// configuration. dstAddr, refundAddr, and requestBytes are accepted for
// call-framing symmetry with RequestExecutionQuote but are not consumed by
// pricing itself.
func (q *Quoter) RequestQuote(dstChain uint16, dstAddr, refundAddr [32]byte, requestBytes, relayInstructions []byte) (uint64, error) {
	info, err := q.loadChainInfo(dstChain)
	if err != nil {
		return 0, err
	}
	if !info.Enabled {
		return 0, qerr.New(qerr.CodeChainDisabled, "quoter: chain is disabled")
	}

	body, err := q.loadQuoteBody(dstChain)
	if err != nil {
		return 0, err
	}
	if body.SrcPrice == 0 {
		return 0, qerr.New(qerr.CodeMathOverflow, "quoter: src_price is zero")
	}

	gasLimit, msgValue, err := pricing.Reduce(relayInstructions)
	if err != nil {
		return 0, err
	}

	return pricing.EstimateQuote(
		toPricingBody(body),
		pricing.ChainInfo{GasPriceDecimals: info.GasPriceDecimals, NativeDecimals: info.NativeDecimals},
		gasLimit, msgValue,
	)
}

// RequestExecutionQuote is RequestQuote's sibling used by the router's hot
// path: it additionally returns the payee and the EQ01-packed quote body
// the router embeds in the EQ02 it constructs.
func (q *Quoter) RequestExecutionQuote(dstChain uint16, dstAddr, refundAddr [32]byte, requestBytes, relayInstructions []byte) (codec.RequestExecutionQuoteReturn, error) {
	info, err := q.loadChainInfo(dstChain)
	if err != nil {
		return codec.RequestExecutionQuoteReturn{}, err
	}
	if !info.Enabled {
		return codec.RequestExecutionQuoteReturn{}, qerr.New(qerr.CodeChainDisabled, "quoter: chain is disabled")
	}

	body, err := q.loadQuoteBody(dstChain)
	if err != nil {
		return codec.RequestExecutionQuoteReturn{}, err
	}
	if body.SrcPrice == 0 {
		return codec.RequestExecutionQuoteReturn{}, qerr.New(qerr.CodeMathOverflow, "quoter: src_price is zero")
	}

	cfg, err := q.store.GetQuoterConfig()
	if err != nil {
		return codec.RequestExecutionQuoteReturn{}, err
	}

	gasLimit, msgValue, err := pricing.Reduce(relayInstructions)
	if err != nil {
		return codec.RequestExecutionQuoteReturn{}, err
	}

	payment, payee, packedBody, err := pricing.EstimateExecutionQuote(
		toPricingBody(body),
		pricing.ChainInfo{GasPriceDecimals: info.GasPriceDecimals, NativeDecimals: info.NativeDecimals},
		gasLimit, msgValue, cfg.PayeeAddress,
	)
	if err != nil {
		return codec.RequestExecutionQuoteReturn{}, err
	}

	return codec.RequestExecutionQuoteReturn{
		RequiredPayment: payment,
		Payee:           payee,
		QuoteBody:       packedBody,
	}, nil
}

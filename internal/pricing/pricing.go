// Package pricing implements the relay-instruction reduction and the
// cross-chain quote formula: the two pieces of arithmetic that turn a
// relay program's declared gas/value needs, plus a chain's price and fee
// configuration, into a single source-chain payment amount.
package pricing

import (
	"github.com/relaykit/quoterkernel/internal/codec"
	"github.com/relaykit/quoterkernel/internal/qerr"
	"github.com/relaykit/quoterkernel/internal/u256"
)

// Fixed-point resolutions the quote formula threads intermediates through.
const (
	resolutionR uint8 = 18 // intermediate "EVM" resolution
	resolutionS uint8 = 9  // output source-native resolution
	resolutionQ uint8 = 10 // quote price scale (QUOTE_DECIMALS)
)

// Reduce parses a relay-instruction stream into (gasLimit, msgValue). It is
// a thin re-export of codec.Reduce kept at this layer so pricing's callers
// don't need to know the wire-format package exists.
func Reduce(stream []byte) (gasLimit, msgValue u256.U256, err error) {
	return codec.Reduce(stream)
}

// QuoteBody is the four price/fee scalars pricing needs, already widened
// to U256 (the storage layer holds these as u64; quoter.go performs that
// widening at the boundary).
type QuoteBody struct {
	BaseFee     u256.U256
	DstGasPrice u256.U256
	SrcPrice    u256.U256
	DstPrice    u256.U256
}

// ChainInfo is the decimal configuration pricing needs for one destination
// chain.
type ChainInfo struct {
	GasPriceDecimals uint8
	NativeDecimals   uint8
}

// EstimateQuote implements spec §4.3's formula exactly: every intermediate
// is a U256, every step truncates (never rounds), and any overflow or a
// zero src_price propagates MathOverflow.
func EstimateQuote(body QuoteBody, info ChainInfo, gasLimit, msgValue u256.U256) (uint64, error) {
	base, err := u256.Normalize(body.BaseFee, resolutionQ, resolutionR)
	if err != nil {
		return 0, err
	}
	nSrc, err := u256.Normalize(body.SrcPrice, resolutionQ, resolutionR)
	if err != nil {
		return 0, err
	}
	if nSrc.IsZero() {
		return 0, qerr.New(qerr.CodeMathOverflow, "pricing: src_price normalizes to zero")
	}
	nDst, err := u256.Normalize(body.DstPrice, resolutionQ, resolutionR)
	if err != nil {
		return 0, err
	}
	conv, err := u256.DivDecimals(nDst, nSrc, resolutionR)
	if err != nil {
		return 0, err
	}

	gasCost, err := gasLimit.CheckedMul(body.DstGasPrice)
	if err != nil {
		return 0, err
	}
	nGas, err := u256.Normalize(gasCost, info.GasPriceDecimals, resolutionR)
	if err != nil {
		return 0, err
	}
	gasSrc, err := u256.MulDecimals(nGas, conv, resolutionR)
	if err != nil {
		return 0, err
	}

	nVal, err := u256.Normalize(msgValue, info.NativeDecimals, resolutionR)
	if err != nil {
		return 0, err
	}
	valSrc, err := u256.MulDecimals(nVal, conv, resolutionR)
	if err != nil {
		return 0, err
	}

	total18, err := base.CheckedAdd(gasSrc)
	if err != nil {
		return 0, err
	}
	total18, err = total18.CheckedAdd(valSrc)
	if err != nil {
		return 0, err
	}

	result, err := u256.Normalize(total18, resolutionR, resolutionS)
	if err != nil {
		return 0, err
	}
	return result.TryIntoU64()
}

// EstimateExecutionQuote runs EstimateQuote and additionally returns the
// payee and the EQ01-packed quote body, exactly the triple
// RequestExecutionQuote's 72-byte return payload carries.
func EstimateExecutionQuote(body QuoteBody, info ChainInfo, gasLimit, msgValue u256.U256, payee [32]byte) (uint64, [32]byte, [32]byte, error) {
	payment, err := EstimateQuote(body, info, gasLimit, msgValue)
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, err
	}

	baseFee, err := body.BaseFee.TryIntoU64()
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, err
	}
	dstGasPrice, err := body.DstGasPrice.TryIntoU64()
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, err
	}
	srcPrice, err := body.SrcPrice.TryIntoU64()
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, err
	}
	dstPrice, err := body.DstPrice.TryIntoU64()
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, err
	}

	packed := codec.EQ01{
		BaseFee:     baseFee,
		DstGasPrice: dstGasPrice,
		SrcPrice:    srcPrice,
		DstPrice:    dstPrice,
	}.Encode()

	return payment, payee, packed, nil
}

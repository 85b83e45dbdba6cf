// Package executor implements the boundary validation of spec.md §4.6: it
// accepts a signed quote produced by the router, checks it against its own
// chain identity and the caller's claimed destination before moving any
// funds, then performs the amount transfer.
package executor

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/relaykit/quoterkernel/internal/codec"
	"github.com/relaykit/quoterkernel/internal/qerr"
)

// Ledger is the seam to the host chain's token-transfer system. The
// executor only ever moves funds payer to payee.
type Ledger interface {
	Transfer(payee [32]byte, amount uint64) error
}

// Executor validates an inbound EQ02 header and forwards amount to Ledger.
type Executor struct {
	ourChain uint16
	ledger   Ledger
	now      func() time.Time
}

func New(ourChain uint16, ledger Ledger) *Executor {
	return &Executor{ourChain: ourChain, ledger: ledger, now: time.Now}
}

// RequestForExecution is the executor's only entry point. requestBytes and
// relayInstructions are forwarded for off-chain observation; this function
// does not read them.
func (e *Executor) RequestForExecution(amount uint64, dstChain uint16, dstAddr, refundAddr, payee [32]byte, signedQuoteBytes, requestBytes, relayInstructions []byte) error {
	if len(signedQuoteBytes) < codec.EQ02HeaderLen {
		return qerr.New(qerr.CodeInvalidReturnData, "executor: signed_quote_bytes shorter than the EQ02 header")
	}

	var quotePayee [32]byte
	copy(quotePayee[:], signedQuoteBytes[24:56])
	quoteSrcChain := binary.BigEndian.Uint16(signedQuoteBytes[56:58])
	quoteDstChain := binary.BigEndian.Uint16(signedQuoteBytes[58:60])
	expiryTime := binary.BigEndian.Uint64(signedQuoteBytes[60:68])

	if quoteSrcChain != e.ourChain {
		return qerr.New(qerr.CodeQuoteSrcChainMismatch, "executor: quote src_chain does not match our_chain")
	}
	if quoteDstChain != dstChain {
		return qerr.New(qerr.CodeQuoteDstChainMismatch, "executor: quote dst_chain does not match the caller's dst_chain")
	}
	if expiryTime <= uint64(e.now().Unix()) {
		return qerr.New(qerr.CodeQuoteExpired, "executor: quote has expired")
	}
	if quotePayee != payee {
		return qerr.New(qerr.CodeQuotePayeeMismatch, "executor: quote payee does not match the supplied payee")
	}

	if err := e.ledger.Transfer(payee, amount); err != nil {
		return fmt.Errorf("executor: transferring amount to payee: %w", err)
	}
	return nil
}

// Package router implements the registration, governance-verification,
// and dispatch state machine that sits between a caller and a quoter
// implementation. It is the only subsystem that touches the injected
// crypto capability (evmcrypto) and the only one that talks to both a
// quoter (via Dispatcher) and the executor (via ExecutorClient).
package router

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaykit/quoterkernel/internal/codec"
	"github.com/relaykit/quoterkernel/internal/evmcrypto"
	"github.com/relaykit/quoterkernel/internal/qerr"
	"github.com/relaykit/quoterkernel/internal/storage"
)

// Dispatcher is the "intra-chain call" target a registration resolves to.
// quoter.Quoter satisfies this interface; tests may stub it.
type Dispatcher interface {
	RequestQuote(dstChain uint16, dstAddr, refundAddr [32]byte, requestBytes, relayInstructions []byte) (uint64, error)
	RequestExecutionQuote(dstChain uint16, dstAddr, refundAddr [32]byte, requestBytes, relayInstructions []byte) (codec.RequestExecutionQuoteReturn, error)
}

// Ledger is the seam to the host chain's token-transfer system, which
// stays an external collaborator per this kernel's scope.
type Ledger interface {
	Pay(payee [32]byte, amount uint64) error
	Refund(refundAddr [32]byte, amount uint64) error
}

// ExecutorClient is the seam to the downstream executor boundary. payee is
// carried explicitly here because this process has no host account list to
// read it from the way the on-chain instruction would.
type ExecutorClient interface {
	RequestForExecution(amount uint64, dstChain uint16, dstAddr, refundAddr, payee [32]byte, signedQuoteBytes, requestBytes, relayInstructions []byte) error
}

// Router is the registration store plus the RequestExecution hot path.
// The implementation registry is in-process: it is the Go-native reading
// of "intra-chain call" this repository runs as an ordinary process
// instead of on-chain bytecode.
type Router struct {
	store    *storage.Store
	verifier evmcrypto.Verifier
	ledger   Ledger
	executor ExecutorClient
	registry map[[32]byte]Dispatcher
	now      func() time.Time
}

func New(store *storage.Store, verifier evmcrypto.Verifier, ledger Ledger, executor ExecutorClient) *Router {
	return &Router{
		store:    store,
		verifier: verifier,
		ledger:   ledger,
		executor: executor,
		registry: make(map[[32]byte]Dispatcher),
		now:      time.Now,
	}
}

// RegisterImplementation wires a Dispatcher under its implementation
// identity so UpdateQuoterContract-created registrations resolve to it.
func (r *Router) RegisterImplementation(implementationProgramID [32]byte, d Dispatcher) {
	r.registry[implementationProgramID] = d
}

// Initialize sets the router's immutable-after-initialization singleton.
func (r *Router) Initialize(ourChain uint16, executorProgramID [32]byte) error {
	return r.store.InitRouterConfig(ourChain, executorProgramID)
}

// UpdateQuoterContract verifies an EG01 governance message and upserts the
// quoter's registration, per spec §4.5.1.
func (r *Router) UpdateQuoterContract(raw []byte, sender [32]byte) error {
	msg, err := codec.DecodeEG01(raw)
	if err != nil {
		return err
	}

	cfg, err := r.store.GetRouterConfig()
	if err != nil {
		return err
	}
	if msg.ChainID != cfg.OurChain {
		return qerr.New(qerr.CodeChainIDMismatch, "router: EG01 chain_id does not match our_chain")
	}
	if msg.UniversalSenderAddress != sender {
		return qerr.New(qerr.CodeInvalidSender, "router: caller does not match universal_sender_address")
	}
	if msg.ExpiryTime <= uint64(r.now().Unix()) {
		return qerr.New(qerr.CodeGovernanceExpired, "router: governance message expired")
	}

	digest := r.verifier.Keccak256(raw[:codec.EG01SignedLen])
	pubkey, err := r.verifier.RecoverPublicKey(digest, msg.SignatureV, msg.SignatureR, msg.SignatureS)
	if err != nil {
		return err
	}
	recovered := evmcrypto.RecoverAddress(r.verifier, pubkey)
	if recovered != msg.QuoterAddress {
		return qerr.New(qerr.CodeInvalidSignature, "router: recovered address does not match quoter_address")
	}

	return r.store.UpsertQuoterRegistration(msg.QuoterAddress, msg.UniversalContractAddress)
}

// QuoteExecution is the pass-through dispatch of spec §4.5.2: it forwards
// a caller-supplied quoter payload to RequestQuote on the registered
// implementation and returns the 8-byte big-endian result verbatim.
func (r *Router) QuoteExecution(quoterAddress [20]byte, implementationProgramID [32]byte, quoterPayload []byte) ([]byte, error) {
	reg, err := r.store.GetQuoterRegistration(quoterAddress)
	if err != nil {
		return nil, err
	}
	if reg.ImplementationProgramID != implementationProgramID {
		return nil, qerr.New(qerr.CodeQuoterNotRegistered, "router: implementation_program_id does not match registration")
	}
	dispatcher, ok := r.registry[reg.ImplementationProgramID]
	if !ok {
		return nil, qerr.New(qerr.CodeQuoterNotRegistered, "router: no dispatcher registered for implementation")
	}

	payload, err := codec.DecodeQuoterCallPayload(quoterPayload)
	if err != nil {
		return nil, err
	}

	result, err := dispatcher.RequestQuote(payload.DstChain, payload.DstAddr, payload.RefundAddr, payload.RequestBytes, payload.RelayInstructions)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, result)
	return out, nil
}

// RequestExecution is the hot path of spec §4.5.3: dispatch, underpayment
// check, payment plus refund, EQ02 construction, and executor invocation.
// The execution log row is written only after every step has succeeded. The
// router does not reverse ledger transfers: if a later step fails, a Pay or
// Refund already made through Ledger stays made.
func (r *Router) RequestExecution(body codec.RouterRequestExecutionBody) (correlationID string, err error) {
	reg, err := r.store.GetQuoterRegistration(body.QuoterAddress)
	if err != nil {
		return "", err
	}
	dispatcher, ok := r.registry[reg.ImplementationProgramID]
	if !ok {
		return "", qerr.New(qerr.CodeQuoterNotRegistered, "router: no dispatcher registered for implementation")
	}

	p := body.QuoterPayload
	ret, err := dispatcher.RequestExecutionQuote(p.DstChain, p.DstAddr, p.RefundAddr, p.RequestBytes, p.RelayInstructions)
	if err != nil {
		return "", err
	}

	if body.Amount < ret.RequiredPayment {
		return "", qerr.New(qerr.CodeUnderpaid, "router: amount is less than required_payment")
	}

	if err := r.ledger.Pay(ret.Payee, ret.RequiredPayment); err != nil {
		return "", fmt.Errorf("router: paying payee: %w", err)
	}

	excess := body.Amount - ret.RequiredPayment
	if excess > 0 {
		if err := r.ledger.Refund(p.RefundAddr, excess); err != nil {
			return "", qerr.Wrap(qerr.CodeRefundFailed, err)
		}
	}

	cfg, err := r.store.GetRouterConfig()
	if err != nil {
		return "", err
	}

	quote := codec.EQ02{
		QuoterAddress: body.QuoterAddress,
		PayeeAddress:  ret.Payee,
		SrcChain:      cfg.OurChain,
		DstChain:      p.DstChain,
		ExpiryTime:    ^uint64(0),
		QuoteBody:     ret.QuoteBody,
	}
	signed := quote.Encode()

	if err := r.executor.RequestForExecution(body.Amount, p.DstChain, p.DstAddr, p.RefundAddr, ret.Payee, signed[:], p.RequestBytes, p.RelayInstructions); err != nil {
		return "", fmt.Errorf("router: invoking executor: %w", err)
	}

	correlationID = uuid.NewString()
	if err := r.store.LogExecution(correlationID, body.QuoterAddress, p.DstChain, ret.RequiredPayment, excess); err != nil {
		return "", err
	}
	return correlationID, nil
}

package router

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/quoterkernel/internal/codec"
	"github.com/relaykit/quoterkernel/internal/evmcrypto"
	"github.com/relaykit/quoterkernel/internal/qerr"
	"github.com/relaykit/quoterkernel/internal/storage"
)

type stubDispatcher struct {
	quote    uint64
	quoteErr error
	ret      codec.RequestExecutionQuoteReturn
	retErr   error
}

func (s stubDispatcher) RequestQuote(uint16, [32]byte, [32]byte, []byte, []byte) (uint64, error) {
	return s.quote, s.quoteErr
}

func (s stubDispatcher) RequestExecutionQuote(uint16, [32]byte, [32]byte, []byte, []byte) (codec.RequestExecutionQuoteReturn, error) {
	return s.ret, s.retErr
}

type stubLedger struct {
	paid      map[[32]byte]uint64
	refunded  map[[32]byte]uint64
	payErr    error
	refundErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{paid: make(map[[32]byte]uint64), refunded: make(map[[32]byte]uint64)}
}

func (l *stubLedger) Pay(payee [32]byte, amount uint64) error {
	if l.payErr != nil {
		return l.payErr
	}
	l.paid[payee] += amount
	return nil
}

func (l *stubLedger) Refund(refundAddr [32]byte, amount uint64) error {
	if l.refundErr != nil {
		return l.refundErr
	}
	l.refunded[refundAddr] += amount
	return nil
}

type stubExecutor struct {
	called   bool
	lastAmt  uint64
	lastQuot []byte
}

func (e *stubExecutor) RequestForExecution(amount uint64, dstChain uint16, dstAddr, refundAddr, payee [32]byte, signedQuoteBytes, requestBytes, relayInstructions []byte) error {
	e.called = true
	e.lastAmt = amount
	e.lastQuot = signedQuoteBytes
	return nil
}

func newTestRouter(t *testing.T) (*Router, *stubLedger, *stubExecutor) {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := storage.NewStore(db)
	ledger := newStubLedger()
	executor := &stubExecutor{}
	r := New(store, evmcrypto.EthereumVerifier{}, ledger, executor)
	return r, ledger, executor
}

// signEG01 signs the first EG01SignedLen bytes of an encoded governance
// message with privKey and returns the full 163-byte message plus the
// address implied by the recovered public key.
func signEG01(t *testing.T, msg codec.EG01, privKey []byte) (codec.EG01, [20]byte) {
	t.Helper()
	key, err := ethcrypto.ToECDSA(privKey)
	require.NoError(t, err)

	encoded := msg.Encode()
	digest := ethcrypto.Keccak256(encoded[:codec.EG01SignedLen])
	sig, err := ethcrypto.Sign(digest, key)
	require.NoError(t, err)

	copy(msg.SignatureR[:], sig[0:32])
	copy(msg.SignatureS[:], sig[32:64])
	msg.SignatureV = sig[64] + 27

	addr := ethcrypto.PubkeyToAddress(key.PublicKey)
	var out [20]byte
	copy(out[:], addr[:])
	return msg, out
}

func TestUpdateQuoterContractAcceptsValidSignature(t *testing.T) {
	r, _, _ := newTestRouter(t)
	executorID := [32]byte{9}
	require.NoError(t, r.Initialize(2, executorID))

	privKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	rawKey := ethcrypto.FromECDSA(privKey)

	sender := [32]byte{5}
	implementationID := [32]byte{6}
	msg := codec.EG01{
		ChainID:                2,
		QuoterAddress:            ethcrypto.PubkeyToAddress(privKey.PublicKey),
		UniversalContractAddress: implementationID,
		UniversalSenderAddress:   sender,
		ExpiryTime:               ^uint64(0),
	}
	signed, quoterAddr := signEG01(t, msg, rawKey)
	encoded := signed.Encode()

	require.NoError(t, r.UpdateQuoterContract(encoded[:], sender))

	reg, err := r.store.GetQuoterRegistration(quoterAddr)
	require.NoError(t, err)
	assert.Equal(t, implementationID, reg.ImplementationProgramID)
}

func TestUpdateQuoterContractRejectsWrongSender(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.NoError(t, r.Initialize(2, [32]byte{9}))

	privKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	rawKey := ethcrypto.FromECDSA(privKey)

	msg := codec.EG01{
		ChainID:                  2,
		UniversalContractAddress: [32]byte{6},
		UniversalSenderAddress:   [32]byte{5},
		ExpiryTime:               ^uint64(0),
	}
	signed, quoterAddr := signEG01(t, msg, rawKey)
	signed.QuoterAddress = quoterAddr
	encoded := signed.Encode()

	err = r.UpdateQuoterContract(encoded[:], [32]byte{0xff})
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeInvalidSender))
}

func TestUpdateQuoterContractRejectsTamperedSignature(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.NoError(t, r.Initialize(2, [32]byte{9}))

	privKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	rawKey := ethcrypto.FromECDSA(privKey)

	sender := [32]byte{5}
	msg := codec.EG01{
		ChainID:                  2,
		UniversalContractAddress: [32]byte{6},
		UniversalSenderAddress:   sender,
		ExpiryTime:               ^uint64(0),
	}
	signed, _ := signEG01(t, msg, rawKey)
	signed.QuoterAddress = [20]byte{0xaa} // does not match the actual recovered address
	encoded := signed.Encode()

	err = r.UpdateQuoterContract(encoded[:], sender)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeInvalidSignature))
}

func registerDispatcher(t *testing.T, r *Router, quoterAddr [20]byte, implementationID [32]byte, d Dispatcher) {
	t.Helper()
	require.NoError(t, r.store.UpsertQuoterRegistration(quoterAddr, implementationID))
	r.RegisterImplementation(implementationID, d)
}

func TestQuoteExecutionPassesThrough(t *testing.T) {
	r, _, _ := newTestRouter(t)
	quoterAddr := [20]byte{1}
	implementationID := [32]byte{2}
	registerDispatcher(t, r, quoterAddr, implementationID, stubDispatcher{quote: 6034})

	payload := codec.QuoterCallPayload{Discriminator: codec.DiscriminatorRequestQuote, DstChain: 2}
	out, err := r.QuoteExecution(quoterAddr, implementationID, payload.Encode())
	require.NoError(t, err)
	require.Len(t, out, 8)
	assert.Equal(t, uint64(6034), uint64From(out))
}

func uint64From(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func TestRequestExecutionHappyPath(t *testing.T) {
	r, ledger, executor := newTestRouter(t)
	require.NoError(t, r.Initialize(2, [32]byte{9}))

	quoterAddr := [20]byte{1}
	implementationID := [32]byte{2}
	payee := [32]byte{7}
	refund := [32]byte{8}
	registerDispatcher(t, r, quoterAddr, implementationID, stubDispatcher{
		ret: codec.RequestExecutionQuoteReturn{RequiredPayment: 6034, Payee: payee, QuoteBody: [32]byte{1, 2, 3}},
	})

	body := codec.RouterRequestExecutionBody{
		Amount:        7000,
		QuoterAddress: quoterAddr,
		QuoterPayload: codec.QuoterCallPayload{
			Discriminator: codec.DiscriminatorRequestExecutionQuote,
			DstChain:      3,
			RefundAddr:    refund,
		},
	}

	correlationID, err := r.RequestExecution(body)
	require.NoError(t, err)
	assert.NotEmpty(t, correlationID)
	assert.Equal(t, uint64(6034), ledger.paid[payee])
	assert.Equal(t, uint64(966), ledger.refunded[refund])
	assert.True(t, executor.called)
	assert.Equal(t, uint64(7000), executor.lastAmt)

	rows, err := r.store.RecentExecutions(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, correlationID, rows[0].CorrelationID)
}

func TestRequestExecutionRejectsUnderpayment(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.NoError(t, r.Initialize(2, [32]byte{9}))

	quoterAddr := [20]byte{1}
	implementationID := [32]byte{2}
	registerDispatcher(t, r, quoterAddr, implementationID, stubDispatcher{
		ret: codec.RequestExecutionQuoteReturn{RequiredPayment: 6034, Payee: [32]byte{7}},
	})

	body := codec.RouterRequestExecutionBody{
		Amount:        100,
		QuoterAddress: quoterAddr,
	}

	_, err := r.RequestExecution(body)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeUnderpaid))
}

func TestRequestExecutionRejectsUnregisteredQuoter(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.NoError(t, r.Initialize(2, [32]byte{9}))

	body := codec.RouterRequestExecutionBody{QuoterAddress: [20]byte{0xff}}
	_, err := r.RequestExecution(body)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeQuoterNotRegistered))
}

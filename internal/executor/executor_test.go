package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/quoterkernel/internal/codec"
	"github.com/relaykit/quoterkernel/internal/qerr"
)

type stubLedger struct {
	transferred map[[32]byte]uint64
	err         error
}

func newStubLedger() *stubLedger {
	return &stubLedger{transferred: make(map[[32]byte]uint64)}
}

func (l *stubLedger) Transfer(payee [32]byte, amount uint64) error {
	if l.err != nil {
		return l.err
	}
	l.transferred[payee] += amount
	return nil
}

func buildQuote(srcChain, dstChain uint16, payee [32]byte, expiry uint64) [100]byte {
	q := codec.EQ02{
		PayeeAddress: payee,
		SrcChain:     srcChain,
		DstChain:     dstChain,
		ExpiryTime:   expiry,
	}
	return q.Encode()
}

func TestRequestForExecutionAcceptsValidQuote(t *testing.T) {
	ledger := newStubLedger()
	e := New(2, ledger)

	payee := [32]byte{7}
	quote := buildQuote(2, 3, payee, ^uint64(0))

	err := e.RequestForExecution(1000, 3, [32]byte{}, [32]byte{}, payee, quote[:], nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), ledger.transferred[payee])
}

func TestRequestForExecutionRejectsTruncatedQuote(t *testing.T) {
	e := New(2, newStubLedger())
	err := e.RequestForExecution(1000, 3, [32]byte{}, [32]byte{}, [32]byte{}, make([]byte, 10), nil, nil)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeInvalidReturnData))
}

func TestRequestForExecutionRejectsSrcChainMismatch(t *testing.T) {
	e := New(2, newStubLedger())
	quote := buildQuote(9, 3, [32]byte{7}, ^uint64(0))
	err := e.RequestForExecution(1000, 3, [32]byte{}, [32]byte{}, [32]byte{7}, quote[:], nil, nil)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeQuoteSrcChainMismatch))
}

func TestRequestForExecutionRejectsDstChainMismatch(t *testing.T) {
	e := New(2, newStubLedger())
	quote := buildQuote(2, 4, [32]byte{7}, ^uint64(0))
	err := e.RequestForExecution(1000, 3, [32]byte{}, [32]byte{}, [32]byte{7}, quote[:], nil, nil)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeQuoteDstChainMismatch))
}

func TestRequestForExecutionRejectsExpiredQuote(t *testing.T) {
	e := New(2, newStubLedger())
	e.now = func() time.Time { return time.Unix(1000, 0) }
	quote := buildQuote(2, 3, [32]byte{7}, 999)
	err := e.RequestForExecution(1000, 3, [32]byte{}, [32]byte{}, [32]byte{7}, quote[:], nil, nil)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeQuoteExpired))
}

func TestRequestForExecutionRejectsPayeeMismatch(t *testing.T) {
	e := New(2, newStubLedger())
	quote := buildQuote(2, 3, [32]byte{7}, ^uint64(0))
	err := e.RequestForExecution(1000, 3, [32]byte{}, [32]byte{}, [32]byte{9}, quote[:], nil, nil)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeQuotePayeeMismatch))
}

package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/quoterkernel/internal/qerr"
	"github.com/relaykit/quoterkernel/internal/u256"
)

func scenarioBBody() (QuoteBody, ChainInfo) {
	body := QuoteBody{
		BaseFee:     u256.FromU64(100),
		DstGasPrice: u256.FromU64(399146),
		SrcPrice:    u256.FromU64(2650000000),
		DstPrice:    u256.FromU64(160000000),
	}
	info := ChainInfo{GasPriceDecimals: 15, NativeDecimals: 18}
	return body, info
}

// TestScenarioB_EthLikeDestination matches spec.md's Scenario B.
func TestScenarioB_EthLikeDestination(t *testing.T) {
	body, info := scenarioBBody()
	got, err := EstimateQuote(body, info, u256.FromU64(250000), u256.FromU64(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(6034), got)
}

// TestScenarioC_WithMsgValue matches spec.md's Scenario C.
func TestScenarioC_WithMsgValue(t *testing.T) {
	body, info := scenarioBBody()
	oneEth, err := u256.Pow10(18)
	require.NoError(t, err)
	got, err := EstimateQuote(body, info, u256.FromU64(250000), oneEth)
	require.NoError(t, err)
	assert.Equal(t, uint64(60383393), got)
}

// TestScenarioD_OverflowRefusal matches spec.md's Scenario D.
func TestScenarioD_OverflowRefusal(t *testing.T) {
	maxU64 := u256.FromU64(^uint64(0))
	body := QuoteBody{
		BaseFee:     maxU64,
		DstGasPrice: maxU64,
		SrcPrice:    u256.FromU64(1),
		DstPrice:    maxU64,
	}
	info := ChainInfo{GasPriceDecimals: 0, NativeDecimals: 0}

	gasLimit := u256.FromU128(^uint64(0), ^uint64(0))
	msgValue := u256.FromU128(^uint64(0), ^uint64(0))

	_, err := EstimateQuote(body, info, gasLimit, msgValue)
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeMathOverflow))
}

func TestZeroGasZeroValueReturnsBaseFee(t *testing.T) {
	body, info := scenarioBBody()
	body.DstGasPrice = u256.FromU64(0)
	got, err := EstimateQuote(body, info, u256.FromU64(0), u256.FromU64(0))
	require.NoError(t, err)
	// base_fee=100 at Q=10 normalized to R=18 is 100*10^8; down to S=9 that is 100*10^8/10^9 = 10.
	assert.Equal(t, uint64(10), got)
}

func TestEstimateExecutionQuoteReturnsPayeeAndBody(t *testing.T) {
	body, info := scenarioBBody()
	payee := [32]byte{1, 2, 3}
	payment, gotPayee, packed, err := EstimateExecutionQuote(body, info, u256.FromU64(250000), u256.FromU64(0), payee)
	require.NoError(t, err)
	assert.Equal(t, uint64(6034), payment)
	assert.Equal(t, payee, gotPayee)
	assert.NotZero(t, packed)
}

// BenchmarkEstimateQuote mirrors the reference implementation's
// compute-unit-budget benchmarks for the per-request quote formula.
func BenchmarkEstimateQuote(b *testing.B) {
	body, info := scenarioBBody()
	gasLimit := u256.FromU64(250000)
	msgValue := u256.FromU64(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EstimateQuote(body, info, gasLimit, msgValue); err != nil {
			b.Fatal(err)
		}
	}
}

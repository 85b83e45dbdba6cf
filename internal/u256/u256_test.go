package u256

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/quoterkernel/internal/qerr"
)

func toBig(v U256) *big.Int {
	b := v.ToBigEndianBytes()
	return new(big.Int).SetBytes(b[:])
}

func fromBig(b *big.Int) U256 {
	var out [32]byte
	b.FillBytes(out[:])
	return fromBigEndianBytes(out)
}

func TestFromU64RoundTrip(t *testing.T) {
	v := FromU64(123456789)
	got, err := v.TryIntoU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), got)
}

func TestTryIntoU64Overflow(t *testing.T) {
	v := FromU128(1, 0)
	_, err := v.TryIntoU64()
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeMathOverflow))
}

func TestCheckedAddOverflow(t *testing.T) {
	max := U256{Words: [4]uint64{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}}
	_, err := max.CheckedAdd(FromU64(1))
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeMathOverflow))
}

func TestCheckedSubUnderflow(t *testing.T) {
	_, err := FromU64(1).CheckedSub(FromU64(2))
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeMathOverflow))
}

func TestCheckedDivByZero(t *testing.T) {
	_, err := FromU64(1).CheckedDiv(FromU64(0))
	require.Error(t, err)
	assert.True(t, qerr.Has(err, qerr.CodeMathOverflow))
}

func TestCheckedDivTruncates(t *testing.T) {
	q, err := FromU64(7).CheckedDiv(FromU64(2))
	require.NoError(t, err)
	got, err := q.TryIntoU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)
}

// TestDifferentialArithmetic checks CheckedAdd/CheckedSub/CheckedMul/
// CheckedDiv against math/big across random 256-bit operands, mirroring the
// independent-oracle differential test spec.md's design notes call for.
func TestDifferentialArithmetic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	maxVal := new(big.Int).Lsh(big.NewInt(1), 256)

	randomU256 := func() (U256, *big.Int) {
		b := make([]byte, 32)
		rng.Read(b)
		var words [32]byte
		copy(words[:], b)
		bi := new(big.Int).SetBytes(words[:])
		return fromBigEndianBytes(words), bi
	}

	for i := 0; i < 2000; i++ {
		a, aBig := randomU256()
		b, bBig := randomU256()

		if sum := new(big.Int).Add(aBig, bBig); sum.Cmp(maxVal) < 0 {
			got, err := a.CheckedAdd(b)
			require.NoError(t, err)
			assert.Equal(t, sum, toBig(got))
		} else {
			_, err := a.CheckedAdd(b)
			assert.Error(t, err)
		}

		if aBig.Cmp(bBig) >= 0 {
			got, err := a.CheckedSub(b)
			require.NoError(t, err)
			assert.Equal(t, new(big.Int).Sub(aBig, bBig), toBig(got))
		} else {
			_, err := a.CheckedSub(b)
			assert.Error(t, err)
		}

		if prod := new(big.Int).Mul(aBig, bBig); prod.Cmp(maxVal) < 0 {
			got, err := a.CheckedMul(b)
			require.NoError(t, err)
			assert.Equal(t, prod, toBig(got))
		} else {
			_, err := a.CheckedMul(b)
			assert.Error(t, err)
		}

		if bBig.Sign() != 0 {
			got, err := a.CheckedDiv(b)
			require.NoError(t, err)
			// Compare values, not *big.Int internals: a zero quotient from
			// Quo and one from SetBytes differ in their internal slice.
			assert.Equal(t, new(big.Int).Quo(aBig, bBig).String(), toBig(got).String())
		} else {
			_, err := a.CheckedDiv(b)
			assert.Error(t, err)
		}
	}
}

// TestDifferentialSmallDivisors exercises the single-word-divisor fast path
// against small, common-case divisors (powers of ten, gas prices) with a
// large random dividend, since that's the shape the pricing formula
// actually produces.
func TestDifferentialSmallDivisors(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	divisors := []uint64{1, 2, 7, 10, 1000, 1_000_000, 399146}

	for i := 0; i < 500; i++ {
		b := make([]byte, 32)
		rng.Read(b)
		var words [32]byte
		copy(words[:], b)
		a := fromBigEndianBytes(words)
		aBig := toBig(a)

		for _, dv := range divisors {
			d := FromU64(dv)
			got, err := a.CheckedDiv(d)
			require.NoError(t, err)
			want := new(big.Int).Quo(aBig, big.NewInt(0).SetUint64(dv))
			assert.Equal(t, want, toBig(got))
		}
	}
}

func TestPow10(t *testing.T) {
	v, err := Pow10(0)
	require.NoError(t, err)
	got, _ := v.TryIntoU64()
	assert.Equal(t, uint64(1), got)

	v, err = Pow10(18)
	require.NoError(t, err)
	want := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	assert.Equal(t, want, toBig(v))

	_, err = Pow10(33)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	// 1 unit at 18 decimals -> 10 decimals drops 8 decimals of precision.
	oneEth, err := Pow10(18)
	require.NoError(t, err)
	got, err := Normalize(oneEth, 18, 10)
	require.NoError(t, err)
	want, _ := Pow10(10)
	assert.Equal(t, toBig(want), toBig(got))

	// Widening from 10 to 18 decimals multiplies back up.
	back, err := Normalize(got, 10, 18)
	require.NoError(t, err)
	assert.Equal(t, toBig(oneEth), toBig(back))
}

func TestMulDivDecimalsMatchBigInt(t *testing.T) {
	a := FromU64(2_650_000_000)
	b := FromU64(160_000_000)
	prod, err := MulDecimals(a, b, 10)
	require.NoError(t, err)
	want := new(big.Int).Quo(new(big.Int).Mul(toBig(a), toBig(b)), big.NewInt(1e10))
	assert.Equal(t, want, toBig(prod))

	q, err := DivDecimals(a, b, 10)
	require.NoError(t, err)
	want2 := new(big.Int).Quo(new(big.Int).Mul(toBig(a), big.NewInt(1e10)), toBig(b))
	assert.Equal(t, want2, toBig(q))
}

func mustU256(t *testing.T, v U256, err error) U256 {
	t.Helper()
	require.NoError(t, err)
	return v
}

// TestCheckedDivKnuthDPath exercises knuthDivide directly (a divisor
// spanning three or more words takes neither the u128 nor the
// single-word-divisor fast path in CheckedDiv) against math/big as an
// independent oracle.
func TestCheckedDivKnuthDPath(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	randomWordsUsing := func(words int) (U256, *big.Int) {
		var v U256
		for i := 0; i < words; i++ {
			v.Words[i] = rng.Uint64()
		}
		if v.Words[words-1] == 0 {
			v.Words[words-1] = 1 // keep the top word nonzero
		}
		return v, toBig(v)
	}

	for i := 0; i < 500; i++ {
		dividend, dividendBig := randomWordsUsing(4)
		divisorWords := 3 + i%2 // alternate 3- and 4-word divisors
		divisor, divisorBig := randomWordsUsing(divisorWords)

		if dividendBig.Cmp(divisorBig) < 0 {
			dividend, dividendBig = divisor, divisorBig
			divisor, divisorBig = randomWordsUsing(divisorWords - 1)
		}

		got, err := dividend.CheckedDiv(divisor)
		require.NoError(t, err)
		want := new(big.Int).Quo(dividendBig, divisorBig)
		assert.Equal(t, want, toBig(got))
	}
}

// BenchmarkCheckedDivKnuthD measures the hand-rolled multiword division
// path's cost, mirroring the compute-unit-budget benchmarks the reference
// implementation's instruction handlers carry.
func BenchmarkCheckedDivKnuthD(b *testing.B) {
	dividend := U256{Words: [4]uint64{0xaaaaaaaaaaaaaaaa, 0xbbbbbbbbbbbbbbbb, 0xcccccccccccccccc, 0xdddddddddddddddd}}
	divisor := U256{Words: [4]uint64{0x1111111111111111, 0x2222222222222222, 0x3333333333333333, 0}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dividend.CheckedDiv(divisor); err != nil {
			b.Fatal(err)
		}
	}
}

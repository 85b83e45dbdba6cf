// Package u256 implements a 256-bit unsigned integer with saturation-
// checked arithmetic, ported from the Knuth Algorithm D long-division used
// by the reference Orca-Whirlpool-derived U256 implementation this kernel's
// quote math is built on. Every operation is total: it returns
// (U256{}, error) instead of wrapping or panicking on overflow/underflow/
// division-by-zero.
package u256

import (
	"encoding/binary"
	"math/bits"

	"github.com/relaykit/quoterkernel/internal/qerr"
)

const numWords = 4

// U256 is a 256-bit unsigned integer stored as four little-endian 64-bit
// words: Words[0] is least significant, Words[3] is most significant.
type U256 struct {
	Words [numWords]uint64
}

// New builds a U256 from its high and low 128-bit halves, each given as
// (hi64, lo64).
func New(hi, lo [2]uint64) U256 {
	return U256{Words: [4]uint64{lo[1], lo[0], hi[1], hi[0]}}
}

func FromU64(v uint64) U256 {
	return U256{Words: [4]uint64{v, 0, 0, 0}}
}

// FromU128 builds a U256 from a 128-bit value given as (hi, lo) uint64 halves.
func FromU128(hi, lo uint64) U256 {
	return U256{Words: [4]uint64{lo, hi, 0, 0}}
}

// numWordsUsed returns the index of the highest non-zero word, plus one;
// zero for the zero value.
func (a U256) numWordsUsed() int {
	for i := numWords - 1; i >= 0; i-- {
		if a.Words[i] != 0 {
			return i + 1
		}
	}
	return 0
}

func (a U256) IsZero() bool {
	return a.numWordsUsed() == 0
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a U256) Cmp(b U256) int {
	for i := numWords - 1; i >= 0; i-- {
		if a.Words[i] < b.Words[i] {
			return -1
		}
		if a.Words[i] > b.Words[i] {
			return 1
		}
	}
	return 0
}

func (a U256) LessThan(b U256) bool    { return a.Cmp(b) < 0 }
func (a U256) GreaterThan(b U256) bool { return a.Cmp(b) > 0 }
func (a U256) Equal(b U256) bool       { return a.Cmp(b) == 0 }

// TryIntoU64 returns the value as a uint64, or an error if it does not fit.
func (a U256) TryIntoU64() (uint64, error) {
	if a.numWordsUsed() > 1 {
		return 0, qerr.New(qerr.CodeMathOverflow, "u256: value exceeds u64")
	}
	return a.Words[0], nil
}

// TryIntoU128 returns the low 128 bits as (hi, lo) uint64 halves, or an
// error if the value does not fit in 128 bits.
func (a U256) TryIntoU128() (hi, lo uint64, err error) {
	if a.numWordsUsed() > 2 {
		return 0, 0, qerr.New(qerr.CodeMathOverflow, "u256: value exceeds u128")
	}
	return a.Words[1], a.Words[0], nil
}

// ToBigEndianBytes renders the value as 32 bytes, most significant word
// first, matching EVM uint256 wire representation.
func (a U256) ToBigEndianBytes() [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[0:8], a.Words[3])
	binary.BigEndian.PutUint64(out[8:16], a.Words[2])
	binary.BigEndian.PutUint64(out[16:24], a.Words[1])
	binary.BigEndian.PutUint64(out[24:32], a.Words[0])
	return out
}

// FromBigEndianBytes parses the 32-byte big-endian representation produced
// by ToBigEndianBytes.
func FromBigEndianBytes(b [32]byte) U256 {
	return fromBigEndianBytes(b)
}

// CheckedAdd returns a+b, or an error if the true sum does not fit in 256
// bits.
func (a U256) CheckedAdd(b U256) (U256, error) {
	var out U256
	var carry uint64
	for i := 0; i < numWords; i++ {
		sum, c := bits.Add64(a.Words[i], b.Words[i], carry)
		out.Words[i] = sum
		carry = c
	}
	if carry != 0 {
		return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: add overflow")
	}
	return out, nil
}

// CheckedSub returns a-b, or an error if b > a.
func (a U256) CheckedSub(b U256) (U256, error) {
	if a.LessThan(b) {
		return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: sub underflow")
	}
	var out U256
	var borrow uint64
	for i := 0; i < numWords; i++ {
		diff, bw := bits.Sub64(a.Words[i], b.Words[i], borrow)
		out.Words[i] = diff
		borrow = bw
	}
	return out, nil
}

// CheckedMul returns a*b, or an error if the true product does not fit in
// 256 bits.
func (a U256) CheckedMul(b U256) (U256, error) {
	var out U256
	m := a.numWordsUsed()
	n := b.numWordsUsed()

	if m == 0 || n == 0 {
		return U256{}, nil
	}
	if m+n > numWords+1 {
		return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: mul overflow")
	}

	for j := 0; j < n; j++ {
		var carry uint64
		for i := 0; i < m; i++ {
			hi, lo := bits.Mul64(a.Words[i], b.Words[j])
			if i+j < numWords {
				sum, c1 := bits.Add64(lo, out.Words[i+j], 0)
				sum2, c2 := bits.Add64(sum, carry, 0)
				out.Words[i+j] = sum2
				carry = hi + c1 + c2
			} else if hi != 0 || lo != 0 {
				return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: mul overflow")
			}
		}
		if j+m < numWords {
			sum, c := bits.Add64(out.Words[j+m], carry, 0)
			out.Words[j+m] = sum
			if c != 0 {
				return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: mul overflow")
			}
		} else if carry != 0 {
			return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: mul overflow")
		}
	}

	return out, nil
}

// CheckedDiv returns a/b truncated toward zero, or an error if b is zero.
// Implements Knuth Algorithm D with single-word-divisor and fits-in-u128
// fast paths for the common cases this kernel's pricing formula exercises.
func (a U256) CheckedDiv(b U256) (U256, error) {
	dividend := a
	divisor := b

	nDividend := dividend.numWordsUsed()
	nDivisor := divisor.numWordsUsed()

	if nDivisor == 0 {
		return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: division by zero")
	}
	if nDividend == 0 {
		return U256{}, nil
	}
	if nDividend < nDivisor {
		return U256{}, nil
	}

	// Fast path: both operands fit in 128 bits.
	if nDividend < 3 {
		dHi, dLo, _ := dividend.TryIntoU128()
		vHi, vLo, _ := divisor.TryIntoU128()
		qHi, qLo := div128(dHi, dLo, vHi, vLo)
		return FromU128(qHi, qLo), nil
	}

	// Fast path: single-word divisor.
	if nDivisor == 1 {
		var quotient U256
		var rem uint64
		v := divisor.Words[0]
		for j := nDividend - 1; j >= 0; j-- {
			q, r := bits.Div64(rem, dividend.Words[j], v)
			quotient.Words[j] = q
			rem = r
		}
		return quotient, nil
	}

	return knuthDivide(dividend, divisor), nil
}

// knuthDivide handles the general case, where the divisor spans two or more
// words and doesn't fit either fast path above. Ported by hand from the
// reference implementation's div_loop: normalize both operands so the
// divisor's top word has its high bit set, then for each quotient word from
// most to least significant, estimate qhat from the top two dividend words,
// correct it down (at most twice) using the divisor's second-highest word,
// multiply-and-subtract it from the working remainder, and add the divisor
// back if the subtraction borrowed (qhat was one too high).
func knuthDivide(dividend, divisor U256) U256 {
	n := divisor.numWordsUsed()
	m := dividend.numWordsUsed() - n

	// Normalizing shift: makes v[n-1] >= 2^63 so Knuth's qhat estimate is
	// never more than 2 above the true digit.
	shift := uint(bits.LeadingZeros64(divisor.Words[n-1]))

	v := make([]uint64, n)
	copy(v, divisor.Words[:n])
	shiftWordsLeft(v, shift)

	// u holds the dividend plus one extra leading word to catch the carry
	// the normalizing shift produces.
	u := make([]uint64, numWords+1)
	copy(u, dividend.Words[:])
	shiftWordsLeft(u, shift)

	q := make([]uint64, m+1)
	for j := m; j >= 0; j-- {
		var qhat, rhat uint64
		var rhatOverflowed bool
		if u[j+n] == v[n-1] {
			qhat = ^uint64(0)
			var carry uint64
			rhat, carry = bits.Add64(u[j+n-1], v[n-1], 0)
			rhatOverflowed = carry != 0
		} else {
			qhat, rhat = bits.Div64(u[j+n], u[j+n-1], v[n-1])
		}

		// qhat may be up to 2 too high; bring it down using the divisor's
		// second-highest word, same as Knuth's step D3.
		for !rhatOverflowed {
			hi, lo := bits.Mul64(qhat, v[n-2])
			if hi < rhat || (hi == rhat && lo <= u[j+n-2]) {
				break
			}
			qhat--
			var carry uint64
			rhat, carry = bits.Add64(rhat, v[n-1], 0)
			rhatOverflowed = carry != 0
		}

		// Multiply qhat*v and subtract it from u[j..j+n].
		var mulCarry, borrow uint64
		for i := 0; i < n; i++ {
			hi, lo := bits.Mul64(qhat, v[i])
			lo, c := bits.Add64(lo, mulCarry, 0)
			mulCarry = hi + c
			var b uint64
			u[j+i], b = bits.Sub64(u[j+i], lo, borrow)
			borrow = b
		}
		u[j+n], borrow = bits.Sub64(u[j+n], mulCarry, borrow)

		if borrow != 0 {
			// qhat was one too large: add the divisor back and drop one.
			qhat--
			var carry uint64
			for i := 0; i < n; i++ {
				u[j+i], carry = bits.Add64(u[j+i], v[i], carry)
			}
			u[j+n] += carry
		}

		q[j] = qhat
	}

	var result U256
	for i := 0; i <= m; i++ {
		result.Words[i] = q[i]
	}
	return result
}

// shiftWordsLeft shifts words (little-endian, in place) left by shift bits,
// 0 <= shift < 64, propagating carries into higher words. The caller is
// responsible for leaving room at the top of words for any carry-out.
func shiftWordsLeft(words []uint64, shift uint) {
	if shift == 0 {
		return
	}
	for i := len(words) - 1; i > 0; i-- {
		words[i] = (words[i] << shift) | (words[i-1] >> (64 - shift))
	}
	words[0] <<= shift
}

func fromBigEndianBytes(b [32]byte) U256 {
	return U256{Words: [numWords]uint64{
		binary.BigEndian.Uint64(b[24:32]),
		binary.BigEndian.Uint64(b[16:24]),
		binary.BigEndian.Uint64(b[8:16]),
		binary.BigEndian.Uint64(b[0:8]),
	}}
}

// div128 divides a 128-bit dividend (hi,lo) by a 128-bit divisor (hi,lo),
// both guaranteed by the caller to actually fit in 128 bits (the quotient
// therefore fits in 128 bits too).
func div128(dHi, dLo, vHi, vLo uint64) (qHi, qLo uint64) {
	if vHi == 0 {
		if dHi == 0 {
			return 0, dLo / vLo
		}
		if dHi < vLo {
			q, _ := bits.Div64(dHi, dLo, vLo)
			return 0, q
		}
		qh, rh := dHi/vLo, dHi%vLo
		ql, _ := bits.Div64(rh, dLo, vLo)
		return qh, ql
	}
	// Divisor itself spans both 64-bit halves: binary shift-and-subtract,
	// since no 128-bit divisor fits bits.Div64's single-word-divisor
	// requirement. This path is only reached when divisor > 2^64, in which
	// case the quotient is necessarily small; simple bit-by-bit long
	// division over 128 bits is sufficient in both performance and clarity.
	num := [2]uint64{dLo, dHi}
	den := [2]uint64{vLo, vHi}
	var quot, rem [2]uint64
	for bit := 127; bit >= 0; bit-- {
		rem = shl128(rem)
		if getBit128(num, bit) {
			rem[0] |= 1
		}
		if cmp128(rem, den) >= 0 {
			rem = sub128(rem, den)
			setBit128(&quot, bit)
		}
	}
	return quot[1], quot[0]
}

func shl128(v [2]uint64) [2]uint64 {
	return [2]uint64{v[0] << 1, (v[1] << 1) | (v[0] >> 63)}
}

func getBit128(v [2]uint64, bit int) bool {
	if bit < 64 {
		return (v[0]>>uint(bit))&1 == 1
	}
	return (v[1]>>uint(bit-64))&1 == 1
}

func setBit128(v *[2]uint64, bit int) {
	if bit < 64 {
		v[0] |= 1 << uint(bit)
	} else {
		v[1] |= 1 << uint(bit-64)
	}
}

func cmp128(a, b [2]uint64) int {
	if a[1] != b[1] {
		if a[1] < b[1] {
			return -1
		}
		return 1
	}
	if a[0] != b[0] {
		if a[0] < b[0] {
			return -1
		}
		return 1
	}
	return 0
}

func sub128(a, b [2]uint64) [2]uint64 {
	lo, borrow := bits.Sub64(a[0], b[0], 0)
	hi, _ := bits.Sub64(a[1], b[1], borrow)
	return [2]uint64{lo, hi}
}

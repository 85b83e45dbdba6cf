package u256

import "github.com/relaykit/quoterkernel/internal/qerr"

// pow10Table mirrors the reference implementation's POW10 lookup table: 10^0
// through 10^32, all of which fit in 128 bits (and therefore always fit in
// 256 once promoted).
var pow10Table = [33]U256{}

func init() {
	pow10Table[0] = FromU64(1)
	ten := FromU64(10)
	for i := 1; i < len(pow10Table); i++ {
		v, err := pow10Table[i-1].CheckedMul(ten)
		if err != nil {
			panic("u256: pow10 table overflowed during init")
		}
		pow10Table[i] = v
	}
}

// Pow10 returns 10^exp. exp must be in [0, 32]; the reference pricing
// formula never exceeds a decimals delta of 18, so this range comfortably
// covers every call site.
func Pow10(exp uint8) (U256, error) {
	if int(exp) >= len(pow10Table) {
		return U256{}, qerr.New(qerr.CodeMathOverflow, "u256: pow10 exponent out of range")
	}
	return pow10Table[exp], nil
}

// Normalize rescales amount from a value expressed with `from` decimals to
// one expressed with `to` decimals, truncating any precision lost when
// narrowing.
func Normalize(amount U256, from, to uint8) (U256, error) {
	if from == to {
		return amount, nil
	}
	if from > to {
		p, err := Pow10(from - to)
		if err != nil {
			return U256{}, err
		}
		return amount.CheckedDiv(p)
	}
	p, err := Pow10(to - from)
	if err != nil {
		return U256{}, err
	}
	return amount.CheckedMul(p)
}

// MulDecimals computes (a*b)/10^decimals, the fixed-point multiply used
// throughout the quote formula.
func MulDecimals(a, b U256, decimals uint8) (U256, error) {
	p, err := Pow10(decimals)
	if err != nil {
		return U256{}, err
	}
	prod, err := a.CheckedMul(b)
	if err != nil {
		return U256{}, err
	}
	return prod.CheckedDiv(p)
}

// DivDecimals computes (a*10^decimals)/b, the fixed-point divide used
// throughout the quote formula.
func DivDecimals(a, b U256, decimals uint8) (U256, error) {
	p, err := Pow10(decimals)
	if err != nil {
		return U256{}, err
	}
	scaled, err := a.CheckedMul(p)
	if err != nil {
		return U256{}, err
	}
	return scaled.CheckedDiv(b)
}

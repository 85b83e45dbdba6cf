// Package codec implements the bit-exact wire formats this kernel's
// subsystems exchange: the packed on-chain quote body (EQ01), the signed
// quote (EQ02), the governance message (EG01), the relay-instruction
// stream, and the relay-request payload variants. Every field's offset,
// width, and endianness is fixed by the wire format, not by host
// convention, and is kept in one place per record type so the layout in
// this file is the single source of truth for both directions
// (Encode/Decode).
package codec

import (
	"encoding/binary"

	"github.com/relaykit/quoterkernel/internal/qerr"
	"github.com/relaykit/quoterkernel/internal/u256"
)

func truncated(what string) error {
	return qerr.New(qerr.CodeInvalidInstructionData, "codec: truncated "+what)
}

// --- EQ01: packed on-chain quote body, 32 bytes, all big-endian. ---

type EQ01 struct {
	BaseFee     uint64
	DstGasPrice uint64
	SrcPrice    uint64
	DstPrice    uint64
}

func (q EQ01) Encode() [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint64(out[0:8], q.BaseFee)
	binary.BigEndian.PutUint64(out[8:16], q.DstGasPrice)
	binary.BigEndian.PutUint64(out[16:24], q.SrcPrice)
	binary.BigEndian.PutUint64(out[24:32], q.DstPrice)
	return out
}

func DecodeEQ01(b []byte) (EQ01, error) {
	if len(b) < 32 {
		return EQ01{}, truncated("EQ01")
	}
	return EQ01{
		BaseFee:     binary.BigEndian.Uint64(b[0:8]),
		DstGasPrice: binary.BigEndian.Uint64(b[8:16]),
		SrcPrice:    binary.BigEndian.Uint64(b[16:24]),
		DstPrice:    binary.BigEndian.Uint64(b[24:32]),
	}, nil
}

// --- EQ02: signed quote, 100 bytes. ---

const eq02Prefix = "EQ02"

type EQ02 struct {
	QuoterAddress [20]byte
	PayeeAddress  [32]byte
	SrcChain      uint16
	DstChain      uint16
	ExpiryTime    uint64
	QuoteBody     [32]byte
}

func (q EQ02) Encode() [100]byte {
	var out [100]byte
	copy(out[0:4], eq02Prefix)
	copy(out[4:24], q.QuoterAddress[:])
	copy(out[24:56], q.PayeeAddress[:])
	binary.BigEndian.PutUint16(out[56:58], q.SrcChain)
	binary.BigEndian.PutUint16(out[58:60], q.DstChain)
	binary.BigEndian.PutUint64(out[60:68], q.ExpiryTime)
	copy(out[68:100], q.QuoteBody[:])
	return out
}

func DecodeEQ02(b []byte) (EQ02, error) {
	if len(b) < 100 {
		return EQ02{}, truncated("EQ02")
	}
	if string(b[0:4]) != eq02Prefix {
		return EQ02{}, qerr.New(qerr.CodeInvalidGovernancePrefix, "codec: EQ02 prefix mismatch")
	}
	var q EQ02
	copy(q.QuoterAddress[:], b[4:24])
	copy(q.PayeeAddress[:], b[24:56])
	q.SrcChain = binary.BigEndian.Uint16(b[56:58])
	q.DstChain = binary.BigEndian.Uint16(b[58:60])
	q.ExpiryTime = binary.BigEndian.Uint64(b[60:68])
	copy(q.QuoteBody[:], b[68:100])
	return q, nil
}

// EQ02HeaderLen is the minimum prefix the executor needs to validate before
// it even looks at the quote body (spec's "bytes 0..68" header check).
const EQ02HeaderLen = 68

// --- EG01: governance message, 163 bytes. ---

const eg01Prefix = "EG01"

// EG01SignedLen is the number of leading bytes that are actually signed
// (bytes 0..98); everything from 98 on is the signature itself.
const EG01SignedLen = 98

type EG01 struct {
	ChainID                  uint16
	QuoterAddress             [20]byte
	UniversalContractAddress  [32]byte
	UniversalSenderAddress    [32]byte
	ExpiryTime                uint64
	SignatureR                [32]byte
	SignatureS                [32]byte
	SignatureV                byte
}

func (g EG01) Encode() [163]byte {
	var out [163]byte
	copy(out[0:4], eg01Prefix)
	binary.BigEndian.PutUint16(out[4:6], g.ChainID)
	copy(out[6:26], g.QuoterAddress[:])
	copy(out[26:58], g.UniversalContractAddress[:])
	copy(out[58:90], g.UniversalSenderAddress[:])
	binary.BigEndian.PutUint64(out[90:98], g.ExpiryTime)
	copy(out[98:130], g.SignatureR[:])
	copy(out[130:162], g.SignatureS[:])
	out[162] = g.SignatureV
	return out
}

func DecodeEG01(b []byte) (EG01, error) {
	if len(b) < 163 {
		return EG01{}, truncated("EG01")
	}
	if string(b[0:4]) != eg01Prefix {
		return EG01{}, qerr.New(qerr.CodeInvalidGovernancePrefix, "codec: EG01 prefix mismatch")
	}
	var g EG01
	g.ChainID = binary.BigEndian.Uint16(b[4:6])
	copy(g.QuoterAddress[:], b[6:26])
	copy(g.UniversalContractAddress[:], b[26:58])
	copy(g.UniversalSenderAddress[:], b[58:90])
	g.ExpiryTime = binary.BigEndian.Uint64(b[90:98])
	copy(g.SignatureR[:], b[98:130])
	copy(g.SignatureS[:], b[130:162])
	g.SignatureV = b[162]
	return g, nil
}

// --- Relay-instruction stream: Type 1 (Gas) / Type 2 (DropOff). ---

const (
	relayTagGas     = 0x01
	relayTagDropOff = 0x02

	relayGasLen     = 33 // 1 + 16 + 16
	relayDropOffLen = 49 // 1 + 16 + 32
)

func u128BytesToU256(b []byte) u256.U256 {
	var full [32]byte
	copy(full[16:32], b)
	return u256.FromBigEndianBytes(full)
}

// addU128Checked adds two values known to fit in 128 bits and fails with
// CodeMathOverflow the instant the running total itself no longer fits in
// 128 bits, per spec §4.2/§9 ("checked u128 addition" on the Reduce
// accumulator) — the accumulator is a u128, not a u256, so overflow must
// trigger at 2^128, not at this package's 2^256 storage width.
func addU128Checked(acc, v u256.U256) (u256.U256, error) {
	sum, err := acc.CheckedAdd(v)
	if err != nil {
		return u256.U256{}, err
	}
	if sum.Words[2] != 0 || sum.Words[3] != 0 {
		return u256.U256{}, qerr.New(qerr.CodeMathOverflow, "codec: relay-instruction accumulator overflowed u128")
	}
	return sum, nil
}

// Reduce walks a concatenated relay-instruction byte stream left to right
// and accumulates (gasLimit, msgValue), per spec §4.2. Order does not
// affect the result beyond the at-most-one-DropOff rule.
func Reduce(stream []byte) (gasLimit, msgValue u256.U256, err error) {
	seenDropOff := false
	i := 0
	for i < len(stream) {
		tag := stream[i]
		switch tag {
		case relayTagGas:
			if i+relayGasLen > len(stream) {
				return u256.U256{}, u256.U256{}, qerr.New(qerr.CodeInvalidRelayInstructions, "codec: truncated gas instruction")
			}
			gas := u128BytesToU256(stream[i+1 : i+17])
			val := u128BytesToU256(stream[i+17 : i+33])
			gasLimit, err = addU128Checked(gasLimit, gas)
			if err != nil {
				return u256.U256{}, u256.U256{}, err
			}
			msgValue, err = addU128Checked(msgValue, val)
			if err != nil {
				return u256.U256{}, u256.U256{}, err
			}
			i += relayGasLen
		case relayTagDropOff:
			if seenDropOff {
				return u256.U256{}, u256.U256{}, qerr.New(qerr.CodeMoreThanOneDropOff, "codec: more than one drop-off instruction")
			}
			seenDropOff = true
			if i+relayDropOffLen > len(stream) {
				return u256.U256{}, u256.U256{}, qerr.New(qerr.CodeInvalidRelayInstructions, "codec: truncated drop-off instruction")
			}
			val := u128BytesToU256(stream[i+1 : i+17])
			// bytes i+17:i+49 are the 32-byte recipient; not consumed by pricing.
			msgValue, err = addU128Checked(msgValue, val)
			if err != nil {
				return u256.U256{}, u256.U256{}, err
			}
			i += relayDropOffLen
		default:
			return u256.U256{}, u256.U256{}, qerr.New(qerr.CodeUnsupportedInstruction, "codec: unsupported relay instruction tag")
		}
	}
	return gasLimit, msgValue, nil
}

// --- Relay-request payloads (producer side; not consumed by pricing). ---

// ERV1 is the Wormhole VAA-v1 relay-request payload, 46 bytes.
type ERV1 struct {
	Chain    uint16
	Address  [32]byte
	Sequence uint64
}

func (r ERV1) Encode() [46]byte {
	var out [46]byte
	copy(out[0:4], "ERV1")
	binary.BigEndian.PutUint16(out[4:6], r.Chain)
	copy(out[6:38], r.Address[:])
	binary.BigEndian.PutUint64(out[38:46], r.Sequence)
	return out
}

func DecodeERV1(b []byte) (ERV1, error) {
	if len(b) < 46 {
		return ERV1{}, truncated("ERV1")
	}
	if string(b[0:4]) != "ERV1" {
		return ERV1{}, qerr.New(qerr.CodeInvalidGovernancePrefix, "codec: ERV1 prefix mismatch")
	}
	var r ERV1
	r.Chain = binary.BigEndian.Uint16(b[4:6])
	copy(r.Address[:], b[6:38])
	r.Sequence = binary.BigEndian.Uint64(b[38:46])
	return r, nil
}

// ERN1 is the NTT-v1 relay-request payload, 70 bytes.
type ERN1 struct {
	SourceChain   uint16
	SourceManager [32]byte
	MessageID     [32]byte
}

func (r ERN1) Encode() [70]byte {
	var out [70]byte
	copy(out[0:4], "ERN1")
	binary.BigEndian.PutUint16(out[4:6], r.SourceChain)
	copy(out[6:38], r.SourceManager[:])
	copy(out[38:70], r.MessageID[:])
	return out
}

func DecodeERN1(b []byte) (ERN1, error) {
	if len(b) < 70 {
		return ERN1{}, truncated("ERN1")
	}
	if string(b[0:4]) != "ERN1" {
		return ERN1{}, qerr.New(qerr.CodeInvalidGovernancePrefix, "codec: ERN1 prefix mismatch")
	}
	var r ERN1
	r.SourceChain = binary.BigEndian.Uint16(b[4:6])
	copy(r.SourceManager[:], b[6:38])
	copy(r.MessageID[:], b[38:70])
	return r, nil
}

// ERC1 is the CCTP-v1 relay-request payload, 16 bytes.
type ERC1 struct {
	SourceDomain uint32
	Nonce        uint64
}

func (r ERC1) Encode() [16]byte {
	var out [16]byte
	copy(out[0:4], "ERC1")
	binary.BigEndian.PutUint32(out[4:8], r.SourceDomain)
	binary.BigEndian.PutUint64(out[8:16], r.Nonce)
	return out
}

func DecodeERC1(b []byte) (ERC1, error) {
	if len(b) < 16 {
		return ERC1{}, truncated("ERC1")
	}
	if string(b[0:4]) != "ERC1" {
		return ERC1{}, qerr.New(qerr.CodeInvalidGovernancePrefix, "codec: ERC1 prefix mismatch")
	}
	return ERC1{
		SourceDomain: binary.BigEndian.Uint32(b[4:8]),
		Nonce:        binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// ERC2 is the CCTP-v2 relay-request payload, 5 bytes: tag plus a single
// marker byte.
type ERC2 struct {
	Marker byte
}

func (r ERC2) Encode() [5]byte {
	var out [5]byte
	copy(out[0:4], "ERC2")
	out[4] = r.Marker
	return out
}

func DecodeERC2(b []byte) (ERC2, error) {
	if len(b) < 5 {
		return ERC2{}, truncated("ERC2")
	}
	if string(b[0:4]) != "ERC2" {
		return ERC2{}, qerr.New(qerr.CodeInvalidGovernancePrefix, "codec: ERC2 prefix mismatch")
	}
	return ERC2{Marker: b[4]}, nil
}

// ERG1 is a supplemented generic/opaque relay-request payload: a 4-byte
// tag followed by a length-prefixed opaque blob, for relay programs whose
// attestation format isn't one of the four named wire variants above.
type ERG1 struct {
	Payload []byte
}

func (r ERG1) Encode() []byte {
	out := make([]byte, 4+4+len(r.Payload))
	copy(out[0:4], "ERG1")
	binary.BigEndian.PutUint32(out[4:8], uint32(len(r.Payload)))
	copy(out[8:], r.Payload)
	return out
}

func DecodeERG1(b []byte) (ERG1, error) {
	if len(b) < 8 {
		return ERG1{}, truncated("ERG1")
	}
	if string(b[0:4]) != "ERG1" {
		return ERG1{}, qerr.New(qerr.CodeInvalidGovernancePrefix, "codec: ERG1 prefix mismatch")
	}
	n := binary.BigEndian.Uint32(b[4:8])
	if uint32(len(b)-8) < n {
		return ERG1{}, truncated("ERG1 payload")
	}
	payload := make([]byte, n)
	copy(payload, b[8:8+n])
	return ERG1{Payload: payload}, nil
}

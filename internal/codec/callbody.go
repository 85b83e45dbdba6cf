package codec

import (
	"encoding/binary"

	"github.com/relaykit/quoterkernel/internal/qerr"
)

// Discriminators for the quoter's two read-only entry points, per §6.5.
// These are instruction-data framing, not the EQ0x/EG01 wire formats, so
// they follow host (little-endian) convention rather than wire
// big-endian.
var (
	DiscriminatorRequestQuote         = [8]byte{2, 0, 0, 0, 0, 0, 0, 0}
	DiscriminatorRequestExecutionQuote = [8]byte{3, 0, 0, 0, 0, 0, 0, 0}
)

// QuoterCallPayload is the shared sub-layout both RequestQuote and
// RequestExecutionQuote frame their arguments with.
type QuoterCallPayload struct {
	Discriminator     [8]byte
	DstChain          uint16
	DstAddr           [32]byte
	RefundAddr        [32]byte
	RequestBytes      []byte
	RelayInstructions []byte
}

func (p QuoterCallPayload) Encode() []byte {
	out := make([]byte, 0, 8+2+32+32+4+len(p.RequestBytes)+4+len(p.RelayInstructions))
	out = append(out, p.Discriminator[:]...)
	var chainBuf [2]byte
	binary.LittleEndian.PutUint16(chainBuf[:], p.DstChain)
	out = append(out, chainBuf[:]...)
	out = append(out, p.DstAddr[:]...)
	out = append(out, p.RefundAddr[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p.RequestBytes)))
	out = append(out, lenBuf[:]...)
	out = append(out, p.RequestBytes...)
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p.RelayInstructions)))
	out = append(out, lenBuf[:]...)
	out = append(out, p.RelayInstructions...)
	return out
}

func DecodeQuoterCallPayload(b []byte) (QuoterCallPayload, error) {
	const fixedLen = 8 + 2 + 32 + 32 + 4
	if len(b) < fixedLen {
		return QuoterCallPayload{}, qerr.New(qerr.CodeInvalidInstructionData, "codec: truncated quoter call payload header")
	}
	var p QuoterCallPayload
	copy(p.Discriminator[:], b[0:8])
	p.DstChain = binary.LittleEndian.Uint16(b[8:10])
	copy(p.DstAddr[:], b[10:42])
	copy(p.RefundAddr[:], b[42:74])

	off := 74
	if len(b) < off+4 {
		return QuoterCallPayload{}, qerr.New(qerr.CodeInvalidInstructionData, "codec: truncated request_bytes length")
	}
	reqLen := int(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b) < off+reqLen {
		return QuoterCallPayload{}, qerr.New(qerr.CodeInvalidInstructionData, "codec: truncated request_bytes")
	}
	p.RequestBytes = append([]byte(nil), b[off:off+reqLen]...)
	off += reqLen

	if len(b) < off+4 {
		return QuoterCallPayload{}, qerr.New(qerr.CodeInvalidInstructionData, "codec: truncated relay_instructions length")
	}
	relayLen := int(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b) < off+relayLen {
		return QuoterCallPayload{}, qerr.New(qerr.CodeInvalidInstructionData, "codec: truncated relay_instructions")
	}
	p.RelayInstructions = append([]byte(nil), b[off:off+relayLen]...)

	return p, nil
}

// RouterRequestExecutionBody is the router's RequestExecution instruction
// body: amount, the target quoter's 20-byte address, then the embedded
// RequestExecutionQuote call payload.
type RouterRequestExecutionBody struct {
	Amount        uint64
	QuoterAddress [20]byte
	QuoterPayload QuoterCallPayload
}

func (b RouterRequestExecutionBody) Encode() []byte {
	out := make([]byte, 0, 8+20)
	var amountBuf [8]byte
	binary.LittleEndian.PutUint64(amountBuf[:], b.Amount)
	out = append(out, amountBuf[:]...)
	out = append(out, b.QuoterAddress[:]...)
	out = append(out, b.QuoterPayload.Encode()...)
	return out
}

func DecodeRouterRequestExecutionBody(b []byte) (RouterRequestExecutionBody, error) {
	if len(b) < 28 {
		return RouterRequestExecutionBody{}, qerr.New(qerr.CodeInvalidInstructionData, "codec: truncated request_execution body")
	}
	var out RouterRequestExecutionBody
	out.Amount = binary.LittleEndian.Uint64(b[0:8])
	copy(out.QuoterAddress[:], b[8:28])
	payload, err := DecodeQuoterCallPayload(b[28:])
	if err != nil {
		return RouterRequestExecutionBody{}, err
	}
	out.QuoterPayload = payload
	return out, nil
}

// RequestExecutionQuoteReturn is the 72-byte out-of-band return payload
// RequestExecutionQuote produces: required_payment (u64 BE) || payee (32)
// || quote_body (32, EQ01-packed).
type RequestExecutionQuoteReturn struct {
	RequiredPayment uint64
	Payee           [32]byte
	QuoteBody       [32]byte
}

func (r RequestExecutionQuoteReturn) Encode() [72]byte {
	var out [72]byte
	binary.BigEndian.PutUint64(out[0:8], r.RequiredPayment)
	copy(out[8:40], r.Payee[:])
	copy(out[40:72], r.QuoteBody[:])
	return out
}

func DecodeRequestExecutionQuoteReturn(b []byte) (RequestExecutionQuoteReturn, error) {
	if len(b) != 72 {
		return RequestExecutionQuoteReturn{}, qerr.New(qerr.CodeInvalidReturnData, "codec: request_execution_quote return must be exactly 72 bytes")
	}
	var out RequestExecutionQuoteReturn
	out.RequiredPayment = binary.BigEndian.Uint64(b[0:8])
	copy(out.Payee[:], b[8:40])
	copy(out.QuoteBody[:], b[40:72])
	return out, nil
}

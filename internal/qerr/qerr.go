// Package qerr defines the error taxonomy shared by every subsystem in this
// repository (u256, codec, pricing, quoter, router, executor). Every error
// those packages raise themselves is a *Error, so callers can switch on
// Code instead of matching strings. Failures coming from a Ledger or from
// storage I/O are wrapped with fmt.Errorf and carry no Code.
package qerr

import "fmt"

// Code is the frozen, numbered ABI of error conditions this kernel can
// surface. Numbering follows declaration order in spec.md §7 and must not
// be reordered once published: external callers are expected to
// discriminate on exact values.
type Code int

const (
	_ Code = iota

	// Input-framing
	CodeInvalidInstructionData
	CodeInvalidRelayInstructions
	CodeUnsupportedInstruction
	CodeMoreThanOneDropOff
	CodeInvalidGovernancePrefix
	CodeInvalidReturnData

	// Authorization
	CodeInvalidUpdater
	CodeInvalidSender
	CodeInvalidSignature
	CodeQuoterNotRegistered
	CodeInvalidOwner
	CodeInvalidDiscriminator

	// Business logic
	CodeChainDisabled
	CodeChainIDMismatch
	CodeGovernanceExpired
	CodeQuoteSrcChainMismatch
	CodeQuoteDstChainMismatch
	CodeQuoteExpired
	CodeQuotePayeeMismatch
	CodeUnderpaid

	// Arithmetic / resource
	CodeMathOverflow
	CodeRefundFailed

	// Routing / state
	CodeAlreadyInitialized
	CodeNotInitialized
	CodeInvalidPda
)

var names = map[Code]string{
	CodeInvalidInstructionData:   "InvalidInstructionData",
	CodeInvalidRelayInstructions: "InvalidRelayInstructions",
	CodeUnsupportedInstruction:   "UnsupportedInstruction",
	CodeMoreThanOneDropOff:       "MoreThanOneDropOff",
	CodeInvalidGovernancePrefix:  "InvalidGovernancePrefix",
	CodeInvalidReturnData:        "InvalidReturnData",
	CodeInvalidUpdater:           "InvalidUpdater",
	CodeInvalidSender:            "InvalidSender",
	CodeInvalidSignature:         "InvalidSignature",
	CodeQuoterNotRegistered:      "QuoterNotRegistered",
	CodeInvalidOwner:             "InvalidOwner",
	CodeInvalidDiscriminator:     "InvalidDiscriminator",
	CodeChainDisabled:            "ChainDisabled",
	CodeChainIDMismatch:          "ChainIdMismatch",
	CodeGovernanceExpired:        "GovernanceExpired",
	CodeQuoteSrcChainMismatch:    "QuoteSrcChainMismatch",
	CodeQuoteDstChainMismatch:    "QuoteDstChainMismatch",
	CodeQuoteExpired:             "QuoteExpired",
	CodeQuotePayeeMismatch:       "QuotePayeeMismatch",
	CodeUnderpaid:                "Underpaid",
	CodeMathOverflow:             "MathOverflow",
	CodeRefundFailed:             "RefundFailed",
	CodeAlreadyInitialized:       "AlreadyInitialized",
	CodeNotInitialized:           "NotInitialized",
	CodeInvalidPda:               "InvalidPda",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error wraps a Code with an optional underlying cause. It is the only
// error type this repository's core packages construct directly.
type Error struct {
	Code  Code
	Cause error
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Cause: fmt.Errorf("%s", msg)}
}

func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Has reports whether err, or anything it wraps, is a *Error with the given
// Code.
func Has(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

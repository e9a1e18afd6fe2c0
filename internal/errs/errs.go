// Package errs holds the error taxonomy of the issuance pipeline.
//
// Every failure carries a stable Code so handlers, metrics and tests can match
// on it without string comparison. Sentinels are matchable with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable failure tag.
type Code string

const (
	CodeMalformedProof          Code = "MalformedProof"
	CodeMalformedReference      Code = "MalformedReference"
	CodeUnrecognizedProofFormat Code = "UnrecognizedProofFormat"
	CodeLedgerTransactionFailed Code = "LedgerTransactionFailed"
	CodeLedgerUnconfirmed       Code = "LedgerUnconfirmed"
	CodeNullifierReused         Code = "NullifierReused"
	CodeIssuerRejected          Code = "IssuerRejected"
	CodeIssuerUnreachable       Code = "IssuerUnreachable"
	CodeCorruptToken            Code = "CorruptToken"
	CodeInvalidTransition       Code = "InvalidTransition"
	CodeInvalidRequest          Code = "InvalidRequest"
	CodeAlreadyClaimed          Code = "AlreadyClaimed"
	CodeInternal                Code = "Internal"
)

var (
	ErrMalformedProof          = errors.New("malformed proof")
	ErrMalformedReference      = errors.New("malformed ledger reference")
	ErrUnrecognizedProofFormat = errors.New("unrecognized proof format")
	ErrLedgerTransactionFailed = errors.New("ledger transaction failed")
	ErrLedgerUnconfirmed       = errors.New("ledger transaction unconfirmed")
	ErrNullifierReused         = errors.New("nullifier reused")
	ErrIssuerRejected          = errors.New("card issuer rejected request")
	ErrIssuerUnreachable       = errors.New("card issuer unreachable")
	ErrCorruptToken            = errors.New("corrupt claim token")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrAlreadyClaimed          = errors.New("gift already claimed")
)

var sentinels = map[Code]error{
	CodeMalformedProof:          ErrMalformedProof,
	CodeMalformedReference:      ErrMalformedReference,
	CodeUnrecognizedProofFormat: ErrUnrecognizedProofFormat,
	CodeLedgerTransactionFailed: ErrLedgerTransactionFailed,
	CodeLedgerUnconfirmed:       ErrLedgerUnconfirmed,
	CodeNullifierReused:         ErrNullifierReused,
	CodeIssuerRejected:          ErrIssuerRejected,
	CodeIssuerUnreachable:       ErrIssuerUnreachable,
	CodeCorruptToken:            ErrCorruptToken,
	CodeInvalidTransition:       ErrInvalidTransition,
	CodeInvalidRequest:          ErrInvalidRequest,
	CodeAlreadyClaimed:          ErrAlreadyClaimed,
}

// Sentinel returns the sentinel error for a code, or nil for unknown codes.
func Sentinel(code Code) error {
	return sentinels[code]
}

// CodeOf walks the error chain and returns the first matching code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	for code, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

// Phase names the pipeline step that failed.
type Phase string

const (
	PhaseRequest             Phase = "request_validation"
	PhasePaymentVerification Phase = "payment_verification"
	PhaseCardIssuance        Phase = "card_issuance"
	PhaseEncoding            Phase = "token_encoding"
	PhaseClaim               Phase = "claim"
)

// PhaseError is the tagged failure returned to the orchestrator's caller.
// Reason is safe to show to users: it never carries proof material or card numbers.
type PhaseError struct {
	Phase  Phase
	Code   Code
	Reason string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Phase, e.Code, e.Reason)
}

// Unwrap exposes the code's sentinel so errors.Is works on phase errors.
func (e *PhaseError) Unwrap() error {
	return Sentinel(e.Code)
}

// NewPhaseError builds a PhaseError.
func NewPhaseError(phase Phase, code Code, reason string) *PhaseError {
	return &PhaseError{Phase: phase, Code: code, Reason: reason}
}

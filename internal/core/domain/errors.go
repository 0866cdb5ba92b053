package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is thrown when trying to move a trade to a phase
	// that is not reachable from the current one.
	ErrInvalidTransition = errors.New("phase not reachable from current trade phase")
	// ErrTermsFrozen is thrown when trying to change the monetary terms of a
	// trade after the fund-lock transaction has been broadcast.
	ErrTermsFrozen = errors.New("trade terms are immutable once the deposit is published")
	// ErrTradeNotCancelable is thrown when trying to cancel a trade whose
	// funds are already committed on-ledger.
	ErrTradeNotCancelable = errors.New("trade can only be canceled before the deposit is published")
	// ErrContextFieldReassigned is thrown when trying to overwrite a
	// write-once trade context field with a different value.
	ErrContextFieldReassigned = errors.New("trade context field already set with a different value")
)

// ErrorKind classifies trade protocol failures.
type ErrorKind int

const (
	// KindUnknown is any failure the protocol could not classify.
	KindUnknown ErrorKind = iota
	// KindProgrammingInvariant means required state was missing, ie. steps
	// were sequenced incorrectly. Not user-facing.
	KindProgrammingInvariant
	// KindSecurityIntegrity means a key, signature or address consistency
	// check failed. Fatal, never retried.
	KindSecurityIntegrity
	// KindPeerProtocol means the counterparty sent an unexpected message
	// type or content.
	KindPeerProtocol
	// KindPeerTimeout means the counterparty did not reply within the bound.
	KindPeerTimeout
	// KindTxConstruction means the signing layer rejected the transaction
	// being built.
	KindTxConstruction
)

func (k ErrorKind) String() string {
	switch k {
	case KindProgrammingInvariant:
		return "programming_invariant_violation"
	case KindSecurityIntegrity:
		return "security_integrity_failure"
	case KindPeerProtocol:
		return "peer_protocol_failure"
	case KindPeerTimeout:
		return "peer_timeout"
	case KindTxConstruction:
		return "transaction_construction_failure"
	default:
		return "unknown"
	}
}

// TradeError is a classified protocol failure. The underlying cause is
// retained for display and audit.
type TradeError struct {
	kind ErrorKind
	err  error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.err)
}

func (e *TradeError) Unwrap() error {
	return e.err
}

func (e *TradeError) Kind() ErrorKind {
	return e.kind
}

// InvariantViolation returns a fatal error signaling that steps were invoked
// out of order or with missing required state.
func InvariantViolation(format string, args ...interface{}) *TradeError {
	return &TradeError{KindProgrammingInvariant, fmt.Errorf(format, args...)}
}

// SecurityFailure returns a fatal error for key/signature/address
// inconsistencies.
func SecurityFailure(format string, args ...interface{}) *TradeError {
	return &TradeError{KindSecurityIntegrity, fmt.Errorf(format, args...)}
}

// PeerProtocolFailure classifies an unexpected message from the counterparty.
func PeerProtocolFailure(format string, args ...interface{}) *TradeError {
	return &TradeError{KindPeerProtocol, fmt.Errorf(format, args...)}
}

// PeerTimeoutFailure classifies a missing reply from the counterparty.
func PeerTimeoutFailure(format string, args ...interface{}) *TradeError {
	return &TradeError{KindPeerTimeout, fmt.Errorf(format, args...)}
}

// TxConstructionFailure wraps a failure of the underlying signing layer.
func TxConstructionFailure(err error) *TradeError {
	return &TradeError{KindTxConstruction, err}
}

// KindOf returns the classification of err, or KindUnknown if it does not
// carry one.
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind()
	}
	return KindUnknown
}

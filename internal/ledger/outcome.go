package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrCreditRejected     = errors.New("ledger rejected credit")
	ErrCreditUnrecognized = errors.New("unrecognized ledger response")
)

// StatusCode is the cashier's response status.
type StatusCode int32

const (
	StatusOK                    StatusCode = 0
	StatusBadRequest            StatusCode = 400
	StatusLowBalance            StatusCode = 401
	StatusDisabledAsset         StatusCode = 403
	StatusUnknownAsset          StatusCode = 410
	StatusDuplicate             StatusCode = 430
	StatusInvalidVolumeAccuracy StatusCode = 431
	StatusRuntime               StatusCode = 500
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "Ok"
	case StatusBadRequest:
		return "BadRequest"
	case StatusLowBalance:
		return "LowBalance"
	case StatusDisabledAsset:
		return "DisabledAsset"
	case StatusUnknownAsset:
		return "UnknownAsset"
	case StatusDuplicate:
		return "Duplicate"
	case StatusInvalidVolumeAccuracy:
		return "InvalidVolumeAccuracy"
	case StatusRuntime:
		return "Runtime"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Outcome is the closed set of credit results. Callers branch on it with an
// OutcomeVisitor, so adding a variant breaks every caller at compile time.
type Outcome interface {
	Visit(v OutcomeVisitor) error
	String() string
}

// OutcomeVisitor handles each Outcome variant.
type OutcomeVisitor interface {
	OnAccepted(Accepted) error
	OnAlreadyApplied(AlreadyApplied) error
	OnRejected(Rejected) error
	OnUnrecognized(Unrecognized) error
}

// Accepted: a new credit was applied.
type Accepted struct {
	TransactionID string
}

// AlreadyApplied: the idempotency key was accepted before; no new credit.
type AlreadyApplied struct {
	TransactionID string
}

// Rejected: the ledger explicitly refused the credit.
type Rejected struct {
	Code   StatusCode
	Reason string
}

// Unrecognized: any status outside the known set, or no response at all.
type Unrecognized struct {
	Code    StatusCode
	Message string
}

func (o Accepted) Visit(v OutcomeVisitor) error       { return v.OnAccepted(o) }
func (o AlreadyApplied) Visit(v OutcomeVisitor) error { return v.OnAlreadyApplied(o) }
func (o Rejected) Visit(v OutcomeVisitor) error       { return v.OnRejected(o) }
func (o Unrecognized) Visit(v OutcomeVisitor) error   { return v.OnUnrecognized(o) }

func (o Accepted) String() string       { return "accepted" }
func (o AlreadyApplied) String() string { return "already_applied" }
func (o Rejected) String() string       { return "rejected" }
func (o Unrecognized) String() string   { return "unrecognized" }

// Err collapses an outcome to the error the ingestion pipeline acts on:
// nil for Accepted and AlreadyApplied.
func Err(o Outcome) error {
	return o.Visit(errVisitor{})
}

type errVisitor struct{}

func (errVisitor) OnAccepted(Accepted) error             { return nil }
func (errVisitor) OnAlreadyApplied(AlreadyApplied) error { return nil }

func (errVisitor) OnRejected(r Rejected) error {
	return fmt.Errorf("%w: status=%s reason=%q", ErrCreditRejected, r.Code, r.Reason)
}

func (errVisitor) OnUnrecognized(u Unrecognized) error {
	return fmt.Errorf("%w: status=%s message=%q", ErrCreditUnrecognized, u.Code, u.Message)
}

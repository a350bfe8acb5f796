// Package ledger holds the reconciliation rules of cash advances: balance
// folding, movement validation and the liquidation transition.
package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a recoverable, user-facing ledger failure
type Kind string

const (
	KindAdvanceLocked           Kind = "ADVANCE_LOCKED"
	KindMovementValidated       Kind = "MOVEMENT_VALIDATED"
	KindInvalidAmount           Kind = "INVALID_AMOUNT"
	KindInvalidCurrency         Kind = "INVALID_CURRENCY"
	KindInvalidField            Kind = "INVALID_FIELD"
	KindMissingCounterparty     Kind = "MISSING_COUNTERPARTY"
	KindMissingSourceAssignment Kind = "MISSING_SOURCE_ASSIGNMENT"
	KindMissingDocument         Kind = "MISSING_DOCUMENT"
	KindExceedsBalance          Kind = "EXCEEDS_BALANCE"
	KindAlreadyLiquidated       Kind = "ALREADY_LIQUIDATED"
	KindNotFound                Kind = "NOT_FOUND"
	KindInvalidTransition       Kind = "INVALID_TRANSITION"
	KindReasonRequired          Kind = "REASON_REQUIRED"
	KindVersionConflict         Kind = "VERSION_CONFLICT"
	KindDuplicateAdvance        Kind = "DUPLICATE_ADVANCE"
	KindAssignmentInUse         Kind = "ASSIGNMENT_IN_USE"
	KindImmutableField          Kind = "IMMUTABLE_FIELD"
)

// Error is a domain validation failure. It names the rule (Kind) and,
// when relevant, the offending field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on Kind only, so errors.Is(err, ErrExceedsBalance) holds for any
// field or message. A missing source assignment also counts as a missing
// counterparty linkage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindMissingCounterparty && e.Kind == KindMissingSourceAssignment
}

// Sentinels for errors.Is checks
var (
	ErrAdvanceLocked           = &Error{Kind: KindAdvanceLocked, Message: "advance is liquidated"}
	ErrMovementValidated       = &Error{Kind: KindMovementValidated, Message: "movement is treasury-validated"}
	ErrInvalidAmount           = &Error{Kind: KindInvalidAmount, Message: "amount must be positive"}
	ErrInvalidCurrency         = &Error{Kind: KindInvalidCurrency, Message: "invalid currency"}
	ErrInvalidField            = &Error{Kind: KindInvalidField, Message: "invalid field"}
	ErrMissingCounterparty     = &Error{Kind: KindMissingCounterparty, Message: "counterparty is required"}
	ErrMissingSourceAssignment = &Error{Kind: KindMissingSourceAssignment, Message: "source assignment is required"}
	ErrMissingDocument         = &Error{Kind: KindMissingDocument, Message: "invoice document is required"}
	ErrExceedsBalance          = &Error{Kind: KindExceedsBalance, Message: "expense exceeds available balance"}
	ErrAlreadyLiquidated       = &Error{Kind: KindAlreadyLiquidated, Message: "advance already liquidated"}
	ErrNotFound                = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition, Message: "transition not allowed"}
	ErrReasonRequired          = &Error{Kind: KindReasonRequired, Message: "reason is required"}
	ErrVersionConflict         = &Error{Kind: KindVersionConflict, Message: "record was modified concurrently"}
	ErrDuplicateAdvance        = &Error{Kind: KindDuplicateAdvance, Message: "an open advance already exists"}
	ErrAssignmentInUse         = &Error{Kind: KindAssignmentInUse, Message: "assignment funds existing expenses"}
	ErrImmutableField          = &Error{Kind: KindImmutableField, Message: "field cannot be changed"}
)

// Errorf builds a domain error of the given kind
func Errorf(kind Kind, field, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NOT_FOUND error for an entity
func NotFound(entity string, id int64) *Error {
	return Errorf(KindNotFound, entity, "%s %d not found", entity, id)
}

// AsError extracts the domain error from a chain, if any
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsDomainError reports whether err is a recoverable validation failure
// rather than an infrastructure failure
func IsDomainError(err error) bool {
	_, ok := AsError(err)
	return ok
}

package models

import (
	"errors"
	"fmt"
)

// Kind classifies failures so transports can map them without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindConflict
	KindNotFound
	KindInvalidInput
	KindInsufficientBalance
	KindInvalidVoucher
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInvalidVoucher:
		return "invalid_voucher"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels of the same kind and message, so wrapped copies created
// with Errorf still compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg && t.Err == nil
}

var (
	ErrVehicleAlreadyParked = &Error{Kind: KindConflict, Msg: "vehicle already parked"}
	ErrSessionNotFound      = &Error{Kind: KindNotFound, Msg: "no active parking session"}
	ErrMemberNotFound       = &Error{Kind: KindNotFound, Msg: "member not found"}
	ErrVoucherNotFound      = &Error{Kind: KindNotFound, Msg: "voucher not found"}
	ErrInvoiceNotFound      = &Error{Kind: KindNotFound, Msg: "invoice not found"}
	ErrInvalidVoucher       = &Error{Kind: KindInvalidVoucher, Msg: "voucher is not valid"}
	ErrInsufficientBalance  = &Error{Kind: KindInsufficientBalance, Msg: "insufficient member balance"}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrDuplicate            = &Error{Kind: KindConflict, Msg: "already exists"}
	ErrInfrastructure       = &Error{Kind: KindInfrastructure, Msg: "storage unavailable"}
)

// InvalidInput builds an input error with a caller-facing reason.
func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// InvalidVoucher wraps ErrInvalidVoucher with the reason the code was refused.
func InvalidVoucher(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidVoucher, reason)
}

// Infrastructure marks err as a dependency failure the caller may retry.
func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindInfrastructure, Msg: op, Err: err}
}

// KindOf walks the chain for the first classified error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindInfrastructure
}

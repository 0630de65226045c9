package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error categories callers can branch on.
type ErrorKind string

const (
	KindCategoryMismatch      ErrorKind = "CATEGORY_MISMATCH"
	KindAmountTooLow          ErrorKind = "AMOUNT_TOO_LOW"
	KindListingNotFound       ErrorKind = "LISTING_NOT_FOUND"
	KindInvalidRequest        ErrorKind = "INVALID_REQUEST"
	KindNotAuthenticated      ErrorKind = "NOT_AUTHENTICATED"
	KindForbidden             ErrorKind = "FORBIDDEN"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindConflict              ErrorKind = "CONFLICT"
	KindGateway               ErrorKind = "GATEWAY_ERROR"
	KindReconciliationAnomaly ErrorKind = "RECONCILIATION_ANOMALY"
	KindUnverifiedEvent       ErrorKind = "UNVERIFIED_EVENT"
)

// IsValidation reports whether the kind is a caller-correctable input error.
func (k ErrorKind) IsValidation() bool {
	switch k {
	case KindCategoryMismatch, KindAmountTooLow, KindListingNotFound, KindInvalidRequest:
		return true
	}
	return false
}

// Error is the structured error returned by every offer operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindLabel exposes the kind to span recorders without the message.
func (e *Error) KindLabel() string {
	return string(e.Kind)
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Kind == other.Kind
}

func NewError(kind ErrorKind, message string, context map[string]any, cause error) *Error {
	return &Error{Kind: kind, Message: message, Context: context, Err: cause}
}

// Kind sentinels for errors.Is.
var (
	ErrCategoryMismatch      = &Error{Kind: KindCategoryMismatch, Message: "category does not match listing"}
	ErrAmountTooLow          = &Error{Kind: KindAmountTooLow, Message: "amount too low"}
	ErrListingNotFound       = &Error{Kind: KindListingNotFound, Message: "listing not found"}
	ErrInvalidRequest        = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrNotAuthenticated      = &Error{Kind: KindNotAuthenticated, Message: "authentication required"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "offer not found"}
	ErrConflict              = &Error{Kind: KindConflict, Message: "offer no longer available"}
	ErrGateway               = &Error{Kind: KindGateway, Message: "payment system error, try again"}
	ErrReconciliationAnomaly = &Error{Kind: KindReconciliationAnomaly, Message: "reconciliation anomaly"}
	ErrUnverifiedEvent       = &Error{Kind: KindUnverifiedEvent, Message: "invalid signature"}
)

// KindOf returns the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed.Kind
	}
	return ""
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: ErrConflict.Message, Err: fmt.Errorf(format, args...)}
}

// NewConflict reports a failed conditional update.
func NewConflict(offerID fmt.Stringer, expected ...Status) *Error {
	return conflictf("offer %s not in %v", offerID, expected)
}

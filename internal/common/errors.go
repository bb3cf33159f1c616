// Package common: errors.go defines the error taxonomy shared by every
// feature. Handlers use KindOf to pick a status code and PublicMessage to
// decide what the caller is allowed to see.
package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientBalance
	KindForbidden
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Wallet errors
var (
	// ErrInvalidAmount: zero or negative amount
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInsufficientBalance: the wallet cannot cover the debit
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrDuplicateTransaction: the external transaction id was already credited
	ErrDuplicateTransaction = errors.New("transaction already processed")
	// ErrAccountNotFound: no account with this id
	ErrAccountNotFound = errors.New("user not found")
)

// Subscription errors
var (
	ErrAlreadySubscribed       = errors.New("you already have an active package, upgrade or wait for expiry")
	ErrNoActivePackage         = errors.New("no active package found")
	ErrNoPackage               = errors.New("no package to renew")
	ErrMustUpgradeToHigherTier = errors.New("you can only upgrade to a higher tier package")
	ErrPriceMismatch           = errors.New("quoted cost does not match the package price")
	ErrUnknownTier             = errors.New("unknown package type")
	ErrUnknownDuration         = errors.New("unknown duration type")
	ErrUnknownCategory         = errors.New("invalid user type")
)

// Access and infrastructure errors
var (
	ErrUnauthorized           = errors.New("access token required")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrInvalidCronKey         = errors.New("unauthorized cron request")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrSweepInProgress        = errors.New("expiration sweep already running")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid is a shorthand for building a ValidationError.
func Invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAmount, KindValidation},
	{ErrPriceMismatch, KindValidation},
	{ErrUnknownTier, KindValidation},
	{ErrUnknownDuration, KindValidation},
	{ErrUnknownCategory, KindValidation},
	{ErrInsufficientBalance, KindInsufficientBalance},
	{ErrDuplicateTransaction, KindConflict},
	{ErrAlreadySubscribed, KindConflict},
	{ErrSweepInProgress, KindConflict},
	{ErrAccountNotFound, KindNotFound},
	{ErrNoActivePackage, KindNotFound},
	{ErrNoPackage, KindNotFound},
	{ErrMustUpgradeToHigherTier, KindForbidden},
	{ErrInvalidCronKey, KindForbidden},
	{ErrInvalidToken, KindForbidden},
	{ErrUnauthorized, KindUnauthorized},
}

// KindOf classifies err. Anything unknown is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps a Kind onto a response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindInsufficientBalance:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to the caller.
// Wrapped context is stripped; internal errors get an opaque message.
func PublicMessage(err error) string {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal server error"
}

// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidIndex          = errors.New("invalid index key")
	ErrConfiguration         = errors.New("invalid calendar or holiday configuration")
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrUnresolvedContract    = errors.New("contract not found in instrument master")
	ErrInsufficientSnapshot  = errors.New("quote or margin snapshot missing")
	ErrOrderRejected         = errors.New("order rejected")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrSessionExpired        = errors.New("session expired")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountNotFound       = errors.New("account not found")
	ErrSnapshotStore         = errors.New("snapshot store error")
)

// BrokerError represents an error from the broker API.
type BrokerError struct {
	Account string
	Code    string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s/%s]: %s: %v", e.Account, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s/%s]: %s", e.Account, e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(account, code, message string, err error) *BrokerError {
	return &BrokerError{
		Account: account,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	IntentID  string
	Account   string
	ScripCode int
	Action    string
	Reason    string
	Err       error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s scrip %d for %s: %s: %v", e.IntentID, e.Action, e.ScripCode, e.Account, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s scrip %d for %s: %s", e.IntentID, e.Action, e.ScripCode, e.Account, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(intentID, account string, scripCode int, action, reason string, err error) *OrderError {
	return &OrderError{
		IntentID:  intentID,
		Account:   account,
		ScripCode: scripCode,
		Action:    action,
		Reason:    reason,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

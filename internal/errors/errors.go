package errors

import (
	"errors"
	"fmt"
)

// Category classifies engine errors by how the caller should react
type Category string

const (
	// Fatal categories that must stop the affected operation outright
	CategoryFatal      Category = "FATAL"
	CategoryConfig     Category = "CONFIG"
	CategoryArithmetic Category = "ARITHMETIC"

	// Expected, non-fatal rejections returned to the caller
	CategoryRejection Category = "REJECTION"

	// Transient categories retried on the next monitoring cycle
	CategoryNetwork  Category = "NETWORK"
	CategoryTimeout  Category = "TIMEOUT"
	CategoryExchange Category = "EXCHANGE"
	CategoryLedger   Category = "LEDGER"
)

// RejectReason identifies why a signal was rejected before a position opened
type RejectReason string

const (
	ReasonDailyLossLimitExceeded RejectReason = "DailyLossLimitExceeded"
	ReasonRateLimited            RejectReason = "RateLimited"
	ReasonKillSwitchActive       RejectReason = "KillSwitchActive"
	ReasonStaleSignal            RejectReason = "StaleSignal"
	ReasonLowConfidence          RejectReason = "LowConfidence"
	ReasonCorrelatedExposure     RejectReason = "CorrelatedExposure"
	ReasonMaxPositionsPerSymbol  RejectReason = "MaxPositionsPerSymbol"
	ReasonBelowExchangeMinimum   RejectReason = "BelowExchangeMinimum"
)

// EngineError is a categorized error with component and operation context
type EngineError struct {
	Category   Category
	Component  string
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the error must not be retried at all
func (e *EngineError) IsFatal() bool {
	return e.Category == CategoryFatal || e.Category == CategoryConfig || e.Category == CategoryArithmetic
}

// New creates a categorized engine error
func New(category Category, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: retryable(category),
	}
}

// Wrap attaches category and context to an existing error
func Wrap(err error, category Category, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  retryable(category),
	}
}

func retryable(category Category) bool {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryExchange, CategoryLedger:
		return true
	default:
		return false
	}
}

// RejectionError is the typed rejection returned by pre-trade gates.
// It is expected control flow, not a failure: callers report it and move on.
type RejectionError struct {
	Reason  RejectReason
	Symbol  string
	Details string
}

// Error implements the error interface
func (e *RejectionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("rejected %s: %s (%s)", e.Symbol, e.Reason, e.Details)
	}
	return fmt.Sprintf("rejected %s: %s", e.Symbol, e.Reason)
}

// NewRejection creates a typed rejection for the given symbol
func NewRejection(reason RejectReason, symbol, details string) *RejectionError {
	return &RejectionError{Reason: reason, Symbol: symbol, Details: details}
}

// AsRejection extracts a RejectionError from an error chain, if present
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// NewConfigError creates a fatal configuration error
func NewConfigError(component, operation, message string) *EngineError {
	return New(CategoryConfig, component, operation, message)
}

// NewArithmeticError creates a fatal arithmetic error for non-finite results
func NewArithmeticError(component, operation, message string) *EngineError {
	return New(CategoryArithmetic, component, operation, message)
}

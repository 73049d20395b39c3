package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory represents the failure classes the evolution engine distinguishes
type ErrorCategory string

const (
	// Expected outcomes that are logged and handled, never raised to the operator as faults
	ErrorCategoryDataInsufficient ErrorCategory = "DATA_INSUFFICIENT"
	ErrorCategoryNumeric          ErrorCategory = "NUMERIC"
	ErrorCategorySchemaMismatch   ErrorCategory = "SCHEMA_MISMATCH"
	ErrorCategoryStressTest       ErrorCategory = "STRESS_TEST"
	ErrorCategoryInterrupted      ErrorCategory = "INTERRUPTED"

	// Faults that abandon a partition run for the current cycle
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryStorage       ErrorCategory = "STORAGE"
	ErrorCategoryValidation    ErrorCategory = "VALIDATION"
)

// EngineError represents a categorized error with context
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
	if len(e.Context) > 0 {
		keys := sortedKeys(e.Context)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsExpected reports whether the category is a normal engine outcome rather than a fault.
func (e *EngineError) IsExpected() bool {
	switch e.Category {
	case ErrorCategoryDataInsufficient, ErrorCategoryStressTest, ErrorCategoryInterrupted:
		return true
	default:
		return false
	}
}

// NewEngineError creates a new categorized engine error
func NewEngineError(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with engine error context
func WrapError(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// HasCategory reports whether err or anything it wraps is an EngineError of the given category.
func HasCategory(err error, category ErrorCategory) bool {
	var engineErr *EngineError
	for err != nil {
		if !stderrors.As(err, &engineErr) {
			return false
		}
		if engineErr.Category == category {
			return true
		}
		err = engineErr.Underlying
	}
	return false
}

// Common error constructors
func NewDataInsufficientError(component, partition string, have, need int) *EngineError {
	return NewEngineError(ErrorCategoryDataInsufficient, component, "eligibility",
		fmt.Sprintf("partition %s has %d admissible events, need %d", partition, have, need)).
		WithContext("partition", partition)
}

func NewSchemaMismatchError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategorySchemaMismatch, component, operation, message)
}

func NewInterruptedError(component string, generation int, err error) *EngineError {
	e := WrapError(err, ErrorCategoryInterrupted, component, "evolve")
	e.Message = "interrupted at generation boundary"
	return e.WithContext("generation", generation)
}

func NewConfigurationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryConfiguration, component, operation, message)
}

func NewStorageError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryStorage, component, operation)
}

func NewValidationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryValidation, component, operation, message)
}

// ErrorStats tracks error statistics across partition runs
type ErrorStats struct {
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*EngineError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*EngineError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics. Plain errors count as storage faults.
func (es *ErrorStats) RecordError(err error) {
	if err == nil {
		return
	}
	var engineErr *EngineError
	if !stderrors.As(err, &engineErr) {
		engineErr = WrapError(err, ErrorCategoryStorage, "unknown", "unknown")
	}

	es.TotalErrors++
	es.ErrorsByCategory[engineErr.Category]++

	es.RecentErrors = append(es.RecentErrors, engineErr)
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the error rate for a specific category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByCategory[category]) / float64(es.TotalErrors)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

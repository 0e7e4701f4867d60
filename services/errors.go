package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeConfiguration       ErrorType = "configuration"
	ErrorTypeNoCapableProvider   ErrorType = "no_capable_provider"
	ErrorTypeProviderInvocation  ErrorType = "provider_invocation"
	ErrorTypeUnknownSession      ErrorType = "unknown_session"
	ErrorTypeTransportValidation ErrorType = "transport_validation"
	ErrorTypeValidation          ErrorType = "validation"
	ErrorTypeInternal            ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Configuration errors are always recovered locally via default-rule
	// bootstrap and never surfaced to callers.
	ErrRuleFileMissing   = NewDomainError(ErrorTypeConfiguration, "routing rule file missing", nil)
	ErrRuleFileMalformed = NewDomainError(ErrorTypeConfiguration, "routing rule file malformed", nil)
	ErrRuleInvalid       = NewDomainError(ErrorTypeConfiguration, "routing rule invalid", nil)

	// Routing errors
	ErrNoCapableProvider = NewDomainError(ErrorTypeNoCapableProvider, "no capability passes the routing filter", nil)

	// Provider invocation errors
	ErrConnectorNotRegistered = NewDomainError(ErrorTypeProviderInvocation, "no connector registered for provider", nil)
	ErrProviderTimeout        = NewDomainError(ErrorTypeProviderInvocation, "provider call timed out", nil)
	ErrProvidersExhausted     = NewDomainError(ErrorTypeProviderInvocation, "all providers in the priority list failed", nil)

	// Session errors
	ErrUnknownSession       = NewDomainError(ErrorTypeUnknownSession, "session not found", nil)
	ErrUnknownConnection    = NewDomainError(ErrorTypeUnknownSession, "no session for connection id", nil)
	ErrInvalidTransition    = NewDomainError(ErrorTypeValidation, "status transition not allowed", nil)
	ErrTransportUnavailable = NewDomainError(ErrorTypeInternal, "no transport connector for session", nil)

	// Transport errors
	ErrTransportEventInvalid = NewDomainError(ErrorTypeTransportValidation, "malformed inbound transport event", nil)

	// Validation errors
	ErrInvalidModelType = NewDomainError(ErrorTypeValidation, "invalid model type", nil)
	ErrInvalidLanguage  = NewDomainError(ErrorTypeValidation, "language is required", nil)
)

// Error type checking helper functions

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConfiguration
	}
	return false
}

// IsNoCapableProviderError checks if an error means no capability passed the filter
func IsNoCapableProviderError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNoCapableProvider
	}
	return false
}

// IsProviderInvocationError checks if an error came from a connector call
func IsProviderInvocationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeProviderInvocation
	}
	return false
}

// IsUnknownSessionError checks if an error refers to a missing session
func IsUnknownSessionError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnknownSession
	}
	return false
}

// IsTransportValidationError checks if an inbound event failed validation
func IsTransportValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeTransportValidation
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapInvocation wraps an error as a provider invocation error
func WrapInvocation(message string, err error) error {
	return NewDomainError(ErrorTypeProviderInvocation, message, err)
}

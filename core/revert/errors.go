// Package revert holds the revert reasons raised by the router, its agents and
// the collaborator contracts. Every reason carries a stable ErrorCode so the
// HTTP layer and the metrics can classify failures without string matching.
package revert

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeUnspecified ErrorCode = "Unspecified"

	CodeInvalidBps          ErrorCode = "InvalidBps"
	CodeInvalidOffset       ErrorCode = "InvalidOffset"
	CodeInsufficientBalance ErrorCode = "InsufficientBalance"
	CodeUnauthorized        ErrorCode = "Unauthorized"
	CodeAlreadyInitialized  ErrorCode = "AlreadyInitialized"
	CodeAgentAlreadyExists  ErrorCode = "AgentAlreadyExists"
	CodeReentrancyOrPaused  ErrorCode = "ReentrancyOrPaused"
	CodePaused              ErrorCode = "Paused"
	CodeAlreadyPaused       ErrorCode = "AlreadyPaused"
	CodeNotPaused           ErrorCode = "NotPaused"
	CodeUnresolvedCallback  ErrorCode = "UnresolvedCallback"
	CodeSignatureExpired    ErrorCode = "SignatureExpired"
	CodeInvalidSigner       ErrorCode = "InvalidSigner"
	CodeInvalidSignature    ErrorCode = "InvalidSignature"
	CodeInvalidAddress      ErrorCode = "InvalidAddress"

	CodeInvalidPermit2Data    ErrorCode = "InvalidPermit2Data"
	CodeInvalidFeeRate        ErrorCode = "InvalidFeeRate"
	CodeInvalidAction         ErrorCode = "InvalidAction"
	CodeCallToNonContract     ErrorCode = "CallToNonContract"
	CodeInsufficientAllowance ErrorCode = "InsufficientAllowance"
	CodeExecutionReverted     ErrorCode = "ExecutionReverted"
)

// StructuredError is a revert reason with optional details about the failing
// call. Two StructuredErrors match under errors.Is when their codes match, so
// callers compare against the Err* sentinels below.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
}

func (e *StructuredError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StructuredError) Is(target error) bool {
	t, ok := target.(*StructuredError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// GetCode returns the error code
func (e *StructuredError) GetCode() ErrorCode {
	return e.Code
}

// GetDetails returns additional error details
func (e *StructuredError) GetDetails() map[string]interface{} {
	return e.Details
}

var (
	ErrInvalidBps          = &StructuredError{Code: CodeInvalidBps}
	ErrInvalidOffset       = &StructuredError{Code: CodeInvalidOffset}
	ErrInsufficientBalance = &StructuredError{Code: CodeInsufficientBalance}
	ErrUnauthorized        = &StructuredError{Code: CodeUnauthorized}
	ErrAlreadyInitialized  = &StructuredError{Code: CodeAlreadyInitialized}
	ErrAgentAlreadyExists  = &StructuredError{Code: CodeAgentAlreadyExists}
	ErrReentrancyOrPaused  = &StructuredError{Code: CodeReentrancyOrPaused}
	ErrPaused              = &StructuredError{Code: CodePaused}
	ErrAlreadyPaused       = &StructuredError{Code: CodeAlreadyPaused}
	ErrNotPaused           = &StructuredError{Code: CodeNotPaused}
	ErrUnresolvedCallback  = &StructuredError{Code: CodeUnresolvedCallback}
	ErrSignatureExpired    = &StructuredError{Code: CodeSignatureExpired}
	ErrInvalidSigner       = &StructuredError{Code: CodeInvalidSigner}
	ErrInvalidSignature    = &StructuredError{Code: CodeInvalidSignature}
	ErrInvalidAddress      = &StructuredError{Code: CodeInvalidAddress}

	ErrInvalidPermit2Data    = &StructuredError{Code: CodeInvalidPermit2Data}
	ErrInvalidFeeRate        = &StructuredError{Code: CodeInvalidFeeRate}
	ErrInvalidAction         = &StructuredError{Code: CodeInvalidAction}
	ErrCallToNonContract     = &StructuredError{Code: CodeCallToNonContract}
	ErrInsufficientAllowance = &StructuredError{Code: CodeInsufficientAllowance}
	ErrExecutionReverted     = &StructuredError{Code: CodeExecutionReverted}
)

// NewStructuredError creates a new structured error
func NewStructuredError(code ErrorCode, message string, details ...map[string]interface{}) *StructuredError {
	var detailsMap map[string]interface{}
	if len(details) > 0 {
		detailsMap = details[0]
	}

	return &StructuredError{
		Code:    code,
		Message: message,
		Details: detailsMap,
	}
}

// Errorf builds a structured error whose message is formatted like fmt.Sprintf
func Errorf(code ErrorCode, format string, args ...interface{}) *StructuredError {
	return NewStructuredError(code, fmt.Sprintf(format, args...))
}

// IsStructuredError checks if an error is, or wraps, a structured error and returns it
func IsStructuredError(err error) (*StructuredError, bool) {
	var structErr *StructuredError
	if errors.As(err, &structErr) {
		return structErr, true
	}
	return nil, false
}

// GetErrorCode extracts error code from an error, returns CodeUnspecified if not a structured error
func GetErrorCode(err error) ErrorCode {
	if structErr, ok := IsStructuredError(err); ok {
		return structErr.GetCode()
	}
	return CodeUnspecified
}

// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeGenerationFailure    ErrorCode = "GENERATION_FAILURE"
	ErrCodeAuthFailure          ErrorCode = "AUTH_FAILURE"
	ErrCodeRemoteAPIFailure     ErrorCode = "REMOTE_API_FAILURE"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidPath      ErrorCode = "INVALID_PATH"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNotFoundError reports a missing template, file or folder.
func NewNotFoundError(kind, name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   name,
		Retryable: false,
		Metadata:  map[string]interface{}{"kind": kind},
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteNotFoundError is NotFound answered by a remote store; it keeps the
// upstream status and body like NewRemoteAPIError does.
func NewRemoteNotFoundError(kind, name string, status int, body string) *StandardError {
	err := NewNotFoundError(kind, name)
	err.Metadata["status"] = status
	err.Metadata["body"] = body
	return err
}

// NewInvalidConfigurationError reports an unknown selector or missing setting.
func NewInvalidConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidConfiguration,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailureError reports a backend that produced no artifact.
func NewGenerationFailureError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailure,
		Message:   "Document generation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewAuthFailureError reports a rejected credential exchange or an unreadable bundle.
func NewAuthFailureError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthFailure,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewAuthRejectedError carries the token endpoint's status and body verbatim.
func NewAuthRejectedError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthFailure,
		Message:   "Failed to get access token",
		Details:   fmt.Sprintf("%d - %s", status, body),
		Retryable: true,
		Metadata:  map[string]interface{}{"status": status, "body": body},
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteAPIError carries the object store's status and body verbatim.
func NewRemoteAPIError(operation string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteAPIFailure,
		Message:   fmt.Sprintf("Failed to %s", operation),
		Details:   fmt.Sprintf("%d - %s", status, body),
		Retryable: true,
		Metadata:  map[string]interface{}{"status": status, "body": body, "operation": operation},
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteTransportError wraps a network failure talking to the object store.
func NewRemoteTransportError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteAPIFailure,
		Message:   fmt.Sprintf("Failed to %s", operation),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewValidationFailedError reports data that does not satisfy a template schema.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Data validation failed for template",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPathError reports a storage path that escapes the storage root.
func NewInvalidPathError(path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPath,
		Message:   "Path is outside the storage root",
		Details:   path,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotFound:             "DOCUMENT_NOT_FOUND",
	ErrCodeInvalidConfiguration: "INVALID_CONFIGURATION",
	ErrCodeGenerationFailure:    "GENERATION_FAILURE",
	ErrCodeAuthFailure:          "STORAGE_AUTH_FAILURE",
	ErrCodeRemoteAPIFailure:     "STORAGE_API_FAILURE",
	ErrCodeValidationFailed:     "DATA_VALIDATION_FAILED",
	ErrCodeInvalidPath:          "INVALID_PATH",
}

// GetRetryCount returns the retry budget handed back to the engine when a job fails.
// Core packages never retry on their own.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeAuthFailure, ErrCodeRemoteAPIFailure:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if status, ok := stdErr.Metadata["status"]; ok {
		vars["upstreamStatus"] = status
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        GetRetryCount(stdErr.Code),
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// CodeOf returns the code of err, or INTERNAL_ERROR when it is not a StandardError.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return NewInternalError("Unexpected error", err)
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "REMOTE"), strings.Contains(codeStr, "PATH"):
		return "STORAGE"
	case strings.Contains(codeStr, "GENERATION"), strings.Contains(codeStr, "NOT_FOUND"):
		return "DOCUMENT"
	case strings.Contains(codeStr, "INVALID"), strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

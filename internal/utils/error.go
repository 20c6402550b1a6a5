package utils

import (
	"fmt"
)

// Error codes used across the connector
const (
	// Configuration errors
	ErrCodeInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrCodeInvalidFileType      = "INVALID_FILE_TYPE"
	ErrCodeAmbiguousDelimiter   = "AMBIGUOUS_DELIMITER"

	// Discovery errors
	ErrCodeNoFilesFound       = "NO_FILES_FOUND"
	ErrCodeFileAccessFailed   = "FILE_ACCESS_FAILED"
	ErrCodeUnsupportedBackend = "UNSUPPORTED_BACKEND"

	// Decode errors
	ErrCodeMalformedRow = "MALFORMED_ROW"

	// Schema errors
	ErrCodeUnsupportedAvroType    = "UNSUPPORTED_AVRO_TYPE"
	ErrCodeUnsupportedParquetType = "UNSUPPORTED_PARQUET_TYPE"
	ErrCodeMissingHeaders         = "MISSING_HEADERS"
	ErrCodeNotSupported           = "NOT_SUPPORTED"
)

// AppError represents an application error with additional context
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for creating errors
type ErrorBuilder struct {
	code    string
	message string
	details string
	cause   error
}

// NewErrorBuilder creates a new error builder
func NewErrorBuilder(code string) *ErrorBuilder {
	return &ErrorBuilder{code: code}
}

// WithMessage sets the error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.message = message
	return eb
}

// WithDetails sets the error details
func (eb *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	eb.details = details
	return eb
}

// WithCause sets the underlying error cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.cause = cause
	return eb
}

// Build constructs the final AppError
func (eb *ErrorBuilder) Build() *AppError {
	if eb.message == "" {
		eb.message = getDefaultMessage(eb.code)
	}

	return &AppError{
		Code:    eb.code,
		Message: eb.message,
		Details: eb.details,
		Cause:   eb.cause,
	}
}

// getDefaultMessage returns a default message for error codes
func getDefaultMessage(code string) string {
	messages := map[string]string{
		ErrCodeInvalidConfiguration:   "Invalid configuration",
		ErrCodeInvalidFileType:        "Invalid file type",
		ErrCodeAmbiguousDelimiter:     "Delimiter could not be detected",
		ErrCodeNoFilesFound:           "No files found",
		ErrCodeFileAccessFailed:       "File access failed",
		ErrCodeUnsupportedBackend:     "Unsupported storage backend",
		ErrCodeMalformedRow:           "Malformed row",
		ErrCodeUnsupportedAvroType:    "Unsupported Avro type",
		ErrCodeUnsupportedParquetType: "Unsupported Parquet type",
		ErrCodeMissingHeaders:         "Column names could not be read",
		ErrCodeNotSupported:           "Not supported",
	}

	if msg, exists := messages[code]; exists {
		return msg
	}
	return "Unknown error"
}

// Convenience functions for common error types

// NewConfigurationError reports an invalid configuration value before any I/O happens.
func NewConfigurationError(message string) *AppError {
	return NewErrorBuilder(ErrCodeInvalidConfiguration).
		WithMessage(message).
		Build()
}

// NewNoFilesFoundError reports a discovery pass that matched nothing.
func NewNoFilesFoundError() *AppError {
	return NewErrorBuilder(ErrCodeNoFilesFound).
		WithMessage("No files found. Choose a different path or try a more lenient file_regex.").
		Build()
}

// NewUnsupportedBackendError reports a backend kind the connector cannot serve.
func NewUnsupportedBackendError(protocol string) *AppError {
	return NewErrorBuilder(ErrCodeUnsupportedBackend).
		WithMessage(fmt.Sprintf("The protocol '%s' is invalid", protocol)).
		Build()
}

// NewMalformedRowError reports a row that failed to decode, identifying file and line.
func NewMalformedRowError(fileName string, lineNumber int, details string) *AppError {
	return NewErrorBuilder(ErrCodeMalformedRow).
		WithMessage(fmt.Sprintf("Error processing %s at line %d", fileName, lineNumber)).
		WithDetails(details).
		Build()
}

// NewAmbiguousDelimiterError reports delimiter detection failing for a file.
func NewAmbiguousDelimiterError(fileName string) *AppError {
	return NewErrorBuilder(ErrCodeAmbiguousDelimiter).
		WithMessage("delimiter is set to 'detect' but a non-csv non-tsv file is present").
		WithDetails(fmt.Sprintf("file %s; manually specify the delimiter instead", fileName)).
		Build()
}

// NewUnsupportedAvroTypeError reports an Avro type with no JSON Schema equivalent.
func NewUnsupportedAvroTypeError(fieldType string) *AppError {
	return NewErrorBuilder(ErrCodeUnsupportedAvroType).
		WithMessage(fmt.Sprintf("The field type '%s' has not been implemented", fieldType)).
		Build()
}

// NewUnsupportedParquetTypeError reports a Parquet type with no JSON Schema equivalent.
func NewUnsupportedParquetTypeError(fieldType string) *AppError {
	return NewErrorBuilder(ErrCodeUnsupportedParquetType).
		WithMessage(fmt.Sprintf("The field type '%s' has not been implemented", fieldType)).
		Build()
}

// NewNotSupportedError reports a declared but unimplemented option value.
func NewNotSupportedError(feature string) *AppError {
	return NewErrorBuilder(ErrCodeNotSupported).
		WithMessage(fmt.Sprintf("'%s' has not been implemented", feature)).
		Build()
}

// IsErrorType checks if an error matches a specific error code
func IsErrorType(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

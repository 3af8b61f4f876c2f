package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies domain errors by the stage that raised them
type ErrorType string

const (
	ErrorTypePrecondition  ErrorType = "precondition"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeSynthesis     ErrorType = "synthesis"
	ErrorTypeEmptyResult   ErrorType = "empty_result"
	ErrorTypeSerialization ErrorType = "serialization"
	ErrorTypeConfig        ErrorType = "config"
)

var (
	ErrMissingCredential = errors.New("gemini API key is not configured")
	ErrInvalidFileType   = errors.New("invalid file type, please upload a PDF")
	ErrEmptyInput        = errors.New("input document is empty")
	ErrPasswordProtected = errors.New("PDF is password protected and cannot be processed")
	ErrCorrupted         = errors.New("invalid or corrupted PDF file")
	ErrRuntimeSetup      = errors.New("failed to set up PDF text engine")
	ErrExtraction        = errors.New("failed to parse PDF content")
	ErrNoPages           = errors.New("could not extract any content (text or images) from the PDF")
	ErrNoSlides          = errors.New("no suitable slides could be generated from the PDF content")
	ErrSerialization     = errors.New("failed to generate and save the presentation file")
	ErrInvalidTransition = errors.New("operation not allowed in current stage")
)

// DomainError carries the error type alongside a human readable message
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func PreconditionError(message string, err error) *DomainError {
	return NewError(ErrorTypePrecondition, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func SynthesisError(message string, err error) *DomainError {
	return NewError(ErrorTypeSynthesis, message, err)
}

func EmptyResultError(message string, err error) *DomainError {
	return NewError(ErrorTypeEmptyResult, message, err)
}

func SerializationError(message string, err error) *DomainError {
	return NewError(ErrorTypeSerialization, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

// UserMessage returns the message to show to an end user.
// Domain errors expose their Message; anything else its Error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// TypeOf returns the domain error type, or "" for foreign errors
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

package ocr

import (
	"fmt"
	"strings"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/shared"
)

// Validation error codes
const (
	ErrCodeInvalidPayload = "ERR_OCR_INVALID_PAYLOAD"
	ErrCodeRequiredField  = "ERR_OCR_REQUIRED_FIELD"
	ErrCodeInvalidType    = "ERR_OCR_INVALID_TYPE"
	ErrCodeInvalidLength  = "ERR_OCR_INVALID_LENGTH"
	ErrCodeInvalidValue   = "ERR_OCR_INVALID_VALUE"
)

// FieldError describes one structural violation in an OCR payload.
type FieldError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e FieldError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ErrorCollection accumulates field errors in discovery order.
type ErrorCollection struct {
	errors []FieldError
}

// NewErrorCollection creates an empty collection.
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

// Add appends an error.
func (ec *ErrorCollection) Add(err FieldError) {
	ec.errors = append(ec.errors, err)
}

// AddRequiredError records a missing field.
func (ec *ErrorCollection) AddRequiredError(path string) {
	ec.Add(FieldError{Path: path, Code: ErrCodeRequiredField, Message: "field is required"})
}

// AddTypeError records a value of the wrong JSON type.
func (ec *ErrorCollection) AddTypeError(path, expected string, value any) {
	ec.Add(FieldError{
		Path:    path,
		Code:    ErrCodeInvalidType,
		Message: fmt.Sprintf("expected %s, got %s", expected, jsonKind(value)),
		Value:   preview(value),
	})
}

// AddLengthError records a value longer than allowed.
func (ec *ErrorCollection) AddLengthError(path string, maxLen int) {
	ec.Add(FieldError{Path: path, Code: ErrCodeInvalidLength, Message: fmt.Sprintf("length must be at most %d", maxLen)})
}

// HasErrors reports whether anything was collected.
func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.errors) > 0
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []FieldError {
	return ec.errors
}

// Err returns a *ValidationError, or nil when nothing was collected.
func (ec *ErrorCollection) Err() error {
	if !ec.HasErrors() {
		return nil
	}
	out := make([]FieldError, len(ec.errors))
	copy(out, ec.errors)
	return &ValidationError{Violations: out}
}

// ValidationError lists every violation found in a rejected payload.
type ValidationError struct {
	Violations []FieldError `json:"violations"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("invalid OCR document: %s", strings.Join(msgs, "; "))
}

// Messages returns one line per violation.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return msgs
}

// Is lets callers match validation failures with shared.ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrInvalidInput
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "number"
	}
}

func preview(v any) string {
	switch t := v.(type) {
	case string:
		if len(t) > 64 {
			return t[:64]
		}
		return t
	case bool:
		return fmt.Sprintf("%t", t)
	case map[string]any, []any, nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

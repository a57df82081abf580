package apierror

import (
	"errors"
	"fmt"
)

// Type is the error taxonomy every request outcome is mapped onto.
type Type string

const (
	TypeNetwork        Type = "NETWORK"
	TypeAuthentication Type = "AUTHENTICATION"
	TypeAuthorization  Type = "AUTHORIZATION"
	TypeValidation     Type = "VALIDATION"
	TypeNotFound       Type = "NOT_FOUND"
	TypeServer         Type = "SERVER"
	TypeClient         Type = "CLIENT"
	TypeUnknown        Type = "UNKNOWN"
)

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type APIError struct {
	Type     Type              `json:"type"`
	Severity Severity          `json:"severity"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Status   int               `json:"-"`
	Err      error             `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func New(t Type, severity Severity, message string) *APIError {
	return &APIError{Type: t, Severity: severity, Message: message}
}

// TypeOf extracts the taxonomy type from err, or TypeUnknown when err carries no
// *APIError anywhere in its chain.
func TypeOf(err error) Type {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}

	return TypeUnknown
}

func IsType(err error, t Type) bool {
	return TypeOf(err) == t
}

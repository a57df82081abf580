package apierror

import (
	"encoding/json"
	"net/http"
	"strings"
)

var defaultMessages = map[Type]string{
	TypeNetwork:        "Unable to reach the server",
	TypeAuthentication: "Authentication required",
	TypeAuthorization:  "You do not have permission to perform this action",
	TypeValidation:     "The submitted data is invalid",
	TypeNotFound:       "The requested resource was not found",
	TypeServer:         "The server encountered an error",
	TypeClient:         "The request could not be processed",
	TypeUnknown:        "An unexpected error occurred",
}

// errorBody covers both response shapes the backend emits: a flat
// {"message": "..."} and the envelope {"error": {"message": "...}}.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
	Error   *struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// Classify maps a request outcome onto the error taxonomy. It is deterministic,
// total, and never panics: any status/body/transport-error combination yields a
// well-formed *APIError. A nil return means the outcome was a success.
func Classify(status int, body []byte, transportErr error) *APIError {
	if transportErr != nil {
		return &APIError{
			Type:     TypeNetwork,
			Severity: SeverityHigh,
			Message:  defaultMessages[TypeNetwork],
			Err:      transportErr,
		}
	}

	if status >= 200 && status < 400 {
		return nil
	}

	parsed := parseErrorBody(body)

	result := &APIError{Status: status}
	switch {
	case status == http.StatusBadRequest:
		result.Type = TypeValidation
		result.Severity = SeverityMedium
	case status == http.StatusUnauthorized:
		result.Type = TypeAuthentication
		result.Severity = SeverityHigh
	case status == http.StatusForbidden:
		result.Type = TypeAuthorization
		result.Severity = SeverityMedium
	case status == http.StatusNotFound:
		result.Type = TypeNotFound
		result.Severity = SeverityLow
	case status == http.StatusUnprocessableEntity:
		result.Type = TypeValidation
		result.Severity = SeverityMedium
		result.Fields = parsed.fields
	case status >= 500 && status < 600:
		result.Type = TypeServer
		result.Severity = SeverityHigh
	case status >= 400 && status < 500:
		result.Type = TypeClient
		result.Severity = SeverityMedium
	default:
		result.Type = TypeUnknown
		result.Severity = SeverityMedium
	}

	result.Message = parsed.message
	if result.Message == "" {
		result.Message = defaultMessages[result.Type]
	}

	return result
}

type parsedBody struct {
	message string
	fields  map[string]string
}

func parseErrorBody(body []byte) parsedBody {
	if len(body) == 0 {
		return parsedBody{}
	}

	var decoded errorBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return parsedBody{}
	}

	out := parsedBody{message: strings.TrimSpace(decoded.Message), fields: decoded.Errors}
	if decoded.Error != nil {
		if out.message == "" {
			out.message = strings.TrimSpace(decoded.Error.Message)
		}
		if len(out.fields) == 0 {
			out.fields = decoded.Error.Fields
		}
	}

	return out
}

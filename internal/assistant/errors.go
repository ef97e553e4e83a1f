package assistant

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("assistant api error (%d, %s): %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("assistant api error (%d): %s", e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("assistant api error (%d, %s)", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("assistant api error (%d)", e.StatusCode)
	}
}

type errorEnvelope struct {
	Error *APIError `json:"error,omitempty"`
}

func decodeAPIError(body []byte) *APIError {
	if len(body) == 0 {
		return nil
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	if envelope.Error == nil {
		return nil
	}

	envelope.Error.Message = strings.TrimSpace(envelope.Error.Message)
	return envelope.Error
}

func buildAPIError(statusCode int, body []byte) error {
	if apiErr := decodeAPIError(body); apiErr != nil && (apiErr.Message != "" || apiErr.Code != "") {
		apiErr.StatusCode = statusCode
		return apiErr
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return &APIError{StatusCode: statusCode, Message: snippet}
}

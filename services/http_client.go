package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yyup/kadmin/internal/probe"
)

const (
	defaultHTTPTimeout = 20 * time.Second
	maxBodySnippet     = 512
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// newHTTPClientWithTimeout builds an HTTP client with a custom timeout.
// Falls back to the default when duration is non-positive.
func newHTTPClientWithTimeout(d time.Duration) *http.Client {
	if d <= 0 {
		d = defaultHTTPTimeout
	}
	return &http.Client{Timeout: d}
}

// apiError covers the two error envelopes seen in practice: the vendor's
// {"error":{"code","message"}} and the product API's {"error":"..."} or
// {"message":"..."}.
type apiError struct {
	Code    string
	Message string
}

func decodeAPIError(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil && strings.TrimSpace(text) != "" {
		return &apiError{Message: strings.TrimSpace(text)}
	}

	var nested struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &nested); err == nil && (nested.Code != "" || nested.Message != "") {
		return &apiError{Code: nested.Code, Message: strings.TrimSpace(nested.Message)}
	}

	if msg := strings.TrimSpace(envelope.Message); msg != "" {
		return &apiError{Message: msg}
	}
	return nil
}

// errorMessage extracts a human-readable message from an error response.
func errorMessage(statusCode int, body []byte) string {
	if apiErr := decodeAPIError(body); apiErr != nil {
		switch {
		case apiErr.Code != "" && apiErr.Message != "":
			return apiErr.Code + ": " + apiErr.Message
		case apiErr.Message != "":
			return apiErr.Message
		default:
			return apiErr.Code
		}
	}

	snippet := bodySnippet(body)
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	return snippet
}

func buildAPIError(service string, statusCode int, body []byte) error {
	return fmt.Errorf("%s api error (%d): %s", service, statusCode, errorMessage(statusCode, body))
}

func bodySnippet(body []byte) string {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxBodySnippet {
		snippet = snippet[:maxBodySnippet] + "..."
	}
	return snippet
}

// classifyTransport types an error returned by an HTTP round trip: deadlines
// become timeouts, other transport failures connection errors. Anything else
// is returned unchanged.
func classifyTransport(target string, after time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if probe.IsTimeout(err) {
		return &probe.TimeoutError{Target: target, After: after, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &probe.ConnectionError{Target: target, Err: err}
	}
	return err
}

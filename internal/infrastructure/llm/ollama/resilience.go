package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/resilience"
)

// errMalformedResponse marks model output that cannot be decoded into the expected payload.
var errMalformedResponse = errors.New("malformed model response")

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// modelError is a failed detect, rewrite or ocr call. It always matches domain.ErrCollaborator and
// also matches domain.ErrTemporary when another attempt could succeed.
type modelError struct {
	operation string
	temporary bool
	err       error
}

func (e *modelError) Error() string {
	return e.operation + ": " + e.err.Error()
}

func (e *modelError) Unwrap() []error {
	if e.temporary {
		return []error{domain.ErrCollaborator, domain.ErrTemporary, e.err}
	}
	return []error{domain.ErrCollaborator, e.err}
}

// classifyOllamaError decides retries and breaker accounting for model calls. Rejected requests
// (4xx) and undecodable responses are not retried: the same prompt yields the same failure.
func classifyOllamaError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, errMalformedResponse):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case isRetryableHTTPStatus(statusErr.StatusCode):
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// collaboratorError tags a failed model call for the use cases and the HTTP layer.
func collaboratorError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var already *modelError
	if errors.As(err, &already) {
		return err
	}
	return &modelError{
		operation: "ollama " + operation,
		temporary: classifyOllamaError(err).Retryable,
		err:       err,
	}
}

func malformed(operation string, err error) error {
	return collaboratorError(operation, fmt.Errorf("%w: %w", errMalformedResponse, err))
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

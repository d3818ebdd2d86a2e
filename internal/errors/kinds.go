package errors

import "net/http"

// Kind names the gateway-facing error category. This is the boundary
// vocabulary: handlers map a Kind to an HTTP status and response body.
type Kind string

const (
	// KindValidation - the request itself is malformed (unknown route,
	// missing models, bad optimize target).
	KindValidation Kind = "validation_error"
	// KindExternalDependency - a dependency the gateway needs to operate
	// (embedding backend, vector store, config) is unavailable.
	KindExternalDependency Kind = "external_dependency_error"
	// KindUpstream - the selected provider returned a non-2xx or malformed
	// response after routing succeeded.
	KindUpstream Kind = "upstream_error"
	// KindDeadlineExceeded - a provider call or dependency call exceeded its
	// context deadline.
	KindDeadlineExceeded Kind = "deadline_exceeded"
	// KindInternal - a bug or unexpected condition inside the gateway
	// itself, not attributable to the caller or a provider.
	KindInternal Kind = "internal"
)

// GatewayError wraps an underlying error with a Kind, an LLM/operator
// friendly message, and the HTTP status it maps to.
type GatewayError struct {
	Kind       Kind
	Err        error
	Message    string
	StatusCode int
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// HTTPStatus returns the status code for this error, defaulting by Kind when
// StatusCode wasn't set explicitly.
func (e *GatewayError) HTTPStatus() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindExternalDependency:
		return http.StatusBadGateway
	case KindUpstream:
		return http.StatusBadGateway
	case KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError reports a malformed or invalid request.
func NewValidationError(err error, message string) *GatewayError {
	return &GatewayError{Kind: KindValidation, Err: err, Message: message, StatusCode: http.StatusBadRequest}
}

// NewExternalDependencyError reports a dependency (store, embedder, config
// source) the gateway relies on being unreachable or misbehaving.
func NewExternalDependencyError(err error, message string) *GatewayError {
	return &GatewayError{Kind: KindExternalDependency, Err: err, Message: message, StatusCode: http.StatusBadGateway}
}

// NewUpstreamError reports a non-2xx or malformed response from a selected
// model provider.
func NewUpstreamError(err error, message string, statusCode int) *GatewayError {
	if statusCode == 0 {
		statusCode = http.StatusBadGateway
	}
	return &GatewayError{Kind: KindUpstream, Err: err, Message: message, StatusCode: statusCode}
}

// NewDeadlineExceededError reports a provider or dependency call that ran
// past its context deadline.
func NewDeadlineExceededError(err error, message string) *GatewayError {
	return &GatewayError{Kind: KindDeadlineExceeded, Err: err, Message: message, StatusCode: http.StatusGatewayTimeout}
}

// NewInternalError reports a gateway bug or unexpected internal condition.
func NewInternalError(err error, message string) *GatewayError {
	return &GatewayError{Kind: KindInternal, Err: err, Message: message, StatusCode: http.StatusInternalServerError}
}

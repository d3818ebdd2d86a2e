package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestGatewayError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *GatewayError
		want int
	}{
		{"validation defaults to 400", NewValidationError(nil, "bad"), http.StatusBadRequest},
		{"external dependency defaults to 502", NewExternalDependencyError(nil, "down"), http.StatusBadGateway},
		{"upstream keeps provider status", NewUpstreamError(nil, "boom", http.StatusTooManyRequests), http.StatusTooManyRequests},
		{"upstream defaults to 502 with no status", NewUpstreamError(nil, "boom", 0), http.StatusBadGateway},
		{"deadline exceeded maps to 504", NewDeadlineExceededError(nil, "slow"), http.StatusGatewayTimeout},
		{"internal maps to 500", NewInternalError(nil, "bug"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGatewayError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	ge := NewExternalDependencyError(cause, "store unreachable")

	if !errors.Is(ge, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if errors.Unwrap(ge) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(ge), cause)
	}
}

func TestGatewayError_Error(t *testing.T) {
	withMessage := NewValidationError(errors.New("models required"), "at least one model must be supplied")
	if withMessage.Error() != "at least one model must be supplied" {
		t.Errorf("Error() = %q, want the friendly message", withMessage.Error())
	}

	noMessage := &GatewayError{Kind: KindInternal, Err: errors.New("nil pointer")}
	if noMessage.Error() != "internal: nil pointer" {
		t.Errorf("Error() = %q, want kind-prefixed cause", noMessage.Error())
	}
}

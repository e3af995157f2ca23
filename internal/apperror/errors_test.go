package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", NewNotFound("task not found"), true},
		{"wrapped not found", fmt.Errorf("looking up task: %w", NewNotFound("task not found")), true},
		{"bad request", NewBadRequest("nope"), false},
		{"plain error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewInternal_HidesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewInternal(cause)
	if err.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", err.Code)
	}
	if err.Message == cause.Error() {
		t.Error("internal cause must not be the client message")
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestSafeCode(t *testing.T) {
	if got := SafeCode(NewForbidden("no")); got != http.StatusForbidden {
		t.Errorf("expected 403, got %d", got)
	}
	if got := SafeCode(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
}

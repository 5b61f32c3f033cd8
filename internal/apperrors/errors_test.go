package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("id", "asset ID is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "asset ID is required" {
		t.Errorf("expected message 'asset ID is required', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "id" {
		t.Errorf("expected field 'id', got %q", appErr.Field)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := NotFound("asset", "sales.orders")

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to match ErrNotFound")
	}
	if err.Error() != "asset sales.orders not found" {
		t.Errorf("expected message 'asset sales.orders not found', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "asset" {
		t.Errorf("expected resource 'asset', got %q", appErr.Resource)
	}
}

func TestConflict(t *testing.T) {
	t.Parallel()
	err := Conflict("asset", "sales.orders", "asset already registered")

	if !errors.Is(err, ErrConflict) {
		t.Error("expected error to match ErrConflict")
	}
	if err.Error() != "asset already registered" {
		t.Errorf("expected message 'asset already registered', got %q", err.Error())
	}
}

func TestInternal(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("disk full")
	err := Internal("persist.save", cause)

	if !errors.Is(err, ErrInternal) {
		t.Error("expected error to match ErrInternal")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if err.Error() != "persist.save: disk full" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "persist.save" {
		t.Errorf("expected op 'persist.save', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestConfiguration(t *testing.T) {
	t.Parallel()
	err := Configuration("registry.resolve", "asset sales.orders is not registered")

	if !errors.Is(err, ErrConfiguration) {
		t.Error("expected error to match ErrConfiguration")
	}
	if err.Error() != "registry.resolve: asset sales.orders is not registered" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestNotStored(t *testing.T) {
	t.Parallel()
	err := NotStored("asset meta", "sales.orders")

	if !errors.Is(err, ErrNotStored) {
		t.Error("expected error to match ErrNotStored")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("not stored must not classify as not found")
	}
	if err.Error() != "asset meta sales.orders not stored" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()
	cause := errors.New("unexpected end of JSON input")
	err := Schema("meta.decode", cause)

	if !errors.Is(err, ErrSchema) {
		t.Error("expected error to match ErrSchema")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
}

func TestIsOperational(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), true},
		{"internal", Internal("op", errors.New("boom")), true},
		{"not stored", NotStored("asset meta", "a"), true},
		{"configuration", Configuration("op", "bad"), false},
		{"schema", Schema("op", errors.New("bad")), false},
		{"wrapped configuration", fmt.Errorf("run: %w", Configuration("op", "bad")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsOperational(tt.err); got != tt.want {
				t.Errorf("IsOperational() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", Validation("id", "required"), http.StatusBadRequest},
		{"not found", NotFound("asset", "123"), http.StatusNotFound},
		{"not stored", NotStored("asset meta", "123"), http.StatusNotFound},
		{"conflict", Conflict("asset", "123", "exists"), http.StatusConflict},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusInternalServerError},
		{"configuration", Configuration("op", "bad"), http.StatusInternalServerError},
		{"sentinel validation", ErrValidation, http.StatusBadRequest},
		{"sentinel not found", ErrNotFound, http.StatusNotFound},
		{"sentinel conflict", ErrConflict, http.StatusConflict},
		{"wrapped validation", fmt.Errorf("wrap: %w", Validation("f", "m")), http.StatusBadRequest},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HTTPStatus(tt.err)
			if got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestFromHTTPStatus_RoundTrips(t *testing.T) {
	t.Parallel()
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrInternal} {
		if got := FromHTTPStatus(HTTPStatus(sentinel)); got != sentinel {
			t.Errorf("FromHTTPStatus(HTTPStatus(%v)) = %v", sentinel, got)
		}
	}
	if got := FromHTTPStatus(http.StatusNotImplemented); got != ErrInternal {
		t.Errorf("expected ErrInternal for 501, got %v", got)
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := Validation("id", "required")
	wrapped := fmt.Errorf("service error: %w", original)
	doubleWrapped := fmt.Errorf("handler error: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrValidation) {
		t.Error("expected errors.Is to find ErrValidation through multiple wraps")
	}
}

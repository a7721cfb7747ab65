package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestFetchErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    *FetchError
		target error
		want   bool
	}{
		{
			name:   "blocked flag matches ErrBlocked",
			err:    &FetchError{Source: "evo", URL: "https://evo.test/x", Blocked: true, Message: "challenge page"},
			target: ErrBlocked,
			want:   true,
		},
		{
			name:   "429 matches ErrBlocked",
			err:    NewFetchError("backcountry", "https://bc.test/x", 429, "too many requests"),
			target: ErrBlocked,
			want:   true,
		},
		{
			name:   "503 matches ErrSourceUnavailable",
			err:    NewFetchError("burton", "https://burton.test/x", 503, "maintenance"),
			target: ErrSourceUnavailable,
			want:   true,
		},
		{
			name:   "plain network failure matches neither",
			err:    NewFetchError("evo", "https://evo.test/x", 0, "connection refused"),
			target: ErrBlocked,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := WrapFetch("evo", "https://evo.test/boards", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatal("expected errors.As to find *FetchError")
	}
	if fe.Source != "evo" {
		t.Errorf("Source = %q, want %q", fe.Source, "evo")
	}
}

func TestIdentityErrorIsInvalidInput(t *testing.T) {
	err := NewIdentityError("", "Custom Camber", "empty brand after normalization")
	if !IsValidationError(err) {
		t.Error("identity errors should satisfy IsValidationError")
	}
	if IsStorage(err) {
		t.Error("identity errors must not be classified as storage errors")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("price", "-12.50", "negative price")
	want := "validation failed for field price: negative price"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected ValidationError to match ErrInvalidInput")
	}
}

func TestStorageErrorClassification(t *testing.T) {
	cause := errors.New("database is locked")
	err := WrapStorage("put", "listing", "run-7/evo/https://evo.test/x", cause)

	if !IsStorage(err) {
		t.Error("expected IsStorage to detect StorageError")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}

	// Wrapping again must keep the storage classification visible.
	wrapped := fmt.Errorf("committing run: %w", err)
	if !IsStorage(wrapped) {
		t.Error("expected IsStorage to see through fmt.Errorf wrapping")
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("run", "42")
	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	want := "run with ID 42 not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("fetch detail page", "10s", "https://evo.test/gnu-money")
	if !IsTimeout(err) {
		t.Error("expected IsTimeout to be true")
	}
}

func TestWrapHelpersNilPassthrough(t *testing.T) {
	if WrapFetch("evo", "u", nil) != nil {
		t.Error("WrapFetch(nil) should be nil")
	}
	if WrapParse("evo", "u", nil) != nil {
		t.Error("WrapParse(nil) should be nil")
	}
	if WrapStorage("get", "board", "k", nil) != nil {
		t.Error("WrapStorage(nil) should be nil")
	}
}

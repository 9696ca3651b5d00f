package domain

import (
	"errors"
	"testing"
)

func TestFeedError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewFeedError("quote", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "quote: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "quote: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalFeedError("auth", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewFeedError("dial", baseErr)
		fatal := NewFatalFeedError("auth", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "symbol", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [symbol]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestAdvanceError(t *testing.T) {
	err := &AdvanceError{Err: ErrQuoteUnavailable}

	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Error("AdvanceError should wrap its cause")
	}
	if !IsRetriable(err) {
		t.Error("AdvanceError should be retriable")
	}
	if err.Error() != "advance failed: quote unavailable" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

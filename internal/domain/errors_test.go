package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("fetch", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "fetch: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "fetch: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("fetch", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConflictError(t *testing.T) {
	key := OrderKey{Kind: KindWithdraw, ID: 42}
	err := &ConflictError{Key: key, Action: "cancel", Message: "order already completed"}

	if err.IsRetriable() {
		t.Error("conflict must never be retriable")
	}
	if !IsConflict(err) {
		t.Error("IsConflict should match ConflictError")
	}
	if IsConflict(NewNetworkError("cancel", errors.New("timeout"))) {
		t.Error("IsConflict should not match a network error")
	}

	t.Run("detects wrapped conflicts", func(t *testing.T) {
		wrapped := fmt.Errorf("action failed: %w", err)
		if !IsConflict(wrapped) {
			t.Error("IsConflict should see through wrapping")
		}
	})

	t.Run("message without server detail", func(t *testing.T) {
		bare := &ConflictError{Key: key, Action: "cancel"}
		want := "cancel withdraw/42 already handled by another actor"
		if bare.Error() != want {
			t.Errorf("Error() = %q, want %q", bare.Error(), want)
		}
	})
}

func TestRejectedError(t *testing.T) {
	err := &RejectedError{Action: "mark-paid", Message: "insufficient permissions"}

	if err.IsRetriable() {
		t.Error("rejection must never be retriable")
	}
	if !IsRejected(err) {
		t.Error("IsRejected should match RejectedError")
	}
	if IsRejected(&ConflictError{Action: "mark-paid"}) {
		t.Error("IsRejected should not match a conflict")
	}
	if err.Error() != "mark-paid rejected: insufficient permissions" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "base_url", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [base_url]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

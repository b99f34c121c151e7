package submissions

import (
	"errors"
	"testing"
)

func TestParseStatusNormalizesInput(t *testing.T) {
	status, err := ParseStatus("  Pending_Payment ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusPendingPayment {
		t.Fatalf("expected pending_payment, got %q", status)
	}
}

func TestParseStatusRejectsUnknownValue(t *testing.T) {
	if _, err := ParseStatus("shipped"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusPendingPayment, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusConfirmed, false},
		{StatusPendingPayment, StatusConfirmed, true},
		{StatusPendingPayment, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, testCase := range cases {
		if got := testCase.from.CanTransitionTo(testCase.to); got != testCase.allowed {
			t.Fatalf("transition %s -> %s: expected allowed=%v, got %v", testCase.from, testCase.to, testCase.allowed, got)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !StatusCompleted.Terminal() {
		t.Fatalf("expected completed to be terminal")
	}
	if !StatusCancelled.Terminal() {
		t.Fatalf("expected cancelled to be terminal")
	}
	if StatusConfirmed.Terminal() {
		t.Fatalf("expected confirmed to be non-terminal")
	}
}

func TestStatusLabelCoversEveryStatus(t *testing.T) {
	expected := map[Status]string{
		StatusPending:        "Pending",
		StatusPendingPayment: "Awaiting payment",
		StatusConfirmed:      "Confirmed",
		StatusCompleted:      "Completed",
		StatusCancelled:      "Cancelled",
	}
	for _, status := range AllStatuses() {
		label, ok := expected[status]
		if !ok {
			t.Fatalf("no expected label for status %q", status)
		}
		if got := status.Label(); got != label {
			t.Fatalf("status %q: expected label %q, got %q", status, label, got)
		}
	}
}

func TestStatusLabelFallsBackToRawValue(t *testing.T) {
	if got := Status("archived").Label(); got != "archived" {
		t.Fatalf("expected raw fallback label, got %q", got)
	}
}

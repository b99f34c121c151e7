package finance

import (
	"errors"
	"testing"
)

func TestNormalizePayoutStatusAcceptsEnumValues(t *testing.T) {
	for _, value := range []string{"created", "paid", "canceled"} {
		normalized, err := NormalizePayoutStatus(value)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", value, err)
		}
		if string(normalized) != value {
			t.Fatalf("expected %q to normalize to itself, got %q", value, normalized)
		}
	}
}

func TestNormalizePayoutStatusFoldsLegacySynonyms(t *testing.T) {
	cases := map[string]PayoutStatus{
		"pending":    PayoutCreated,
		"processing": PayoutCreated,
		"completed":  PayoutPaid,
		"cancelled":  PayoutCanceled,
		"failed":     PayoutCanceled,
		" Pending ":  PayoutCreated,
	}
	for raw, expected := range cases {
		normalized, err := NormalizePayoutStatus(raw)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if normalized != expected {
			t.Fatalf("expected %q to normalize to %q, got %q", raw, expected, normalized)
		}
	}
}

func TestNormalizePayoutStatusRejectsUnknownValues(t *testing.T) {
	if _, err := NormalizePayoutStatus("refunded"); !errors.Is(err, ErrUnknownPayoutStatus) {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestPayoutTransitionTable(t *testing.T) {
	cases := []struct {
		from    PayoutStatus
		to      PayoutStatus
		allowed bool
	}{
		{PayoutCreated, PayoutPaid, true},
		{PayoutCreated, PayoutCanceled, true},
		{PayoutPaid, PayoutCanceled, false},
		{PayoutPaid, PayoutCreated, false},
		{PayoutCanceled, PayoutPaid, false},
	}
	for _, testCase := range cases {
		if got := testCase.from.CanTransitionTo(testCase.to); got != testCase.allowed {
			t.Fatalf("transition %s -> %s: expected allowed=%v, got %v", testCase.from, testCase.to, testCase.allowed, got)
		}
	}
}

func TestPayoutStatusLabelIsTotal(t *testing.T) {
	cases := map[string]string{
		"created":   "Created",
		"paid":      "Paid",
		"canceled":  "Canceled",
		"pending":   "Created",
		"completed": "Paid",
		"failed":    "Canceled",
		"refunded":  "refunded",
		"":          "Unknown",
	}
	for raw, expected := range cases {
		if got := PayoutStatusLabel(raw); got != expected {
			t.Fatalf("label for %q: expected %q, got %q", raw, expected, got)
		}
	}
}

func TestPayoutNormalizedStatusFallsBackToCreated(t *testing.T) {
	payout := Payout{Status: "garbage"}
	if payout.NormalizedStatus() != PayoutCreated {
		t.Fatalf("expected fallback to created, got %q", payout.NormalizedStatus())
	}
}

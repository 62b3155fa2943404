package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

func TestComputeFixedRate(t *testing.T) {
	t.Parallel()

	policy, err := NewPolicy("0.15")
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	// Two copies at 10.00 plus one at 5.00.
	subtotal := decimal.RequireFromString("25.00")
	totals, err := policy.Compute(subtotal, decimal.Zero)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if got := totals.Tax.StringFixed(2); got != "3.75" {
		t.Fatalf("expected tax 3.75, got %s", got)
	}
	if got := totals.Total.StringFixed(2); got != "28.75" {
		t.Fatalf("expected total 28.75, got %s", got)
	}
}

func TestComputeWithDiscount(t *testing.T) {
	t.Parallel()

	policy, err := NewPolicy("0.15")
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	totals, err := policy.Compute(decimal.RequireFromString("100.00"), decimal.RequireFromString("20.00"))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := totals.Tax.StringFixed(2); got != "12.00" {
		t.Fatalf("expected tax 12.00, got %s", got)
	}
	if got := totals.Total.StringFixed(2); got != "92.00" {
		t.Fatalf("expected total 92.00, got %s", got)
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	t.Parallel()

	policy, err := NewPolicy("0.15")
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	// 0.15 * 10.03 = 1.5045 → 1.50; 0.15 * 10.05 = 1.5075 → 1.51.
	totals, err := policy.Compute(decimal.RequireFromString("10.03"), decimal.Zero)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := totals.Tax.StringFixed(2); got != "1.50" {
		t.Fatalf("expected tax 1.50, got %s", got)
	}

	totals, err = policy.Compute(decimal.RequireFromString("10.05"), decimal.Zero)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := totals.Tax.StringFixed(2); got != "1.51" {
		t.Fatalf("expected tax 1.51, got %s", got)
	}
}

func TestComputeAlternateRates(t *testing.T) {
	t.Parallel()

	policy, err := NewPolicy("0.08")
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	totals, err := policy.Compute(decimal.RequireFromString("50.00"), decimal.Zero)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got := totals.Total.StringFixed(2); got != "54.00" {
		t.Fatalf("expected total 54.00, got %s", got)
	}
}

func TestComputeRejectsBadInputs(t *testing.T) {
	t.Parallel()

	policy, err := NewPolicy("")
	if err != nil {
		t.Fatalf("new policy with default rate: %v", err)
	}
	if policy.Rate().StringFixed(2) != "0.15" {
		t.Fatalf("expected default rate 0.15, got %s", policy.Rate())
	}

	if _, err := policy.Compute(decimal.RequireFromString("-1"), decimal.Zero); err == nil {
		t.Fatal("expected error for negative subtotal")
	}
	if _, err := policy.Compute(decimal.RequireFromString("10"), decimal.RequireFromString("11")); err == nil {
		t.Fatal("expected error for discount exceeding subtotal")
	}
	typed := pkgerrors.As(func() error {
		_, err := policy.Compute(decimal.RequireFromString("10"), decimal.RequireFromString("-1"))
		return err
	}())
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for negative discount")
	}
}

func TestNewPolicyRejectsBadRates(t *testing.T) {
	t.Parallel()

	if _, err := NewPolicy("abc"); err == nil {
		t.Fatal("expected error for non-numeric rate")
	}
	if _, err := NewPolicy("1.0"); err == nil {
		t.Fatal("expected error for rate >= 1")
	}
	if _, err := NewPolicy("-0.1"); err == nil {
		t.Fatal("expected error for negative rate")
	}
}

func TestLineTotal(t *testing.T) {
	t.Parallel()

	total := LineTotal(decimal.RequireFromString("10.00"), 2)
	if got := total.StringFixed(2); got != "20.00" {
		t.Fatalf("expected 20.00, got %s", got)
	}

	total = LineTotal(decimal.RequireFromString("3.335"), 3)
	if got := total.StringFixed(2); got != "10.01" {
		t.Fatalf("expected 10.01, got %s", got)
	}
}

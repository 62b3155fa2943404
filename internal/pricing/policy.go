package pricing

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/distribuida/libreria-backend/pkg/errors"
)

// DefaultTaxRate matches the bookstore's fixed VAT rate.
const DefaultTaxRate = "0.15"

// Policy computes cart and invoice totals under a fixed tax rate. All results
// are rounded half-up to 2 decimal places; every caller that derives money
// goes through this type so the rounding stays consistent end to end.
type Policy struct {
	rate decimal.Decimal
}

// NewPolicy parses the configured tax rate. Rates must be in [0, 1).
func NewPolicy(rate string) (Policy, error) {
	if rate == "" {
		rate = DefaultTaxRate
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return Policy{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tax rate")
	}
	if parsed.IsNegative() || parsed.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Policy{}, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must be in [0, 1)")
	}
	return Policy{rate: parsed}, nil
}

// Rate returns the tax rate in effect.
func (p Policy) Rate() decimal.Decimal {
	return p.rate
}

// Totals holds the derived monetary fields of a cart or invoice.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// LineTotal computes quantity × unit price, rounded to 2 decimal places.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Compute derives tax and total from a subtotal and flat discount:
// tax = (subtotal − discount) × rate, total = subtotal − discount + tax.
// Preconditions: subtotal >= 0, 0 <= discount <= subtotal.
func (p Policy) Compute(subtotal, discount decimal.Decimal) (Totals, error) {
	if subtotal.IsNegative() {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}
	if discount.IsNegative() {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}
	if discount.GreaterThan(subtotal) {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
	}

	base := subtotal.Sub(discount)
	tax := base.Mul(p.rate).Round(2)
	total := base.Add(tax).Round(2)

	return Totals{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Tax:      tax,
		Total:    total,
	}, nil
}

// Package pricing computes checkout fee breakdowns. All amounts are integer
// minor currency units; percentages are applied with decimal arithmetic and
// rounded to the nearest unit.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoPrice is returned when a listing carries no price, which blocks checkout.
	ErrNoPrice = errors.New("pricing: listing has no price")
	// ErrInvalidInput signals a negative price or an unparsable rate.
	ErrInvalidInput = errors.New("pricing: invalid input")
)

const (
	// MaxQuantity bounds the quantity of one line item.
	MaxQuantity = 10000
	// MaxSubtotalCents bounds a line item subtotal so fee, tax and total
	// stay well inside int64.
	MaxSubtotalCents int64 = 100_000_000_000_000
)

// DiscountType discriminates promo discounts.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

// LineItem is one listing times a quantity.
type LineItem struct {
	ListingID      string `json:"listing_id"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	Currency       string `json:"currency"`
}

// NewLineItem builds a line item from a listing price. Quantity defaults to
// 1 and is clamped to at least 1. Quantities above MaxQuantity and
// subtotals above MaxSubtotalCents are rejected.
func NewLineItem(listingID string, unitPriceCents *int64, quantity int, currency string) (LineItem, error) {
	if unitPriceCents == nil {
		return LineItem{}, ErrNoPrice
	}
	price := *unitPriceCents
	if price < 0 {
		return LineItem{}, fmt.Errorf("%w: unit price %d is negative", ErrInvalidInput, price)
	}
	qty := ClampQuantity(quantity)
	if qty > MaxQuantity {
		return LineItem{}, fmt.Errorf("%w: quantity %d exceeds %d", ErrInvalidInput, qty, MaxQuantity)
	}
	if price > 0 && int64(qty) > MaxSubtotalCents/price {
		return LineItem{}, fmt.Errorf("%w: subtotal of %d x %d exceeds %d", ErrInvalidInput, qty, price, MaxSubtotalCents)
	}
	return LineItem{
		ListingID:      listingID,
		UnitPriceCents: price,
		Quantity:       qty,
		Currency:       currency,
	}, nil
}

// ClampQuantity maps any quantity below 1 to 1.
func ClampQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}

// Total is the exact unit price times quantity.
func (l LineItem) Total() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// Discount is a validated promo discount.
type Discount struct {
	Type       DiscountType `json:"discount_type"`
	ValueCents int64        `json:"discount_value_cents"`
	Percent    float64      `json:"discount_percent"`
}

// EffectiveDiscount resolves a discount against a subtotal and caps it to
// [0, subtotal]. Promo previews and applied discounts both go through here.
func EffectiveDiscount(d Discount, subtotalCents int64) int64 {
	var amount int64
	switch d.Type {
	case DiscountPercent:
		amount = percentOf(subtotalCents, decimal.NewFromFloat(d.Percent))
	case DiscountFixed:
		amount = d.ValueCents
	}
	return capDiscount(amount, subtotalCents)
}

func capDiscount(amount, subtotalCents int64) int64 {
	if amount < 0 || subtotalCents <= 0 {
		return 0
	}
	if amount > subtotalCents {
		return subtotalCents
	}
	return amount
}

func percentOf(amount int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()
}

// Rates are the fixed percentages applied at checkout.
type Rates struct {
	FeePercent decimal.Decimal
	TaxPercent decimal.Decimal
}

// ParseRates parses percent strings such as "10" or "7.5".
func ParseRates(fee, tax string) (Rates, error) {
	feePct, err := decimal.NewFromString(fee)
	if err != nil {
		return Rates{}, fmt.Errorf("%w: fee percent %q: %v", ErrInvalidInput, fee, err)
	}
	taxPct, err := decimal.NewFromString(tax)
	if err != nil {
		return Rates{}, fmt.Errorf("%w: tax percent %q: %v", ErrInvalidInput, tax, err)
	}
	if feePct.IsNegative() || taxPct.IsNegative() {
		return Rates{}, fmt.Errorf("%w: percentages must not be negative", ErrInvalidInput)
	}
	return Rates{FeePercent: feePct, TaxPercent: taxPct}, nil
}

// Breakdown is the derived fee breakdown of a checkout.
type Breakdown struct {
	SubtotalCents     int64  `json:"subtotal_cents"`
	PlatformFeeCents  int64  `json:"platform_fee_cents"`
	DiscountCents     int64  `json:"discount_cents"`
	TaxCents          int64  `json:"tax_cents"`
	TotalCents        int64  `json:"total_cents"`
	SellerPayoutCents int64  `json:"seller_payout_cents"`
	Currency          string `json:"currency"`
}

// Calculator turns line items into breakdowns.
type Calculator struct {
	rates Rates
}

func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rates returns the configured percentages.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Compute applies fee, discount and tax to a line item. The requested
// discount is capped at the subtotal and never goes below zero.
func (c *Calculator) Compute(line LineItem, requestedDiscountCents int64) Breakdown {
	subtotal := line.Total()
	fee := percentOf(subtotal, c.rates.FeePercent)
	discount := capDiscount(requestedDiscountCents, subtotal)
	taxable := subtotal - discount
	tax := percentOf(taxable, c.rates.TaxPercent)

	payout := taxable - fee
	if payout < 0 {
		payout = 0
	}

	return Breakdown{
		SubtotalCents:     subtotal,
		PlatformFeeCents:  fee,
		DiscountCents:     discount,
		TaxCents:          tax,
		TotalCents:        taxable + fee + tax,
		SellerPayoutCents: payout,
		Currency:          line.Currency,
	}
}

// Quote computes a breakdown with an optional promo discount.
func (c *Calculator) Quote(line LineItem, discount *Discount) Breakdown {
	var requested int64
	if discount != nil {
		requested = EffectiveDiscount(*discount, line.Total())
	}
	return c.Compute(line, requested)
}

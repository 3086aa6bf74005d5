package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

var hundred = decimal.NewFromInt(100)

type DiscountRule struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// Discount returns the amount taken off subtotal, rounded to cents and
// never outside [0, subtotal].
func (r DiscountRule) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch r.Kind {
	case DiscountPercent:
		d = subtotal.Mul(r.Value).Div(hundred)
	case DiscountFixed:
		d = r.Value
	}
	d = d.Round(2)

	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d
}

// CouponBook maps normalized coupon codes to their discount rule.
type CouponBook map[string]DiscountRule

func DefaultCouponBook() CouponBook {
	return CouponBook{
		"SAVE10": {Kind: DiscountPercent, Value: decimal.NewFromInt(10)},
	}
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (b CouponBook) Lookup(code string) (string, DiscountRule, bool) {
	code = NormalizeCouponCode(code)
	if code == "" {
		return "", DiscountRule{}, false
	}
	rule, ok := b[code]
	return code, rule, ok
}

// ParseCouponBook reads a comma-separated list of CODE=kind:value entries,
// e.g. "SAVE10=percent:10,FIVEOFF=fixed:5".
func ParseCouponBook(spec string) (CouponBook, error) {
	book := make(CouponBook)

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		code, ruleSpec, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("coupon %q: missing rule", entry)
		}
		code = NormalizeCouponCode(code)
		if code == "" {
			return nil, fmt.Errorf("coupon %q: empty code", entry)
		}

		kind, value, ok := strings.Cut(strings.TrimSpace(ruleSpec), ":")
		if !ok {
			return nil, fmt.Errorf("coupon %s: rule must be kind:value", code)
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("coupon %s: invalid value: %w", code, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("coupon %s: value cannot be negative", code)
		}

		rule := DiscountRule{Kind: DiscountKind(strings.ToLower(strings.TrimSpace(kind))), Value: amount}
		switch rule.Kind {
		case DiscountPercent:
			if amount.GreaterThan(hundred) {
				return nil, fmt.Errorf("coupon %s: percentage must be 0-100", code)
			}
		case DiscountFixed:
		default:
			return nil, fmt.Errorf("coupon %s: unknown kind %q", code, kind)
		}

		if _, dup := book[code]; dup {
			return nil, fmt.Errorf("coupon %s: defined twice", code)
		}
		book[code] = rule
	}

	return book, nil
}

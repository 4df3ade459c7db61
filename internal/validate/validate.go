// Package validate holds the pure input rules applied before any write.
package validate

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yelena0000/fish-store/internal/errs"
)

var (
	minQuantity = decimal.RequireFromString("0.1")
	maxQuantity = decimal.RequireFromString("50")

	// Conservative local@domain.tld shape, nothing RFC-complete.
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Quantity parses a kilogram amount typed by the user. Both comma and dot
// are accepted as the decimal separator. Accepted range is [0.1, 50].
func Quantity(input string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(input), ",", ".")

	qty, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, &errs.ValidationError{Message: "Enter a number, for example 1.5"}
	}

	switch {
	case qty.Sign() <= 0:
		return decimal.Zero, &errs.ValidationError{Message: "Quantity must be greater than 0, for example 1.5"}
	case qty.LessThan(minQuantity):
		return decimal.Zero, &errs.ValidationError{Message: "Minimum quantity is 0.1 kg, enter at least 0.1"}
	case qty.GreaterThan(maxQuantity):
		return decimal.Zero, &errs.ValidationError{Message: "Maximum quantity is 50 kg, enter up to 50"}
	}

	return qty, nil
}

// Email checks the address used for the order confirmation.
func Email(input string) (string, error) {
	email := strings.TrimSpace(input)
	if !emailRe.MatchString(email) {
		return "", &errs.ValidationError{Message: "Enter a valid email address"}
	}
	return email, nil
}

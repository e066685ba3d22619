package ledger

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	amountScale          = 2
	maxReferenceLength   = 128
	maxDescriptionLength = 255
)

var (
	// NUMERIC(20,2) leaves 18 integer digits; keep a wide margin below that.
	maxAmount        = decimal.New(1, 15)
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)
)

func validateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	case !amount.Equal(amount.Round(amountScale)):
		return fmt.Errorf("%w: amount supports at most %d decimal places", ErrInvalidAmount, amountScale)
	case amount.GreaterThanOrEqual(maxAmount):
		return fmt.Errorf("%w: amount exceeds the supported maximum", ErrInvalidAmount)
	}
	return nil
}

func validateReference(ref string) error {
	switch {
	case ref == "":
		return fmt.Errorf("%w: reference is required", ErrInvalidInput)
	case len(ref) > maxReferenceLength:
		return fmt.Errorf("%w: reference exceeds %d characters", ErrInvalidInput, maxReferenceLength)
	case !referencePattern.MatchString(ref):
		return fmt.Errorf("%w: reference may only contain letters, digits and . _ : -", ErrInvalidInput)
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, maxDescriptionLength)
	}
	return nil
}

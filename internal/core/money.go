// Package core holds the billing domain types and money handling.
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidAmount is returned for amount strings that do not parse as a
// finite decimal number.
var ErrInvalidAmount = errors.New("invalid amount")

// Money is a fixed-point amount in cents. Arithmetic on cents avoids the
// float rounding drift the amounts would otherwise accumulate.
type Money struct {
	Cents int64
}

// String renders the amount with exactly two decimal digits, e.g. "150.50".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." +
		strconv.FormatInt(cents%100/10, 10) + strconv.FormatInt(cents%10, 10)
}

// ParseAmountCents converts a decimal string to cents.
//
// It accepts an optional leading sign and both dot (12.34) and comma (12,34)
// decimal separators, and rounds half-up on the third decimal place.
// Anything that is not a plain finite decimal is rejected with
// ErrInvalidAmount; nothing is ever truncated.
//
//	ParseAmountCents("150.5")  -> 15050
//	ParseAmountCents("12.345") -> 1235 (rounds up)
//	ParseAmountCents("abc")    -> ErrInvalidAmount
func ParseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}

	// First two fractional digits, half-up rounding on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// ParseAmount is ParseAmountCents wrapped in the Money type.
func ParseAmount(s string) (Money, error) {
	cents, err := ParseAmountCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

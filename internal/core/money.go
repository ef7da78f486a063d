// Package core provides money parsing and handling utilities.
//
// This file contains the Amount type used for ledger values and the parser
// for amounts typed into the transaction form.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal ledger value. Decoding never fails: anything that is not
// a number (null, "abc", "") decodes to zero so one bad row cannot hide the rest.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// MustAmount parses s and panics on failure. Intended for tests and constants.
func MustAmount(s string) Amount {
	return Amount{Decimal: decimal.RequireFromString(s)}
}

// ParseAmount converts form input to a positive Amount.
//
// It trims whitespace and accepts a decimal comma (the first ',' becomes '.').
// Zero, negative and unparseable values yield ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.5, nil
//	ParseAmount("0")     -> ErrInvalidAmount
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	a := Amount{Decimal: d}
	if err := a.Validate(); err != nil {
		return Amount{}, err
	}
	return a, nil
}

func (a Amount) Validate() error {
	if !a.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// UnmarshalJSON accepts JSON numbers and numeric strings.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	d, err := decimal.NewFromString(s)
	if err != nil {
		a.Decimal = decimal.Zero
		return nil
	}
	a.Decimal = d
	return nil
}

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Format renders the amount with two decimals for display.
func (a Amount) Format() string {
	return a.StringFixed(2)
}

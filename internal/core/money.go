// Package core holds the ledger's domain model: money, accounts, categories,
// payees and transactions, together with the invariants they enforce.
//
// This file contains the two quantity types. Money is a decimal amount in a
// single ISO 4217 currency; RewardsBalance is a points or miles quantity
// used by reward accounts in place of Money.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an upper-case ISO 4217 code such as "USD".
type Currency string

// Validate checks the code has the ISO 4217 shape (three ASCII letters).
func (c Currency) Validate() error {
	if len(c) != 3 {
		return newValidationError(CodeInvalidCurrency, "currency", "currency %q must be a three letter ISO 4217 code", string(c))
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return newValidationError(CodeInvalidCurrency, "currency", "currency %q must be upper-case letters", string(c))
		}
	}
	return nil
}

// Money is immutable; every operation returns a new value.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney builds a Money after validating the currency code.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if err := currency.Validate(); err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: currency}, nil
}

// ZeroMoney returns 0 in the given currency.
func ZeroMoney(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// ParseMoney parses a signed decimal string. Both dot (12.34) and comma
// (12,34) decimal separators are accepted.
//
// Examples:
//
//	ParseMoney("-500.00", "USD") -> -500.00 USD
//	ParseMoney("12,34", "EUR")   -> 12.34 EUR
func ParseMoney(s string, currency Currency) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, newValidationError(CodeInvalidAmount, "amount", "amount is empty")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, newValidationError(CodeInvalidAmount, "amount", "amount %q has more than one decimal separator", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, newValidationError(CodeInvalidAmount, "amount", "amount %q is not a decimal number", s)
	}
	return NewMoney(d, currency)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return newValidationError(CodeCurrencyMismatch, "currency", "cannot combine %s with %s", m.currency, o.currency)
	}
	return nil
}

// Add returns m+o. Differing currencies fail with CURRENCY_MISMATCH.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m-o. Differing currencies fail with CURRENCY_MISMATCH.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(o.amount), currency: m.currency}, nil
}

func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Equal reports value equality; 1.5 USD equals 1.50 USD.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// Cmp compares m with o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

// String renders the amount with two decimals and the currency code.
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + string(m.currency)
}

// SumMoney adds amounts in currency. An empty list sums to zero.
func SumMoney(currency Currency, amounts ...Money) (Money, error) {
	total := ZeroMoney(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewMoney(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// RewardsBalance is a points/miles quantity with a unit label ("points",
// "miles"). It stands in for Money on reward accounts.
type RewardsBalance struct {
	points decimal.Decimal
	unit   string
}

func NewRewardsBalance(points decimal.Decimal, unit string) (RewardsBalance, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		return RewardsBalance{}, newValidationError(CodeUnitMismatch, "unit", "rewards unit is required")
	}
	return RewardsBalance{points: points, unit: unit}, nil
}

func (r RewardsBalance) Points() decimal.Decimal { return r.points }
func (r RewardsBalance) Unit() string            { return r.unit }

func (r RewardsBalance) sameUnit(o RewardsBalance) error {
	if r.unit != o.unit {
		return newValidationError(CodeUnitMismatch, "unit", "cannot combine %s with %s", r.unit, o.unit)
	}
	return nil
}

func (r RewardsBalance) Add(o RewardsBalance) (RewardsBalance, error) {
	if err := r.sameUnit(o); err != nil {
		return RewardsBalance{}, err
	}
	return RewardsBalance{points: r.points.Add(o.points), unit: r.unit}, nil
}

func (r RewardsBalance) Sub(o RewardsBalance) (RewardsBalance, error) {
	if err := r.sameUnit(o); err != nil {
		return RewardsBalance{}, err
	}
	return RewardsBalance{points: r.points.Sub(o.points), unit: r.unit}, nil
}

func (r RewardsBalance) Neg() RewardsBalance {
	return RewardsBalance{points: r.points.Neg(), unit: r.unit}
}

func (r RewardsBalance) IsZero() bool { return r.points.IsZero() }

func (r RewardsBalance) Equal(o RewardsBalance) bool {
	return r.unit == o.unit && r.points.Equal(o.points)
}

func (r RewardsBalance) Cmp(o RewardsBalance) (int, error) {
	if err := r.sameUnit(o); err != nil {
		return 0, err
	}
	return r.points.Cmp(o.points), nil
}

func (r RewardsBalance) String() string {
	return r.points.String() + " " + r.unit
}

type rewardsJSON struct {
	Points decimal.Decimal `json:"points"`
	Unit   string          `json:"unit"`
}

func (r RewardsBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(rewardsJSON{Points: r.points, Unit: r.unit})
}

func (r *RewardsBalance) UnmarshalJSON(data []byte) error {
	var raw rewardsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewRewardsBalance(raw.Points, raw.Unit)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func usd(s string) Money {
	m, err := ParseMoney(s, "USD")
	if err != nil {
		panic(err)
	}
	return m
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00 USD", true},
		{"1.0", "1.00 USD", true},
		{"1.23", "1.23 USD", true},
		{"1,23", "1.23 USD", true},
		{"0.01", "0.01 USD", true},
		{" 2.50 ", "2.50 USD", true},
		{"-500.00", "-500.00 USD", true},
		{"0", "0.00 USD", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in, "USD")
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if !HasCode(err, CodeInvalidAmount) {
				t.Fatalf("%q expected INVALID_AMOUNT, got %v", tc.in, err)
			}
		}
	}
}

func TestCurrencyValidate(t *testing.T) {
	cases := []struct {
		c  Currency
		ok bool
	}{
		{"USD", true},
		{"EUR", true},
		{"usd", false},
		{"US", false},
		{"USDT", false},
		{"", false},
	}
	for _, tc := range cases {
		err := tc.c.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.c, err)
		}
		if !tc.ok && !HasCode(err, CodeInvalidCurrency) {
			t.Fatalf("%q expected INVALID_CURRENCY, got %v", tc.c, err)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	sum, err := usd("10.10").Add(usd("0.20"))
	if err != nil || !sum.Equal(usd("10.30")) {
		t.Fatalf("add: got %s err=%v", sum, err)
	}
	diff, err := usd("1").Sub(usd("2.5"))
	if err != nil || !diff.Equal(usd("-1.5")) {
		t.Fatalf("sub: got %s err=%v", diff, err)
	}
	if !usd("3").Neg().Equal(usd("-3")) {
		t.Fatalf("neg failed")
	}
	if !usd("1.5").Equal(usd("1.50")) {
		t.Fatalf("1.5 and 1.50 should be equal")
	}
	if c, _ := usd("1").Cmp(usd("2")); c != -1 {
		t.Fatalf("cmp expected -1, got %d", c)
	}
	if !usd("-0.01").IsNegative() || !usd("0").IsZero() || !usd("0.01").IsPositive() {
		t.Fatalf("sign predicates wrong")
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	eur, _ := ParseMoney("1", "EUR")
	if _, err := usd("1").Add(eur); !HasCode(err, CodeCurrencyMismatch) {
		t.Fatalf("add expected CURRENCY_MISMATCH, got %v", err)
	}
	if _, err := usd("1").Sub(eur); !HasCode(err, CodeCurrencyMismatch) {
		t.Fatalf("sub expected CURRENCY_MISMATCH, got %v", err)
	}
	if _, err := usd("1").Cmp(eur); !HasCode(err, CodeCurrencyMismatch) {
		t.Fatalf("cmp expected CURRENCY_MISMATCH, got %v", err)
	}
	if usd("1").Equal(eur) {
		t.Fatalf("different currencies must not be equal")
	}
}

func TestSumMoney(t *testing.T) {
	total, err := SumMoney("USD", usd("-100"), usd("-50.25"), usd("0.25"))
	if err != nil || !total.Equal(usd("-150")) {
		t.Fatalf("got %s err=%v", total, err)
	}
	empty, err := SumMoney("USD")
	if err != nil || !empty.IsZero() {
		t.Fatalf("empty sum should be zero, got %s err=%v", empty, err)
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(usd("12.5"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(usd("12.5")) {
		t.Fatalf("got %s", back)
	}
	if err := json.Unmarshal([]byte(`{"amount":"1","currency":"us"}`), &back); !HasCode(err, CodeInvalidCurrency) {
		t.Fatalf("expected INVALID_CURRENCY, got %v", err)
	}
}

func TestRewardsBalance(t *testing.T) {
	a, err := NewRewardsBalance(decimal.NewFromInt(1000), " Points ")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Unit() != "points" {
		t.Fatalf("unit should be normalized, got %q", a.Unit())
	}
	b, _ := NewRewardsBalance(decimal.NewFromInt(250), "points")
	sum, err := a.Add(b)
	if err != nil || !sum.Points().Equal(decimal.NewFromInt(1250)) {
		t.Fatalf("add: got %s err=%v", sum, err)
	}
	miles, _ := NewRewardsBalance(decimal.NewFromInt(1), "miles")
	if _, err := a.Add(miles); !HasCode(err, CodeUnitMismatch) {
		t.Fatalf("expected UNIT_MISMATCH, got %v", err)
	}
	if _, err := NewRewardsBalance(decimal.Zero, ""); !HasCode(err, CodeUnitMismatch) {
		t.Fatalf("expected UNIT_MISMATCH for empty unit, got %v", err)
	}
}

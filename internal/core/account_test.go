package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHousehold = HouseholdID("hh_0190b0c4-1a2b-7c3d-8e4f-5a6b7c8d9e0f")

func moneyPtr(s string) *Money {
	m := usd(s)
	return &m
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(i int) *int { return &i }

func TestAccountFactories(t *testing.T) {
	points, _ := NewRewardsBalance(decimal.NewFromInt(5000), "points")
	cases := []struct {
		name string
		typ  AccountType
		p    AccountParams
		code ErrorCode
	}{
		{"checking", AccountChecking, AccountParams{Name: "Everyday", OpeningBalance: moneyPtr("100")}, ""},
		{"savings", AccountSavings, AccountParams{Name: "Rainy day", OpeningBalance: moneyPtr("0")}, ""},
		{"credit card", AccountCreditCard, AccountParams{Name: "Visa", OpeningBalance: moneyPtr("-20"), CreditLimit: moneyPtr("5000")}, ""},
		{"credit card without limit", AccountCreditCard, AccountParams{Name: "Visa", OpeningBalance: moneyPtr("0")}, CodeInvalidAccountFields},
		{"credit card zero limit", AccountCreditCard, AccountParams{Name: "Visa", OpeningBalance: moneyPtr("0"), CreditLimit: moneyPtr("0")}, CodeInvalidAccountFields},
		{"loan", AccountLoan, AccountParams{Name: "House", Subtype: SubtypeMortgage, OpeningBalance: moneyPtr("-250000"), APR: decPtr("6.5"), TermMonths: intPtr(360)}, ""},
		{"line of credit without term", AccountLoan, AccountParams{Name: "HELOC", Subtype: SubtypeLineOfCredit, OpeningBalance: moneyPtr("0"), APR: decPtr("9")}, ""},
		{"loan without subtype", AccountLoan, AccountParams{Name: "Car", OpeningBalance: moneyPtr("-1"), APR: decPtr("4")}, CodeInvalidSubtype},
		{"loan with ira subtype", AccountLoan, AccountParams{Name: "Car", Subtype: SubtypeRoth, OpeningBalance: moneyPtr("-1"), APR: decPtr("4")}, CodeInvalidSubtype},
		{"loan without apr", AccountLoan, AccountParams{Name: "Car", Subtype: SubtypeAuto, OpeningBalance: moneyPtr("-1")}, CodeInvalidAccountFields},
		{"loan apr over 100", AccountLoan, AccountParams{Name: "Car", Subtype: SubtypeAuto, OpeningBalance: moneyPtr("-1"), APR: decPtr("101")}, CodeInvalidAccountFields},
		{"loan zero term", AccountLoan, AccountParams{Name: "Car", Subtype: SubtypeAuto, OpeningBalance: moneyPtr("-1"), APR: decPtr("4"), TermMonths: intPtr(0)}, CodeInvalidAccountFields},
		{"brokerage", AccountBrokerage, AccountParams{Name: "Taxable", OpeningBalance: moneyPtr("0")}, ""},
		{"ira", AccountIRA, AccountParams{Name: "Retirement", Subtype: SubtypeRoth, OpeningBalance: moneyPtr("0")}, ""},
		{"ira without subtype", AccountIRA, AccountParams{Name: "Retirement", OpeningBalance: moneyPtr("0")}, CodeInvalidSubtype},
		{"rewards", AccountRewards, AccountParams{Name: "Airline", OpeningRewards: &points}, ""},
		{"rewards with money", AccountRewards, AccountParams{Name: "Airline", OpeningRewards: &points, OpeningBalance: moneyPtr("1")}, CodeInvalidAccountFields},
		{"rewards without balance", AccountRewards, AccountParams{Name: "Airline"}, CodeInvalidAccountFields},
		{"checking with subtype", AccountChecking, AccountParams{Name: "X", Subtype: SubtypeAuto, OpeningBalance: moneyPtr("0")}, CodeInvalidSubtype},
		{"checking with apr", AccountChecking, AccountParams{Name: "X", OpeningBalance: moneyPtr("0"), APR: decPtr("1")}, CodeInvalidAccountFields},
		{"checking with limit", AccountChecking, AccountParams{Name: "X", OpeningBalance: moneyPtr("0"), CreditLimit: moneyPtr("1")}, CodeInvalidAccountFields},
		{"checking without balance", AccountChecking, AccountParams{Name: "X"}, CodeInvalidAccountFields},
		{"empty name", AccountChecking, AccountParams{Name: "   ", OpeningBalance: moneyPtr("0")}, CodeInvalidName},
		{"long name", AccountChecking, AccountParams{Name: string(make([]byte, 101)), OpeningBalance: moneyPtr("0")}, CodeInvalidName},
		{"unknown type", AccountType("crypto"), AccountParams{Name: "X", OpeningBalance: moneyPtr("0")}, CodeInvalidAccountFields},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.p.HouseholdID = testHousehold
			a, err := NewAccount(tc.typ, tc.p)
			if tc.code != "" {
				require.Error(t, err)
				assert.Equal(t, tc.code, CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.typ, a.Type())
			assert.Equal(t, AccountStatusOpen, a.Status())
			events := a.PendingEvents()
			require.Len(t, events, 1)
			assert.Equal(t, EventAccountCreated, events[0].EventName())
			assert.Equal(t, string(a.ID()), events[0].AggregateID())
		})
	}
}

func newChecking(t *testing.T) *Account {
	t.Helper()
	a, err := NewCheckingAccount(AccountParams{HouseholdID: testHousehold, Name: "Checking", OpeningBalance: moneyPtr("0")})
	require.NoError(t, err)
	a.DrainEvents()
	return a
}

func TestAccountCloseReopen(t *testing.T) {
	a := newChecking(t)

	require.NoError(t, a.Close())
	assert.True(t, a.IsClosed())
	assert.Equal(t, CodeAccountAlreadyClosed, CodeOf(a.Close()))

	require.NoError(t, a.Reopen())
	assert.False(t, a.IsClosed())
	assert.Equal(t, CodeAccountNotClosed, CodeOf(a.Reopen()))

	events := a.DrainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, EventAccountClosed, events[0].EventName())
	assert.Equal(t, EventAccountReopened, events[1].EventName())
}

func TestAccountUpdateName(t *testing.T) {
	a := newChecking(t)

	require.NoError(t, a.UpdateName("  Joint checking "))
	assert.Equal(t, "Joint checking", a.Name())
	require.NoError(t, a.UpdateName("Joint checking"))
	assert.Equal(t, CodeInvalidName, CodeOf(a.UpdateName("")))

	events := a.DrainEvents()
	require.Len(t, events, 1, "renaming to the same name is a no-op")
	upd := events[0].(AccountUpdated)
	assert.Equal(t, "Checking", upd.OldValue)
	assert.Equal(t, "Joint checking", upd.NewValue)
}

func TestAvailableCredit(t *testing.T) {
	card, err := NewCreditCardAccount(AccountParams{
		HouseholdID:    testHousehold,
		Name:           "Visa",
		OpeningBalance: moneyPtr("0"),
		CreditLimit:    moneyPtr("1000"),
	})
	require.NoError(t, err)
	avail, err := card.AvailableCredit(usd("-250"))
	require.NoError(t, err)
	assert.True(t, avail.Equal(usd("750")), avail.String())

	_, err = newChecking(t).AvailableCredit(usd("0"))
	assert.Equal(t, CodeNotACreditCard, CodeOf(err))
}

func TestAccountStateRoundTrip(t *testing.T) {
	a, err := NewLoanAccount(AccountParams{
		HouseholdID:    testHousehold,
		Name:           "Car",
		Subtype:        SubtypeAuto,
		OpeningBalance: moneyPtr("-15000"),
		APR:            decPtr("3.9"),
		TermMonths:     intPtr(60),
		Institution:    &Institution{Name: "Credit Union", AccountMask: "1234"},
	})
	require.NoError(t, err)

	restored := RestoreAccount(a.State())
	assert.Equal(t, a.State(), restored.State())
	assert.Empty(t, restored.PendingEvents())
}

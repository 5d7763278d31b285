package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
	"github.com/galexy/revivo-mk1-sub001/internal/repository/memory"
)

const hh = core.HouseholdID("hh_0190b0c4-1a2b-7c3d-8e4f-5a6b7c8d9e0f")

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventName()
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	ctx    context.Context
	ledger *Ledger
	pub    *recordingPublisher
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	return &fixture{
		ctx:    context.Background(),
		ledger: NewLedger(store, pub),
		pub:    pub,
		store:  store,
	}
}

func usd(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s, "USD")
	require.NoError(t, err)
	return m
}

func (f *fixture) account(t *testing.T, typ core.AccountType, name, opening string) *core.Account {
	t.Helper()
	balance := usd(t, opening)
	p := core.AccountParams{HouseholdID: hh, Name: name, OpeningBalance: &balance}
	if typ == core.AccountCreditCard {
		limit := usd(t, "1000")
		p.CreditLimit = &limit
	}
	a, err := f.ledger.CreateAccount(f.ctx, typ, p)
	require.NoError(t, err)
	return a
}

func (f *fixture) category(t *testing.T, name string) *core.Category {
	t.Helper()
	c, err := f.ledger.CreateCategory(f.ctx, hh, name, core.CategoryExpense, "")
	require.NoError(t, err)
	return c
}

func (f *fixture) balance(t *testing.T, id core.AccountID) string {
	t.Helper()
	b, err := f.ledger.AccountBalance(f.ctx, id)
	require.NoError(t, err)
	return b.Amount().StringFixed(2)
}

func TestCreateAccountPublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, core.AccountChecking, "Checking", "100")

	assert.Equal(t, []string{core.EventAccountCreated}, f.pub.names())
	assert.Empty(t, a.PendingEvents(), "events must be drained after publishing")

	got, err := f.ledger.GetAccount(f.ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "Checking", got.Name())
}

func TestFailedUnitOfWorkPublishesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.CreateAccount(f.ctx, core.AccountLoan, core.AccountParams{HouseholdID: hh, Name: "Mortgage"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Empty(t, f.pub.names())
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	a := f.account(t, core.AccountSavings, "Savings", "0")
	_, err := f.ledger.GetAccount(f.ctx, a.ID())
	assert.NoError(t, err, "account must be persisted even if publishing fails")
}

func TestAccountLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, core.AccountChecking, "Checking", "0")
	f.pub.reset()

	require.NoError(t, f.ledger.RenameAccount(f.ctx, a.ID(), "Joint Checking"))
	require.NoError(t, f.ledger.UpdateAccountInstitution(f.ctx, a.ID(), &core.Institution{Name: "Credit Union"}))
	require.NoError(t, f.ledger.CloseAccount(f.ctx, a.ID()))

	err := f.ledger.CloseAccount(f.ctx, a.ID())
	assert.True(t, core.HasCode(err, core.CodeAccountAlreadyClosed))

	require.NoError(t, f.ledger.ReopenAccount(f.ctx, a.ID()))
	assert.Equal(t, []string{
		core.EventAccountUpdated, core.EventAccountUpdated,
		core.EventAccountClosed, core.EventAccountReopened,
	}, f.pub.names())

	list, err := f.ledger.ListAccounts(f.ctx, hh)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Joint Checking", list[0].Name())
	assert.False(t, list[0].IsClosed())

	_, err = f.ledger.GetAccount(f.ctx, core.NewAccountID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBalanceAndAvailableCredit(t *testing.T) {
	f := newFixture(t)
	card := f.account(t, core.AccountCreditCard, "Visa", "-100")
	checking := f.account(t, core.AccountChecking, "Checking", "500")
	food := f.category(t, "Food")

	split, _ := core.NewCategorySplit(usd(t, "-40"), food.ID())
	_, err := f.ledger.CreateTransaction(f.ctx, core.TransactionParams{
		HouseholdID: hh, AccountID: card.ID(), Amount: usd(t, "-40"),
		Splits: []core.SplitLine{split}, EffectiveDate: core.NewDate(2025, 2, 1),
	})
	require.NoError(t, err)

	payment, _ := core.NewTransferSplit(usd(t, "-140"), card.ID())
	_, err = f.ledger.CreateTransaction(f.ctx, core.TransactionParams{
		HouseholdID: hh, AccountID: checking.ID(), Amount: usd(t, "-140"),
		Splits: []core.SplitLine{payment}, EffectiveDate: core.NewDate(2025, 2, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, "0.00", f.balance(t, card.ID()))
	assert.Equal(t, "360.00", f.balance(t, checking.ID()))

	available, err := f.ledger.AvailableCredit(f.ctx, card.ID())
	require.NoError(t, err)
	assert.Equal(t, "1000.00", available.Amount().StringFixed(2))

	_, err = f.ledger.AvailableCredit(f.ctx, checking.ID())
	assert.True(t, core.HasCode(err, core.CodeNotACreditCard))
}

func TestRewardsAccountHasNoMoneyBalance(t *testing.T) {
	f := newFixture(t)
	points, err := core.NewRewardsBalance(decimal.NewFromInt(5000), "points")
	require.NoError(t, err)
	a, err := f.ledger.CreateAccount(f.ctx, core.AccountRewards, core.AccountParams{
		HouseholdID: hh, Name: "Hotel", OpeningRewards: &points,
	})
	require.NoError(t, err)

	_, err = f.ledger.AccountBalance(f.ctx, a.ID())
	assert.True(t, core.HasCode(err, core.CodeRewardsAccount))
}

func TestCloseReportsStoreErrors(t *testing.T) {
	l := NewLedger(failingStore{}, nil)
	err := l.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")
}

type failingStore struct{}

func (failingStore) WithinTx(context.Context, func(repository.UnitOfWork) error) error {
	return errors.New("unavailable")
}

func (failingStore) Close() error { return errors.New("close failed") }

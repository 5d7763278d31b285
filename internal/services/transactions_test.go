package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

type ledgerSetup struct {
	*fixture
	checking, savings, card *core.Account
	food                    *core.Category
}

func newLedgerSetup(t *testing.T) *ledgerSetup {
	t.Helper()
	f := newFixture(t)
	s := &ledgerSetup{
		fixture:  f,
		checking: f.account(t, core.AccountChecking, "Checking", "1000"),
		savings:  f.account(t, core.AccountSavings, "Savings", "0"),
		card:     f.account(t, core.AccountCreditCard, "Visa", "0"),
		food:     f.category(t, "Food"),
	}
	f.pub.reset()
	return s
}

func (s *ledgerSetup) transfer(t *testing.T, amount string, to core.AccountID) *core.Transaction {
	t.Helper()
	split, err := core.NewTransferSplit(usd(t, amount), to)
	require.NoError(t, err)
	txn, err := s.ledger.CreateTransaction(s.ctx, core.TransactionParams{
		HouseholdID:   hh,
		AccountID:     s.checking.ID(),
		Amount:        usd(t, amount),
		Splits:        []core.SplitLine{split},
		EffectiveDate: core.NewDate(2025, 3, 1),
		Memo:          "move money",
	})
	require.NoError(t, err)
	return txn
}

func (s *ledgerSetup) mirrorOf(t *testing.T, src *core.Transaction) *core.Transaction {
	t.Helper()
	var m *core.Transaction
	require.NoError(t, s.store.WithinTx(s.ctx, func(uow repository.UnitOfWork) error {
		var err error
		m, err = uow.Transactions().FindMirror(s.ctx, src.ID())
		return err
	}))
	return m
}

func TestCreateTransactionResolvesPayeeAndDefaults(t *testing.T) {
	s := newLedgerSetup(t)

	txn, err := s.ledger.CreateTransaction(s.ctx, core.TransactionParams{
		HouseholdID:   hh,
		AccountID:     s.checking.ID(),
		Amount:        usd(t, "-12.50"),
		EffectiveDate: core.NewDate(2025, 3, 2),
		PayeeName:     "  Corner   Store ",
	})
	require.NoError(t, err)
	require.Len(t, txn.Splits(), 1)
	assert.NotEmpty(t, txn.PayeeID())

	tree, err := s.ledger.CategoryTree(s.ctx, hh)
	require.NoError(t, err)
	var system *core.Category
	for _, n := range tree {
		if n.Category.IsSystem() {
			system = n.Category
		}
	}
	require.NotNil(t, system, "uncategorized category should have been bootstrapped")
	assert.Equal(t, system.ID(), txn.Splits()[0].CategoryID())

	assert.Equal(t, []string{
		core.EventCategoryCreated,
		core.EventPayeeCreated, core.EventPayeeUsed,
		core.EventTransactionCreated,
	}, s.pub.names())

	// A second transaction for the same payee reuses it and its default.
	require.NoError(t, s.ledger.SetPayeeDefaultCategory(s.ctx, txn.PayeeID(), s.food.ID()))
	second, err := s.ledger.CreateTransaction(s.ctx, core.TransactionParams{
		HouseholdID:   hh,
		AccountID:     s.checking.ID(),
		Amount:        usd(t, "-3"),
		EffectiveDate: core.NewDate(2025, 3, 3),
		PayeeName:     "corner store",
	})
	require.NoError(t, err)
	assert.Equal(t, txn.PayeeID(), second.PayeeID())
	assert.Equal(t, s.food.ID(), second.Splits()[0].CategoryID())

	payee, err := s.ledger.GetPayee(s.ctx, txn.PayeeID())
	require.NoError(t, err)
	assert.Equal(t, 2, payee.UsageCount())
	assert.Equal(t, "Corner Store", payee.Name())
}

func TestCreateTransactionReferenceChecks(t *testing.T) {
	s := newLedgerSetup(t)
	split := func(amount string, cat core.CategoryID) []core.SplitLine {
		sp, err := core.NewCategorySplit(usd(t, amount), cat)
		require.NoError(t, err)
		return []core.SplitLine{sp}
	}

	tests := []struct {
		name   string
		params core.TransactionParams
		code   core.ErrorCode
	}{
		{
			name:   "unknown account",
			params: core.TransactionParams{HouseholdID: hh, AccountID: core.NewAccountID(), Amount: usd(t, "-1"), Splits: split("-1", s.food.ID()), EffectiveDate: core.NewDate(2025, 1, 1)},
			code:   core.CodeInvalidReference,
		},
		{
			name:   "unknown category",
			params: core.TransactionParams{HouseholdID: hh, AccountID: s.checking.ID(), Amount: usd(t, "-1"), Splits: split("-1", core.NewCategoryID()), EffectiveDate: core.NewDate(2025, 1, 1)},
			code:   core.CodeInvalidReference,
		},
		{
			name:   "unknown payee",
			params: core.TransactionParams{HouseholdID: hh, AccountID: s.checking.ID(), Amount: usd(t, "-1"), Splits: split("-1", s.food.ID()), EffectiveDate: core.NewDate(2025, 1, 1), PayeeID: core.NewPayeeID()},
			code:   core.CodeInvalidReference,
		},
		{
			name:   "splits do not sum",
			params: core.TransactionParams{HouseholdID: hh, AccountID: s.checking.ID(), Amount: usd(t, "-2"), Splits: split("-1", s.food.ID()), EffectiveDate: core.NewDate(2025, 1, 1)},
			code:   core.CodeInvalidSplits,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ledger.CreateTransaction(s.ctx, tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.code, core.CodeOf(err), err.Error())
		})
	}
	assert.Empty(t, s.pub.names(), "rejected transactions publish nothing")
}

func TestCreateTransactionOnClosedAccount(t *testing.T) {
	s := newLedgerSetup(t)
	require.NoError(t, s.ledger.CloseAccount(s.ctx, s.savings.ID()))

	split, _ := core.NewTransferSplit(usd(t, "-10"), s.savings.ID())
	_, err := s.ledger.CreateTransaction(s.ctx, core.TransactionParams{
		HouseholdID: hh, AccountID: s.checking.ID(), Amount: usd(t, "-10"),
		Splits: []core.SplitLine{split}, EffectiveDate: core.NewDate(2025, 1, 1),
	})
	assert.True(t, core.HasCode(err, core.CodeAccountClosed), "transfer to closed account: %v", err)

	cat, _ := core.NewCategorySplit(usd(t, "-10"), s.food.ID())
	_, err = s.ledger.CreateTransaction(s.ctx, core.TransactionParams{
		HouseholdID: hh, AccountID: s.savings.ID(), Amount: usd(t, "-10"),
		Splits: []core.SplitLine{cat}, EffectiveDate: core.NewDate(2025, 1, 1),
	})
	assert.True(t, core.HasCode(err, core.CodeAccountClosed), "entry on closed account: %v", err)
}

func TestTransferCreatesMirror(t *testing.T) {
	s := newLedgerSetup(t)
	src := s.transfer(t, "-200", s.savings.ID())

	mirror := s.mirrorOf(t, src)
	assert.True(t, mirror.IsMirror())
	assert.Equal(t, s.savings.ID(), mirror.AccountID())
	assert.True(t, mirror.Amount().Equal(usd(t, "200")))
	assert.Equal(t, src.ID(), mirror.MirrorTransactionID())
	assert.Equal(t, mirror.ID(), src.MirrorTransactionID())

	assert.Equal(t, "800.00", s.balance(t, s.checking.ID()))
	assert.Equal(t, "200.00", s.balance(t, s.savings.ID()))
	assert.Equal(t, []string{core.EventTransactionCreated, core.EventTransactionCreated}, s.pub.names())
}

func TestFieldUpdatesPropagateToMirror(t *testing.T) {
	s := newLedgerSetup(t)
	src := s.transfer(t, "-50", s.savings.ID())
	s.pub.reset()

	require.NoError(t, s.ledger.UpdateTransactionMemo(s.ctx, src.ID(), "rent buffer"))
	require.NoError(t, s.ledger.UpdateTransactionEffectiveDate(s.ctx, src.ID(), core.NewDate(2025, 3, 9)))
	require.NoError(t, s.ledger.UpdateTransactionPayee(s.ctx, src.ID(), "Self"))
	require.NoError(t, s.ledger.UpdateTransactionCheckNumber(s.ctx, src.ID(), "1042"))

	mirror := s.mirrorOf(t, src)
	assert.Equal(t, "rent buffer", mirror.Memo())
	assert.True(t, mirror.EffectiveDate().Equal(core.NewDate(2025, 3, 9)))
	assert.Equal(t, "Self", mirror.PayeeName())
	assert.Empty(t, mirror.CheckNumber(), "check numbers stay on the source side")

	got, err := s.ledger.GetTransaction(s.ctx, src.ID())
	require.NoError(t, err)
	assert.Equal(t, "1042", got.CheckNumber())

	err = s.ledger.UpdateTransactionMemo(s.ctx, mirror.ID(), "edited mirror")
	assert.True(t, core.HasCode(err, core.CodeCannotModifyMirror))
}

func TestStatusFlowAndReconciledLock(t *testing.T) {
	s := newLedgerSetup(t)
	src := s.transfer(t, "-25", s.savings.ID())
	mirror := s.mirrorOf(t, src)

	err := s.ledger.ReconcileTransaction(s.ctx, src.ID())
	assert.True(t, core.HasCode(err, core.CodeInvalidStatusTransition))

	require.NoError(t, s.ledger.ClearTransaction(s.ctx, src.ID()))
	require.NoError(t, s.ledger.ReconcileTransaction(s.ctx, src.ID()))

	err = s.ledger.UpdateTransactionMemo(s.ctx, src.ID(), "late edit")
	assert.True(t, core.HasCode(err, core.CodeTransactionReconciled))
	err = s.ledger.DeleteTransaction(s.ctx, src.ID())
	assert.True(t, core.HasCode(err, core.CodeTransactionReconciled))

	// Each side of a transfer clears on its own statement.
	require.NoError(t, s.ledger.ClearTransaction(s.ctx, mirror.ID()))
	got := s.mirrorOf(t, src)
	assert.Equal(t, core.StatusCleared, got.Status())
}

func TestUpdateSplitsSyncsMirrors(t *testing.T) {
	s := newLedgerSetup(t)
	src := s.transfer(t, "-100", s.savings.ID())
	oldMirror := s.mirrorOf(t, src)
	s.pub.reset()

	toSavings, _ := core.NewTransferSplit(usd(t, "-60"), s.savings.ID())
	toCard, _ := core.NewTransferSplit(usd(t, "-30"), s.card.ID())
	food, _ := core.NewCategorySplit(usd(t, "-30"), s.food.ID())
	require.NoError(t, s.ledger.UpdateTransactionSplits(s.ctx, src.ID(), usd(t, "-120"),
		[]core.SplitLine{toSavings, toCard, food}))

	assert.Equal(t, "880.00", s.balance(t, s.checking.ID()))
	assert.Equal(t, "60.00", s.balance(t, s.savings.ID()))
	assert.Equal(t, "30.00", s.balance(t, s.card.ID()))

	got, err := s.ledger.GetTransaction(s.ctx, src.ID())
	require.NoError(t, err)
	ids := got.MirrorTransactionIDs()
	require.Len(t, ids, 2)
	assert.Equal(t, oldMirror.ID(), ids[0], "mirror on a kept target is reused")

	// Dropping the card transfer deletes its mirror.
	only, _ := core.NewCategorySplit(usd(t, "-60"), s.food.ID())
	require.NoError(t, s.ledger.UpdateTransactionSplits(s.ctx, src.ID(), usd(t, "-120"),
		[]core.SplitLine{toSavings, only}))
	assert.Equal(t, "0.00", s.balance(t, s.card.ID()))
	_, err = s.ledger.GetTransaction(s.ctx, ids[1])
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateSplitsRejectsUnknownCategory(t *testing.T) {
	s := newLedgerSetup(t)
	src := s.transfer(t, "-10", s.savings.ID())

	bad, _ := core.NewCategorySplit(usd(t, "-10"), core.NewCategoryID())
	err := s.ledger.UpdateTransactionSplits(s.ctx, src.ID(), usd(t, "-10"), []core.SplitLine{bad})
	assert.True(t, core.HasCode(err, core.CodeInvalidReference))

	// The failed unit of work left the mirror in place.
	assert.Equal(t, "10.00", s.balance(t, s.savings.ID()))
}

func TestDeleteTransactionCascades(t *testing.T) {
	s := newLedgerSetup(t)
	src := s.transfer(t, "-75", s.savings.ID())
	mirror := s.mirrorOf(t, src)
	s.pub.reset()

	err := s.ledger.DeleteTransaction(s.ctx, mirror.ID())
	assert.True(t, core.HasCode(err, core.CodeCannotDeleteMirror))

	require.NoError(t, s.ledger.DeleteTransaction(s.ctx, src.ID()))
	assert.Equal(t, []string{core.EventTransactionDeleted, core.EventTransactionDeleted}, s.pub.names())
	assert.Equal(t, "1000.00", s.balance(t, s.checking.ID()))
	assert.Equal(t, "0.00", s.balance(t, s.savings.ID()))

	_, err = s.ledger.GetTransaction(s.ctx, mirror.ID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListTransactionsFilters(t *testing.T) {
	s := newLedgerSetup(t)
	s.transfer(t, "-5", s.savings.ID())
	for _, day := range []int{10, 20} {
		split, _ := core.NewCategorySplit(usd(t, "-1"), s.food.ID())
		_, err := s.ledger.CreateTransaction(s.ctx, core.TransactionParams{
			HouseholdID: hh, AccountID: s.checking.ID(), Amount: usd(t, "-1"),
			Splits: []core.SplitLine{split}, EffectiveDate: core.NewDate(2025, 3, day),
			Memo: "coffee",
		})
		require.NoError(t, err)
	}

	all, err := s.ledger.ListTransactions(s.ctx, s.checking.ID(), repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	coffee, err := s.ledger.ListTransactions(s.ctx, s.checking.ID(), repository.TransactionFilter{
		Text: "COFFEE", From: core.NewDate(2025, 3, 15),
	})
	require.NoError(t, err)
	require.Len(t, coffee, 1)
	assert.True(t, coffee[0].EffectiveDate().Equal(core.NewDate(2025, 3, 20)))

	_, err = s.ledger.ListTransactions(s.ctx, core.NewAccountID(), repository.TransactionFilter{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

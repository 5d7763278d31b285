package services

import (
	"context"
	"fmt"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

// CreateTransaction records a transaction and the mirrors of its transfer
// splits in one unit of work. The payee is resolved by id, or by name with
// get-or-create, and its usage recorded. A transaction entered without
// splits gets one category split for the full amount: the payee's default
// category, or the household's Uncategorized category.
func (l *Ledger) CreateTransaction(ctx context.Context, p core.TransactionParams) (*core.Transaction, error) {
	var created *core.Transaction
	var mirrorCount int
	var usedSystem bool
	err := l.execute(ctx, "create_transaction", func(uow repository.UnitOfWork, tr *tracker) error {
		account, err := openAccount(ctx, uow, "account_id", p.HouseholdID, p.AccountID)
		if err != nil {
			return err
		}
		if account.Currency() != p.Amount.Currency() {
			return currencyMismatch("amount", account, p.Amount.Currency())
		}

		payee, err := resolvePayee(ctx, uow, p.HouseholdID, p.PayeeID, p.PayeeName)
		if err != nil {
			return err
		}
		if payee != nil {
			p.PayeeID, p.PayeeName = payee.ID(), payee.Name()
		}

		if len(p.Splits) == 0 {
			category, system, err := defaultCategory(ctx, uow, p.HouseholdID, payee)
			if err != nil {
				return err
			}
			if system != nil {
				tr.track(system)
				usedSystem = true
			}
			split, err := core.NewCategorySplit(p.Amount, category)
			if err != nil {
				return err
			}
			p.Splits = []core.SplitLine{split}
		}

		t, mirrors, err := core.NewTransaction(p)
		if err != nil {
			return err
		}
		if err := checkSplitReferences(ctx, uow, account, p.Splits, nil); err != nil {
			return err
		}

		if payee != nil {
			payee.RecordUsage()
			if err := uow.Payees().Save(ctx, payee); err != nil {
				return err
			}
			tr.track(payee)
		}
		if err := uow.Transactions().Save(ctx, t); err != nil {
			return err
		}
		tr.track(t)
		for _, m := range mirrors {
			if err := uow.Transactions().Save(ctx, m); err != nil {
				return err
			}
			tr.track(m)
		}
		created, mirrorCount = t, len(mirrors)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if usedSystem {
		l.invalidateTree(p.HouseholdID)
	}
	l.logger.InfoContext(ctx, "Transaction created",
		log.FieldTransactionID, created.ID(),
		log.FieldAccountID, created.AccountID(),
		log.FieldAmount, created.Amount().String(),
		log.FieldMirrors, mirrorCount)
	return created, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, id core.TransactionID) (*core.Transaction, error) {
	var t *core.Transaction
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		t, err = uow.Transactions().GetByID(ctx, id)
		return err
	})
	return t, err
}

// ListTransactions returns the account's transactions, mirrors included,
// ordered by effective date.
func (l *Ledger) ListTransactions(ctx context.Context, accountID core.AccountID, f repository.TransactionFilter) ([]*core.Transaction, error) {
	var list []*core.Transaction
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		if _, err := uow.Accounts().GetByID(ctx, accountID); err != nil {
			return err
		}
		var err error
		list, err = uow.Transactions().ListByAccount(ctx, accountID, f)
		return err
	})
	return list, err
}

func (l *Ledger) ClearTransaction(ctx context.Context, id core.TransactionID) error {
	return l.mutateTransaction(ctx, "clear_transaction", id, func(_ repository.UnitOfWork, t *core.Transaction, _ []*core.Transaction) error {
		return t.MarkCleared()
	})
}

func (l *Ledger) ReconcileTransaction(ctx context.Context, id core.TransactionID) error {
	return l.mutateTransaction(ctx, "reconcile_transaction", id, func(_ repository.UnitOfWork, t *core.Transaction, _ []*core.Transaction) error {
		return t.MarkReconciled()
	})
}

func (l *Ledger) UpdateTransactionMemo(ctx context.Context, id core.TransactionID, memo string) error {
	return l.mutateTransaction(ctx, "update_memo", id, func(_ repository.UnitOfWork, t *core.Transaction, mirrors []*core.Transaction) error {
		return t.UpdateMemo(memo, mirrors...)
	})
}

// UpdateTransactionPayee points the transaction and its mirrors at the
// payee called name, creating it if needed. An empty name clears the payee.
func (l *Ledger) UpdateTransactionPayee(ctx context.Context, id core.TransactionID, name string) error {
	return l.execute(ctx, "update_payee", func(uow repository.UnitOfWork, tr *tracker) error {
		t, mirrors, err := loadWithMirrors(ctx, uow, id)
		if err != nil {
			return err
		}
		payee, err := resolvePayee(ctx, uow, t.HouseholdID(), "", name)
		if err != nil {
			return err
		}
		var payeeID core.PayeeID
		var payeeName string
		if payee != nil {
			payeeID, payeeName = payee.ID(), payee.Name()
		}
		changed := payeeID != t.PayeeID()
		if err := t.UpdatePayee(payeeID, payeeName, mirrors...); err != nil {
			return err
		}
		if payee != nil && changed {
			payee.RecordUsage()
			if err := uow.Payees().Save(ctx, payee); err != nil {
				return err
			}
			tr.track(payee)
		}
		return saveTracked(ctx, uow, tr, t, mirrors)
	})
}

func (l *Ledger) UpdateTransactionEffectiveDate(ctx context.Context, id core.TransactionID, d core.Date) error {
	return l.mutateTransaction(ctx, "update_effective_date", id, func(_ repository.UnitOfWork, t *core.Transaction, mirrors []*core.Transaction) error {
		return t.UpdateEffectiveDate(d, mirrors...)
	})
}

func (l *Ledger) UpdateTransactionPostedDate(ctx context.Context, id core.TransactionID, d core.Date) error {
	return l.mutateTransaction(ctx, "update_posted_date", id, func(_ repository.UnitOfWork, t *core.Transaction, _ []*core.Transaction) error {
		return t.UpdatePostedDate(d)
	})
}

func (l *Ledger) UpdateTransactionCheckNumber(ctx context.Context, id core.TransactionID, number string) error {
	return l.mutateTransaction(ctx, "update_check_number", id, func(_ repository.UnitOfWork, t *core.Transaction, _ []*core.Transaction) error {
		return t.UpdateCheckNumber(number)
	})
}

// UpdateTransactionSplits replaces the amount and splits of a source
// transaction. Mirrors follow: kept transfer targets are updated, new
// targets get a mirror and dropped targets lose theirs.
func (l *Ledger) UpdateTransactionSplits(ctx context.Context, id core.TransactionID, amount core.Money, splits []core.SplitLine) error {
	return l.execute(ctx, "update_splits", func(uow repository.UnitOfWork, tr *tracker) error {
		t, mirrors, err := loadWithMirrors(ctx, uow, id)
		if err != nil {
			return err
		}
		sync, err := t.UpdateSplits(amount, splits, mirrors)
		if err != nil {
			return err
		}

		account, err := uow.Accounts().GetByID(ctx, t.AccountID())
		if err != nil {
			return err
		}
		newTargets := make(map[core.AccountID]bool, len(sync.Created))
		for _, m := range sync.Created {
			newTargets[m.AccountID()] = true
		}
		if err := checkSplitReferences(ctx, uow, account, splits, newTargets); err != nil {
			return err
		}

		txns := uow.Transactions()
		if err := txns.Save(ctx, t); err != nil {
			return err
		}
		tr.track(t)
		for _, m := range append(sync.Created, sync.Updated...) {
			if err := txns.Save(ctx, m); err != nil {
				return err
			}
			tr.track(m)
		}
		for _, m := range sync.Deleted {
			if err := txns.Delete(ctx, m.ID()); err != nil {
				return err
			}
			tr.track(m)
		}
		l.logger.DebugContext(ctx, "Mirrors synchronized",
			log.FieldTransactionID, t.ID(),
			"created", len(sync.Created),
			"updated", len(sync.Updated),
			"deleted", len(sync.Deleted))
		return nil
	})
}

// DeleteTransaction deletes a source transaction together with its mirrors.
func (l *Ledger) DeleteTransaction(ctx context.Context, id core.TransactionID) error {
	return l.execute(ctx, "delete_transaction", func(uow repository.UnitOfWork, tr *tracker) error {
		t, mirrors, err := loadWithMirrors(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := t.Delete(mirrors); err != nil {
			return err
		}
		for _, m := range mirrors {
			if err := uow.Transactions().Delete(ctx, m.ID()); err != nil {
				return err
			}
		}
		if err := uow.Transactions().Delete(ctx, t.ID()); err != nil {
			return err
		}
		tr.track(t)
		for _, m := range mirrors {
			tr.track(m)
		}
		return nil
	})
}

func (l *Ledger) mutateTransaction(ctx context.Context, op string, id core.TransactionID, mutate func(repository.UnitOfWork, *core.Transaction, []*core.Transaction) error) error {
	return l.execute(ctx, op, func(uow repository.UnitOfWork, tr *tracker) error {
		t, mirrors, err := loadWithMirrors(ctx, uow, id)
		if err != nil {
			return err
		}
		if err := mutate(uow, t, mirrors); err != nil {
			return err
		}
		return saveTracked(ctx, uow, tr, t, mirrors)
	})
}

// saveTracked saves t and the mirrors that changed along with it.
func saveTracked(ctx context.Context, uow repository.UnitOfWork, tr *tracker, t *core.Transaction, mirrors []*core.Transaction) error {
	if err := uow.Transactions().Save(ctx, t); err != nil {
		return err
	}
	tr.track(t)
	for _, m := range mirrors {
		if len(m.PendingEvents()) == 0 {
			continue
		}
		if err := uow.Transactions().Save(ctx, m); err != nil {
			return err
		}
		tr.track(m)
	}
	return nil
}

func loadWithMirrors(ctx context.Context, uow repository.UnitOfWork, id core.TransactionID) (*core.Transaction, []*core.Transaction, error) {
	t, err := uow.Transactions().GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if t.IsMirror() {
		return t, nil, nil
	}
	mirrors, err := uow.Transactions().FindMirrors(ctx, t.ID())
	if err != nil {
		return nil, nil, err
	}
	return t, mirrors, nil
}

// openAccount loads a referenced account and checks it belongs to the
// household and is open.
func openAccount(ctx context.Context, uow repository.UnitOfWork, field string, householdID core.HouseholdID, id core.AccountID) (*core.Account, error) {
	a, err := uow.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, reference(field, err)
	}
	if a.HouseholdID() != householdID {
		return nil, foreignHousehold(field, "account", id.String())
	}
	if a.IsClosed() {
		return nil, &core.BusinessRuleViolationError{
			Code:    core.CodeAccountClosed,
			Message: fmt.Sprintf("account %s is closed", a.Name()),
		}
	}
	return a, nil
}

// checkSplitReferences verifies that every category split points at a
// category of the household and every transfer split at an account of the
// household in the same currency. Targets listed in newTargets must also be
// open; nil means every target is new.
func checkSplitReferences(ctx context.Context, uow repository.UnitOfWork, account *core.Account, splits []core.SplitLine, newTargets map[core.AccountID]bool) error {
	householdID := account.HouseholdID()
	for _, s := range splits {
		if !s.IsTransfer() {
			c, err := uow.Categories().GetByID(ctx, s.CategoryID())
			if err != nil {
				return reference("splits", err)
			}
			if c.HouseholdID() != householdID {
				return foreignHousehold("splits", "category", c.ID().String())
			}
			continue
		}

		target := s.TransferAccountID()
		var a *core.Account
		var err error
		if newTargets == nil || newTargets[target] {
			a, err = openAccount(ctx, uow, "splits", householdID, target)
		} else {
			a, err = uow.Accounts().GetByID(ctx, target)
			err = reference("splits", err)
		}
		if err != nil {
			return err
		}
		if a.Currency() != account.Currency() {
			return currencyMismatch("splits", a, account.Currency())
		}
	}
	return nil
}

func resolvePayee(ctx context.Context, uow repository.UnitOfWork, householdID core.HouseholdID, id core.PayeeID, name string) (*core.Payee, error) {
	if id != "" {
		p, err := uow.Payees().GetByID(ctx, id)
		if err != nil {
			return nil, reference("payee_id", err)
		}
		if p.HouseholdID() != householdID {
			return nil, foreignHousehold("payee_id", "payee", id.String())
		}
		return p, nil
	}
	if core.NormalizePayeeName(name) == "" {
		return nil, nil
	}
	return uow.Payees().GetOrCreate(ctx, householdID, name)
}

// defaultCategory picks the category for a transaction entered without
// splits. The system category is returned as well when it was used, so its
// creation event can be published.
func defaultCategory(ctx context.Context, uow repository.UnitOfWork, householdID core.HouseholdID, payee *core.Payee) (core.CategoryID, *core.Category, error) {
	if payee != nil && payee.DefaultCategoryID() != "" {
		return payee.DefaultCategoryID(), nil, nil
	}
	system, err := uow.Categories().GetOrCreateSystem(ctx, householdID)
	if err != nil {
		return "", nil, err
	}
	return system.ID(), system, nil
}

func currencyMismatch(field string, a *core.Account, got core.Currency) error {
	return &core.ValidationError{
		Code:    core.CodeCurrencyMismatch,
		Field:   field,
		Message: fmt.Sprintf("account %s holds %q, got %q", a.Name(), a.Currency(), got),
	}
}

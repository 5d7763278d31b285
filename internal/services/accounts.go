package services

import (
	"context"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

// CreateAccount builds an account of type t and persists it.
func (l *Ledger) CreateAccount(ctx context.Context, t core.AccountType, p core.AccountParams) (*core.Account, error) {
	var created *core.Account
	err := l.execute(ctx, "create_account", func(uow repository.UnitOfWork, tr *tracker) error {
		a, err := core.NewAccount(t, p)
		if err != nil {
			return err
		}
		if err := uow.Accounts().Save(ctx, a); err != nil {
			return err
		}
		tr.track(a)
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "Account created",
		log.FieldAccountID, created.ID(),
		log.FieldHouseholdID, created.HouseholdID(),
		"type", created.Type())
	return created, nil
}

func (l *Ledger) GetAccount(ctx context.Context, id core.AccountID) (*core.Account, error) {
	var a *core.Account
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		a, err = uow.Accounts().GetByID(ctx, id)
		return err
	})
	return a, err
}

func (l *Ledger) ListAccounts(ctx context.Context, householdID core.HouseholdID) ([]*core.Account, error) {
	var list []*core.Account
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		list, err = uow.Accounts().ListByHousehold(ctx, householdID)
		return err
	})
	return list, err
}

func (l *Ledger) CloseAccount(ctx context.Context, id core.AccountID) error {
	return l.mutateAccount(ctx, "close_account", id, (*core.Account).Close)
}

func (l *Ledger) ReopenAccount(ctx context.Context, id core.AccountID) error {
	return l.mutateAccount(ctx, "reopen_account", id, (*core.Account).Reopen)
}

func (l *Ledger) RenameAccount(ctx context.Context, id core.AccountID, name string) error {
	return l.mutateAccount(ctx, "rename_account", id, func(a *core.Account) error {
		return a.UpdateName(name)
	})
}

func (l *Ledger) UpdateAccountInstitution(ctx context.Context, id core.AccountID, inst *core.Institution) error {
	return l.mutateAccount(ctx, "update_institution", id, func(a *core.Account) error {
		return a.UpdateInstitution(inst)
	})
}

func (l *Ledger) mutateAccount(ctx context.Context, op string, id core.AccountID, mutate func(*core.Account) error) error {
	return l.execute(ctx, op, func(uow repository.UnitOfWork, tr *tracker) error {
		a, err := uow.Accounts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(a); err != nil {
			return err
		}
		if err := uow.Accounts().Save(ctx, a); err != nil {
			return err
		}
		tr.track(a)
		return nil
	})
}

// AccountBalance derives the balance of a money account: the opening
// balance plus every transaction posted against it, mirrors included.
func (l *Ledger) AccountBalance(ctx context.Context, id core.AccountID) (core.Money, error) {
	var balance core.Money
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		a, err := uow.Accounts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		balance, err = balanceOf(ctx, uow, a)
		return err
	})
	return balance, err
}

// AvailableCredit is the credit limit plus the derived balance of a credit
// card account.
func (l *Ledger) AvailableCredit(ctx context.Context, id core.AccountID) (core.Money, error) {
	var available core.Money
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		a, err := uow.Accounts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Type() != core.AccountCreditCard {
			_, err := a.AvailableCredit(core.Money{})
			return err
		}
		balance, err := balanceOf(ctx, uow, a)
		if err != nil {
			return err
		}
		available, err = a.AvailableCredit(balance)
		return err
	})
	return available, err
}

func balanceOf(ctx context.Context, uow repository.UnitOfWork, a *core.Account) (core.Money, error) {
	opening := a.OpeningBalance()
	if opening == nil {
		return core.Money{}, &core.BusinessRuleViolationError{
			Code:    core.CodeRewardsAccount,
			Message: "account " + a.ID().String() + " holds rewards points, not money",
		}
	}
	txns, err := uow.Transactions().ListByAccount(ctx, a.ID(), repository.TransactionFilter{})
	if err != nil {
		return core.Money{}, err
	}
	amounts := make([]core.Money, 0, len(txns)+1)
	amounts = append(amounts, *opening)
	for _, t := range txns {
		amounts = append(amounts, t.Amount())
	}
	return core.SumMoney(opening.Currency(), amounts...)
}

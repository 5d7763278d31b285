package services

import (
	"context"
	"errors"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

// SearchPayees returns the household's payees whose normalized name starts
// with prefix, most used first.
func (l *Ledger) SearchPayees(ctx context.Context, householdID core.HouseholdID, prefix string, limit int) ([]*core.Payee, error) {
	var found []*core.Payee
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		found, err = uow.Payees().Search(ctx, householdID, prefix, limit)
		return err
	})
	return found, err
}

func (l *Ledger) GetPayee(ctx context.Context, id core.PayeeID) (*core.Payee, error) {
	var p *core.Payee
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		p, err = uow.Payees().GetByID(ctx, id)
		return err
	})
	return p, err
}

func (l *Ledger) RenamePayee(ctx context.Context, id core.PayeeID, name string) error {
	return l.mutatePayee(ctx, "rename_payee", id, func(uow repository.UnitOfWork, p *core.Payee) error {
		other, err := uow.Payees().FindByName(ctx, p.HouseholdID(), name)
		switch {
		case err == nil && other.ID() != p.ID():
			return core.NewDuplicatePayeeError(name)
		case err != nil && !errors.Is(err, core.ErrNotFound):
			return err
		}
		return p.UpdateName(name)
	})
}

// SetPayeeDefaultCategory sets the category used when a transaction for the
// payee is entered without splits. An empty categoryID clears it.
func (l *Ledger) SetPayeeDefaultCategory(ctx context.Context, id core.PayeeID, categoryID core.CategoryID) error {
	return l.mutatePayee(ctx, "set_payee_default_category", id, func(uow repository.UnitOfWork, p *core.Payee) error {
		if categoryID == "" {
			p.ClearDefaultCategory()
			return nil
		}
		c, err := uow.Categories().GetByID(ctx, categoryID)
		if err != nil {
			return reference("default_category_id", err)
		}
		if c.HouseholdID() != p.HouseholdID() {
			return foreignHousehold("default_category_id", "category", categoryID.String())
		}
		return p.SetDefaultCategory(categoryID)
	})
}

func (l *Ledger) mutatePayee(ctx context.Context, op string, id core.PayeeID, mutate func(repository.UnitOfWork, *core.Payee) error) error {
	return l.execute(ctx, op, func(uow repository.UnitOfWork, tr *tracker) error {
		p, err := uow.Payees().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(uow, p); err != nil {
			return err
		}
		if err := uow.Payees().Save(ctx, p); err != nil {
			return err
		}
		tr.track(p)
		return nil
	})
}

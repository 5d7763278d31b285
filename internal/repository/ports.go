// Package repository declares the persistence ports of the ledger. The
// memory and storage packages implement them.
package repository

import (
	"context"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
)

// TransactionFilter narrows ListByAccount. Zero values mean "no filter".
type TransactionFilter struct {
	// From and To bound the effective date, both inclusive.
	From core.Date
	To   core.Date
	// Text matches memo or payee name, case-insensitively.
	Text    string
	PayeeID core.PayeeID
	Limit   int
	Offset  int
}

// Ports for outbound adapters. Lookups of unknown ids fail with
// *core.EntityNotFoundError.
type (
	// AccountRepository has no Delete: accounts are closed, not removed.
	AccountRepository interface {
		GetByID(ctx context.Context, id core.AccountID) (*core.Account, error)
		ListByHousehold(ctx context.Context, householdID core.HouseholdID) ([]*core.Account, error)
		Save(ctx context.Context, a *core.Account) error
	}

	TransactionRepository interface {
		GetByID(ctx context.Context, id core.TransactionID) (*core.Transaction, error)
		// ListByAccount returns the account's register ordered by effective
		// date, then creation time.
		ListByAccount(ctx context.Context, accountID core.AccountID, f TransactionFilter) ([]*core.Transaction, error)
		// FindMirror returns the other half of a transfer: the mirror of a
		// source (its first one), or the source of a mirror.
		FindMirror(ctx context.Context, id core.TransactionID) (*core.Transaction, error)
		// FindMirrors returns every mirror owned by a source transaction.
		FindMirrors(ctx context.Context, sourceID core.TransactionID) ([]*core.Transaction, error)
		// CountByCategory counts transactions with at least one split in the
		// category.
		CountByCategory(ctx context.Context, categoryID core.CategoryID) (int, error)
		Save(ctx context.Context, t *core.Transaction) error
		Delete(ctx context.Context, id core.TransactionID) error
	}

	CategoryRepository interface {
		GetByID(ctx context.Context, id core.CategoryID) (*core.Category, error)
		GetTree(ctx context.Context, householdID core.HouseholdID) ([]core.CategoryNode, error)
		// GetOrCreateSystem returns the household's Uncategorized category,
		// creating and saving it on first use. A newly created category still
		// carries its CategoryCreated event.
		GetOrCreateSystem(ctx context.Context, householdID core.HouseholdID) (*core.Category, error)
		Save(ctx context.Context, c *core.Category) error
		Delete(ctx context.Context, id core.CategoryID) error
	}

	PayeeRepository interface {
		GetByID(ctx context.Context, id core.PayeeID) (*core.Payee, error)
		// GetOrCreate matches on the normalized name and saves a new payee
		// when none matches.
		GetOrCreate(ctx context.Context, householdID core.HouseholdID, name string) (*core.Payee, error)
		// FindByName returns the household's payee whose normalized name
		// matches name, or an EntityNotFoundError.
		FindByName(ctx context.Context, householdID core.HouseholdID, name string) (*core.Payee, error)
		// Search returns payees whose normalized name starts with prefix,
		// most used first.
		Search(ctx context.Context, householdID core.HouseholdID, prefix string, limit int) ([]*core.Payee, error)
		// Save fails with a DUPLICATE_NAME validation error when another
		// payee of the household has the same normalized name.
		Save(ctx context.Context, p *core.Payee) error
	}

	// UnitOfWork exposes the repositories bound to one transaction.
	UnitOfWork interface {
		Accounts() AccountRepository
		Transactions() TransactionRepository
		Categories() CategoryRepository
		Payees() PayeeRepository
	}

	// Store runs fn inside a transaction. Everything fn saved or deleted is
	// committed when fn returns nil and discarded otherwise.
	Store interface {
		WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
		Close() error
	}
)

// DefaultSearchLimit applies when Search is called with limit <= 0.
const DefaultSearchLimit = 10

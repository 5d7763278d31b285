package services

import (
	"context"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/log"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

// BootstrapHousehold makes sure the household's Uncategorized system
// category exists and returns it.
func (l *Ledger) BootstrapHousehold(ctx context.Context, householdID core.HouseholdID) (*core.Category, error) {
	var system *core.Category
	err := l.execute(ctx, "bootstrap_household", func(uow repository.UnitOfWork, tr *tracker) error {
		c, err := uow.Categories().GetOrCreateSystem(ctx, householdID)
		if err != nil {
			return err
		}
		tr.track(c)
		system = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidateTree(householdID)
	return system, nil
}

// CreateCategory adds a user category, nested under parentID when it is set.
func (l *Ledger) CreateCategory(ctx context.Context, householdID core.HouseholdID, name string, t core.CategoryType, parentID core.CategoryID) (*core.Category, error) {
	var created *core.Category
	err := l.execute(ctx, "create_category", func(uow repository.UnitOfWork, tr *tracker) error {
		var parent *core.Category
		if parentID != "" {
			p, err := uow.Categories().GetByID(ctx, parentID)
			if err != nil {
				return reference("parent_id", err)
			}
			parent = p
		}
		c, err := core.NewCategory(householdID, name, t, parent)
		if err != nil {
			return err
		}
		if err := uow.Categories().Save(ctx, c); err != nil {
			return err
		}
		tr.track(c)
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.invalidateTree(householdID)
	l.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, created.ID(),
		log.FieldHouseholdID, householdID,
		"name", created.Name())
	return created, nil
}

func (l *Ledger) RenameCategory(ctx context.Context, id core.CategoryID, name string) error {
	return l.mutateCategory(ctx, "rename_category", id, func(_ repository.UnitOfWork, c *core.Category) error {
		return c.UpdateName(name)
	})
}

// MoveCategory re-parents a category; an empty parentID moves it to the top
// level. A category that has children of its own cannot be nested.
func (l *Ledger) MoveCategory(ctx context.Context, id, parentID core.CategoryID) error {
	return l.mutateCategory(ctx, "move_category", id, func(uow repository.UnitOfWork, c *core.Category) error {
		if parentID == "" || c.IsSystem() {
			return c.UpdateParent(nil)
		}
		parent, err := uow.Categories().GetByID(ctx, parentID)
		if err != nil {
			return reference("parent_id", err)
		}
		if err := checkNoChildren(ctx, uow, c, "cannot be nested"); err != nil {
			return err
		}
		return c.UpdateParent(parent)
	})
}

func (l *Ledger) ReorderCategory(ctx context.Context, id core.CategoryID, order int) error {
	return l.mutateCategory(ctx, "reorder_category", id, func(_ repository.UnitOfWork, c *core.Category) error {
		return c.UpdateSortOrder(order)
	})
}

func (l *Ledger) HideCategory(ctx context.Context, id core.CategoryID) error {
	return l.mutateCategory(ctx, "hide_category", id, func(_ repository.UnitOfWork, c *core.Category) error {
		return c.Hide()
	})
}

func (l *Ledger) UnhideCategory(ctx context.Context, id core.CategoryID) error {
	return l.mutateCategory(ctx, "unhide_category", id, func(_ repository.UnitOfWork, c *core.Category) error {
		return c.Unhide()
	})
}

// DeleteCategory removes a user category that no transaction split
// references and that has no children.
func (l *Ledger) DeleteCategory(ctx context.Context, id core.CategoryID) error {
	var householdID core.HouseholdID
	err := l.execute(ctx, "delete_category", func(uow repository.UnitOfWork, tr *tracker) error {
		c, err := uow.Categories().GetByID(ctx, id)
		if err != nil {
			return err
		}
		householdID = c.HouseholdID()
		if err := c.Delete(); err != nil {
			return err
		}
		n, err := uow.Transactions().CountByCategory(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &core.BusinessRuleViolationError{
				Code:    core.CodeCategoryInUse,
				Message: "category " + c.Name() + " is used by transactions",
			}
		}
		if err := checkNoChildren(ctx, uow, c, "cannot be deleted"); err != nil {
			return err
		}
		if err := uow.Categories().Delete(ctx, id); err != nil {
			return err
		}
		tr.track(c)
		return nil
	})
	if err != nil {
		return err
	}
	l.invalidateTree(householdID)
	return nil
}

// CategoryTree returns the household's two-level category tree. Trees are
// cached per household and dropped on every category change. Callers get
// their own copy and may mutate it.
func (l *Ledger) CategoryTree(ctx context.Context, householdID core.HouseholdID) ([]core.CategoryNode, error) {
	if tree, ok := l.trees.Get(householdID.String()); ok {
		return cloneTree(tree), nil
	}

	l.treeMu.Lock()
	gen := l.treeGen
	l.treeMu.Unlock()

	var tree []core.CategoryNode
	err := l.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		tree, err = uow.Categories().GetTree(ctx, householdID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// A change committed while the tree was read makes it stale.
	l.treeMu.Lock()
	if l.treeGen == gen {
		l.trees.Set(householdID.String(), cloneTree(tree))
	}
	l.treeMu.Unlock()
	return tree, nil
}

func (l *Ledger) invalidateTree(householdID core.HouseholdID) {
	l.treeMu.Lock()
	defer l.treeMu.Unlock()
	l.treeGen++
	l.trees.Delete(householdID.String())
}

func cloneTree(tree []core.CategoryNode) []core.CategoryNode {
	out := make([]core.CategoryNode, len(tree))
	for i, node := range tree {
		out[i].Category = core.RestoreCategory(node.Category.State())
		if node.Children != nil {
			out[i].Children = make([]*core.Category, len(node.Children))
			for j, c := range node.Children {
				out[i].Children[j] = core.RestoreCategory(c.State())
			}
		}
	}
	return out
}

func (l *Ledger) mutateCategory(ctx context.Context, op string, id core.CategoryID, mutate func(repository.UnitOfWork, *core.Category) error) error {
	var householdID core.HouseholdID
	err := l.execute(ctx, op, func(uow repository.UnitOfWork, tr *tracker) error {
		c, err := uow.Categories().GetByID(ctx, id)
		if err != nil {
			return err
		}
		householdID = c.HouseholdID()
		if err := mutate(uow, c); err != nil {
			return err
		}
		if err := uow.Categories().Save(ctx, c); err != nil {
			return err
		}
		tr.track(c)
		return nil
	})
	if err != nil {
		return err
	}
	l.invalidateTree(householdID)
	return nil
}

func checkNoChildren(ctx context.Context, uow repository.UnitOfWork, c *core.Category, what string) error {
	if c.HasParent() {
		return nil
	}
	tree, err := uow.Categories().GetTree(ctx, c.HouseholdID())
	if err != nil {
		return err
	}
	for _, node := range tree {
		if node.Category.ID() == c.ID() && len(node.Children) > 0 {
			return &core.BusinessRuleViolationError{
				Code:    core.CodeCategoryHasChildren,
				Message: "category " + c.Name() + " has subcategories and " + what,
			}
		}
	}
	return nil
}

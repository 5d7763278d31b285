package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
)

type categoryRepo struct {
	q querier
}

const categoryColumns = `id, household_id, name, type, parent_id, is_system, sort_order, hidden, created_at, updated_at`

func (r categoryRepo) GetByID(ctx context.Context, id core.CategoryID) (*core.Category, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, string(id))
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("category", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func (r categoryRepo) GetTree(ctx context.Context, householdID core.HouseholdID) ([]core.CategoryNode, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE household_id = ? ORDER BY id`,
		string(householdID))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var list []*core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return core.BuildCategoryTree(list), nil
}

func (r categoryRepo) GetOrCreateSystem(ctx context.Context, householdID core.HouseholdID) (*core.Category, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE household_id = ? AND is_system = 1 AND name = ?`,
		string(householdID), core.UncategorizedName)
	c, err := scanCategory(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get system category: %w", err)
	}

	c, err = core.NewSystemCategory(householdID, core.UncategorizedName, core.CategoryExpense)
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx, c); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "System category created", "household_id", householdID, "category_id", c.ID())
	return c, nil
}

func (r categoryRepo) Save(ctx context.Context, c *core.Category) error {
	st := c.State()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			parent_id = excluded.parent_id,
			sort_order = excluded.sort_order,
			hidden = excluded.hidden,
			updated_at = excluded.updated_at`,
		string(st.ID), string(st.HouseholdID), st.Name, string(st.Type), nullString(string(st.ParentID)),
		boolInt(st.IsSystem), st.SortOrder, boolInt(st.Hidden),
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save category %s: %w", st.ID, err)
	}
	slog.DebugContext(ctx, "Category saved", "category_id", st.ID, "name", st.Name)
	return nil
}

func (r categoryRepo) Delete(ctx context.Context, id core.CategoryID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("category", string(id))
	}
	return nil
}

func scanCategory(s scanner) (*core.Category, error) {
	var (
		id, householdID, name, typ string
		parentID                   sql.NullString
		isSystem, hidden           bool
		sortOrder                  int
		createdAt, updatedAt       string
	)
	if err := s.Scan(&id, &householdID, &name, &typ, &parentID, &isSystem, &sortOrder, &hidden,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	st := core.CategoryState{
		ID:          core.CategoryID(id),
		HouseholdID: core.HouseholdID(householdID),
		Name:        name,
		Type:        core.CategoryType(typ),
		ParentID:    core.CategoryID(parentID.String),
		IsSystem:    isSystem,
		SortOrder:   sortOrder,
		Hidden:      hidden,
	}
	var err error
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return core.RestoreCategory(st), nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

type payeeRepo struct {
	q querier
}

const payeeColumns = `id, household_id, name, default_category_id, usage_count, last_used_at, created_at, updated_at`

func (r payeeRepo) GetByID(ctx context.Context, id core.PayeeID) (*core.Payee, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+payeeColumns+` FROM payees WHERE id = ?`, string(id))
	p, err := scanPayee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("payee", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get payee %s: %w", id, err)
	}
	return p, nil
}

func (r payeeRepo) FindByName(ctx context.Context, householdID core.HouseholdID, name string) (*core.Payee, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+payeeColumns+` FROM payees WHERE household_id = ? AND normalized_name = ?`,
		string(householdID), core.NormalizePayeeName(name))
	p, err := scanPayee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("payee", name)
	}
	if err != nil {
		return nil, fmt.Errorf("find payee: %w", err)
	}
	return p, nil
}

func (r payeeRepo) GetOrCreate(ctx context.Context, householdID core.HouseholdID, name string) (*core.Payee, error) {
	p, err := r.FindByName(ctx, householdID, name)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	p, err = core.NewPayee(householdID, name)
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r payeeRepo) Search(ctx context.Context, householdID core.HouseholdID, prefix string, limit int) ([]*core.Payee, error) {
	if limit <= 0 {
		limit = repository.DefaultSearchLimit
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+payeeColumns+` FROM payees
		WHERE household_id = ? AND normalized_name LIKE ? ESCAPE '\'
		ORDER BY usage_count DESC, normalized_name
		LIMIT ?`,
		string(householdID), likePattern("", core.NormalizePayeeName(prefix), "%"), limit)
	if err != nil {
		return nil, fmt.Errorf("search payees: %w", err)
	}
	defer rows.Close()

	var out []*core.Payee
	for rows.Next() {
		p, err := scanPayee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payee: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r payeeRepo) Save(ctx context.Context, p *core.Payee) error {
	st := p.State()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payees (id, household_id, name, normalized_name, default_category_id,
			usage_count, last_used_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			normalized_name = excluded.normalized_name,
			default_category_id = excluded.default_category_id,
			usage_count = excluded.usage_count,
			last_used_at = excluded.last_used_at,
			updated_at = excluded.updated_at`,
		string(st.ID), string(st.HouseholdID), st.Name, p.NormalizedName(),
		nullString(string(st.DefaultCategoryID)), st.UsageCount, nullTime(st.LastUsedAt),
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	if isUniqueViolation(err) {
		return core.NewDuplicatePayeeError(st.Name)
	}
	if err != nil {
		return fmt.Errorf("save payee %s: %w", st.ID, err)
	}
	return nil
}

func scanPayee(s scanner) (*core.Payee, error) {
	var (
		id, householdID, name string
		defaultCategory       sql.NullString
		usageCount            int
		lastUsedAt            sql.NullString
		createdAt, updatedAt  string
	)
	if err := s.Scan(&id, &householdID, &name, &defaultCategory, &usageCount, &lastUsedAt,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	st := core.PayeeState{
		ID:                core.PayeeID(id),
		HouseholdID:       core.HouseholdID(householdID),
		Name:              name,
		DefaultCategoryID: core.CategoryID(defaultCategory.String),
		UsageCount:        usageCount,
	}
	var err error
	if st.LastUsedAt, err = parseNullTime(lastUsedAt); err != nil {
		return nil, err
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return core.RestorePayee(st), nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

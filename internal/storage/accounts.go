package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
)

type accountRepo struct {
	q querier
}

const accountColumns = `id, household_id, type, subtype, name, status, currency,
	opening_amount, opening_points, rewards_unit, credit_limit, apr, term_months,
	institution_name, institution_mask, institution_url, created_at, updated_at`

func (r accountRepo) GetByID(ctx context.Context, id core.AccountID) (*core.Account, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, string(id))
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("account", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

func (r accountRepo) ListByHousehold(ctx context.Context, householdID core.HouseholdID) ([]*core.Account, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE household_id = ? ORDER BY name, id`,
		string(householdID))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r accountRepo) Save(ctx context.Context, a *core.Account) error {
	st := a.State()
	var (
		openingAmount, openingPoints, rewardsUnit, creditLimit sql.NullString
		termMonths                                             sql.NullInt64
		instName, instMask, instURL                            sql.NullString
	)
	if st.OpeningBalance != nil {
		openingAmount = sql.NullString{String: st.OpeningBalance.Amount().String(), Valid: true}
	}
	if st.OpeningRewards != nil {
		openingPoints = sql.NullString{String: st.OpeningRewards.Points().String(), Valid: true}
		rewardsUnit = sql.NullString{String: st.OpeningRewards.Unit(), Valid: true}
	}
	if st.CreditLimit != nil {
		creditLimit = sql.NullString{String: st.CreditLimit.Amount().String(), Valid: true}
	}
	if st.TermMonths != nil {
		termMonths = sql.NullInt64{Int64: int64(*st.TermMonths), Valid: true}
	}
	if st.Institution != nil {
		instName = sql.NullString{String: st.Institution.Name, Valid: true}
		instMask = nullString(st.Institution.AccountMask)
		instURL = nullString(st.Institution.URL)
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			institution_name = excluded.institution_name,
			institution_mask = excluded.institution_mask,
			institution_url = excluded.institution_url,
			updated_at = excluded.updated_at`,
		string(st.ID), string(st.HouseholdID), string(st.Type), string(st.Subtype), st.Name,
		string(st.Status), string(a.Currency()),
		openingAmount, openingPoints, rewardsUnit, creditLimit, nullDecimal(st.APR), termMonths,
		instName, instMask, instURL, formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save account %s: %w", st.ID, err)
	}

	slog.DebugContext(ctx, "Account saved", "account_id", st.ID, "type", st.Type, "status", st.Status)
	return nil
}

func scanAccount(s scanner) (*core.Account, error) {
	var (
		id, householdID, typ, subtype, name, status, currency  string
		openingAmount, openingPoints, rewardsUnit, creditLimit sql.NullString
		apr                                                    sql.NullString
		termMonths                                             sql.NullInt64
		instName, instMask, instURL                            sql.NullString
		createdAt, updatedAt                                   string
	)
	if err := s.Scan(&id, &householdID, &typ, &subtype, &name, &status, &currency,
		&openingAmount, &openingPoints, &rewardsUnit, &creditLimit, &apr, &termMonths,
		&instName, &instMask, &instURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	st := core.AccountState{
		ID:          core.AccountID(id),
		HouseholdID: core.HouseholdID(householdID),
		Type:        core.AccountType(typ),
		Subtype:     core.AccountSubtype(subtype),
		Name:        name,
		Status:      core.AccountStatus(status),
	}
	var err error
	if st.OpeningBalance, err = parseNullMoney(openingAmount, core.Currency(currency)); err != nil {
		return nil, err
	}
	if st.CreditLimit, err = parseNullMoney(creditLimit, core.Currency(currency)); err != nil {
		return nil, err
	}
	points, err := parseNullDecimal(openingPoints)
	if err != nil {
		return nil, err
	}
	if points != nil {
		rb, err := core.NewRewardsBalance(*points, rewardsUnit.String)
		if err != nil {
			return nil, err
		}
		st.OpeningRewards = &rb
	}
	if st.APR, err = parseNullDecimal(apr); err != nil {
		return nil, err
	}
	if termMonths.Valid {
		n := int(termMonths.Int64)
		st.TermMonths = &n
	}
	if instName.Valid {
		st.Institution = &core.Institution{Name: instName.String, AccountMask: instMask.String, URL: instURL.String}
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return core.RestoreAccount(st), nil
}

func parseNullMoney(ns sql.NullString, currency core.Currency) (*core.Money, error) {
	d, err := parseNullDecimal(ns)
	if err != nil || d == nil {
		return nil, err
	}
	m, err := core.NewMoney(*d, currency)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

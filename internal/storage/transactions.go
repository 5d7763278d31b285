package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

type transactionRepo struct {
	q querier
}

const transactionColumns = `id, household_id, account_id, currency, amount, effective_date, posted_date,
	payee_id, payee_name, memo, check_number, status, is_mirror, source_transaction_id,
	created_at, updated_at`

func (r transactionRepo) GetByID(ctx context.Context, id core.TransactionID) (*core.Transaction, error) {
	txns, err := r.query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	if len(txns) == 0 {
		return nil, core.NewNotFoundError("transaction", string(id))
	}
	return txns[0], nil
}

func (r transactionRepo) ListByAccount(ctx context.Context, accountID core.AccountID, f repository.TransactionFilter) ([]*core.Transaction, error) {
	where := []string{"account_id = ?"}
	args := []any{string(accountID)}
	if !f.From.IsEmpty() {
		where = append(where, "effective_date >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsEmpty() {
		where = append(where, "effective_date <= ?")
		args = append(args, f.To.Format(dateLayout))
	}
	if f.PayeeID != "" {
		where = append(where, "payee_id = ?")
		args = append(args, string(f.PayeeID))
	}
	if f.Text != "" {
		pattern := likePattern("%", strings.ToLower(f.Text), "%")
		where = append(where, `(LOWER(memo) LIKE ? ESCAPE '\' OR LOWER(payee_name) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, f.Offset)

	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY effective_date, created_at, id LIMIT ? OFFSET ?`
	txns, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountID, err)
	}
	return txns, nil
}

func (r transactionRepo) FindMirror(ctx context.Context, id core.TransactionID) (*core.Transaction, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	other := t.MirrorTransactionID()
	if other == "" {
		return nil, core.NewNotFoundError("mirror transaction", string(id))
	}
	return r.GetByID(ctx, other)
}

func (r transactionRepo) FindMirrors(ctx context.Context, sourceID core.TransactionID) ([]*core.Transaction, error) {
	txns, err := r.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE is_mirror = 1 AND source_transaction_id = ? ORDER BY id`,
		string(sourceID))
	if err != nil {
		return nil, fmt.Errorf("find mirrors of %s: %w", sourceID, err)
	}
	return txns, nil
}

func (r transactionRepo) CountByCategory(ctx context.Context, categoryID core.CategoryID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT transaction_id) FROM transaction_splits WHERE category_id = ?`,
		string(categoryID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions in category %s: %w", categoryID, err)
	}
	return n, nil
}

func (r transactionRepo) Save(ctx context.Context, t *core.Transaction) error {
	st := t.State()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			effective_date = excluded.effective_date,
			posted_date = excluded.posted_date,
			payee_id = excluded.payee_id,
			payee_name = excluded.payee_name,
			memo = excluded.memo,
			check_number = excluded.check_number,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		string(st.ID), string(st.HouseholdID), string(st.AccountID), string(st.Amount.Currency()),
		st.Amount.Amount().String(), st.EffectiveDate.Format(dateLayout), nullDate(st.PostedDate),
		nullString(string(st.PayeeID)), st.PayeeName, st.Memo, st.CheckNumber, string(st.Status),
		boolInt(st.IsMirror), nullString(string(st.SourceTransactionID)),
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", st.ID, err)
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM transaction_splits WHERE transaction_id = ?`, string(st.ID)); err != nil {
		return fmt.Errorf("clear splits of %s: %w", st.ID, err)
	}
	for i, s := range st.Splits {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO transaction_splits (transaction_id, position, amount, category_id,
				transfer_account_id, memo, mirror_transaction_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(st.ID), i, s.Amount.Amount().String(), nullString(string(s.CategoryID)),
			nullString(string(s.TransferAccountID)), s.Memo, nullString(string(s.MirrorTransactionID)))
		if err != nil {
			return fmt.Errorf("save split %d of %s: %w", i, st.ID, err)
		}
	}

	slog.DebugContext(ctx, "Transaction saved",
		"transaction_id", st.ID,
		"account_id", st.AccountID,
		"amount", st.Amount.String(),
		"splits", len(st.Splits),
		"is_mirror", st.IsMirror)
	return nil
}

func (r transactionRepo) Delete(ctx context.Context, id core.TransactionID) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM transaction_splits WHERE transaction_id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete splits of %s: %w", id, err)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("transaction", string(id))
	}
	return nil
}

// query loads transaction rows and then their splits in one extra query.
func (r transactionRepo) query(ctx context.Context, q string, args ...any) ([]*core.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var states []core.TransactionState
	for rows.Next() {
		st, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// The store runs on a single connection, so rows must be closed before
	// the splits query.
	rows.Close()
	if len(states) == 0 {
		return nil, nil
	}

	index := make(map[core.TransactionID]int, len(states))
	ids := make([]any, len(states))
	for i, st := range states {
		index[st.ID] = i
		ids[i] = string(st.ID)
	}
	splitRows, err := r.q.QueryContext(ctx, `
		SELECT transaction_id, amount, category_id, transfer_account_id, memo, mirror_transaction_id
		FROM transaction_splits
		WHERE transaction_id IN (`+placeholders(len(ids))+`)
		ORDER BY transaction_id, position`, ids...)
	if err != nil {
		return nil, fmt.Errorf("load splits: %w", err)
	}
	defer splitRows.Close()
	for splitRows.Next() {
		var (
			txnID, amount                    string
			categoryID, transferID, mirrorID sql.NullString
			memo                             string
		)
		if err := splitRows.Scan(&txnID, &amount, &categoryID, &transferID, &memo, &mirrorID); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		i, ok := index[core.TransactionID(txnID)]
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse split amount %q: %w", amount, err)
		}
		m, err := core.NewMoney(d, states[i].Amount.Currency())
		if err != nil {
			return nil, err
		}
		states[i].Splits = append(states[i].Splits, core.SplitLineState{
			Amount:              m,
			CategoryID:          core.CategoryID(categoryID.String),
			TransferAccountID:   core.AccountID(transferID.String),
			Memo:                memo,
			MirrorTransactionID: core.TransactionID(mirrorID.String),
		})
	}
	if err := splitRows.Err(); err != nil {
		return nil, err
	}

	out := make([]*core.Transaction, len(states))
	for i, st := range states {
		out[i] = core.RestoreTransaction(st)
	}
	return out, nil
}

func scanTransaction(s scanner) (core.TransactionState, error) {
	var (
		id, householdID, accountID, currency, amount, effective string
		posted, payeeID                                         sql.NullString
		payeeName, memo, checkNumber, status                    string
		isMirror                                                bool
		sourceID                                                sql.NullString
		createdAt, updatedAt                                    string
	)
	if err := s.Scan(&id, &householdID, &accountID, &currency, &amount, &effective, &posted,
		&payeeID, &payeeName, &memo, &checkNumber, &status, &isMirror, &sourceID,
		&createdAt, &updatedAt); err != nil {
		return core.TransactionState{}, err
	}

	st := core.TransactionState{
		ID:                  core.TransactionID(id),
		HouseholdID:         core.HouseholdID(householdID),
		AccountID:           core.AccountID(accountID),
		PayeeID:             core.PayeeID(payeeID.String),
		PayeeName:           payeeName,
		Memo:                memo,
		CheckNumber:         checkNumber,
		Status:              core.TransactionStatus(status),
		IsMirror:            isMirror,
		SourceTransactionID: core.TransactionID(sourceID.String),
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return st, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if st.Amount, err = core.NewMoney(d, core.Currency(currency)); err != nil {
		return st, err
	}
	if st.EffectiveDate, err = core.ParseDate(effective); err != nil {
		return st, err
	}
	if st.PostedDate, err = parseNullDate(posted); err != nil {
		return st, err
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return st, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return st, err
	}
	return st, nil
}

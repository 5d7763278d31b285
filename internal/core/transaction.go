package core

import (
	"fmt"
	"strings"
	"time"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusCleared    TransactionStatus = "cleared"
	StatusReconciled TransactionStatus = "reconciled"
)

// TransactionParams is the input to NewTransaction. A zero PostedDate means
// the transaction has not posted yet.
type TransactionParams struct {
	HouseholdID   HouseholdID
	AccountID     AccountID
	Amount        Money
	Splits        []SplitLine
	EffectiveDate Date
	PostedDate    Date
	PayeeID       PayeeID
	PayeeName     string
	Memo          string
	CheckNumber   string
}

// Transaction is a ledger entry made of one or more splits whose amounts sum
// to Amount. Every transfer split on a source transaction has a mirror
// transaction on the target account carrying the negated amount. Mirrors
// are derived: they change only through the source's mutation methods.
type Transaction struct {
	recorder

	id            TransactionID
	householdID   HouseholdID
	accountID     AccountID
	amount        Money
	effectiveDate Date
	postedDate    Date
	payeeID       PayeeID
	payeeName     string
	memo          string
	checkNumber   string
	status        TransactionStatus
	splits        []SplitLine
	isMirror      bool
	// sourceID is set on mirrors and points at the source transaction.
	sourceID  TransactionID
	createdAt time.Time
	updatedAt time.Time
}

// MirrorSync lists the mirror-side changes produced by UpdateSplits. The
// caller persists all of them in the same unit of work as the source.
type MirrorSync struct {
	Created []*Transaction
	Updated []*Transaction
	Deleted []*Transaction
}

// NewTransaction validates p and builds the source transaction together with
// one mirror per transfer split. Validation runs in a fixed order: splits
// present, splits sum to amount, one target per split, no self-transfer, no
// duplicate transfer target.
func NewTransaction(p TransactionParams) (*Transaction, []*Transaction, error) {
	if p.HouseholdID == "" {
		return nil, nil, newValidationError(CodeInvalidReference, "household_id", "household is required")
	}
	if p.AccountID == "" {
		return nil, nil, newValidationError(CodeInvalidReference, "account_id", "account is required")
	}
	if err := p.EffectiveDate.Validate(); err != nil {
		return nil, nil, err
	}
	if err := p.Amount.Currency().Validate(); err != nil {
		return nil, nil, err
	}
	if err := validateSplits(p.AccountID, p.Amount, p.Splits); err != nil {
		return nil, nil, err
	}

	ts := now()
	t := &Transaction{
		id:            NewTransactionID(),
		householdID:   p.HouseholdID,
		accountID:     p.AccountID,
		amount:        p.Amount,
		effectiveDate: p.EffectiveDate,
		postedDate:    p.PostedDate,
		payeeID:       p.PayeeID,
		payeeName:     strings.TrimSpace(p.PayeeName),
		memo:          strings.TrimSpace(p.Memo),
		checkNumber:   strings.TrimSpace(p.CheckNumber),
		status:        StatusPending,
		splits:        cloneSplits(p.Splits),
		createdAt:     ts,
		updatedAt:     ts,
	}

	var mirrors []*Transaction
	for i := range t.splits {
		if !t.splits[i].IsTransfer() {
			continue
		}
		m := t.newMirror(t.splits[i], ts)
		t.splits[i].mirrorID = m.id
		mirrors = append(mirrors, m)
	}

	t.recordCreated()
	for _, m := range mirrors {
		m.recordCreated()
	}
	return t, mirrors, nil
}

func validateSplits(accountID AccountID, amount Money, splits []SplitLine) error {
	if len(splits) == 0 {
		return newValidationError(CodeInvalidSplits, "splits", "a transaction needs at least one split")
	}
	amounts := make([]Money, len(splits))
	for i, s := range splits {
		amounts[i] = s.amount
	}
	sum, err := SumMoney(amount.Currency(), amounts...)
	if err != nil {
		return err
	}
	if !sum.Equal(amount) {
		return newValidationError(CodeInvalidSplits, "splits", "splits sum to %s but the transaction amount is %s", sum, amount)
	}
	for _, s := range splits {
		if err := s.validate(); err != nil {
			return err
		}
	}
	for _, s := range splits {
		if s.transferAccountID == accountID {
			return newValidationError(CodeSelfTransfer, "splits", "a split cannot transfer to the transaction's own account")
		}
	}
	seen := make(map[AccountID]struct{})
	for _, s := range splits {
		if !s.IsTransfer() {
			continue
		}
		if _, dup := seen[s.transferAccountID]; dup {
			return newValidationError(CodeDuplicateTransferTarget, "splits", "account %s is the target of more than one split", s.transferAccountID)
		}
		seen[s.transferAccountID] = struct{}{}
	}
	return nil
}

func cloneSplits(in []SplitLine) []SplitLine {
	out := make([]SplitLine, len(in))
	copy(out, in)
	for i := range out {
		out[i].mirrorID = ""
	}
	return out
}

// newMirror builds the counterpart of a transfer split: the target account
// receives the negated amount as a single transfer split back to the source
// account.
func (t *Transaction) newMirror(split SplitLine, ts time.Time) *Transaction {
	neg := split.amount.Neg()
	memo := t.memo
	if split.memo != "" {
		memo = split.memo
	}
	return &Transaction{
		id:            NewTransactionID(),
		householdID:   t.householdID,
		accountID:     split.transferAccountID,
		amount:        neg,
		effectiveDate: t.effectiveDate,
		payeeID:       t.payeeID,
		payeeName:     t.payeeName,
		memo:          memo,
		status:        StatusPending,
		splits: []SplitLine{{
			amount:            neg,
			transferAccountID: t.accountID,
			memo:              split.memo,
		}},
		isMirror:  true,
		sourceID:  t.id,
		createdAt: ts,
		updatedAt: ts,
	}
}

func (t *Transaction) recordCreated() {
	t.record(TransactionCreated{
		EventMeta:           meta(string(t.id)),
		HouseholdID:         t.householdID,
		AccountID:           t.accountID,
		Amount:              t.amount,
		EffectiveDate:       t.effectiveDate,
		IsMirror:            t.isMirror,
		MirrorTransactionID: t.MirrorTransactionID(),
	})
}

func (t *Transaction) recordDeleted() {
	t.record(TransactionDeleted{
		EventMeta:           meta(string(t.id)),
		HouseholdID:         t.householdID,
		AccountID:           t.accountID,
		Amount:              t.amount,
		IsMirror:            t.isMirror,
		MirrorTransactionID: t.MirrorTransactionID(),
	})
}

func (t *Transaction) recordUpdated(field, old, updated string) {
	t.updatedAt = now()
	t.record(TransactionUpdated{
		EventMeta:   meta(string(t.id)),
		FieldChange: FieldChange{Field: field, OldValue: old, NewValue: updated},
	})
}

func (t *Transaction) ID() TransactionID         { return t.id }
func (t *Transaction) HouseholdID() HouseholdID  { return t.householdID }
func (t *Transaction) AccountID() AccountID      { return t.accountID }
func (t *Transaction) Amount() Money             { return t.amount }
func (t *Transaction) EffectiveDate() Date       { return t.effectiveDate }
func (t *Transaction) PostedDate() Date          { return t.postedDate }
func (t *Transaction) PayeeID() PayeeID          { return t.payeeID }
func (t *Transaction) PayeeName() string         { return t.payeeName }
func (t *Transaction) Memo() string              { return t.memo }
func (t *Transaction) CheckNumber() string       { return t.checkNumber }
func (t *Transaction) Status() TransactionStatus { return t.status }
func (t *Transaction) IsMirror() bool            { return t.isMirror }
func (t *Transaction) CreatedAt() time.Time      { return t.createdAt }
func (t *Transaction) UpdatedAt() time.Time      { return t.updatedAt }

// Splits returns a copy of the splits in order.
func (t *Transaction) Splits() []SplitLine {
	return append([]SplitLine(nil), t.splits...)
}

// MirrorTransactionID links the two halves of a transfer. On a mirror it is
// the source id. On a source it is the mirror of the first transfer split,
// or "" when the transaction has no transfer splits; use
// MirrorTransactionIDs when a source transfers to several accounts.
func (t *Transaction) MirrorTransactionID() TransactionID {
	if t.isMirror {
		return t.sourceID
	}
	for _, s := range t.splits {
		if s.mirrorID != "" {
			return s.mirrorID
		}
	}
	return ""
}

// MirrorTransactionIDs returns the ids of every mirror owned by a source
// transaction, in split order.
func (t *Transaction) MirrorTransactionIDs() []TransactionID {
	if t.isMirror {
		return nil
	}
	var ids []TransactionID
	for _, s := range t.splits {
		if s.mirrorID != "" {
			ids = append(ids, s.mirrorID)
		}
	}
	return ids
}

// CategoryIDs returns the distinct categories referenced by category splits.
func (t *Transaction) CategoryIDs() []CategoryID {
	seen := make(map[CategoryID]struct{})
	var ids []CategoryID
	for _, s := range t.splits {
		if s.categoryID == "" {
			continue
		}
		if _, ok := seen[s.categoryID]; ok {
			continue
		}
		seen[s.categoryID] = struct{}{}
		ids = append(ids, s.categoryID)
	}
	return ids
}

func (t *Transaction) setStatus(s TransactionStatus) {
	old := t.status
	t.status = s
	t.updatedAt = now()
	t.record(TransactionStatusChanged{
		EventMeta: meta(string(t.id)),
		OldStatus: old,
		NewStatus: s,
	})
}

// MarkCleared moves a pending transaction to cleared.
func (t *Transaction) MarkCleared() error {
	if t.status != StatusPending {
		return newRuleError(CodeInvalidStatusTransition, "only pending transactions can be cleared (status is %s)", t.status)
	}
	t.setStatus(StatusCleared)
	return nil
}

// MarkReconciled moves a cleared transaction to reconciled. Pending
// transactions must be cleared first.
func (t *Transaction) MarkReconciled() error {
	if t.status != StatusCleared {
		return newRuleError(CodeInvalidStatusTransition, "only cleared transactions can be reconciled (status is %s)", t.status)
	}
	t.setStatus(StatusReconciled)
	return nil
}

func (t *Transaction) guardEditable() error {
	if t.isMirror {
		return newRuleError(CodeCannotModifyMirror, "transaction %s is a transfer mirror; modify source transaction %s instead", t.id, t.sourceID)
	}
	if t.status == StatusReconciled {
		return newRuleError(CodeTransactionReconciled, "transaction %s is reconciled and cannot be modified", t.id)
	}
	return nil
}

// checkMirrors verifies mirrors is exactly the set of mirrors owned by t. If
// forUpdate is set, every mirror must still be editable.
func (t *Transaction) checkMirrors(mirrors []*Transaction, forUpdate bool) (map[TransactionID]*Transaction, error) {
	want := t.MirrorTransactionIDs()
	got := make(map[TransactionID]*Transaction, len(mirrors))
	for _, m := range mirrors {
		if m == nil || !m.isMirror || m.sourceID != t.id {
			return nil, newValidationError(CodeInvalidMirrorSet, "mirrors", "transaction is not a mirror of %s", t.id)
		}
		got[m.id] = m
	}
	if len(got) != len(want) || len(mirrors) != len(want) {
		return nil, newValidationError(CodeInvalidMirrorSet, "mirrors", "expected %d mirrors of %s, got %d", len(want), t.id, len(mirrors))
	}
	for _, id := range want {
		m, ok := got[id]
		if !ok {
			return nil, newValidationError(CodeInvalidMirrorSet, "mirrors", "mirror %s of %s is missing", id, t.id)
		}
		if forUpdate && m.status == StatusReconciled {
			return nil, newRuleError(CodeTransactionReconciled, "mirror %s on account %s is reconciled", m.id, m.accountID)
		}
	}
	return got, nil
}

// UpdateMemo changes the memo on the source and on every mirror it owns.
// mirrors must be exactly the source's mirrors.
func (t *Transaction) UpdateMemo(memo string, mirrors ...*Transaction) error {
	if err := t.guardEditable(); err != nil {
		return err
	}
	if _, err := t.checkMirrors(mirrors, true); err != nil {
		return err
	}
	memo = strings.TrimSpace(memo)
	if memo == t.memo {
		return nil
	}
	for _, m := range mirrors {
		if m.memo != memo {
			old := m.memo
			m.memo = memo
			m.recordUpdated("memo", old, memo)
		}
	}
	old := t.memo
	t.memo = memo
	t.recordUpdated("memo", old, memo)
	return nil
}

// UpdatePayee changes the payee on the source and its mirrors.
func (t *Transaction) UpdatePayee(payeeID PayeeID, payeeName string, mirrors ...*Transaction) error {
	if err := t.guardEditable(); err != nil {
		return err
	}
	if _, err := t.checkMirrors(mirrors, true); err != nil {
		return err
	}
	payeeName = strings.TrimSpace(payeeName)
	if payeeID == t.payeeID && payeeName == t.payeeName {
		return nil
	}
	for _, m := range mirrors {
		old := m.payeeName
		m.payeeID, m.payeeName = payeeID, payeeName
		m.recordUpdated("payee", old, payeeName)
	}
	old := t.payeeName
	t.payeeID, t.payeeName = payeeID, payeeName
	t.recordUpdated("payee", old, payeeName)
	return nil
}

// UpdateEffectiveDate moves the source and its mirrors to d.
func (t *Transaction) UpdateEffectiveDate(d Date, mirrors ...*Transaction) error {
	if err := t.guardEditable(); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if _, err := t.checkMirrors(mirrors, true); err != nil {
		return err
	}
	if d.Equal(t.effectiveDate) {
		return nil
	}
	for _, m := range mirrors {
		old := m.effectiveDate
		m.effectiveDate = d
		m.recordUpdated("effective_date", old.String(), d.String())
	}
	old := t.effectiveDate
	t.effectiveDate = d
	t.recordUpdated("effective_date", old.String(), d.String())
	return nil
}

// UpdatePostedDate sets the date the bank posted the transaction; a zero
// Date clears it. Posting is per account, so mirrors are not touched.
func (t *Transaction) UpdatePostedDate(d Date) error {
	if err := t.guardEditable(); err != nil {
		return err
	}
	if d.Equal(t.postedDate) {
		return nil
	}
	old := t.postedDate
	t.postedDate = d
	t.recordUpdated("posted_date", old.String(), d.String())
	return nil
}

// UpdateCheckNumber sets the check number of the owning account's side.
func (t *Transaction) UpdateCheckNumber(number string) error {
	if err := t.guardEditable(); err != nil {
		return err
	}
	number = strings.TrimSpace(number)
	if number == t.checkNumber {
		return nil
	}
	old := t.checkNumber
	t.checkNumber = number
	t.recordUpdated("check_number", old, number)
	return nil
}

// UpdateSplits replaces amount and splits after re-running the creation
// checks, and reconciles the mirror side: transfer targets kept from the old
// split set keep their mirror (amount updated in step), new targets get a new
// mirror, dropped targets have their mirror deleted. mirrors must be exactly
// the mirrors the source owns today.
func (t *Transaction) UpdateSplits(amount Money, splits []SplitLine, mirrors []*Transaction) (MirrorSync, error) {
	if err := t.guardEditable(); err != nil {
		return MirrorSync{}, err
	}
	if amount.Currency() != t.amount.Currency() {
		return MirrorSync{}, newValidationError(CodeCurrencyMismatch, "amount", "transaction currency is %s, got %s", t.amount.Currency(), amount.Currency())
	}
	if err := validateSplits(t.accountID, amount, splits); err != nil {
		return MirrorSync{}, err
	}
	existing, err := t.checkMirrors(mirrors, false)
	if err != nil {
		return MirrorSync{}, err
	}

	byTarget := make(map[AccountID]*Transaction, len(existing))
	for _, m := range existing {
		byTarget[m.accountID] = m
	}
	next := cloneSplits(splits)

	// Plan first so nothing changes if a reconciled mirror would be touched.
	kept := make(map[AccountID]bool)
	for _, s := range next {
		if !s.IsTransfer() {
			continue
		}
		m, ok := byTarget[s.transferAccountID]
		if !ok {
			continue
		}
		kept[s.transferAccountID] = true
		if m.status == StatusReconciled && !m.follows(s, t.accountID) {
			return MirrorSync{}, newRuleError(CodeTransactionReconciled, "mirror %s on account %s is reconciled", m.id, m.accountID)
		}
	}
	for target, m := range byTarget {
		if !kept[target] && m.status == StatusReconciled {
			return MirrorSync{}, newRuleError(CodeTransactionReconciled, "mirror %s on account %s is reconciled", m.id, m.accountID)
		}
	}

	var sync MirrorSync
	ts := now()
	oldSummary := t.splitSummary()
	t.amount = amount
	t.splits = next
	for i := range t.splits {
		s := t.splits[i]
		if !s.IsTransfer() {
			continue
		}
		if m, ok := byTarget[s.transferAccountID]; ok {
			t.splits[i].mirrorID = m.id
			if m.followSplit(s, t.accountID) {
				sync.Updated = append(sync.Updated, m)
			}
			continue
		}
		m := t.newMirror(s, ts)
		t.splits[i].mirrorID = m.id
		m.recordCreated()
		sync.Created = append(sync.Created, m)
	}
	for _, m := range mirrors {
		if !kept[m.accountID] {
			m.recordDeleted()
			sync.Deleted = append(sync.Deleted, m)
		}
	}
	t.recordUpdated("splits", oldSummary, t.splitSummary())
	return sync, nil
}

// followSplit brings a mirror in line with its source split. It reports
// whether anything changed.
func (t *Transaction) followSplit(s SplitLine, sourceAccount AccountID) bool {
	if t.follows(s, sourceAccount) {
		return false
	}
	neg := s.amount.Neg()
	old := t.amount
	t.amount = neg
	t.splits = []SplitLine{{amount: neg, transferAccountID: sourceAccount, memo: s.memo}}
	t.recordUpdated("amount", old.String(), neg.String())
	return true
}

// follows reports whether the mirror already matches its source split.
func (t *Transaction) follows(s SplitLine, sourceAccount AccountID) bool {
	neg := s.amount.Neg()
	return t.amount.Equal(neg) && len(t.splits) == 1 &&
		t.splits[0].amount.Equal(neg) &&
		t.splits[0].transferAccountID == sourceAccount &&
		t.splits[0].memo == s.memo
}

func (t *Transaction) splitSummary() string {
	return fmt.Sprintf("%d splits totaling %s", len(t.splits), t.amount)
}

// Delete records the deletion of a source transaction and cascades to its
// mirrors. Mirrors cannot be deleted directly.
func (t *Transaction) Delete(mirrors []*Transaction) error {
	if t.isMirror {
		return newRuleError(CodeCannotDeleteMirror, "transaction %s is a transfer mirror; delete source transaction %s instead", t.id, t.sourceID)
	}
	if t.status == StatusReconciled {
		return newRuleError(CodeTransactionReconciled, "transaction %s is reconciled and cannot be deleted", t.id)
	}
	if _, err := t.checkMirrors(mirrors, true); err != nil {
		return err
	}
	t.recordDeleted()
	for _, m := range mirrors {
		m.recordDeleted()
	}
	return nil
}

// TransactionState is the persisted shape of a Transaction.
type TransactionState struct {
	ID            TransactionID
	HouseholdID   HouseholdID
	AccountID     AccountID
	Amount        Money
	EffectiveDate Date
	PostedDate    Date
	PayeeID       PayeeID
	PayeeName     string
	Memo          string
	CheckNumber   string
	Status        TransactionStatus
	Splits        []SplitLineState
	IsMirror      bool
	// SourceTransactionID is set on mirrors only.
	SourceTransactionID TransactionID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (t *Transaction) State() TransactionState {
	splits := make([]SplitLineState, len(t.splits))
	for i, s := range t.splits {
		splits[i] = s.State()
	}
	return TransactionState{
		ID:                  t.id,
		HouseholdID:         t.householdID,
		AccountID:           t.accountID,
		Amount:              t.amount,
		EffectiveDate:       t.effectiveDate,
		PostedDate:          t.postedDate,
		PayeeID:             t.payeeID,
		PayeeName:           t.payeeName,
		Memo:                t.memo,
		CheckNumber:         t.checkNumber,
		Status:              t.status,
		Splits:              splits,
		IsMirror:            t.isMirror,
		SourceTransactionID: t.sourceID,
		CreatedAt:           t.createdAt,
		UpdatedAt:           t.updatedAt,
	}
}

// RestoreTransaction rebuilds a transaction from storage. No events are
// recorded.
func RestoreTransaction(s TransactionState) *Transaction {
	splits := make([]SplitLine, len(s.Splits))
	for i, st := range s.Splits {
		splits[i] = restoreSplit(st)
	}
	return &Transaction{
		id:            s.ID,
		householdID:   s.HouseholdID,
		accountID:     s.AccountID,
		amount:        s.Amount,
		effectiveDate: s.EffectiveDate,
		postedDate:    s.PostedDate,
		payeeID:       s.PayeeID,
		payeeName:     s.PayeeName,
		memo:          s.Memo,
		checkNumber:   s.CheckNumber,
		status:        s.Status,
		splits:        splits,
		isMirror:      s.IsMirror,
		sourceID:      s.SourceTransactionID,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
	}
}

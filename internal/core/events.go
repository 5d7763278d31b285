package core

import "time"

// now is the aggregate clock; tests replace it.
var now = func() time.Time { return time.Now().UTC() }

// Event names double as AMQP routing keys.
const (
	EventAccountCreated           = "account.created"
	EventAccountUpdated           = "account.updated"
	EventAccountClosed            = "account.closed"
	EventAccountReopened          = "account.reopened"
	EventCategoryCreated          = "category.created"
	EventCategoryUpdated          = "category.updated"
	EventCategoryDeleted          = "category.deleted"
	EventPayeeCreated             = "payee.created"
	EventPayeeUpdated             = "payee.updated"
	EventPayeeUsed                = "payee.used"
	EventTransactionCreated       = "transaction.created"
	EventTransactionStatusChanged = "transaction.status_changed"
	EventTransactionUpdated       = "transaction.updated"
	EventTransactionDeleted       = "transaction.deleted"
)

// Event is a fact emitted by an aggregate mutation. Events are buffered on the
// aggregate and only published after the enclosing unit of work commits.
type Event interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventMeta is embedded in every event.
type EventMeta struct {
	Aggregate string    `json:"aggregate_id"`
	At        time.Time `json:"occurred_at"`
}

func (m EventMeta) AggregateID() string   { return m.Aggregate }
func (m EventMeta) OccurredAt() time.Time { return m.At }

func meta(id string) EventMeta {
	return EventMeta{Aggregate: id, At: now()}
}

// FieldChange is the before/after pair carried by *Updated events.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

type AccountCreated struct {
	EventMeta
	HouseholdID    HouseholdID     `json:"household_id"`
	AccountType    AccountType     `json:"account_type"`
	Subtype        AccountSubtype  `json:"subtype,omitempty"`
	Name           string          `json:"name"`
	OpeningBalance *Money          `json:"opening_balance,omitempty"`
	OpeningRewards *RewardsBalance `json:"opening_rewards,omitempty"`
}

type AccountUpdated struct {
	EventMeta
	FieldChange
}

type AccountClosed struct {
	EventMeta
}

type AccountReopened struct {
	EventMeta
}

type CategoryCreated struct {
	EventMeta
	HouseholdID HouseholdID  `json:"household_id"`
	Name        string       `json:"name"`
	Type        CategoryType `json:"type"`
	ParentID    CategoryID   `json:"parent_id,omitempty"`
	IsSystem    bool         `json:"is_system"`
}

type CategoryUpdated struct {
	EventMeta
	FieldChange
}

type CategoryDeleted struct {
	EventMeta
	HouseholdID HouseholdID `json:"household_id"`
	Name        string      `json:"name"`
}

type PayeeCreated struct {
	EventMeta
	HouseholdID HouseholdID `json:"household_id"`
	Name        string      `json:"name"`
}

type PayeeUpdated struct {
	EventMeta
	FieldChange
}

type PayeeUsed struct {
	EventMeta
	UsageCount int       `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

type TransactionCreated struct {
	EventMeta
	HouseholdID         HouseholdID   `json:"household_id"`
	AccountID           AccountID     `json:"account_id"`
	Amount              Money         `json:"amount"`
	EffectiveDate       Date          `json:"effective_date"`
	IsMirror            bool          `json:"is_mirror"`
	MirrorTransactionID TransactionID `json:"mirror_transaction_id,omitempty"`
}

type TransactionStatusChanged struct {
	EventMeta
	OldStatus TransactionStatus `json:"old_status"`
	NewStatus TransactionStatus `json:"new_status"`
}

type TransactionUpdated struct {
	EventMeta
	FieldChange
}

type TransactionDeleted struct {
	EventMeta
	HouseholdID         HouseholdID   `json:"household_id"`
	AccountID           AccountID     `json:"account_id"`
	Amount              Money         `json:"amount"`
	IsMirror            bool          `json:"is_mirror"`
	MirrorTransactionID TransactionID `json:"mirror_transaction_id,omitempty"`
}

func (AccountCreated) EventName() string           { return EventAccountCreated }
func (AccountUpdated) EventName() string           { return EventAccountUpdated }
func (AccountClosed) EventName() string            { return EventAccountClosed }
func (AccountReopened) EventName() string          { return EventAccountReopened }
func (CategoryCreated) EventName() string          { return EventCategoryCreated }
func (CategoryUpdated) EventName() string          { return EventCategoryUpdated }
func (CategoryDeleted) EventName() string          { return EventCategoryDeleted }
func (PayeeCreated) EventName() string             { return EventPayeeCreated }
func (PayeeUpdated) EventName() string             { return EventPayeeUpdated }
func (PayeeUsed) EventName() string                { return EventPayeeUsed }
func (TransactionCreated) EventName() string       { return EventTransactionCreated }
func (TransactionStatusChanged) EventName() string { return EventTransactionStatusChanged }
func (TransactionUpdated) EventName() string       { return EventTransactionUpdated }
func (TransactionDeleted) EventName() string       { return EventTransactionDeleted }

// recorder is the ordered event buffer embedded in every aggregate.
type recorder struct {
	events []Event
}

func (r *recorder) record(e Event) {
	r.events = append(r.events, e)
}

// PendingEvents returns the buffered events without clearing them.
func (r *recorder) PendingEvents() []Event {
	return append([]Event(nil), r.events...)
}

// DrainEvents returns the buffered events and clears the buffer. Call it only
// after the change that produced them has been committed.
func (r *recorder) DrainEvents() []Event {
	out := r.events
	r.events = nil
	return out
}

package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCreditCard AccountType = "credit_card"
	AccountLoan       AccountType = "loan"
	AccountBrokerage  AccountType = "brokerage"
	AccountIRA        AccountType = "ira"
	AccountRewards    AccountType = "rewards"
)

// AccountTypes lists every supported account type.
func AccountTypes() []AccountType {
	return []AccountType{
		AccountChecking, AccountSavings, AccountCreditCard, AccountLoan,
		AccountBrokerage, AccountIRA, AccountRewards,
	}
}

func (t AccountType) IsValid() bool {
	_, ok := accountRules[t]
	return ok
}

type AccountSubtype string

const (
	SubtypeMortgage     AccountSubtype = "mortgage"
	SubtypeAuto         AccountSubtype = "auto"
	SubtypePersonal     AccountSubtype = "personal"
	SubtypeLineOfCredit AccountSubtype = "line_of_credit"
	SubtypeTraditional  AccountSubtype = "traditional"
	SubtypeRoth         AccountSubtype = "roth"
	SubtypeSEP          AccountSubtype = "sep"
)

type AccountStatus string

const (
	AccountStatusOpen   AccountStatus = "open"
	AccountStatusClosed AccountStatus = "closed"
)

const maxNameLength = 100

// Institution is optional metadata about where an account is held.
type Institution struct {
	Name        string `json:"name"`
	AccountMask string `json:"account_mask,omitempty"`
	URL         string `json:"url,omitempty"`
}

// AccountParams carries every field an account factory may accept. Each
// factory rejects the fields that do not belong to its type, so a loan APR
// passed to NewCheckingAccount is an error rather than silently dropped.
type AccountParams struct {
	HouseholdID    HouseholdID
	Name           string
	Subtype        AccountSubtype
	OpeningBalance *Money
	OpeningRewards *RewardsBalance
	CreditLimit    *Money
	APR            *decimal.Decimal
	TermMonths     *int
	Institution    *Institution
}

type accountRule struct {
	subtypes    []AccountSubtype // non-empty: subtype required and must be one of these
	rewards     bool             // opening balance is a RewardsBalance
	creditLimit bool
	loanTerms   bool
}

var accountRules = map[AccountType]accountRule{
	AccountChecking:   {},
	AccountSavings:    {},
	AccountCreditCard: {creditLimit: true},
	AccountLoan: {
		subtypes:  []AccountSubtype{SubtypeMortgage, SubtypeAuto, SubtypePersonal, SubtypeLineOfCredit},
		loanTerms: true,
	},
	AccountBrokerage: {},
	AccountIRA:       {subtypes: []AccountSubtype{SubtypeTraditional, SubtypeRoth, SubtypeSEP}},
	AccountRewards:   {rewards: true},
}

// Account is one of the seven account kinds, discriminated by Type. The type
// never changes after creation.
type Account struct {
	recorder

	id             AccountID
	householdID    HouseholdID
	accountType    AccountType
	subtype        AccountSubtype
	name           string
	status         AccountStatus
	openingBalance *Money
	openingRewards *RewardsBalance
	creditLimit    *Money
	apr            *decimal.Decimal
	termMonths     *int
	institution    *Institution
	createdAt      time.Time
	updatedAt      time.Time
}

func NewCheckingAccount(p AccountParams) (*Account, error)  { return newAccount(AccountChecking, p) }
func NewSavingsAccount(p AccountParams) (*Account, error)   { return newAccount(AccountSavings, p) }
func NewBrokerageAccount(p AccountParams) (*Account, error) { return newAccount(AccountBrokerage, p) }

// NewCreditCardAccount requires a positive CreditLimit in the opening
// balance currency.
func NewCreditCardAccount(p AccountParams) (*Account, error) {
	return newAccount(AccountCreditCard, p)
}

// NewLoanAccount requires a loan Subtype and an APR; TermMonths is optional
// (lines of credit have none).
func NewLoanAccount(p AccountParams) (*Account, error) { return newAccount(AccountLoan, p) }

// NewIRAAccount requires an IRA Subtype.
func NewIRAAccount(p AccountParams) (*Account, error) { return newAccount(AccountIRA, p) }

// NewRewardsAccount takes OpeningRewards instead of OpeningBalance.
func NewRewardsAccount(p AccountParams) (*Account, error) { return newAccount(AccountRewards, p) }

// NewAccount dispatches to the factory for t.
func NewAccount(t AccountType, p AccountParams) (*Account, error) {
	if !t.IsValid() {
		return nil, newValidationError(CodeInvalidAccountFields, "type", "unknown account type %q", t)
	}
	return newAccount(t, p)
}

func newAccount(t AccountType, p AccountParams) (*Account, error) {
	if err := validateAccountParams(t, p); err != nil {
		return nil, err
	}
	name, _ := normalizeName(p.Name)
	ts := now()
	a := &Account{
		id:             NewAccountID(),
		householdID:    p.HouseholdID,
		accountType:    t,
		subtype:        p.Subtype,
		name:           name,
		status:         AccountStatusOpen,
		openingBalance: copyPtr(p.OpeningBalance),
		openingRewards: copyPtr(p.OpeningRewards),
		creditLimit:    copyPtr(p.CreditLimit),
		apr:            copyPtr(p.APR),
		termMonths:     copyPtr(p.TermMonths),
		institution:    copyPtr(p.Institution),
		createdAt:      ts,
		updatedAt:      ts,
	}
	a.record(AccountCreated{
		EventMeta:      meta(string(a.id)),
		HouseholdID:    a.householdID,
		AccountType:    t,
		Subtype:        a.subtype,
		Name:           a.name,
		OpeningBalance: copyPtr(a.openingBalance),
		OpeningRewards: copyPtr(a.openingRewards),
	})
	return a, nil
}

func validateAccountParams(t AccountType, p AccountParams) error {
	rule := accountRules[t]
	if p.HouseholdID == "" {
		return newValidationError(CodeInvalidAccountFields, "household_id", "household is required")
	}
	if _, err := normalizeName(p.Name); err != nil {
		return err
	}

	if len(rule.subtypes) == 0 {
		if p.Subtype != "" {
			return newValidationError(CodeInvalidSubtype, "subtype", "%s accounts have no subtype", t)
		}
	} else if !containsSubtype(rule.subtypes, p.Subtype) {
		return newValidationError(CodeInvalidSubtype, "subtype", "%s accounts require a subtype in %v, got %q", t, rule.subtypes, p.Subtype)
	}

	if rule.rewards {
		if p.OpeningRewards == nil {
			return newValidationError(CodeInvalidAccountFields, "opening_rewards", "rewards accounts require a rewards opening balance")
		}
		if p.OpeningBalance != nil {
			return newValidationError(CodeInvalidAccountFields, "opening_balance", "rewards accounts do not take a money opening balance")
		}
	} else {
		if p.OpeningBalance == nil {
			return newValidationError(CodeInvalidAccountFields, "opening_balance", "%s accounts require an opening balance", t)
		}
		if err := p.OpeningBalance.Currency().Validate(); err != nil {
			return err
		}
		if p.OpeningRewards != nil {
			return newValidationError(CodeInvalidAccountFields, "opening_rewards", "only rewards accounts take a rewards balance")
		}
	}

	if rule.creditLimit {
		if p.CreditLimit == nil {
			return newValidationError(CodeInvalidAccountFields, "credit_limit", "credit cards require a credit limit")
		}
		if !p.CreditLimit.IsPositive() {
			return newValidationError(CodeInvalidAccountFields, "credit_limit", "credit limit must be positive")
		}
		if p.CreditLimit.Currency() != p.OpeningBalance.Currency() {
			return newValidationError(CodeCurrencyMismatch, "credit_limit", "credit limit currency %s differs from account currency %s", p.CreditLimit.Currency(), p.OpeningBalance.Currency())
		}
	} else if p.CreditLimit != nil {
		return newValidationError(CodeInvalidAccountFields, "credit_limit", "only credit cards take a credit limit")
	}

	if rule.loanTerms {
		if p.APR == nil {
			return newValidationError(CodeInvalidAccountFields, "apr", "loans require an APR")
		}
		if p.APR.IsNegative() || p.APR.GreaterThan(decimal.NewFromInt(100)) {
			return newValidationError(CodeInvalidAccountFields, "apr", "APR must be between 0 and 100")
		}
		if p.TermMonths != nil && *p.TermMonths <= 0 {
			return newValidationError(CodeInvalidAccountFields, "term_months", "term must be a positive number of months")
		}
	} else {
		if p.APR != nil {
			return newValidationError(CodeInvalidAccountFields, "apr", "only loans take an APR")
		}
		if p.TermMonths != nil {
			return newValidationError(CodeInvalidAccountFields, "term_months", "only loans take a term")
		}
	}

	if p.Institution != nil && strings.TrimSpace(p.Institution.Name) == "" {
		return newValidationError(CodeInvalidAccountFields, "institution", "institution name is required when institution is set")
	}
	return nil
}

func containsSubtype(list []AccountSubtype, s AccountSubtype) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newValidationError(CodeInvalidName, "name", "name cannot be empty")
	}
	if len(name) > maxNameLength {
		return "", newValidationError(CodeInvalidName, "name", "name too long (max %d characters)", maxNameLength)
	}
	return name, nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (a *Account) ID() AccountID                   { return a.id }
func (a *Account) HouseholdID() HouseholdID        { return a.householdID }
func (a *Account) Type() AccountType               { return a.accountType }
func (a *Account) Subtype() AccountSubtype         { return a.subtype }
func (a *Account) Name() string                    { return a.name }
func (a *Account) Status() AccountStatus           { return a.status }
func (a *Account) IsClosed() bool                  { return a.status == AccountStatusClosed }
func (a *Account) Institution() *Institution       { return copyPtr(a.institution) }
func (a *Account) CreditLimit() *Money             { return copyPtr(a.creditLimit) }
func (a *Account) APR() *decimal.Decimal           { return copyPtr(a.apr) }
func (a *Account) TermMonths() *int                { return copyPtr(a.termMonths) }
func (a *Account) CreatedAt() time.Time            { return a.createdAt }
func (a *Account) UpdatedAt() time.Time            { return a.updatedAt }
func (a *Account) OpeningBalance() *Money          { return copyPtr(a.openingBalance) }
func (a *Account) OpeningRewards() *RewardsBalance { return copyPtr(a.openingRewards) }

// Currency is the account's money currency; empty for rewards accounts.
func (a *Account) Currency() Currency {
	if a.openingBalance == nil {
		return ""
	}
	return a.openingBalance.Currency()
}

// Close marks the account closed. Closing twice is a rule violation.
func (a *Account) Close() error {
	if a.status == AccountStatusClosed {
		return newRuleError(CodeAccountAlreadyClosed, "account %s is already closed", a.id)
	}
	a.status = AccountStatusClosed
	a.updatedAt = now()
	a.record(AccountClosed{EventMeta: meta(string(a.id))})
	return nil
}

// Reopen reverses Close.
func (a *Account) Reopen() error {
	if a.status != AccountStatusClosed {
		return newRuleError(CodeAccountNotClosed, "account %s is not closed", a.id)
	}
	a.status = AccountStatusOpen
	a.updatedAt = now()
	a.record(AccountReopened{EventMeta: meta(string(a.id))})
	return nil
}

// UpdateName renames the account. Renaming to the current name is a no-op.
func (a *Account) UpdateName(newName string) error {
	name, err := normalizeName(newName)
	if err != nil {
		return err
	}
	if name == a.name {
		return nil
	}
	old := a.name
	a.name = name
	a.updatedAt = now()
	a.record(AccountUpdated{
		EventMeta:   meta(string(a.id)),
		FieldChange: FieldChange{Field: "name", OldValue: old, NewValue: name},
	})
	return nil
}

// UpdateInstitution replaces the institution metadata; nil clears it.
func (a *Account) UpdateInstitution(inst *Institution) error {
	if inst != nil && strings.TrimSpace(inst.Name) == "" {
		return newValidationError(CodeInvalidAccountFields, "institution", "institution name is required when institution is set")
	}
	old, updated := "", ""
	if a.institution != nil {
		old = a.institution.Name
	}
	if inst != nil {
		updated = inst.Name
	}
	a.institution = copyPtr(inst)
	a.updatedAt = now()
	a.record(AccountUpdated{
		EventMeta:   meta(string(a.id)),
		FieldChange: FieldChange{Field: "institution", OldValue: old, NewValue: updated},
	})
	return nil
}

// AvailableCredit is limit + balance for a credit card, where balance is the
// derived account balance (negative while money is owed).
func (a *Account) AvailableCredit(balance Money) (Money, error) {
	if a.accountType != AccountCreditCard || a.creditLimit == nil {
		return Money{}, newRuleError(CodeNotACreditCard, "account %s is a %s account", a.id, a.accountType)
	}
	return a.creditLimit.Add(balance)
}

// AccountState is the persisted shape of an Account.
type AccountState struct {
	ID             AccountID
	HouseholdID    HouseholdID
	Type           AccountType
	Subtype        AccountSubtype
	Name           string
	Status         AccountStatus
	OpeningBalance *Money
	OpeningRewards *RewardsBalance
	CreditLimit    *Money
	APR            *decimal.Decimal
	TermMonths     *int
	Institution    *Institution
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// State snapshots the account for persistence. Pending events are not part
// of the state.
func (a *Account) State() AccountState {
	return AccountState{
		ID:             a.id,
		HouseholdID:    a.householdID,
		Type:           a.accountType,
		Subtype:        a.subtype,
		Name:           a.name,
		Status:         a.status,
		OpeningBalance: copyPtr(a.openingBalance),
		OpeningRewards: copyPtr(a.openingRewards),
		CreditLimit:    copyPtr(a.creditLimit),
		APR:            copyPtr(a.apr),
		TermMonths:     copyPtr(a.termMonths),
		Institution:    copyPtr(a.institution),
		CreatedAt:      a.createdAt,
		UpdatedAt:      a.updatedAt,
	}
}

// RestoreAccount rebuilds an account loaded from storage. No events are
// recorded.
func RestoreAccount(s AccountState) *Account {
	return &Account{
		id:             s.ID,
		householdID:    s.HouseholdID,
		accountType:    s.Type,
		subtype:        s.Subtype,
		name:           s.Name,
		status:         s.Status,
		openingBalance: copyPtr(s.OpeningBalance),
		openingRewards: copyPtr(s.OpeningRewards),
		creditLimit:    copyPtr(s.CreditLimit),
		apr:            copyPtr(s.APR),
		termMonths:     copyPtr(s.TermMonths),
		institution:    copyPtr(s.Institution),
		createdAt:      s.CreatedAt,
		updatedAt:      s.UpdatedAt,
	}
}

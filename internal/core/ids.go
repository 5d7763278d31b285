package core

import (
	"strings"

	"github.com/google/uuid"
)

// Entity ids are "<prefix>_<uuidv7>". UUIDv7 carries a millisecond timestamp
// in its leading bits, so ids of one kind sort by creation time.
type (
	AccountID     string
	TransactionID string
	CategoryID    string
	PayeeID       string
	HouseholdID   string
	UserID        string
)

const (
	accountPrefix     = "acct"
	transactionPrefix = "txn"
	categoryPrefix    = "cat"
	payeePrefix       = "payee"
	householdPrefix   = "hh"
	userPrefix        = "user"
)

func newID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		id = uuid.New()
	}
	return prefix + "_" + id.String()
}

func parseID(prefix, s string) (string, error) {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return "", newValidationError(CodeInvalidID, prefix, "id %q must start with %q", s, prefix+"_")
	}
	if _, err := uuid.Parse(rest); err != nil {
		return "", newValidationError(CodeInvalidID, prefix, "id %q is malformed", s)
	}
	return s, nil
}

func NewAccountID() AccountID         { return AccountID(newID(accountPrefix)) }
func NewTransactionID() TransactionID { return TransactionID(newID(transactionPrefix)) }
func NewCategoryID() CategoryID       { return CategoryID(newID(categoryPrefix)) }
func NewPayeeID() PayeeID             { return PayeeID(newID(payeePrefix)) }
func NewHouseholdID() HouseholdID     { return HouseholdID(newID(householdPrefix)) }
func NewUserID() UserID               { return UserID(newID(userPrefix)) }

func ParseAccountID(s string) (AccountID, error) {
	id, err := parseID(accountPrefix, s)
	return AccountID(id), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	id, err := parseID(transactionPrefix, s)
	return TransactionID(id), err
}

func ParseCategoryID(s string) (CategoryID, error) {
	id, err := parseID(categoryPrefix, s)
	return CategoryID(id), err
}

func ParsePayeeID(s string) (PayeeID, error) {
	id, err := parseID(payeePrefix, s)
	return PayeeID(id), err
}

func ParseHouseholdID(s string) (HouseholdID, error) {
	id, err := parseID(householdPrefix, s)
	return HouseholdID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseID(userPrefix, s)
	return UserID(id), err
}

func (id AccountID) String() string     { return string(id) }
func (id TransactionID) String() string { return string(id) }
func (id CategoryID) String() string    { return string(id) }
func (id PayeeID) String() string       { return string(id) }
func (id HouseholdID) String() string   { return string(id) }
func (id UserID) String() string        { return string(id) }

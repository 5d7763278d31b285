package core

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a specific rule violation. Codes are stable and safe to
// hand to API clients.
type ErrorCode string

const (
	// Validation codes
	CodeInvalidSplits           ErrorCode = "INVALID_SPLITS"
	CodeInvalidSplit            ErrorCode = "INVALID_SPLIT"
	CodeSelfTransfer            ErrorCode = "SELF_TRANSFER"
	CodeDuplicateTransferTarget ErrorCode = "DUPLICATE_TRANSFER_TARGET"
	CodeCurrencyMismatch        ErrorCode = "CURRENCY_MISMATCH"
	CodeUnitMismatch            ErrorCode = "UNIT_MISMATCH"
	CodeInvalidCurrency         ErrorCode = "INVALID_CURRENCY"
	CodeInvalidAmount           ErrorCode = "INVALID_AMOUNT"
	CodeInvalidAccountFields    ErrorCode = "INVALID_ACCOUNT_FIELDS"
	CodeInvalidSubtype          ErrorCode = "INVALID_SUBTYPE"
	CodeInvalidName             ErrorCode = "INVALID_NAME"
	CodeInvalidParent           ErrorCode = "INVALID_PARENT"
	CodeCategoryDepthExceeded   ErrorCode = "CATEGORY_DEPTH_EXCEEDED"
	CodeInvalidCategoryType     ErrorCode = "INVALID_CATEGORY_TYPE"
	CodeInvalidDate             ErrorCode = "INVALID_DATE"
	CodeInvalidID               ErrorCode = "INVALID_ID"
	CodeInvalidReference        ErrorCode = "INVALID_REFERENCE"
	CodeInvalidMirrorSet        ErrorCode = "INVALID_MIRROR_SET"
	CodeDuplicateName           ErrorCode = "DUPLICATE_NAME"

	// Business rule codes
	CodeSystemCategoryImmutable ErrorCode = "SYSTEM_CATEGORY_IMMUTABLE"
	CodeCategoryInUse           ErrorCode = "CATEGORY_IN_USE"
	CodeCategoryHasChildren     ErrorCode = "CATEGORY_HAS_CHILDREN"
	CodeTransactionReconciled   ErrorCode = "TRANSACTION_RECONCILED"
	CodeCannotModifyMirror      ErrorCode = "CANNOT_MODIFY_MIRROR"
	CodeCannotDeleteMirror      ErrorCode = "CANNOT_DELETE_MIRROR"
	CodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	CodeAccountAlreadyClosed    ErrorCode = "ACCOUNT_ALREADY_CLOSED"
	CodeAccountNotClosed        ErrorCode = "ACCOUNT_NOT_CLOSED"
	CodeAccountClosed           ErrorCode = "ACCOUNT_CLOSED"
	CodeNotACreditCard          ErrorCode = "NOT_A_CREDIT_CARD"
	CodeRewardsAccount          ErrorCode = "REWARDS_ACCOUNT"

	CodeNotFound ErrorCode = "NOT_FOUND"
)

// Sentinels for errors.Is checks against the three error kinds.
var (
	ErrValidation   = errors.New("validation error")
	ErrBusinessRule = errors.New("business rule violation")
	ErrNotFound     = errors.New("entity not found")
)

// ValidationError reports a structural invariant violation. It is always
// returned before any state has been changed.
type ValidationError struct {
	Code    ErrorCode
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// BusinessRuleViolationError reports an operation that is structurally valid
// but forbidden by the current state of the aggregate.
type BusinessRuleViolationError struct {
	Code    ErrorCode
	Message string
}

func (e *BusinessRuleViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessRuleViolationError) Unwrap() error { return ErrBusinessRule }

// EntityNotFoundError is returned by repositories when an id does not resolve.
type EntityNotFoundError struct {
	Entity string
	ID     string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *EntityNotFoundError) Unwrap() error { return ErrNotFound }

func newValidationError(code ErrorCode, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

func newRuleError(code ErrorCode, format string, args ...any) *BusinessRuleViolationError {
	return &BusinessRuleViolationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError builds the error repositories return for unknown ids.
func NewNotFoundError(entity, id string) *EntityNotFoundError {
	return &EntityNotFoundError{Entity: entity, ID: id}
}

// NewInvalidReferenceError wraps a failed reference lookup as a validation
// error so callers can answer with a client error instead of a server error.
func NewInvalidReferenceError(field string, cause error) *ValidationError {
	return &ValidationError{
		Code:    CodeInvalidReference,
		Field:   field,
		Message: cause.Error(),
	}
}

// NewDuplicatePayeeError reports that another payee of the household already
// matches name once normalized.
func NewDuplicatePayeeError(name string) *ValidationError {
	return newValidationError(CodeDuplicateName, "name", "a payee named %q already exists", name)
}

// CodeOf returns the code carried by err, or "" when err is not a domain error.
func CodeOf(err error) ErrorCode {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var be *BusinessRuleViolationError
	if errors.As(err, &be) {
		return be.Code
	}
	var ne *EntityNotFoundError
	if errors.As(err, &ne) {
		return CodeNotFound
	}
	return ""
}

// HasCode reports whether err (or anything it wraps) carries code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

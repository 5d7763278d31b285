package core

// SplitLine is one leg of a transaction: a signed amount assigned to exactly
// one category or to exactly one transfer account. Splits belong to their
// transaction and are never stored on their own.
type SplitLine struct {
	amount            Money
	categoryID        CategoryID
	transferAccountID AccountID
	memo              string

	// mirrorID is set on transfer splits of a source transaction once the
	// mirror on the target account exists.
	mirrorID TransactionID
}

// NewSplitLine validates that exactly one of categoryID and transferAccountID
// is set.
func NewSplitLine(amount Money, categoryID CategoryID, transferAccountID AccountID, memo string) (SplitLine, error) {
	s := SplitLine{
		amount:            amount,
		categoryID:        categoryID,
		transferAccountID: transferAccountID,
		memo:              memo,
	}
	if err := s.validate(); err != nil {
		return SplitLine{}, err
	}
	return s, nil
}

// NewCategorySplit assigns amount to a category.
func NewCategorySplit(amount Money, categoryID CategoryID) (SplitLine, error) {
	return NewSplitLine(amount, categoryID, "", "")
}

// NewTransferSplit moves amount to another account.
func NewTransferSplit(amount Money, accountID AccountID) (SplitLine, error) {
	return NewSplitLine(amount, "", accountID, "")
}

func (s SplitLine) validate() error {
	switch {
	case s.categoryID != "" && s.transferAccountID != "":
		return newValidationError(CodeInvalidSplit, "splits", "a split cannot have both a category and a transfer account")
	case s.categoryID == "" && s.transferAccountID == "":
		return newValidationError(CodeInvalidSplit, "splits", "a split needs a category or a transfer account")
	}
	return s.amount.currency.Validate()
}

func (s SplitLine) Amount() Money                      { return s.amount }
func (s SplitLine) CategoryID() CategoryID             { return s.categoryID }
func (s SplitLine) TransferAccountID() AccountID       { return s.transferAccountID }
func (s SplitLine) Memo() string                       { return s.memo }
func (s SplitLine) IsTransfer() bool                   { return s.transferAccountID != "" }
func (s SplitLine) MirrorTransactionID() TransactionID { return s.mirrorID }

// SplitLineState is the persisted shape of a SplitLine.
type SplitLineState struct {
	Amount              Money
	CategoryID          CategoryID
	TransferAccountID   AccountID
	Memo                string
	MirrorTransactionID TransactionID
}

func (s SplitLine) State() SplitLineState {
	return SplitLineState{
		Amount:              s.amount,
		CategoryID:          s.categoryID,
		TransferAccountID:   s.transferAccountID,
		Memo:                s.memo,
		MirrorTransactionID: s.mirrorID,
	}
}

func restoreSplit(s SplitLineState) SplitLine {
	return SplitLine{
		amount:            s.Amount,
		categoryID:        s.CategoryID,
		transferAccountID: s.TransferAccountID,
		memo:              s.Memo,
		mirrorID:          s.MirrorTransactionID,
	}
}

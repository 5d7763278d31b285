package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !HasCode(err, CodeInvalidDate) {
			t.Fatalf("case %d expected INVALID_DATE, got %v", i, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil || !d.Equal(NewDate(2025, 3, 9)) {
		t.Fatalf("got %v err=%v", d, err)
	}
	for _, bad := range []string{"", "2025/03/09", "09-03-2025", "2025-13-01"} {
		if _, err := ParseDate(bad); !HasCode(err, CodeInvalidDate) {
			t.Fatalf("%q expected INVALID_DATE, got %v", bad, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	type wrap struct {
		D Date `json:"d"`
	}
	data, _ := json.Marshal(wrap{D: NewDate(2025, 1, 2)})
	if string(data) != `{"d":"2025-01-02"}` {
		t.Fatalf("got %s", data)
	}
	data, _ = json.Marshal(wrap{})
	if string(data) != `{"d":null}` {
		t.Fatalf("zero date should be null, got %s", data)
	}
	var w wrap
	if err := json.Unmarshal([]byte(`{"d":"2024-02-29"}`), &w); err != nil || w.D.Day() != 29 {
		t.Fatalf("unmarshal: %v %v", w.D, err)
	}
}

func TestIDs(t *testing.T) {
	a := NewAccountID()
	if !strings.HasPrefix(a.String(), "acct_") {
		t.Fatalf("unexpected account id %s", a)
	}
	if _, err := ParseAccountID(a.String()); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if _, err := ParseTransactionID(a.String()); !HasCode(err, CodeInvalidID) {
		t.Fatalf("account id parsed as transaction id: %v", err)
	}
	if _, err := ParseCategoryID("cat_not-a-uuid"); !HasCode(err, CodeInvalidID) {
		t.Fatalf("expected INVALID_ID, got %v", err)
	}
	if NewPayeeID() == NewPayeeID() {
		t.Fatalf("ids must be unique")
	}
	// UUIDv7 ids generated later sort later.
	first := NewTransactionID()
	time.Sleep(2 * time.Millisecond)
	second := NewTransactionID()
	if !(first < second) {
		t.Fatalf("expected %s < %s", first, second)
	}
}

func TestErrorKinds(t *testing.T) {
	var err error = newValidationError(CodeInvalidSplits, "splits", "bad")
	if !errors.Is(err, ErrValidation) || errors.Is(err, ErrBusinessRule) {
		t.Fatalf("validation error kind wrong")
	}
	err = newRuleError(CodeCategoryInUse, "in use")
	if !errors.Is(err, ErrBusinessRule) || CodeOf(err) != CodeCategoryInUse {
		t.Fatalf("rule error kind wrong")
	}
	err = NewNotFoundError("account", "acct_x")
	if !errors.Is(err, ErrNotFound) || CodeOf(err) != CodeNotFound {
		t.Fatalf("not found kind wrong")
	}
	ref := NewInvalidReferenceError("account_id", err)
	if ref.Code != CodeInvalidReference || !errors.Is(ref, ErrValidation) {
		t.Fatalf("invalid reference wrong: %v", ref)
	}
	if CodeOf(errors.New("plain")) != "" || HasCode(nil, CodeNotFound) {
		t.Fatalf("plain errors carry no code")
	}
}

package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePayeeName(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"Starbucks", "starbucks"},
		{"  STARBUCKS  ", "starbucks"},
		{"Café   du  Monde", "café du monde"},
	}
	for _, tc := range cases {
		if got := NormalizePayeeName(tc.in); got != tc.out {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.out, got)
		}
	}
}

func TestPayeeLifecycle(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = restore })

	p, err := NewPayee(testHousehold, "  Corner   Store ")
	require.NoError(t, err)
	assert.Equal(t, "Corner Store", p.Name())
	assert.Equal(t, "corner store", p.NormalizedName())

	p.RecordUsage()
	p.RecordUsage()
	assert.Equal(t, 2, p.UsageCount())
	assert.Equal(t, fixed, p.LastUsedAt())

	require.NoError(t, p.UpdateName("CORNER STORE #2"))
	assert.Equal(t, "corner store #2", p.NormalizedName())

	cat := NewCategoryID()
	require.NoError(t, p.SetDefaultCategory(cat))
	assert.Equal(t, cat, p.DefaultCategoryID())
	assert.Equal(t, CodeInvalidReference, CodeOf(p.SetDefaultCategory("")))
	p.ClearDefaultCategory()
	assert.Empty(t, p.DefaultCategoryID())

	var names []string
	for _, e := range p.DrainEvents() {
		names = append(names, e.EventName())
	}
	assert.Equal(t, []string{
		EventPayeeCreated, EventPayeeUsed, EventPayeeUsed,
		EventPayeeUpdated, EventPayeeUpdated, EventPayeeUpdated,
	}, names)

	_, err = NewPayee(testHousehold, "   ")
	assert.Equal(t, CodeInvalidName, CodeOf(err))
}

func TestRestorePayeeDerivesKey(t *testing.T) {
	p := RestorePayee(PayeeState{ID: NewPayeeID(), HouseholdID: testHousehold, Name: "ACME Corp", UsageCount: 4})
	assert.Equal(t, "acme corp", p.NormalizedName())
	assert.Equal(t, 4, p.UsageCount())
	assert.Empty(t, p.PendingEvents())
}

func TestMissingHouseholdIsInvalidReference(t *testing.T) {
	_, err := NewPayee("", "Corner Store")
	assert.Equal(t, CodeInvalidReference, CodeOf(err))

	_, err = NewCategory("", "Food", CategoryExpense, nil)
	assert.Equal(t, CodeInvalidReference, CodeOf(err))

	_, err = NewSystemCategory("", UncategorizedName, CategoryExpense)
	assert.Equal(t, CodeInvalidReference, CodeOf(err))
}

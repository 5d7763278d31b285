package core

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// NormalizePayeeName returns the matching key for a payee name: Unicode case
// folded with runs of whitespace collapsed. "  Café  DU Monde" and
// "café du monde" share a key.
func NormalizePayeeName(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// Payee tracks a display name plus usage statistics for autocomplete.
type Payee struct {
	recorder

	id                PayeeID
	householdID       HouseholdID
	name              string
	normalizedName    string
	defaultCategoryID CategoryID
	usageCount        int
	lastUsedAt        time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

func NewPayee(householdID HouseholdID, name string) (*Payee, error) {
	if householdID == "" {
		return nil, newValidationError(CodeInvalidReference, "household_id", "household is required")
	}
	display, err := normalizeName(strings.Join(strings.Fields(name), " "))
	if err != nil {
		return nil, err
	}
	ts := now()
	p := &Payee{
		id:             NewPayeeID(),
		householdID:    householdID,
		name:           display,
		normalizedName: NormalizePayeeName(display),
		createdAt:      ts,
		updatedAt:      ts,
	}
	p.record(PayeeCreated{
		EventMeta:   meta(string(p.id)),
		HouseholdID: householdID,
		Name:        display,
	})
	return p, nil
}

func (p *Payee) ID() PayeeID                   { return p.id }
func (p *Payee) HouseholdID() HouseholdID      { return p.householdID }
func (p *Payee) Name() string                  { return p.name }
func (p *Payee) NormalizedName() string        { return p.normalizedName }
func (p *Payee) DefaultCategoryID() CategoryID { return p.defaultCategoryID }
func (p *Payee) UsageCount() int               { return p.usageCount }
func (p *Payee) LastUsedAt() time.Time         { return p.lastUsedAt }
func (p *Payee) CreatedAt() time.Time          { return p.createdAt }
func (p *Payee) UpdatedAt() time.Time          { return p.updatedAt }

// UpdateName changes the display form and recomputes the matching key.
func (p *Payee) UpdateName(newName string) error {
	display, err := normalizeName(strings.Join(strings.Fields(newName), " "))
	if err != nil {
		return err
	}
	if display == p.name {
		return nil
	}
	old := p.name
	p.name = display
	p.normalizedName = NormalizePayeeName(display)
	p.updatedAt = now()
	p.record(PayeeUpdated{
		EventMeta:   meta(string(p.id)),
		FieldChange: FieldChange{Field: "name", OldValue: old, NewValue: display},
	})
	return nil
}

// RecordUsage is called once per transaction that references the payee.
func (p *Payee) RecordUsage() {
	ts := now()
	p.usageCount++
	p.lastUsedAt = ts
	p.updatedAt = ts
	p.record(PayeeUsed{
		EventMeta:  meta(string(p.id)),
		UsageCount: p.usageCount,
		LastUsedAt: ts,
	})
}

func (p *Payee) SetDefaultCategory(id CategoryID) error {
	if id == "" {
		return newValidationError(CodeInvalidReference, "default_category_id", "category id is required")
	}
	p.setDefault(id)
	return nil
}

func (p *Payee) ClearDefaultCategory() {
	p.setDefault("")
}

func (p *Payee) setDefault(id CategoryID) {
	if id == p.defaultCategoryID {
		return
	}
	old := p.defaultCategoryID
	p.defaultCategoryID = id
	p.updatedAt = now()
	p.record(PayeeUpdated{
		EventMeta:   meta(string(p.id)),
		FieldChange: FieldChange{Field: "default_category_id", OldValue: string(old), NewValue: string(id)},
	})
}

// PayeeState is the persisted shape of a Payee.
type PayeeState struct {
	ID                PayeeID
	HouseholdID       HouseholdID
	Name              string
	DefaultCategoryID CategoryID
	UsageCount        int
	LastUsedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Payee) State() PayeeState {
	return PayeeState{
		ID:                p.id,
		HouseholdID:       p.householdID,
		Name:              p.name,
		DefaultCategoryID: p.defaultCategoryID,
		UsageCount:        p.usageCount,
		LastUsedAt:        p.lastUsedAt,
		CreatedAt:         p.createdAt,
		UpdatedAt:         p.updatedAt,
	}
}

// RestorePayee rebuilds a payee from storage; the matching key is derived.
func RestorePayee(s PayeeState) *Payee {
	return &Payee{
		id:                s.ID,
		householdID:       s.HouseholdID,
		name:              s.Name,
		normalizedName:    NormalizePayeeName(s.Name),
		defaultCategoryID: s.DefaultCategoryID,
		usageCount:        s.UsageCount,
		lastUsedAt:        s.LastUsedAt,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
}

package core

import (
	"sort"
	"strconv"
	"time"
)

type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

func (t CategoryType) Validate() error {
	switch t {
	case CategoryIncome, CategoryExpense:
		return nil
	default:
		return newValidationError(CodeInvalidCategoryType, "type", "category type must be income or expense, got %q", t)
	}
}

// UncategorizedName is the system category every household owns.
const UncategorizedName = "Uncategorized"

// Category belongs to a two-level hierarchy: a category with a parent can
// never itself be a parent. System categories are immutable.
type Category struct {
	recorder

	id          CategoryID
	householdID HouseholdID
	name        string
	catType     CategoryType
	parentID    CategoryID
	isSystem    bool
	sortOrder   int
	hidden      bool
	createdAt   time.Time
	updatedAt   time.Time
}

// NewCategory creates a user category. parent may be nil for a top-level
// category; otherwise it must be a top-level category of the same household
// and type.
func NewCategory(householdID HouseholdID, name string, t CategoryType, parent *Category) (*Category, error) {
	return newCategory(householdID, name, t, parent, false)
}

// NewSystemCategory creates a protected category. It is used only when a
// household is bootstrapped.
func NewSystemCategory(householdID HouseholdID, name string, t CategoryType) (*Category, error) {
	return newCategory(householdID, name, t, nil, true)
}

func newCategory(householdID HouseholdID, name string, t CategoryType, parent *Category, system bool) (*Category, error) {
	if householdID == "" {
		return nil, newValidationError(CodeInvalidReference, "household_id", "household is required")
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	id := NewCategoryID()
	if parent != nil {
		if err := checkParent(id, householdID, t, parent); err != nil {
			return nil, err
		}
	}
	ts := now()
	c := &Category{
		id:          id,
		householdID: householdID,
		name:        name,
		catType:     t,
		isSystem:    system,
		createdAt:   ts,
		updatedAt:   ts,
	}
	if parent != nil {
		c.parentID = parent.id
	}
	c.record(CategoryCreated{
		EventMeta:   meta(string(c.id)),
		HouseholdID: householdID,
		Name:        name,
		Type:        t,
		ParentID:    c.parentID,
		IsSystem:    system,
	})
	return c, nil
}

func checkParent(self CategoryID, householdID HouseholdID, t CategoryType, parent *Category) error {
	if parent.id == self {
		return newValidationError(CodeInvalidParent, "parent_id", "a category cannot be its own parent")
	}
	if parent.householdID != householdID {
		return newValidationError(CodeInvalidParent, "parent_id", "parent belongs to another household")
	}
	if parent.catType != t {
		return newValidationError(CodeInvalidParent, "parent_id", "parent is an %s category, child is %s", parent.catType, t)
	}
	if parent.parentID != "" {
		return newValidationError(CodeCategoryDepthExceeded, "parent_id", "categories nest at most two levels deep")
	}
	return nil
}

func (c *Category) ID() CategoryID           { return c.id }
func (c *Category) HouseholdID() HouseholdID { return c.householdID }
func (c *Category) Name() string             { return c.name }
func (c *Category) Type() CategoryType       { return c.catType }
func (c *Category) ParentID() CategoryID     { return c.parentID }
func (c *Category) HasParent() bool          { return c.parentID != "" }
func (c *Category) IsSystem() bool           { return c.isSystem }
func (c *Category) SortOrder() int           { return c.sortOrder }
func (c *Category) IsHidden() bool           { return c.hidden }
func (c *Category) CreatedAt() time.Time     { return c.createdAt }
func (c *Category) UpdatedAt() time.Time     { return c.updatedAt }

func (c *Category) guardSystem() error {
	if c.isSystem {
		return newRuleError(CodeSystemCategoryImmutable, "system category %q cannot be modified", c.name)
	}
	return nil
}

func (c *Category) changed(field, old, updated string) {
	c.updatedAt = now()
	c.record(CategoryUpdated{
		EventMeta:   meta(string(c.id)),
		FieldChange: FieldChange{Field: field, OldValue: old, NewValue: updated},
	})
}

func (c *Category) UpdateName(newName string) error {
	if err := c.guardSystem(); err != nil {
		return err
	}
	name, err := normalizeName(newName)
	if err != nil {
		return err
	}
	if name == c.name {
		return nil
	}
	old := c.name
	c.name = name
	c.changed("name", old, name)
	return nil
}

// UpdateParent moves the category under parent, or to the top level when
// parent is nil. Whether the category currently has children of its own is
// only known to the repository, so callers check that first.
func (c *Category) UpdateParent(parent *Category) error {
	if err := c.guardSystem(); err != nil {
		return err
	}
	var newParent CategoryID
	if parent != nil {
		if err := checkParent(c.id, c.householdID, c.catType, parent); err != nil {
			return err
		}
		newParent = parent.id
	}
	if newParent == c.parentID {
		return nil
	}
	old := c.parentID
	c.parentID = newParent
	c.changed("parent_id", string(old), string(newParent))
	return nil
}

func (c *Category) UpdateSortOrder(order int) error {
	if err := c.guardSystem(); err != nil {
		return err
	}
	if order == c.sortOrder {
		return nil
	}
	old := c.sortOrder
	c.sortOrder = order
	c.changed("sort_order", strconv.Itoa(old), strconv.Itoa(order))
	return nil
}

func (c *Category) Hide() error {
	if err := c.guardSystem(); err != nil {
		return err
	}
	if c.hidden {
		return nil
	}
	c.hidden = true
	c.changed("hidden", "false", "true")
	return nil
}

func (c *Category) Unhide() error {
	if err := c.guardSystem(); err != nil {
		return err
	}
	if !c.hidden {
		return nil
	}
	c.hidden = false
	c.changed("hidden", "true", "false")
	return nil
}

// Delete records the deletion. System categories refuse; whether any
// transaction still references a user category is checked by the caller.
func (c *Category) Delete() error {
	if err := c.guardSystem(); err != nil {
		return err
	}
	c.record(CategoryDeleted{
		EventMeta:   meta(string(c.id)),
		HouseholdID: c.householdID,
		Name:        c.name,
	})
	return nil
}

// CategoryNode is a top-level category with its children.
type CategoryNode struct {
	Category *Category
	Children []*Category
}

// BuildCategoryTree groups categories into the two-level tree, ordering both
// levels by sort order then name. Children whose parent is missing are
// promoted to the top level.
func BuildCategoryTree(categories []*Category) []CategoryNode {
	byID := make(map[CategoryID]int)
	var roots []*Category
	for _, c := range categories {
		if !c.HasParent() {
			roots = append(roots, c)
		}
	}
	sortCategories(roots)
	for i, c := range roots {
		byID[c.id] = i
	}

	nodes := make([]CategoryNode, len(roots))
	for i, c := range roots {
		nodes[i].Category = c
	}
	var orphans []*Category
	for _, c := range categories {
		if !c.HasParent() {
			continue
		}
		idx, ok := byID[c.parentID]
		if !ok {
			orphans = append(orphans, c)
			continue
		}
		nodes[idx].Children = append(nodes[idx].Children, c)
	}
	for i := range nodes {
		sortCategories(nodes[i].Children)
	}
	sortCategories(orphans)
	for _, c := range orphans {
		nodes = append(nodes, CategoryNode{Category: c})
	}
	return nodes
}

func sortCategories(cs []*Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].sortOrder != cs[j].sortOrder {
			return cs[i].sortOrder < cs[j].sortOrder
		}
		return cs[i].name < cs[j].name
	})
}

// CategoryState is the persisted shape of a Category.
type CategoryState struct {
	ID          CategoryID
	HouseholdID HouseholdID
	Name        string
	Type        CategoryType
	ParentID    CategoryID
	IsSystem    bool
	SortOrder   int
	Hidden      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Category) State() CategoryState {
	return CategoryState{
		ID:          c.id,
		HouseholdID: c.householdID,
		Name:        c.name,
		Type:        c.catType,
		ParentID:    c.parentID,
		IsSystem:    c.isSystem,
		SortOrder:   c.sortOrder,
		Hidden:      c.hidden,
		CreatedAt:   c.createdAt,
		UpdatedAt:   c.updatedAt,
	}
}

func RestoreCategory(s CategoryState) *Category {
	return &Category{
		id:          s.ID,
		householdID: s.HouseholdID,
		name:        s.Name,
		catType:     s.Type,
		parentID:    s.ParentID,
		isSystem:    s.IsSystem,
		sortOrder:   s.SortOrder,
		hidden:      s.Hidden,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
	}
}

// Package memory is an in-process implementation of the repository ports,
// used by tests and by the memory data backend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/galexy/revivo-mk1-sub001/internal/core"
	"github.com/galexy/revivo-mk1-sub001/internal/repository"
)

// Store keeps aggregate states in maps. WithinTx works on a copy of the
// maps and swaps it in on success, so a failed unit of work leaves no trace.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

type dataset struct {
	accounts     map[core.AccountID]core.AccountState
	transactions map[core.TransactionID]core.TransactionState
	categories   map[core.CategoryID]core.CategoryState
	payees       map[core.PayeeID]core.PayeeState
}

func New() *Store {
	return &Store{data: &dataset{
		accounts:     map[core.AccountID]core.AccountState{},
		transactions: map[core.TransactionID]core.TransactionState{},
		categories:   map[core.CategoryID]core.CategoryState{},
		payees:       map[core.PayeeID]core.PayeeState{},
	}}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		accounts:     cloneMap(d.accounts),
		transactions: cloneMap(d.transactions),
		categories:   cloneMap(d.categories),
		payees:       cloneMap(d.payees),
	}
}

// States are replaced on save, never mutated in place, so a shallow copy is
// enough.
func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// WithinTx serializes units of work behind a single mutex.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(&unitOfWork{d: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Close() error { return nil }

type unitOfWork struct {
	d *dataset
}

func (u *unitOfWork) Accounts() repository.AccountRepository         { return accounts{u.d} }
func (u *unitOfWork) Transactions() repository.TransactionRepository { return transactions{u.d} }
func (u *unitOfWork) Categories() repository.CategoryRepository     { return categories{u.d} }
func (u *unitOfWork) Payees() repository.PayeeRepository             { return payees{u.d} }

type accounts struct{ d *dataset }

func (r accounts) GetByID(_ context.Context, id core.AccountID) (*core.Account, error) {
	st, ok := r.d.accounts[id]
	if !ok {
		return nil, core.NewNotFoundError("account", string(id))
	}
	return core.RestoreAccount(st), nil
}

func (r accounts) ListByHousehold(_ context.Context, householdID core.HouseholdID) ([]*core.Account, error) {
	var out []*core.Account
	for _, st := range r.d.accounts {
		if st.HouseholdID == householdID {
			out = append(out, core.RestoreAccount(st))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

func (r accounts) Save(_ context.Context, a *core.Account) error {
	r.d.accounts[a.ID()] = a.State()
	return nil
}

type transactions struct{ d *dataset }

func (r transactions) GetByID(_ context.Context, id core.TransactionID) (*core.Transaction, error) {
	st, ok := r.d.transactions[id]
	if !ok {
		return nil, core.NewNotFoundError("transaction", string(id))
	}
	return core.RestoreTransaction(st), nil
}

func (r transactions) ListByAccount(_ context.Context, accountID core.AccountID, f repository.TransactionFilter) ([]*core.Transaction, error) {
	var matched []core.TransactionState
	for _, st := range r.d.transactions {
		if st.AccountID == accountID && matches(st, f) {
			matched = append(matched, st)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.Before(b.EffectiveDate.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	matched = page(matched, f.Offset, f.Limit)
	out := make([]*core.Transaction, len(matched))
	for i, st := range matched {
		out[i] = core.RestoreTransaction(st)
	}
	return out, nil
}

func matches(st core.TransactionState, f repository.TransactionFilter) bool {
	if !f.From.IsEmpty() && st.EffectiveDate.Before(f.From.Time) {
		return false
	}
	if !f.To.IsEmpty() && st.EffectiveDate.After(f.To.Time) {
		return false
	}
	if f.PayeeID != "" && st.PayeeID != f.PayeeID {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(st.Memo), needle) &&
			!strings.Contains(strings.ToLower(st.PayeeName), needle) {
			return false
		}
	}
	return true
}

func page[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (r transactions) FindMirror(ctx context.Context, id core.TransactionID) (*core.Transaction, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	other := t.MirrorTransactionID()
	if other == "" {
		return nil, core.NewNotFoundError("mirror transaction", string(id))
	}
	return r.GetByID(ctx, other)
}

func (r transactions) FindMirrors(_ context.Context, sourceID core.TransactionID) ([]*core.Transaction, error) {
	var out []*core.Transaction
	for _, st := range r.d.transactions {
		if st.IsMirror && st.SourceTransactionID == sourceID {
			out = append(out, core.RestoreTransaction(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (r transactions) CountByCategory(_ context.Context, categoryID core.CategoryID) (int, error) {
	n := 0
	for _, st := range r.d.transactions {
		for _, s := range st.Splits {
			if s.CategoryID == categoryID {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r transactions) Save(_ context.Context, t *core.Transaction) error {
	r.d.transactions[t.ID()] = t.State()
	return nil
}

func (r transactions) Delete(_ context.Context, id core.TransactionID) error {
	if _, ok := r.d.transactions[id]; !ok {
		return core.NewNotFoundError("transaction", string(id))
	}
	delete(r.d.transactions, id)
	return nil
}

type categories struct{ d *dataset }

func (r categories) GetByID(_ context.Context, id core.CategoryID) (*core.Category, error) {
	st, ok := r.d.categories[id]
	if !ok {
		return nil, core.NewNotFoundError("category", string(id))
	}
	return core.RestoreCategory(st), nil
}

func (r categories) GetTree(_ context.Context, householdID core.HouseholdID) ([]core.CategoryNode, error) {
	var list []*core.Category
	for _, st := range r.d.categories {
		if st.HouseholdID == householdID {
			list = append(list, core.RestoreCategory(st))
		}
	}
	// Map order is random; BuildCategoryTree sorts stably.
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return core.BuildCategoryTree(list), nil
}

func (r categories) GetOrCreateSystem(ctx context.Context, householdID core.HouseholdID) (*core.Category, error) {
	for _, st := range r.d.categories {
		if st.HouseholdID == householdID && st.IsSystem && st.Name == core.UncategorizedName {
			return core.RestoreCategory(st), nil
		}
	}
	c, err := core.NewSystemCategory(householdID, core.UncategorizedName, core.CategoryExpense)
	if err != nil {
		return nil, err
	}
	return c, r.Save(ctx, c)
}

func (r categories) Save(_ context.Context, c *core.Category) error {
	r.d.categories[c.ID()] = c.State()
	return nil
}

func (r categories) Delete(_ context.Context, id core.CategoryID) error {
	if _, ok := r.d.categories[id]; !ok {
		return core.NewNotFoundError("category", string(id))
	}
	delete(r.d.categories, id)
	return nil
}

type payees struct{ d *dataset }

func (r payees) GetByID(_ context.Context, id core.PayeeID) (*core.Payee, error) {
	st, ok := r.d.payees[id]
	if !ok {
		return nil, core.NewNotFoundError("payee", string(id))
	}
	return core.RestorePayee(st), nil
}

func (r payees) FindByName(_ context.Context, householdID core.HouseholdID, name string) (*core.Payee, error) {
	if st, ok := r.byKey(householdID, core.NormalizePayeeName(name)); ok {
		return core.RestorePayee(st), nil
	}
	return nil, core.NewNotFoundError("payee", name)
}

func (r payees) byKey(householdID core.HouseholdID, key string) (core.PayeeState, bool) {
	for _, st := range r.d.payees {
		if st.HouseholdID == householdID && core.NormalizePayeeName(st.Name) == key {
			return st, true
		}
	}
	return core.PayeeState{}, false
}

func (r payees) GetOrCreate(ctx context.Context, householdID core.HouseholdID, name string) (*core.Payee, error) {
	if st, ok := r.byKey(householdID, core.NormalizePayeeName(name)); ok {
		return core.RestorePayee(st), nil
	}
	p, err := core.NewPayee(householdID, name)
	if err != nil {
		return nil, err
	}
	return p, r.Save(ctx, p)
}

func (r payees) Search(_ context.Context, householdID core.HouseholdID, prefix string, limit int) ([]*core.Payee, error) {
	if limit <= 0 {
		limit = repository.DefaultSearchLimit
	}
	key := core.NormalizePayeeName(prefix)
	var out []*core.Payee
	for _, st := range r.d.payees {
		if st.HouseholdID != householdID {
			continue
		}
		p := core.RestorePayee(st)
		if strings.HasPrefix(p.NormalizedName(), key) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount() != out[j].UsageCount() {
			return out[i].UsageCount() > out[j].UsageCount()
		}
		return out[i].NormalizedName() < out[j].NormalizedName()
	})
	return page(out, 0, limit), nil
}

func (r payees) Save(_ context.Context, p *core.Payee) error {
	if st, ok := r.byKey(p.HouseholdID(), p.NormalizedName()); ok && st.ID != p.ID() {
		return core.NewDuplicatePayeeError(p.Name())
	}
	r.d.payees[p.ID()] = p.State()
	return nil
}

package accounting

import (
	"sort"

	"github.com/google/uuid"
)

// Catalog is an immutable, code-ordered view of a workspace chart of accounts.
type Catalog struct {
	accounts []Account
	byID     map[uuid.UUID]int
	byCode   map[string]int
}

// NewCatalog indexes accounts. The input slice is copied.
func NewCatalog(accounts []Account) *Catalog {
	sorted := append([]Account(nil), accounts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	c := &Catalog{
		accounts: sorted,
		byID:     make(map[uuid.UUID]int, len(sorted)),
		byCode:   make(map[string]int, len(sorted)),
	}
	for idx, acc := range sorted {
		c.byID[acc.ID] = idx
		c.byCode[acc.Code] = idx
	}
	return c
}

// Lookup finds an account by id.
func (c *Catalog) Lookup(id uuid.UUID) (Account, bool) {
	if c == nil {
		return Account{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return Account{}, false
	}
	return c.accounts[idx], true
}

// ByCode finds an account by its human-readable code.
func (c *Catalog) ByCode(code string) (Account, bool) {
	if c == nil {
		return Account{}, false
	}
	idx, ok := c.byCode[code]
	if !ok {
		return Account{}, false
	}
	return c.accounts[idx], true
}

// Accounts returns all accounts ordered by code.
func (c *Catalog) Accounts() []Account {
	if c == nil {
		return nil
	}
	return append([]Account(nil), c.accounts...)
}

// OfType returns the accounts of the given types ordered by code.
func (c *Catalog) OfType(types ...AccountType) []Account {
	if c == nil {
		return nil
	}
	want := make(map[AccountType]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	var out []Account
	for _, acc := range c.accounts {
		if _, ok := want[acc.Type]; ok {
			out = append(out, acc)
		}
	}
	return out
}

// IDs lists account ids in code order.
func (c *Catalog) IDs() []uuid.UUID {
	if c == nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(c.accounts))
	for _, acc := range c.accounts {
		ids = append(ids, acc.ID)
	}
	return ids
}

// Len returns the number of accounts.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.accounts)
}

// CheckComplete returns ErrIncompleteCatalog when any movement references an
// account outside the catalog.
func (c *Catalog) CheckComplete(movements Movements) error {
	for id := range movements {
		if _, ok := c.Lookup(id); !ok {
			return missingAccountError(id)
		}
	}
	return nil
}

func missingAccountError(id uuid.UUID) error {
	return &catalogError{id: id}
}

type catalogError struct {
	id uuid.UUID
}

func (e *catalogError) Error() string {
	return ErrIncompleteCatalog.Error() + ": " + e.id.String()
}

func (e *catalogError) Unwrap() error {
	return ErrIncompleteCatalog
}

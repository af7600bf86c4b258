package mappings

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/google/uuid"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
)

// Classifier applies per-account overrides and falls back to the code
// convention for accounts without one.
type Classifier struct {
	roles    map[uuid.UUID]Role
	fallback reports.ConventionClassifier
	key      string
}

// NewClassifier builds a classifier from stored overrides.
func NewClassifier(mappings []Mapping, fallback reports.ConventionClassifier) *Classifier {
	roles := make(map[uuid.UUID]Role, len(mappings))
	for _, m := range mappings {
		roles[m.AccountID] = m.Role
	}
	return &Classifier{roles: roles, fallback: fallback, key: cacheKey(roles, fallback)}
}

// IsCash reports whether account holds cash.
func (c *Classifier) IsCash(account accounting.Account) bool {
	if role, ok := c.roles[account.ID]; ok {
		return role == RoleCash
	}
	return c.fallback.IsCash(account)
}

// Classify maps a counterpart account to its activity.
func (c *Classifier) Classify(counterpart accounting.Account) reports.Activity {
	if role, ok := c.roles[counterpart.ID]; ok && role != RoleCash {
		return reports.Activity(role)
	}
	return c.fallback.Classify(counterpart)
}

// CacheKey changes whenever an override or the fallback changes.
func (c *Classifier) CacheKey() string {
	return c.key
}

func cacheKey(roles map[uuid.UUID]Role, fallback reports.ConventionClassifier) string {
	if len(roles) == 0 {
		return fallback.CacheKey()
	}
	ids := make([]uuid.UUID, 0, len(roles))
	for id := range roles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	h := fnv.New64a()
	for _, id := range ids {
		_, _ = h.Write(id[:])
		_, _ = h.Write([]byte(roles[id]))
	}
	return fmt.Sprintf("%s-map%x", fallback.CacheKey(), h.Sum64())
}

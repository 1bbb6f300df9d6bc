// Package category maintains the per-workspace set of categories whose jobs
// anyone may claim.
package category

import (
	"context"
	"strings"

	"jobdesk/internal/domain"
	logx "jobdesk/pkg/logx"
)

// Defaults seeds a workspace that has never had a category.
var Defaults = []string{
	"discord announcements",
	"game announcements",
	"staff birthdays",
	"fan group promotions",
	"promo codes",
	"lumbergames",
	"serverboosts",
	"new rankups",
	"community birthdays",
	"wiki fact",
}

type Store interface {
	SeedCategories(ctx context.Context, workspace int64, defaults []string) (bool, error)
	HasCategory(ctx context.Context, workspace int64, name string) (bool, error)
	AddCategory(ctx context.Context, workspace int64, name string) (bool, error)
	RemoveCategory(ctx context.Context, workspace int64, name string) (bool, error)
	ListCategories(ctx context.Context, workspace int64) ([]string, error)
}

type Gate struct {
	store    Store
	defaults []string
	log      logx.Logger
}

func NewGate(store Store, log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gate{store: store, defaults: Normalize(Defaults...), log: log.With(logx.Component("category"))}
}

// Normalize lowercases, trims, and collapses inner whitespace. Empty results
// are dropped.
func Normalize(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if v := normalize(n); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Normalize returns the stored spelling of a single category name.
func (g *Gate) Normalize(name string) string { return normalize(name) }

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func (g *Gate) seed(ctx context.Context, workspace int64) error {
	seeded, err := g.store.SeedCategories(ctx, workspace, g.defaults)
	if err != nil {
		return err
	}
	if seeded {
		g.log.Info("seeded default categories", logx.Workspace(workspace), logx.Int("count", len(g.defaults)))
	}
	return nil
}

// IsOpenToAll seeds defaults if the workspace has none, then checks
// membership. An empty category is never open to all.
func (g *Gate) IsOpenToAll(ctx context.Context, workspace int64, category string) (bool, error) {
	name := normalize(category)
	if name == "" {
		return false, nil
	}
	if err := g.seed(ctx, workspace); err != nil {
		return false, err
	}
	return g.store.HasCategory(ctx, workspace, name)
}

// Add reports added=false when the category already existed.
func (g *Gate) Add(ctx context.Context, workspace int64, category string) (name string, added bool, err error) {
	name = normalize(category)
	if name == "" {
		return "", false, domain.ErrEmptyName
	}
	if err := g.seed(ctx, workspace); err != nil {
		return name, false, err
	}
	added, err = g.store.AddCategory(ctx, workspace, name)
	return name, added, err
}

// Remove reports removed=false when the category was absent. Jobs already
// created keep their open-to-all snapshot.
func (g *Gate) Remove(ctx context.Context, workspace int64, category string) (name string, removed bool, err error) {
	name = normalize(category)
	if name == "" {
		return "", false, domain.ErrEmptyName
	}
	if err := g.seed(ctx, workspace); err != nil {
		return name, false, err
	}
	removed, err = g.store.RemoveCategory(ctx, workspace, name)
	return name, removed, err
}

func (g *Gate) List(ctx context.Context, workspace int64) ([]string, error) {
	if err := g.seed(ctx, workspace); err != nil {
		return nil, err
	}
	return g.store.ListCategories(ctx, workspace)
}

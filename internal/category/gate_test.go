package category

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"jobdesk/internal/domain"
	"jobdesk/internal/jobs"
	"jobdesk/internal/storage"
	logx "jobdesk/pkg/logx"
)

func openStore(t *testing.T) *storage.SQLite {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "cat.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Promo Codes ":  "promo codes",
		"WIKI\tfact":      "wiki fact",
		"new   rankups":   "new rankups",
		"   ":             "",
		"Staff Birthdays": "staff birthdays",
	}
	for in, want := range cases {
		if got := normalize(in); got != want {
			t.Fatalf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsOpenToAllSeedsDefaults(t *testing.T) {
	t.Parallel()
	g := NewGate(openStore(t), logx.Nop())
	ctx := context.Background()

	ok, err := g.IsOpenToAll(ctx, 1, "  PROMO codes")
	if err != nil || !ok {
		t.Fatalf("IsOpenToAll(promo codes) = %v, %v", ok, err)
	}
	if ok, _ := g.IsOpenToAll(ctx, 1, "interviews"); ok {
		t.Fatalf("unknown category should not be open to all")
	}
	if ok, _ := g.IsOpenToAll(ctx, 1, ""); ok {
		t.Fatalf("empty category should not be open to all")
	}
	names, _ := g.List(ctx, 1)
	if len(names) != len(Defaults) {
		t.Fatalf("List() = %d names, want %d", len(names), len(Defaults))
	}
}

func TestAddRemove(t *testing.T) {
	t.Parallel()
	g := NewGate(openStore(t), logx.Nop())
	ctx := context.Background()

	name, added, err := g.Add(ctx, 1, "Interviews")
	if err != nil || !added || name != "interviews" {
		t.Fatalf("Add() = %q, %v, %v", name, added, err)
	}
	if _, added, _ := g.Add(ctx, 1, "interviews "); added {
		t.Fatalf("second Add() should report existing")
	}
	// Add on a fresh workspace seeds first, so defaults are still there.
	if ok, _ := g.IsOpenToAll(ctx, 1, "wiki fact"); !ok {
		t.Fatalf("defaults should be seeded before the first add")
	}
	if _, removed, _ := g.Remove(ctx, 1, "nope"); removed {
		t.Fatalf("Remove(absent) should report not removed")
	}
	if _, _, err := g.Add(ctx, 1, "  "); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("Add(empty) error = %v", err)
	}
}

func TestJobCategoryMatchesSetSpelling(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	g := NewGate(st, logx.Nop())
	e := jobs.NewEngine(st, g, logx.Nop())
	ctx := context.Background()

	j, err := e.Create(ctx, 1, jobs.CreateInput{Title: "Cards", Category: "  Staff   Birthdays "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, _ := e.Get(ctx, 1, j.ID)
	if got.Category != "staff birthdays" {
		t.Fatalf("stored category = %q, want %q", got.Category, "staff birthdays")
	}
	names, _ := g.List(ctx, 1)
	found := false
	for _, n := range names {
		found = found || n == got.Category
	}
	if found != got.OpenToAll {
		t.Fatalf("open_to_all=%v but category listed=%v (%v)", got.OpenToAll, found, names)
	}
}

func TestRemoveKeepsExistingJobSnapshot(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	g := NewGate(st, logx.Nop())
	e := jobs.NewEngine(st, g, logx.Nop())
	ctx := context.Background()

	before, err := e.Create(ctx, 1, jobs.CreateInput{Title: "Codes", Category: "promo codes"})
	if err != nil || !before.OpenToAll {
		t.Fatalf("Create() = %+v, %v", before, err)
	}
	if _, removed, _ := g.Remove(ctx, 1, "Promo Codes"); !removed {
		t.Fatalf("Remove() should remove the seeded category")
	}
	after, _ := e.Create(ctx, 1, jobs.CreateInput{Title: "More codes", Category: "promo codes"})
	if after.OpenToAll {
		t.Fatalf("new job after removal should be role gated")
	}
	got, _ := e.Get(ctx, 1, before.ID)
	if !got.OpenToAll {
		t.Fatalf("existing job lost its open-to-all snapshot")
	}
	if _, err := e.Claim(ctx, 1, before.ID, 9, false); err != nil {
		t.Fatalf("claim of snapshotted job without role error = %v", err)
	}
}

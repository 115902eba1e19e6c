package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/starford/incremental/internal/models"
	"github.com/starford/incremental/internal/testutil"
)

func TestResync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	next := t0.Add(48 * time.Hour)
	testutil.WriteNote(t, e.vault, "s.md", scheduledNote(40, next, ""))

	change, err := e.engine.Resync(ctx, "s.md")
	if err != nil || change != Upserted {
		t.Fatalf("Resync = %v, %v; want upserted", change, err)
	}
	item, ok, _ := e.store.Get(ctx, "s.md")
	if !ok || item.Priority != 40 || !item.NextReviewAt.Equal(next) {
		t.Errorf("stored = %+v", item)
	}

	change, _ = e.engine.Resync(ctx, "s.md")
	if change != Unchanged {
		t.Errorf("second Resync = %v, want unchanged", change)
	}

	testutil.WriteNote(t, e.vault, "s.md", "untagged now\n")
	change, _ = e.engine.Resync(ctx, "s.md")
	if change != Removed {
		t.Errorf("Resync after untag = %v, want removed", change)
	}

	change, err = e.engine.Resync(ctx, "never.md")
	if err != nil || change != Unchanged {
		t.Errorf("Resync unknown = %v, %v", change, err)
	}
}

func TestResyncDeletedNote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteNote(t, e.vault, "x.md", "x\n")
	if _, err := e.engine.SetPriority(ctx, "x.md", 5); err != nil {
		t.Fatal(err)
	}
	if err := e.vault.FS().Delete("x.md"); err != nil {
		t.Fatal(err)
	}
	change, err := e.engine.Resync(ctx, "x.md")
	if err != nil || change != Removed {
		t.Fatalf("Resync = %v, %v; want removed", change, err)
	}
	if len(e.load(t)) != 0 {
		t.Error("item kept for deleted note")
	}
}

func TestReconcile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	testutil.WriteNote(t, e.vault, "a.md", scheduledNote(10, t0, ""))
	testutil.WriteNote(t, e.vault, "dir/b.md", scheduledNote(90, t0.Add(time.Hour), ""))
	testutil.WriteNote(t, e.vault, "bad.md", "---\ntags: [incremental]\nincremental:\n  priority: lots\n---\n")
	testutil.WriteNote(t, e.vault, "plain.md", "plain\n")

	if err := e.store.Upsert(ctx, models.Item{ID: "stale.md", Priority: 1, NextReviewAt: t0}); err != nil {
		t.Fatal(err)
	}
	if err := e.store.Upsert(ctx, models.Item{ID: "bad.md", Priority: 3, NextReviewAt: t0}); err != nil {
		t.Fatal(err)
	}

	stats, err := e.engine.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want := ReconcileStats{Upserted: 2, Removed: 1, Skipped: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	ids := map[string]bool{}
	for _, it := range e.load(t) {
		ids[it.ID] = true
	}
	for _, id := range []string{"a.md", "dir/b.md", "bad.md"} {
		if !ids[id] {
			t.Errorf("%s missing after reconcile", id)
		}
	}
	if ids["stale.md"] || ids["plain.md"] {
		t.Errorf("unexpected ids: %v", ids)
	}

	stats, _ = e.engine.Reconcile(ctx)
	if stats.Upserted != 0 || stats.Removed != 0 {
		t.Errorf("second pass = %+v, want no changes", stats)
	}
}

func TestDueAndItemsOrdering(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seed := []models.Item{
		{ID: "late.md", Priority: 0, NextReviewAt: t0.Add(72 * time.Hour)},
		{ID: "minor.md", Priority: 66, NextReviewAt: t0.Add(-time.Hour)},
		{ID: "crit.md", Priority: 0, NextReviewAt: t0.Add(-2 * time.Hour)},
		{ID: "now.md", Priority: 0, NextReviewAt: t0},
	}
	for _, it := range seed {
		if err := e.store.Upsert(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	due, err := e.engine.Due(ctx, t0)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, it := range due {
		got = append(got, it.ID)
	}
	want := []string{"crit.md", "now.md", "minor.md"}
	if len(got) != len(want) {
		t.Fatalf("due = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("due = %v, want %v", got, want)
		}
	}

	all, _ := e.engine.Items(ctx)
	if len(all) != 4 || all[len(all)-1].ID != "minor.md" {
		t.Errorf("items order = %+v", all)
	}
}

func TestPreviewUsesClock(t *testing.T) {
	e := newEnv(t)
	p, err := e.engine.Preview(33)
	if err != nil {
		t.Fatal(err)
	}
	if p.Days != 4.5 || !p.NextReviewAt.Equal(t0.Add(108*time.Hour)) {
		t.Errorf("preview = %+v", p)
	}
	if _, err := e.engine.Preview(-5); err == nil {
		t.Error("expected error for invalid priority")
	}
}

func TestItemFromNote(t *testing.T) {
	reviewed := t0.Add(-24 * time.Hour)
	extra := "  history:\n    - reviewed_at: \"" + formatTime(reviewed) + "\"\n      scheduled_for: \"" + formatTime(reviewed.Add(-time.Hour)) + "\"\n"
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "h.md", scheduledNote(12.5, t0, extra))
	note, err := e.vault.FindNote(context.Background(), "h.md")
	if err != nil {
		t.Fatal(err)
	}
	item, ok, err := ItemFromNote(note, DefaultTag)
	if err != nil || !ok {
		t.Fatalf("ItemFromNote = %v, %v", ok, err)
	}
	if item.Priority != 12.5 || !item.NextReviewAt.Equal(t0) || len(item.History) != 1 {
		t.Errorf("item = %+v", item)
	}
	if !item.History[0].ReviewedAt.Equal(reviewed) {
		t.Errorf("history = %+v", item.History)
	}

	testutil.WriteNote(t, e.vault, "p.md", "plain\n")
	note, _ = e.vault.FindNote(context.Background(), "p.md")
	if _, ok, err := ItemFromNote(note, DefaultTag); ok || err != nil {
		t.Errorf("plain note: ok=%v err=%v", ok, err)
	}
}

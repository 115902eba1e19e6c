package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/incremental/internal/apperr"
	"github.com/starford/incremental/internal/itemstore"
	"github.com/starford/incremental/internal/journal"
	"github.com/starford/incremental/internal/kv"
	"github.com/starford/incremental/internal/models"
	"github.com/starford/incremental/internal/queue"
	"github.com/starford/incremental/internal/testutil"
	"github.com/starford/incremental/internal/vault"
)

type flakySurface struct {
	*kv.Memory
	mu     sync.Mutex
	setErr error
}

func (f *flakySurface) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	err := f.setErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakySurface) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

type recordingQueue struct {
	mu    sync.Mutex
	ids   []string
	calls []bool
}

func (q *recordingQueue) AdvancePastCurrent(_ context.Context, id string, completed bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	q.calls = append(q.calls, completed)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	items  []models.Item
}

func (p *recordingPublisher) PublishItemEvent(kind string, item models.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind+" "+item.ID)
	p.items = append(p.items, item)
}

type env struct {
	engine *Engine
	vault  *vault.Vault
	store  *itemstore.Store
	surf   *flakySurface
	clock  *testutil.Clock
	queue  *recordingQueue
	pub    *recordingPublisher
}

var t0 = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newEnv(t *testing.T) *env {
	t.Helper()
	v := testutil.TestVault(t)
	surf := &flakySurface{Memory: kv.NewMemory()}
	store := itemstore.New(surf, "")
	clock := testutil.NewClock(t0)
	q := &recordingQueue{}
	pub := &recordingPublisher{}
	e := New(v, store, journal.New(v, "daily", time.UTC),
		WithClock(clock.Now),
		WithQueue(q),
		WithPublisher(pub),
	)
	return &env{engine: e, vault: v, store: store, surf: surf, clock: clock, queue: q, pub: pub}
}

func (e *env) raw(t *testing.T, id string) string {
	t.Helper()
	data, err := e.vault.FS().Read(id)
	if err != nil {
		t.Fatalf("read %s: %v", id, err)
	}
	return string(data)
}

func (e *env) load(t *testing.T) []models.Item {
	t.Helper()
	items, err := e.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return items
}

func scheduledNote(priority float64, next time.Time, extra string) string {
	return fmt.Sprintf("---\ntitle: Reading\ntags: [incremental]\nincremental:\n  priority: %v\n  next_review_at: %q\n%s---\nbody\n",
		priority, formatTime(next), extra)
}

func TestSetPriorityCreatesItem(t *testing.T) {
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "topics/go.md", "# Go\nnotes\n")

	item, err := e.engine.SetPriority(context.Background(), "topics/go.md", 0)
	if err != nil {
		t.Fatalf("SetPriority: %v", err)
	}
	if item.NextReviewAt.Before(t0.Add(24*time.Hour)) || item.NextReviewAt.After(t0.Add(72*time.Hour)) {
		t.Errorf("next review %v outside 1-3 days of %v", item.NextReviewAt, t0)
	}
	if len(item.History) != 0 {
		t.Errorf("history = %+v, want empty", item.History)
	}

	items := e.load(t)
	if len(items) != 1 || !items[0].Equal(item) {
		t.Fatalf("store = %+v", items)
	}

	note, _ := e.vault.FindNote(context.Background(), "topics/go.md")
	if !note.HasTag(DefaultTag) {
		t.Error("note not tagged")
	}
	ref, _ := note.TaggedProperty(DefaultTag, SlotNextReview)
	if ref != "[[daily/2026-10-21]]" {
		t.Errorf("next_review = %v", ref)
	}
	if !e.vault.FS().Exists("daily/2026-10-21.md") {
		t.Error("daily note not created")
	}
	if len(e.pub.events) != 1 || e.pub.events[0] != EventScheduled+" topics/go.md" {
		t.Errorf("events = %v", e.pub.events)
	}
	if len(e.pub.items) == 1 && !e.pub.items[0].NextReviewAt.Equal(item.NextReviewAt) {
		t.Errorf("published next review %v, want %v", e.pub.items[0].NextReviewAt, item.NextReviewAt)
	}
}

func TestSetPriorityRejectsOutOfDomain(t *testing.T) {
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "a.md", "a\n")

	for _, p := range []float64{-1, 100.5, 1000, math.NaN(), math.Inf(1)} {
		_, err := e.engine.SetPriority(context.Background(), "a.md", p)
		if !errors.Is(err, apperr.ErrInvalidPriority) {
			t.Errorf("SetPriority(%v) err = %v, want ErrInvalidPriority", p, err)
		}
	}
	if n := len(e.load(t)); n != 0 {
		t.Errorf("store has %d items after invalid priorities", n)
	}
	if got := e.raw(t, "a.md"); got != "a\n" {
		t.Errorf("note modified: %q", got)
	}
}

func TestSetPriorityMissingNote(t *testing.T) {
	e := newEnv(t)
	_, err := e.engine.SetPriority(context.Background(), "ghost.md", 10)
	if !errors.Is(err, apperr.ErrItemNotFound) {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
}

func TestSetPriorityStoreFailureRestoresNote(t *testing.T) {
	e := newEnv(t)
	original := "---\ntitle: Keep\n---\nbody\n"
	testutil.WriteNote(t, e.vault, "k.md", original)
	e.surf.fail(errors.New("disk full"))

	_, err := e.engine.SetPriority(context.Background(), "k.md", 33)
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if got := e.raw(t, "k.md"); got != original {
		t.Errorf("note not restored: %q", got)
	}
	if len(e.pub.events) != 0 {
		t.Errorf("events published on failure: %v", e.pub.events)
	}
	ids, err := e.vault.FS().List("")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if strings.HasPrefix(id, "daily/") {
			t.Errorf("daily note %s left behind by failed transition", id)
		}
	}
}

func TestChooseIntervalScenario(t *testing.T) {
	e := newEnv(t)
	scheduled := t0.Add(3 * 24 * time.Hour)
	testutil.WriteNote(t, e.vault, "r.md", scheduledNote(20, scheduled, ""))

	t1 := scheduled.Add(5 * time.Hour)
	e.clock.Set(t1)
	item, err := e.engine.ChooseInterval(context.Background(), "r.md", 4)
	if err != nil {
		t.Fatalf("ChooseInterval: %v", err)
	}
	if item == nil {
		t.Fatal("expected updated item")
	}
	if !item.NextReviewAt.Equal(t1.Add(4 * 24 * time.Hour)) {
		t.Errorf("next = %v, want %v", item.NextReviewAt, t1.Add(96*time.Hour))
	}
	if len(item.History) != 1 ||
		!item.History[0].ReviewedAt.Equal(t1) ||
		!item.History[0].ScheduledFor.Equal(scheduled) {
		t.Errorf("history = %+v", item.History)
	}

	stored, ok, _ := e.store.Get(context.Background(), "r.md")
	if !ok || !stored.Equal(*item) {
		t.Errorf("stored = %+v", stored)
	}

	note, _ := e.vault.FindNote(context.Background(), "r.md")
	fromNote, ok, err := ItemFromNote(note, DefaultTag)
	if err != nil || !ok || !fromNote.Equal(*item) {
		t.Errorf("note state = %+v (%v, %v)", fromNote, ok, err)
	}
	if len(e.queue.calls) != 1 || e.queue.calls[0] || e.queue.ids[0] != "r.md" {
		t.Errorf("queue calls = %v %v, want [r.md] [false]", e.queue.ids, e.queue.calls)
	}
}

func TestChooseIntervalHistoryAppendOnly(t *testing.T) {
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "h.md", scheduledNote(50, t0, ""))

	var prev []models.HistoryEntry
	for i, days := range []int{2, 4, 7, 14} {
		e.clock.Advance(time.Duration(i+1) * 24 * time.Hour)
		item, err := e.engine.ChooseInterval(context.Background(), "h.md", days)
		if err != nil || item == nil {
			t.Fatalf("ChooseInterval #%d: %v", i, err)
		}
		if len(item.History) != i+1 {
			t.Fatalf("history len = %d, want %d", len(item.History), i+1)
		}
		for j, old := range prev {
			got := item.History[j]
			if !got.ReviewedAt.Equal(old.ReviewedAt) || !got.ScheduledFor.Equal(old.ScheduledFor) {
				t.Errorf("entry %d rewritten: %+v -> %+v", j, old, got)
			}
		}
		prev = item.History
	}
}

func TestChooseIntervalNoop(t *testing.T) {
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "plain.md", "plain\n")

	for _, id := range []string{"missing.md", "plain.md"} {
		item, err := e.engine.ChooseInterval(context.Background(), id, 4)
		if err != nil || item != nil {
			t.Errorf("ChooseInterval(%s) = %v, %v; want nil, nil", id, item, err)
		}
	}
	if len(e.load(t)) != 0 {
		t.Error("store touched by no-op")
	}
	if len(e.queue.calls) != 0 {
		t.Errorf("queue advanced on no-op: %v", e.queue.calls)
	}
	if got := e.raw(t, "plain.md"); got != "plain\n" {
		t.Errorf("note modified: %q", got)
	}
}

func TestChooseIntervalRejectsBadDays(t *testing.T) {
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "d.md", scheduledNote(10, t0, ""))
	for _, d := range []int{0, -3, MaxCustomDays + 1} {
		if _, err := e.engine.ChooseInterval(context.Background(), "d.md", d); !errors.Is(err, apperr.ErrInvalidInterval) {
			t.Errorf("days %d: err = %v, want ErrInvalidInterval", d, err)
		}
	}
}

func TestChooseIntervalStoreFailureRestoresNote(t *testing.T) {
	e := newEnv(t)
	original := scheduledNote(10, t0, "")
	testutil.WriteNote(t, e.vault, "f.md", original)
	e.surf.fail(errors.New("locked"))

	if _, err := e.engine.ChooseInterval(context.Background(), "f.md", 7); !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if got := e.raw(t, "f.md"); got != original {
		t.Errorf("note not restored:\n%s", got)
	}
	if len(e.queue.calls) != 0 {
		t.Error("queue advanced after failed transition")
	}
}

func TestSetPriorityAfterCustomIntervalKeepsHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteNote(t, e.vault, "p.md", "p\n")

	if _, err := e.engine.SetPriority(ctx, "p.md", 33); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(24 * time.Hour)
	if _, err := e.engine.ChooseInterval(ctx, "p.md", 14); err != nil {
		t.Fatal(err)
	}
	now := e.clock.Now()
	item, err := e.engine.SetPriority(ctx, "p.md", 66)
	if err != nil {
		t.Fatal(err)
	}
	if !item.NextReviewAt.Equal(now.Add(7*24*time.Hour + 12*time.Hour)) {
		t.Errorf("next = %v, want priority-derived 7.5 days", item.NextReviewAt)
	}
	if len(item.History) != 1 {
		t.Errorf("history len = %d, want 1", len(item.History))
	}
	if item.Priority != 66 {
		t.Errorf("priority = %v", item.Priority)
	}
}

func TestMarkDone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteNote(t, e.vault, "a.md", "---\ntags: [reading]\n---\na\n")
	testutil.WriteNote(t, e.vault, "b.md", "b\n")
	_, _ = e.engine.SetPriority(ctx, "a.md", 10)
	_, _ = e.engine.SetPriority(ctx, "b.md", 20)
	before := len(e.load(t))

	if err := e.engine.MarkDone(ctx, "a.md"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	after := e.load(t)
	if len(after) != before-1 {
		t.Fatalf("size %d -> %d, want decrease by one", before, len(after))
	}
	for _, it := range after {
		if it.ID == "a.md" {
			t.Error("done item still stored")
		}
	}

	note, err := e.vault.FindNote(ctx, "a.md")
	if err != nil {
		t.Fatalf("note deleted: %v", err)
	}
	if note.HasTag(DefaultTag) || !note.HasTag("reading") {
		t.Errorf("tags = %v", note.Tags())
	}
	if _, ok := note.TaggedProperty(DefaultTag, SlotPriority); ok {
		t.Error("schedule properties left on note")
	}
	if len(e.queue.calls) != 1 || !e.queue.calls[0] || e.queue.ids[0] != "a.md" {
		t.Errorf("queue calls = %v %v, want [a.md] [true]", e.queue.ids, e.queue.calls)
	}

	if err := e.engine.MarkDone(ctx, "a.md"); err != nil {
		t.Errorf("second MarkDone: %v", err)
	}
	if len(e.load(t)) != len(after) {
		t.Error("second MarkDone changed the store")
	}
}

func TestMarkDoneOffQueueKeepsCurrentCard(t *testing.T) {
	ctx := context.Background()
	v := testutil.TestVault(t)
	store := itemstore.New(kv.NewMemory(), "")
	q := queue.New(store)
	eng := New(v, store, journal.New(v, "daily", time.UTC),
		WithClock(testutil.NewClock(t0).Now),
		WithQueue(q),
	)
	testutil.WriteNote(t, v, "a.md", scheduledNote(0, t0.Add(-time.Hour), ""))
	testutil.WriteNote(t, v, "b.md", scheduledNote(50, t0.Add(-time.Hour), ""))
	if _, err := eng.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	if err := q.Refresh(ctx, t0); err != nil {
		t.Fatal(err)
	}
	if cur, _ := q.Current(); cur.ID != "a.md" {
		t.Fatalf("current = %q, want a.md", cur.ID)
	}

	if err := eng.MarkDone(ctx, "b.md"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	cur, ok := q.Current()
	if !ok || cur.ID != "a.md" {
		t.Fatalf("current after MarkDone = %q, want a.md", cur.ID)
	}

	if err := q.Refresh(ctx, t0); err != nil {
		t.Fatal(err)
	}
	cur, ok = q.Current()
	if !ok || cur.ID != "a.md" || q.Len() != 1 {
		t.Errorf("after refresh: current = %q, len = %d; want a.md alone", cur.ID, q.Len())
	}
}

func TestTransitionsRefuseMalformedFrontmatter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	original := "---\ntitle: [oops\ntags: [reading]\n---\nbody"
	testutil.WriteNote(t, e.vault, "bad.md", original)
	stale := models.Item{ID: "bad.md", Priority: 10, NextReviewAt: t0}
	if err := e.store.Upsert(ctx, stale); err != nil {
		t.Fatal(err)
	}

	if _, err := e.engine.SetPriority(ctx, "bad.md", 10); !errors.Is(err, apperr.ErrMalformedNote) {
		t.Errorf("SetPriority err = %v, want ErrMalformedNote", err)
	}
	if _, err := e.engine.ChooseInterval(ctx, "bad.md", 4); !errors.Is(err, apperr.ErrMalformedNote) {
		t.Errorf("ChooseInterval err = %v, want ErrMalformedNote", err)
	}
	if err := e.engine.MarkDone(ctx, "bad.md"); !errors.Is(err, apperr.ErrMalformedNote) {
		t.Errorf("MarkDone err = %v, want ErrMalformedNote", err)
	}
	if _, err := e.engine.Resync(ctx, "bad.md"); !errors.Is(err, apperr.ErrMalformedNote) {
		t.Errorf("Resync err = %v, want ErrMalformedNote", err)
	}
	stats, err := e.engine.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Removed != 0 || stats.Skipped != 1 {
		t.Errorf("reconcile stats = %+v, want the item skipped", stats)
	}

	if got := e.raw(t, "bad.md"); got != original {
		t.Errorf("note rewritten:\n%s", got)
	}
	items := e.load(t)
	if len(items) != 1 || !items[0].Equal(stale) {
		t.Errorf("store = %+v, want the stale item untouched", items)
	}
	if len(e.queue.calls) != 0 || len(e.pub.events) != 0 {
		t.Errorf("side effects on refusal: queue %v, events %v", e.queue.calls, e.pub.events)
	}
}

func TestMarkDoneStoreFailureKeepsNoteTagged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteNote(t, e.vault, "a.md", "a\n")
	_, _ = e.engine.SetPriority(ctx, "a.md", 10)
	e.surf.fail(errors.New("gone"))

	if err := e.engine.MarkDone(ctx, "a.md"); !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	note, _ := e.vault.FindNote(ctx, "a.md")
	if !note.HasTag(DefaultTag) {
		t.Error("note untagged although store removal failed")
	}
}

func TestMarkDoneDeletedNote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.WriteNote(t, e.vault, "gone.md", "x\n")
	_, _ = e.engine.SetPriority(ctx, "gone.md", 10)
	_ = e.vault.FS().Delete("gone.md")

	if err := e.engine.MarkDone(ctx, "gone.md"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if len(e.load(t)) != 0 {
		t.Error("item not removed")
	}
}

func TestTransitionsAreSerialised(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	const n = 12
	for i := range n {
		testutil.WriteNote(t, e.vault, fmt.Sprintf("n%02d.md", i), "x\n")
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.engine.SetPriority(ctx, fmt.Sprintf("n%02d.md", i), float64(i*8))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("SetPriority: %v", err)
		}
	}
	if got := len(e.load(t)); got != n {
		t.Errorf("store has %d items, want %d", got, n)
	}
}

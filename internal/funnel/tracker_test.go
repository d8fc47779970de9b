package funnel_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/store"
	"github.com/headline-goat/funnel-goat/internal/telemetry"
	"github.com/headline-goat/funnel-goat/internal/testutil"
)

type recorder struct {
	events []telemetry.Event
}

func (r *recorder) Dispatch(ev telemetry.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) named(name string) []telemetry.Event {
	var out []telemetry.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// clock returns a now func that advances one second per call.
func clock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTracker(t *testing.T) (*funnel.Tracker, *recorder, *store.MemoryKV) {
	t.Helper()
	adapter, session, _ := testutil.MemoryAdapter()
	rec := &recorder{}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return funnel.NewTracker(adapter, nil, rec, clock(start), zerolog.Nop()), rec, session
}

func TestOnNavigate_ProgressionOnStageChange(t *testing.T) {
	tr, rec, _ := newTracker(t)
	ctx := context.Background()

	tr.OnNavigate(ctx, "/")
	tr.OnNavigate(ctx, "/pricing")

	history := tr.History(ctx)
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}

	progressions := rec.named(telemetry.EventFunnelProgression)
	if len(progressions) != 1 {
		t.Fatalf("got %d progression events, want 1", len(progressions))
	}
	want := telemetry.Event{
		Name:     "funnel_progression",
		Category: "conversion",
		Properties: map[string]any{
			"fromStage": "awareness",
			"toStage":   "intent",
			"path":      "/pricing",
		},
	}
	if diff := cmp.Diff(want, progressions[0]); diff != "" {
		t.Errorf("progression mismatch (-want +got):\n%s", diff)
	}
}

func TestOnNavigate_SameStageNoProgression(t *testing.T) {
	tr, rec, _ := newTracker(t)
	ctx := context.Background()

	tr.OnNavigate(ctx, "/pricing")
	tr.OnNavigate(ctx, "/pricing")

	history := tr.History(ctx)
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}
	for _, e := range history {
		if e.Stage != funnel.Intent {
			t.Errorf("entry stage = %q, want intent", e.Stage)
		}
	}
	if n := len(rec.named(telemetry.EventFunnelProgression)); n != 0 {
		t.Errorf("got %d progression events, want 0", n)
	}
	if n := len(rec.named("funnel_intent")); n != 2 {
		t.Errorf("got %d presence events, want 2", n)
	}
}

func TestOnNavigate_DifferentPathSameStage(t *testing.T) {
	tr, rec, _ := newTracker(t)
	ctx := context.Background()

	tr.OnNavigate(ctx, "/pricing")
	tr.OnNavigate(ctx, "/contact")

	if n := len(rec.named(telemetry.EventFunnelProgression)); n != 0 {
		t.Errorf("got %d progression events, want 0", n)
	}
}

func TestOnNavigate_FirstNavigationOnlyPresence(t *testing.T) {
	tr, rec, _ := newTracker(t)
	ctx := context.Background()

	got := tr.OnNavigate(ctx, "/docs/setup")
	if got != funnel.Consideration {
		t.Errorf("stage = %q, want consideration", got)
	}

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Name != "funnel_consideration" || ev.Category != telemetry.CategoryConversion {
		t.Errorf("unexpected event %+v", ev)
	}
	history := tr.History(ctx)
	if ev.Properties["stage"] != "consideration" || ev.Properties["path"] != "/docs/setup" ||
		ev.Properties["timestamp"] != history[0].Timestamp {
		t.Errorf("unexpected presence properties %v", ev.Properties)
	}
}

func TestOnNavigate_PresenceBeforeProgression(t *testing.T) {
	tr, rec, _ := newTracker(t)
	ctx := context.Background()

	tr.OnNavigate(ctx, "/")
	tr.OnNavigate(ctx, "/signup")

	var names []string
	for _, ev := range rec.events {
		names = append(names, ev.Name)
	}
	want := []string{"funnel_awareness", "funnel_purchase", "funnel_progression"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestOnNavigate_BackwardMoveIsProgression(t *testing.T) {
	tr, rec, _ := newTracker(t)
	ctx := context.Background()

	tr.OnNavigate(ctx, "/pricing")
	tr.OnNavigate(ctx, "/blog/post")

	p := rec.named(telemetry.EventFunnelProgression)
	if len(p) != 1 || p[0].Properties["fromStage"] != "intent" || p[0].Properties["toStage"] != "interest" {
		t.Errorf("unexpected progressions %+v", p)
	}
}

func TestOnNavigate_HistoryProperties(t *testing.T) {
	routes := funnel.DefaultRoutes()
	r := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		adapter, _, _ := testutil.MemoryAdapter()
		rec := &recorder{}

		// a clock that sometimes steps backwards
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		tick := func() time.Time {
			now = now.Add(time.Duration(r.Intn(2000)-500) * time.Millisecond)
			return now
		}
		tr := funnel.NewTracker(adapter, nil, rec, tick, zerolog.Nop())
		ctx := context.Background()

		n := 1 + r.Intn(15)
		var resolved []funnel.Stage
		for i := 0; i < n; i++ {
			resolved = append(resolved, tr.OnNavigate(ctx, routes[r.Intn(len(routes))].Path))
		}

		history := tr.History(ctx)
		if len(history) != n {
			t.Fatalf("run %d: history has %d entries, want %d", run, len(history), n)
		}
		for i := 1; i < len(history); i++ {
			if history[i].Timestamp < history[i-1].Timestamp {
				t.Fatalf("run %d: timestamps decrease at %d: %d < %d", run, i, history[i].Timestamp, history[i-1].Timestamp)
			}
		}

		var wantProgressions [][2]string
		for i := 1; i < n; i++ {
			if resolved[i] != resolved[i-1] {
				wantProgressions = append(wantProgressions, [2]string{string(resolved[i-1]), string(resolved[i])})
			}
		}
		var gotProgressions [][2]string
		for _, ev := range rec.named(telemetry.EventFunnelProgression) {
			gotProgressions = append(gotProgressions, [2]string{
				ev.Properties["fromStage"].(string),
				ev.Properties["toStage"].(string),
			})
		}
		if diff := cmp.Diff(wantProgressions, gotProgressions); diff != "" {
			t.Fatalf("run %d: progressions mismatch (-want +got):\n%s", run, diff)
		}
	}
}

func TestHistory_CorruptReadsEmptyAndIsReplaced(t *testing.T) {
	tr, rec, session := newTracker(t)
	ctx := context.Background()

	if err := session.Set(ctx, store.KeyFunnelHistory, "{not json"); err != nil {
		t.Fatal(err)
	}
	if h := tr.History(ctx); len(h) != 0 {
		t.Errorf("corrupt history should read as empty, got %v", h)
	}

	tr.OnNavigate(ctx, "/pricing")

	if n := len(rec.named(telemetry.EventFunnelProgression)); n != 0 {
		t.Errorf("no progression expected after corrupt history, got %d", n)
	}
	if h := tr.History(ctx); len(h) != 1 || h[0].Path != "/pricing" {
		t.Errorf("history should restart with the new visit, got %v", h)
	}
}

func TestOnNavigate_StorageUnavailable(t *testing.T) {
	rec := &recorder{}
	adapter := store.NewAdapter(nil, nil)
	tr := funnel.NewTracker(adapter, nil, rec, nil, zerolog.Nop())
	ctx := context.Background()

	tr.OnNavigate(ctx, "/")
	tr.OnNavigate(ctx, "/pricing")

	// without history every navigation looks like the first one
	if n := len(rec.named(telemetry.EventFunnelProgression)); n != 0 {
		t.Errorf("got %d progression events, want 0", n)
	}
	if n := len(rec.events); n != 2 {
		t.Errorf("presence events should still fire, got %d events", n)
	}
}

func TestOnNavigate_QuotaExceededKeepsEvents(t *testing.T) {
	rec := &recorder{}
	session := store.NewMemoryKVWithQuota(64)
	tr := funnel.NewTracker(store.NewAdapter(session, store.NewMemoryKV()), nil, rec, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tr.OnNavigate(ctx, "/docs/a-rather-long-page-name")
	}
	if n := len(rec.named("funnel_consideration")); n != 5 {
		t.Errorf("got %d presence events, want 5", n)
	}
}

func TestTracker_PersistsAcrossInstances(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()
	adapter := store.NewAdapter(s.Session("sess-1"), s.Durable("visitor-1"))

	first := &recorder{}
	funnel.NewTracker(adapter, nil, first, nil, zerolog.Nop()).OnNavigate(ctx, "/")

	// a new page load builds a new tracker over the same session
	second := &recorder{}
	tr := funnel.NewTracker(adapter, nil, second, nil, zerolog.Nop())
	tr.OnNavigate(ctx, "/trial")

	if n := len(second.named(telemetry.EventFunnelProgression)); n != 1 {
		t.Errorf("got %d progression events, want 1", n)
	}
	if h := tr.History(ctx); len(h) != 2 {
		t.Errorf("history has %d entries, want 2", len(h))
	}
}

// flakyKV fails the next failGets reads with ErrUnavailable.
type flakyKV struct {
	store.KV
	failGets int
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGets > 0 {
		f.failGets--
		return "", false, store.ErrUnavailable
	}
	return f.KV.Get(ctx, key)
}

func TestOnNavigate_UnreadableHistoryIsKept(t *testing.T) {
	session := &flakyKV{KV: store.NewMemoryKV()}
	rec := &recorder{}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := funnel.NewTracker(store.NewAdapter(session, store.NewMemoryKV()), nil, rec, clock(start), zerolog.Nop())
	ctx := context.Background()

	tr.OnNavigate(ctx, "/")
	tr.OnNavigate(ctx, "/blog")
	tr.OnNavigate(ctx, "/pricing")

	session.failGets = 1
	if got := tr.OnNavigate(ctx, "/checkout"); got != funnel.Purchase {
		t.Errorf("stage = %q, want purchase", got)
	}

	if n := len(rec.named("funnel_purchase")); n != 1 {
		t.Errorf("presence event should still fire, got %d", n)
	}
	if n := len(rec.named(telemetry.EventFunnelProgression)); n != 2 {
		t.Errorf("got %d progression events, want 2 (none for the unreadable visit)", n)
	}

	history := tr.History(ctx)
	var paths []string
	for _, e := range history {
		paths = append(paths, e.Path)
	}
	if diff := cmp.Diff([]string{"/", "/blog", "/pricing"}, paths); diff != "" {
		t.Errorf("stored history changed (-want +got):\n%s", diff)
	}

	// the next readable navigation appends as usual
	tr.OnNavigate(ctx, "/checkout")
	if h := tr.History(ctx); len(h) != 4 || h[3].Stage != funnel.Purchase {
		t.Errorf("expected four entries ending in purchase, got %v", h)
	}
}

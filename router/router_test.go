package router

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tinker495/associate/config"
	"github.com/tinker495/associate/events"
	"github.com/tinker495/associate/summary"
	"github.com/tinker495/associate/tailstore"
)

type fixture struct {
	cfg     *config.Config
	router  *Router
	rec     *events.Recorder
	offsets *tailstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Paths.ClaudeHome = home
	cfg.Paths.AppDir = filepath.Join(home, config.AppDirName)
	cfg.Watch.PollIntervalMs = 10
	if err := os.MkdirAll(cfg.Paths.AppDir, 0755); err != nil {
		t.Fatal(err)
	}

	offsets, err := tailstore.Open(cfg.OffsetStatePath(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { offsets.Close() })

	rec := &events.Recorder{}
	r, err := New(cfg, offsets, summary.NewStore(cfg.SummariesRoot(), nil), rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })

	return &fixture{cfg: cfg, router: r, rec: rec, offsets: offsets}
}

func (f *fixture) appendHook(t *testing.T, lines ...string) {
	t.Helper()
	file, err := os.OpenFile(f.cfg.HookLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	for _, l := range lines {
		if _, err := file.WriteString(l); err != nil {
			t.Fatal(err)
		}
	}
}

func hookLine(t *testing.T, ev HookEvent) string {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return string(data) + "\n"
}

func TestDrainHookLog_SkipsBadLines(t *testing.T) {
	f := newFixture(t)
	f.appendHook(t,
		hookLine(t, HookEvent{HookEventName: "SessionStart", SessionID: "s1"}),
		"not json\n",
		"\n",
		hookLine(t, HookEvent{HookEventName: "UserPromptSubmit", SessionID: "s1"}),
	)

	f.router.drainHookLog()

	evs := f.rec.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 hook events, got %d: %v", len(evs), f.rec.Topics())
	}
	if evs[1].Payload.(HookEvent).HookEventName != "UserPromptSubmit" {
		t.Errorf("unexpected second record %+v", evs[1].Payload)
	}
}

func TestDrainHookLog_HoldsPartialLine(t *testing.T) {
	f := newFixture(t)
	full := hookLine(t, HookEvent{HookEventName: "Notification", SessionID: "s2"})
	f.appendHook(t, full[:10])

	f.router.drainHookLog()
	if len(f.rec.Events()) != 0 {
		t.Fatalf("expected nothing for a partial record, got %v", f.rec.Topics())
	}

	f.appendHook(t, full[10:])
	f.router.drainHookLog()
	if got := f.rec.Topics(); !reflect.DeepEqual(got, []string{events.HookEvent}) {
		t.Fatalf("expected one hook event after completion, got %v", got)
	}
}

func TestDrainHookLog_SummaryBeforeHookEvent(t *testing.T) {
	f := newFixture(t)
	msg := "All done.\n\n## Summary\n- router tails the log\n- offsets persist"
	f.appendHook(t,
		hookLine(t, HookEvent{HookEventName: "Stop", SessionID: "s3", Cwd: "/home/u/app", LastAssistantMessage: msg}),
		hookLine(t, HookEvent{HookEventName: "Stop", SessionID: "s3", Cwd: "/home/u/app", LastAssistantMessage: "ok"}),
		hookLine(t, HookEvent{HookEventName: "Notification", SessionID: "s3", Cwd: "/home/u/app", LastAssistantMessage: msg}),
	)

	f.router.drainHookLog()

	want := []string{events.SessionSummary, events.HookEvent, events.HookEvent, events.HookEvent}
	if got := f.rec.Topics(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got topics %v, want %v", got, want)
	}

	payload := f.rec.Events()[0].Payload.(events.SummaryPayload)
	if payload.ProjectDir != "-home-u-app" || payload.Filename != "s3-summary-001.md" {
		t.Errorf("unexpected summary payload %+v", payload)
	}
	saved := filepath.Join(f.cfg.SummariesRoot(), "-home-u-app", "summaries", "s3-summary-001.md")
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("expected saved summary: %v", err)
	}
	if string(data) != msg {
		t.Errorf("unexpected summary content %q", data)
	}
}

func TestRun_PrimesExistingHistory(t *testing.T) {
	f := newFixture(t)
	f.appendHook(t, hookLine(t, HookEvent{HookEventName: "SessionStart", SessionID: "old"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.router.Run(ctx) }()

	// Give Run time to prime before new data arrives.
	waitUntil(t, func() bool {
		_, ok := f.offsets.Offset(f.cfg.HookLogPath())
		return ok
	})
	f.appendHook(t, hookLine(t, HookEvent{HookEventName: "Stop", SessionID: "new"}))

	waitUntil(t, func() bool { return len(f.rec.Events()) >= 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	for _, ev := range f.rec.Events() {
		if ev.Topic != events.HookEvent {
			continue
		}
		if ev.Payload.(HookEvent).SessionID == "old" {
			t.Error("pre-existing record was replayed")
		}
	}
}

func TestHandleEvent_Classifies(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.cfg.Paths.ClaudeHome, "tasks", "team", "1.json")

	f.router.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	f.router.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	f.router.handleEvent(fsnotify.Event{Name: filepath.Join(f.cfg.Paths.ClaudeHome, "settings.json"), Op: fsnotify.Write})

	if got := f.rec.Topics(); !reflect.DeepEqual(got, []string{events.TaskChanged}) {
		t.Errorf("got topics %v, want [%s]", got, events.TaskChanged)
	}
}

func TestRun_WatchesRootCreatedLater(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.router.Run(ctx)

	plans := filepath.Join(f.cfg.Paths.ClaudeHome, "plans")
	if err := os.MkdirAll(plans, 0755); err != nil {
		t.Fatal(err)
	}

	// Keep touching the file until the root has been picked up by a tick.
	waitUntil(t, func() bool {
		os.WriteFile(filepath.Join(plans, "p.md"), []byte("# plan"), 0644)
		for _, topic := range f.rec.Topics() {
			if topic == events.PlansChanged {
				return true
			}
		}
		return false
	})
}

func (f *fixture) sawPath(path string) bool {
	for _, ev := range f.rec.Events() {
		if p, ok := ev.Payload.(string); ok && p == path {
			return true
		}
	}
	return false
}

func TestRun_RewatchesRecreatedRoot(t *testing.T) {
	f := newFixture(t)
	plans := filepath.Join(f.cfg.Paths.ClaudeHome, "plans")
	if err := os.MkdirAll(plans, 0755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.router.Run(ctx)

	first := filepath.Join(plans, "a.md")
	waitUntil(t, func() bool {
		os.WriteFile(first, []byte("# a"), 0644)
		return f.sawPath(first)
	})

	if err := os.RemoveAll(plans); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(plans, 0755); err != nil {
		t.Fatal(err)
	}

	second := filepath.Join(plans, "b.md")
	waitUntil(t, func() bool {
		os.WriteFile(second, []byte("# b"), 0644)
		return f.sawPath(second)
	})
}

func TestHandleEvent_ForgetsRemovedRoot(t *testing.T) {
	f := newFixture(t)
	todos := filepath.Join(f.cfg.Paths.ClaudeHome, "todos")
	if err := os.MkdirAll(todos, 0755); err != nil {
		t.Fatal(err)
	}

	f.router.addRoots()
	if !f.router.watched[todos] {
		t.Fatal("existing root should be watched")
	}

	if err := os.RemoveAll(todos); err != nil {
		t.Fatal(err)
	}
	f.router.handleEvent(fsnotify.Event{Name: todos, Op: fsnotify.Remove})
	if f.router.watched[todos] {
		t.Fatal("removed root should be forgotten")
	}

	if err := os.MkdirAll(todos, 0755); err != nil {
		t.Fatal(err)
	}
	f.router.addRoots()
	if !f.router.watched[todos] {
		t.Error("recreated root should be watched again")
	}
}

func TestAddRoots_ForgetsMissingRoot(t *testing.T) {
	f := newFixture(t)
	teams := filepath.Join(f.cfg.Paths.ClaudeHome, "teams")
	if err := os.MkdirAll(teams, 0755); err != nil {
		t.Fatal(err)
	}
	f.router.addRoots()

	if err := os.RemoveAll(teams); err != nil {
		t.Fatal(err)
	}
	f.router.addRoots()
	if f.router.watched[teams] {
		t.Error("a root that no longer exists should not stay marked as watched")
	}
}

func TestHandleEvent_RoutesFilesInNewDirectory(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.cfg.Paths.ClaudeHome, "tasks", "team")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	early := filepath.Join(dir, "1.json")
	deep := filepath.Join(dir, "nested", "2.json")
	for _, p := range []string{early, deep} {
		if err := os.WriteFile(p, []byte(`{}`), 0644); err != nil {
			t.Fatal(err)
		}
	}

	f.router.handleEvent(fsnotify.Event{Name: dir, Op: fsnotify.Create})

	for _, p := range []string{dir, early, deep} {
		if !f.sawPath(p) {
			t.Errorf("no route emitted for %s; events: %v", p, f.rec.Topics())
		}
	}
	for _, topic := range f.rec.Topics() {
		if topic != events.TaskChanged {
			t.Errorf("unexpected topic %s", topic)
		}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

package cronjob

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "scheduled_tasks.json"))
	s.now = func() time.Time { return t0 }
	return s
}

func mustAdd(t *testing.T, s *Store, in NewTask) Task {
	t.Helper()
	if in.UserID == "" {
		in.UserID = "42"
	}
	if in.ChatID == "" {
		in.ChatID = in.UserID
	}
	task, err := s.Add(in)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return task
}

func TestStore_Add(t *testing.T) {
	s := newTestStore(t)
	prompt := "Give me a morning briefing with weather, calendar and the top news headlines"
	task := mustAdd(t, s, NewTask{Prompt: prompt, Frequency: FrequencyDaily, TimeSpec: "09:00", UseTools: true})

	if task.ID != "task_42_20250101080000" {
		t.Fatalf("unexpected id %q", task.ID)
	}
	if task.Description != prompt[:50] {
		t.Fatalf("description should default to the prompt prefix, got %q", task.Description)
	}
	if !task.Enabled || task.RunCount != 0 || task.LastRun != nil {
		t.Fatalf("unexpected lifecycle fields: %+v", task)
	}
	if !task.NextRun.Equal(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("next run: %v", task.NextRun)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("Add should persist: %v", err)
	}
}

func TestStore_AddRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	bad := []NewTask{
		{UserID: "1", ChatID: "1", Prompt: "  ", Frequency: FrequencyDaily, TimeSpec: "09:00"},
		{ChatID: "1", Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "09:00"},
		{UserID: "1", Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "09:00"},
		{UserID: "1", ChatID: "1", Prompt: "x", Frequency: "monthly", TimeSpec: "1"},
	}
	for _, in := range bad {
		if _, err := s.Add(in); err == nil {
			t.Errorf("Add(%+v) should fail", in)
		}
	}

	// malformed specs are accepted with a fallback schedule
	task := mustAdd(t, s, NewTask{Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "half past nine"})
	if !task.NextRun.Equal(t0.AddDate(0, 0, 1)) {
		t.Fatalf("fallback next run: %v", task.NextRun)
	}
}

func TestStore_IDCollision(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, NewTask{Prompt: "a", Frequency: FrequencyHourly, TimeSpec: "0"})
	b := mustAdd(t, s, NewTask{Prompt: "b", Frequency: FrequencyHourly, TimeSpec: "0"})

	if a.ID == b.ID {
		t.Fatalf("ids collide: %s", a.ID)
	}
	if !regexp.MustCompile(`^task_42_20250101080000_\d{4}$`).MatchString(b.ID) {
		t.Fatalf("unexpected suffixed id %q", b.ID)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s1 := newTestStore(t)
	mustAdd(t, s1, NewTask{Prompt: "briefing", Frequency: FrequencyDaily, TimeSpec: "09:00", UseTools: true})
	once := mustAdd(t, s1, NewTask{UserID: "7", ChatID: "-100", Prompt: "remind me", Description: "reminder",
		Frequency: FrequencyOnce, TimeSpec: "2025-01-01T10:00:00"})
	s1.RecordRun(once.ID, t0.Add(2*time.Hour))

	first, err := os.ReadFile(s1.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	s2 := NewStore(s1.Path())
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s2.mu.Lock()
	s2.persistLocked()
	s2.mu.Unlock()

	second, err := os.ReadFile(s2.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("round trip changed the file:\n%s\n---\n%s", first, second)
	}

	want, got := s1.List(), s2.List()
	if len(want) != len(got) {
		t.Fatalf("task count: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.ID != g.ID || w.UserID != g.UserID || w.ChatID != g.ChatID || w.Prompt != g.Prompt ||
			w.Description != g.Description || w.Frequency != g.Frequency || w.TimeSpec != g.TimeSpec ||
			w.UseTools != g.UseTools || w.Enabled != g.Enabled || w.RunCount != g.RunCount ||
			!w.CreatedAt.Equal(g.CreatedAt) || !w.NextRun.Equal(g.NextRun) || (w.LastRun == nil) != (g.LastRun == nil) {
			t.Fatalf("task %d differs:\nwant %+v\ngot  %+v", i, w, g)
		}
	}
}

func TestStore_FileFormat(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "briefing", Frequency: FrequencyDaily, TimeSpec: "09:00"})

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(raw)
	for _, want := range []string{
		`"` + task.ID + `": {`,
		`"task_id": "` + task.ID + `"`,
		`"user_id": "42"`,
		`"next_run": "2025-01-01T09:00:00Z"`,
		`"last_run": null`,
		`"run_count": 0`,
		`"use_tools": false`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("task file missing %s:\n%s", want, content)
		}
	}
}

func TestStore_Toggle(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "09:00"})

	if enabled, ok := s.Toggle(task.ID); !ok || enabled {
		t.Fatalf("first toggle: enabled=%v ok=%v", enabled, ok)
	}
	if enabled, ok := s.Toggle(task.ID); !ok || !enabled {
		t.Fatalf("second toggle: enabled=%v ok=%v", enabled, ok)
	}
	if _, ok := s.Toggle("missing"); ok {
		t.Fatal("toggle of unknown id should report not found")
	}
}

func TestStore_RemoveAndGet(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "09:00"})

	if !s.Remove(task.ID) {
		t.Fatal("Remove should report an existing task")
	}
	if s.Remove(task.ID) {
		t.Fatal("second Remove should report false")
	}
	if _, ok := s.Get(task.ID); ok {
		t.Fatal("task still present")
	}
}

func TestStore_ListForUser(t *testing.T) {
	s := newTestStore(t)
	a := mustAdd(t, s, NewTask{UserID: "1", Prompt: "a", Frequency: FrequencyDaily, TimeSpec: "09:00"})
	s.now = func() time.Time { return t0.Add(time.Minute) }
	b := mustAdd(t, s, NewTask{UserID: "1", Prompt: "b", Frequency: FrequencyDaily, TimeSpec: "09:00"})
	mustAdd(t, s, NewTask{UserID: "2", Prompt: "c", Frequency: FrequencyDaily, TimeSpec: "09:00"})

	mine := s.ListForUser("1")
	if len(mine) != 2 || mine[0].ID != a.ID || mine[1].ID != b.ID {
		t.Fatalf("ListForUser: %+v", mine)
	}
	if len(s.ListForUser("3")) != 0 {
		t.Fatal("unknown user should have no tasks")
	}
	if st := s.Stats(); st.Total != 3 || st.Enabled != 3 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestStore_ListDue(t *testing.T) {
	s := newTestStore(t)
	due := mustAdd(t, s, NewTask{Prompt: "due", Frequency: FrequencyOnce, TimeSpec: "2024-12-31T23:00:00"})
	mustAdd(t, s, NewTask{Prompt: "later", Frequency: FrequencyOnce, TimeSpec: "2025-06-01T00:00:00"})
	off := mustAdd(t, s, NewTask{Prompt: "off", Frequency: FrequencyOnce, TimeSpec: "2024-12-31T22:00:00"})
	s.Toggle(off.ID)

	got := s.ListDue(t0)
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("ListDue: %+v", got)
	}
}

func TestStore_RecordRun(t *testing.T) {
	s := newTestStore(t)
	once := mustAdd(t, s, NewTask{Prompt: "once", Frequency: FrequencyOnce, TimeSpec: "2025-01-01T08:30:00"})
	custom := mustAdd(t, s, NewTask{UserID: "9", Prompt: "custom", Frequency: FrequencyCustom, TimeSpec: "30"})

	got, ok := s.RecordRun(once.ID, t0.Add(31*time.Minute))
	if !ok || got.Enabled || got.RunCount != 1 || got.LastRun == nil {
		t.Fatalf("once after run: %+v", got)
	}

	after := t0.Add(31 * time.Minute)
	got, _ = s.RecordRun(custom.ID, after)
	if !got.NextRun.Equal(after.Add(30 * time.Minute)) {
		t.Fatalf("custom next run should count from the run, got %v", got.NextRun)
	}

	s.Remove(custom.ID)
	if _, ok := s.RecordRun(custom.ID, after); ok {
		t.Fatal("RecordRun must not resurrect a removed task")
	}
	if _, ok := s.Get(custom.ID); ok {
		t.Fatal("removed task came back")
	}
}

func TestStore_Authorize(t *testing.T) {
	s := newTestStore(t)
	task := mustAdd(t, s, NewTask{UserID: "1", Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "09:00"})

	if _, err := s.Authorize("1", task.ID); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if _, err := s.Authorize("2", task.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("want ErrNotOwner, got %v", err)
	}
	if _, err := s.Authorize("1", "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("want ErrTaskNotFound, got %v", err)
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file should not error: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatal("expected empty store")
	}
}

func TestStore_LoadCorruptFile(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte(`{"task_1": {"prompt": `), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := s.Load(); err != nil {
		t.Fatalf("corrupt file should not fail Load: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatal("corrupt file should load as empty")
	}
	if _, err := os.Stat(s.Path() + ".corrupt"); err != nil {
		t.Fatalf("corrupt file not kept aside: %v", err)
	}

	// the next write must not touch the quarantined copy
	mustAdd(t, s, NewTask{Prompt: "x", Frequency: FrequencyDaily, TimeSpec: "09:00"})
	kept, _ := os.ReadFile(s.Path() + ".corrupt")
	if string(kept) != `{"task_1": {"prompt": ` {
		t.Fatalf("quarantined file changed: %q", kept)
	}
}

func TestStore_LoadLenientRecords(t *testing.T) {
	s := newTestStore(t)
	legacy := `{
  "task_123_20241231090000": {
    "task_id": "task_123_20241231090000",
    "user_id": 123,
    "chat_id": -1001234567890,
    "prompt": "Check that the backup disk is mounted",
    "frequency": "daily",
    "time_spec": "09:00",
    "created_at": "2024-12-31T09:00:00.123456",
    "last_run": null,
    "run_count": 4
  }
}`
	if err := os.WriteFile(s.Path(), []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	task, ok := s.Get("task_123_20241231090000")
	if !ok {
		t.Fatal("legacy task not loaded")
	}
	if task.UserID != "123" || task.ChatID != "-1001234567890" {
		t.Fatalf("numeric ids: user=%q chat=%q", task.UserID, task.ChatID)
	}
	if !task.UseTools || !task.Enabled || task.RunCount != 4 {
		t.Fatalf("defaults not applied: %+v", task)
	}
	if task.Description != "Check that the backup disk is mounted" {
		t.Fatalf("description: %q", task.Description)
	}
	if !task.NextRun.Equal(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("missing next_run should be recomputed, got %v", task.NextRun)
	}
	if task.CreatedAt.Year() != 2024 {
		t.Fatalf("created_at: %v", task.CreatedAt)
	}
}

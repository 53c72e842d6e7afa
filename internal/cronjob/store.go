package cronjob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/gg/gmap"
	"github.com/bytedance/sonic"

	"github.com/tgifai/macmate/internal/pkg/logs"
	"github.com/tgifai/macmate/internal/pkg/utils"
)

var (
	// fileJSON writes the task file with stable key order.
	fileJSON = sonic.Config{SortMapKeys: true}.Froze()
	// readJSON keeps numbers intact so numeric ids survive.
	readJSON = sonic.Config{UseNumber: true}.Froze()
)

// record is the on-disk shape of a Task. Fields are decoded leniently so
// hand-edited files and older writers load without loss.
type record struct {
	TaskID      string  `json:"task_id"`
	UserID      any     `json:"user_id"`
	ChatID      any     `json:"chat_id"`
	Prompt      string  `json:"prompt"`
	Description string  `json:"description"`
	Frequency   string  `json:"frequency"`
	TimeSpec    string  `json:"time_spec"`
	UseTools    *bool   `json:"use_tools"`
	Enabled     *bool   `json:"enabled"`
	CreatedAt   string  `json:"created_at"`
	LastRun     *string `json:"last_run"`
	NextRun     string  `json:"next_run"`
	RunCount    any     `json:"run_count"`
}

func toRecord(t Task) record {
	r := record{
		TaskID:      t.ID,
		UserID:      t.UserID,
		ChatID:      t.ChatID,
		Prompt:      t.Prompt,
		Description: t.Description,
		Frequency:   string(t.Frequency),
		TimeSpec:    t.TimeSpec,
		UseTools:    &t.UseTools,
		Enabled:     &t.Enabled,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		NextRun:     t.NextRun.Format(time.RFC3339),
		RunCount:    t.RunCount,
	}
	if t.LastRun != nil {
		last := t.LastRun.Format(time.RFC3339)
		r.LastRun = &last
	}
	return r
}

func (r record) toTask(id string, now time.Time) Task {
	t := Task{
		ID:          id,
		UserID:      flexString(r.UserID),
		ChatID:      flexString(r.ChatID),
		Prompt:      r.Prompt,
		Description: r.Description,
		Frequency:   Frequency(strings.ToLower(strings.TrimSpace(r.Frequency))),
		TimeSpec:    r.TimeSpec,
		UseTools:    r.UseTools == nil || *r.UseTools,
		Enabled:     r.Enabled == nil || *r.Enabled,
		RunCount:    flexInt(r.RunCount),
	}
	if t.Description == "" {
		t.Description = utils.Head(t.Prompt, 50)
	}
	if ts, ok := parseTimestamp(r.CreatedAt, now.Location()); ok {
		t.CreatedAt = ts
	} else {
		t.CreatedAt = now
	}
	if r.LastRun != nil {
		if ts, ok := parseTimestamp(*r.LastRun, now.Location()); ok {
			t.LastRun = &ts
		}
	}
	if ts, ok := parseTimestamp(r.NextRun, now.Location()); ok {
		t.NextRun = ts
	} else {
		t.NextRun = NextRun(t.Frequency, t.TimeSpec, now)
	}
	return t
}

func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := parseOnce(s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t.Truncate(time.Second), true
}

func flexString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func flexInt(v any) int {
	switch val := v.(type) {
	case json.Number:
		n, _ := val.Int64()
		return int(n)
	case int:
		return val
	case float64:
		return int(val)
	}
	return 0
}

// Store keeps every task in memory and rewrites the whole JSON file after
// each mutation.
type Store struct {
	path  string
	tasks map[string]Task // keyed by Task.ID
	mu    sync.RWMutex
	now   func() time.Time
}

// NewStore creates a Store backed by the given file path.
// If the file does not exist it will be created on the first write.
func NewStore(path string) *Store {
	return &Store{
		path:  path,
		tasks: make(map[string]Task),
		now:   time.Now,
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory tasks with the file content. A missing file
// yields an empty store. A corrupt file is logged, moved aside to
// <path>.corrupt and also yields an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]Task)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		logs.Warn("[cronjob] cannot read task file %s: %v", s.path, err)
		return fmt.Errorf("read task file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var records map[string]record
	if err := readJSON.Unmarshal(data, &records); err != nil {
		logs.Warn("[cronjob] task file %s is corrupt, starting empty: %v", s.path, err)
		s.quarantine()
		return nil
	}

	now := s.now()
	for id, r := range records {
		if id == "" {
			continue
		}
		s.tasks[id] = r.toTask(id, now)
	}
	logs.Info("[cronjob] loaded %d scheduled task(s) from %s", len(s.tasks), s.path)
	return nil
}

func (s *Store) quarantine() {
	bad := s.path + ".corrupt"
	if err := os.Rename(s.path, bad); err != nil {
		logs.Warn("[cronjob] move corrupt task file aside: %v", err)
		return
	}
	logs.Warn("[cronjob] corrupt task file kept at %s", bad)
}

// persistLocked writes all tasks atomically (tmp + rename). Failures are
// logged and the in-memory state is kept. Callers hold s.mu.
func (s *Store) persistLocked() {
	records := make(map[string]record, len(s.tasks))
	for id, t := range s.tasks {
		records[id] = toRecord(t)
	}

	data, err := fileJSON.MarshalIndent(records, "", "  ")
	if err != nil {
		logs.Error("[cronjob] marshal tasks: %v", err)
		return
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logs.Error("[cronjob] create task file directory: %v", err)
			return
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		logs.Error("[cronjob] write tmp task file: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		logs.Error("[cronjob] rename task file: %v", err)
	}
}

// Add creates a task, computes its first run and persists the store.
// A malformed time spec is accepted and falls back to a later run.
func (s *Store) Add(in NewTask) (Task, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	switch {
	case in.Prompt == "":
		return Task{}, errors.New("prompt is required")
	case in.UserID == "":
		return Task{}, errors.New("user id is required")
	case in.ChatID == "":
		return Task{}, errors.New("chat id is required")
	case !in.Frequency.Valid():
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, in.Frequency)
	}
	if err := CheckSpec(in.Frequency, in.TimeSpec); err != nil {
		logs.Warn("[cronjob] user %s: %v, using fallback schedule", in.UserID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Truncate(time.Second)
	t := Task{
		ID:          s.newIDLocked(in.UserID, now),
		UserID:      in.UserID,
		ChatID:      in.ChatID,
		Prompt:      in.Prompt,
		Description: strings.TrimSpace(in.Description),
		Frequency:   in.Frequency,
		TimeSpec:    strings.TrimSpace(in.TimeSpec),
		UseTools:    in.UseTools,
		Enabled:     true,
		CreatedAt:   now,
	}
	if t.Description == "" {
		t.Description = utils.Head(t.Prompt, 50)
	}
	t.NextRun = NextRun(t.Frequency, t.TimeSpec, now).Truncate(time.Second)

	s.tasks[t.ID] = t
	s.persistLocked()
	logs.Info("[cronjob] added task %s (%s %s) for user %s", t.ID, t.Frequency, t.TimeSpec, t.UserID)
	return t.clone(), nil
}

func (s *Store) newIDLocked(userID string, now time.Time) string {
	id := fmt.Sprintf("task_%s_%s", userID, now.Format("20060102150405"))
	for {
		if _, exists := s.tasks[id]; !exists {
			return id
		}
		id = fmt.Sprintf("task_%s_%s_%s", userID, now.Format("20060102150405"), utils.RandDigits(4))
	}
}

// Remove deletes a task and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	s.persistLocked()
	logs.Info("[cronjob] removed task %s", id)
	return true
}

func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t.clone(), ok
}

// Toggle flips Enabled and returns the new value.
func (s *Store) Toggle(id string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false, false
	}
	t.Enabled = !t.Enabled
	s.tasks[id] = t
	s.persistLocked()
	return t.Enabled, true
}

// RecordRun applies a finished execution to the live task: last run, run
// count, next run, and disabling once tasks. A task deleted while it ran is
// not brought back.
func (s *Store) RecordRun(id string, at time.Time) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	t.applyRun(at)
	s.tasks[id] = t
	s.persistLocked()
	return t.clone(), true
}

// Authorize returns the task when userID owns it.
func (s *Store) Authorize(userID, id string) (Task, error) {
	t, ok := s.Get(id)
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if t.UserID != userID {
		return Task{}, ErrNotOwner
	}
	return t, nil
}

// List returns every task ordered by creation time.
func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortByCreated(gmap.ToSlice(s.tasks, func(_ string, t Task) Task { return t.clone() }))
}

func (s *Store) ListForUser(userID string) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t.clone())
		}
	}
	return sortByCreated(out)
}

// ListDue returns enabled tasks whose next run is at or before now, earliest first.
func (s *Store) ListDue(now time.Time) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []Task
	for _, t := range s.tasks {
		if t.Due(now) {
			due = append(due, t.clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRun.Equal(due[j].NextRun) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextRun.Before(due[j].NextRun)
	})
	return due
}

type Stats struct {
	Total   int
	Enabled int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Total: len(s.tasks)}
	for _, t := range s.tasks {
		if t.Enabled {
			st.Enabled++
		}
	}
	return st
}

func sortByCreated(tasks []Task) []Task {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

package cronjob

import (
	"errors"
	"time"
)

// Frequency selects the recurrence rule and the grammar of TimeSpec.
type Frequency string

const (
	// FrequencyOnce fires at an ISO-8601 datetime.
	FrequencyOnce Frequency = "once"
	// FrequencyDaily fires every day at "HH:MM".
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly fires on "<weekday or 0-6> HH:MM", 0 being Monday.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyHourly fires every hour at minute "MM".
	FrequencyHourly Frequency = "hourly"
	// FrequencyCustom fires every N minutes.
	FrequencyCustom Frequency = "custom"
)

var Frequencies = []Frequency{FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyHourly, FrequencyCustom}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyHourly, FrequencyCustom:
		return true
	}
	return false
}

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrNotOwner         = errors.New("task belongs to another user")
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// Task is one persisted schedule entry. UserID and ChatID never change after
// creation.
type Task struct {
	ID          string
	UserID      string
	ChatID      string
	Prompt      string
	Description string
	Frequency   Frequency
	TimeSpec    string
	UseTools    bool
	Enabled     bool
	CreatedAt   time.Time
	LastRun     *time.Time
	NextRun     time.Time
	RunCount    int
}

// Due reports whether the task should run at now.
func (t Task) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

func (t Task) clone() Task {
	if t.LastRun != nil {
		last := *t.LastRun
		t.LastRun = &last
	}
	return t
}

// applyRun records one completed execution finishing at now.
func (t *Task) applyRun(now time.Time) {
	now = now.Truncate(time.Second)
	t.LastRun = &now
	t.RunCount++
	if t.Frequency == FrequencyOnce {
		t.Enabled = false
		return
	}
	t.NextRun = NextRun(t.Frequency, t.TimeSpec, now)
}

// NewTask is the input to Store.Add.
type NewTask struct {
	UserID      string
	ChatID      string
	Prompt      string
	Description string
	Frequency   Frequency
	TimeSpec    string
	UseTools    bool
}

package cronjob

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const displayLayout = "2006-01-02 15:04"

// Describe renders a rule for people, e.g. "every monday at 10:30".
func Describe(freq Frequency, spec string) string {
	switch freq {
	case FrequencyOnce:
		if t, err := parseOnce(strings.TrimSpace(spec), time.Local); err == nil {
			return "once at " + t.Format(displayLayout)
		}
		return "once at " + spec
	case FrequencyDaily:
		return "daily at " + spec
	case FrequencyWeekly:
		return "every " + spec
	case FrequencyHourly:
		if minute, err := strconv.Atoi(strings.TrimSpace(spec)); err == nil {
			return fmt.Sprintf("hourly at :%02d", minute)
		}
		return "hourly at :" + spec
	case FrequencyCustom:
		return "every " + spec + " minutes"
	default:
		return string(freq) + " " + spec
	}
}

// FormatTask is the multi-line chat rendering of one task.
func FormatTask(t Task) string {
	state := "enabled"
	if !t.Enabled {
		state = "disabled"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]\n", t.Description, state)
	fmt.Fprintf(&sb, "  id: %s\n", t.ID)
	fmt.Fprintf(&sb, "  schedule: %s\n", Describe(t.Frequency, t.TimeSpec))
	if t.Enabled {
		fmt.Fprintf(&sb, "  next run: %s\n", t.NextRun.Format(displayLayout))
	}
	if t.LastRun != nil {
		fmt.Fprintf(&sb, "  last run: %s (%d runs)\n", t.LastRun.Format(displayLayout), t.RunCount)
	}
	if !t.UseTools {
		sb.WriteString("  tools: off\n")
	}
	return sb.String()
}

func FormatTaskList(tasks []Task) string {
	if len(tasks) == 0 {
		return "You have no scheduled tasks. Create one with /schedule."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your scheduled tasks (%d):\n\n", len(tasks))
	for i, t := range tasks {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(FormatTask(t))
	}
	return sb.String()
}

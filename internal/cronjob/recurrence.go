package cronjob

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/robfig/cron/v3"
)

// cronParser is a standard 5-field cron expression parser (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// weekdays are indexed Monday first, matching the time_spec grammar.
var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// onceLayouts are tried before falling back to dateparse.
var onceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// OnceLayout is how once specs are written.
const OnceLayout = "2006-01-02T15:04:05"

// maxInterval bounds custom intervals and relative phrases. Longer values
// are treated as malformed.
const maxInterval = 366 * 24 * time.Hour

// NextRun computes the next execution instant of a rule relative to now.
// It never fails: a malformed spec yields a fallback instant in the future.
func NextRun(freq Frequency, spec string, now time.Time) time.Time {
	next, err := nextRun(freq, spec, now)
	if err != nil {
		return fallback(freq, now)
	}
	return next
}

// CheckSpec reports whether spec is well formed for freq.
func CheckSpec(freq Frequency, spec string) error {
	_, err := nextRun(freq, spec, time.Now())
	return err
}

func fallback(freq Frequency, now time.Time) time.Time {
	switch freq {
	case FrequencyDaily:
		return now.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return now.AddDate(0, 0, 7)
	default:
		return now.Add(time.Hour)
	}
}

func nextRun(freq Frequency, spec string, now time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	switch freq {
	case FrequencyOnce:
		return parseOnce(spec, now.Location())

	case FrequencyDaily:
		hour, minute, err := parseClock(spec)
		if err != nil {
			return time.Time{}, err
		}
		return cronNext(fmt.Sprintf("%d %d * * *", minute, hour), now)

	case FrequencyWeekly:
		parts := strings.Fields(strings.ToLower(spec))
		if len(parts) != 2 {
			return time.Time{}, fmt.Errorf("weekly spec %q: want \"<weekday> HH:MM\"", spec)
		}
		day, err := parseWeekday(parts[0])
		if err != nil {
			return time.Time{}, err
		}
		hour, minute, err := parseClock(parts[1])
		if err != nil {
			return time.Time{}, err
		}
		// cron counts Sunday as 0
		return cronNext(fmt.Sprintf("%d %d * * %d", minute, hour, (day+1)%7), now)

	case FrequencyHourly:
		minute, err := strconv.Atoi(spec)
		if err != nil || minute < 0 || minute > 59 {
			return time.Time{}, fmt.Errorf("hourly spec %q: want minute 0-59", spec)
		}
		return cronNext(fmt.Sprintf("%d * * * *", minute), now)

	case FrequencyCustom:
		minutes, err := strconv.Atoi(spec)
		if err != nil || minutes <= 0 {
			return time.Time{}, fmt.Errorf("custom spec %q: want a positive number of minutes", spec)
		}
		if int64(minutes) > int64(maxInterval/time.Minute) {
			return time.Time{}, fmt.Errorf("custom spec %q: interval longer than %s", spec, maxInterval)
		}
		return now.Add(time.Duration(minutes) * time.Minute), nil

	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, freq)
	}
}

func cronNext(expr string, now time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return sched.Next(now), nil
}

// parseClock reads a 24-hour "HH:MM".
func parseClock(s string) (int, int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q: hour out of range", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q: minute out of range", s)
	}
	return hour, minute, nil
}

// parseWeekday accepts a day name, a three-letter abbreviation or 0-6.
func parseWeekday(s string) (int, error) {
	for i, name := range weekdays {
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return n, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func parseOnce(spec string, loc *time.Location) (time.Time, error) {
	if spec == "" {
		return time.Time{}, errors.New("once spec is empty")
	}
	for _, layout := range onceLayouts {
		if t, err := time.ParseInLocation(layout, spec, loc); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(spec, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("once spec %q: %w", spec, err)
	}
	return t, nil
}

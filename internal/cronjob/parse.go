package cronjob

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const clockExpr = `(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`

var (
	weekdayRe    = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?\b`)
	clockRe      = regexp.MustCompile(clockExpr)
	dailyAtRe    = regexp.MustCompile(`(?:\bdaily|\beveryday|\bevery\s+day)(?:\s+at)?\s+` + clockExpr)
	dailyRe      = regexp.MustCompile(`\bdaily\b|\beveryday\b|\bevery\s+day\b`)
	hourlyAtRe   = regexp.MustCompile(`(?:\bhourly|\bevery\s+hour)(?:\s+at)?\s*:?(\d{1,2})\b`)
	hourlyRe     = regexp.MustCompile(`\bhourly\b|\bevery\s+hour\b`)
	everyRe      = regexp.MustCompile(`\bevery\s+(\d+)\s*(minutes?|mins?|hours?|hrs?|days?)\b`)
	inRe         = regexp.MustCompile(`\bin\s+(\d+)\s*(minutes?|mins?|hours?|hrs?|days?)\b`)
	tomorrowRe   = regexp.MustCompile(`\btomorrow\b`)
	explicitDate = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{2,4}`)
)

// ParseSchedule turns a phrase such as "daily at 9am", "every monday at
// 10:30" or "in 2 hours" into a rule. It never fails; unrecognised input
// means daily at 09:00. Relative phrases resolve against now.
func ParseSchedule(text string, now time.Time) (Frequency, string) {
	text = strings.ToLower(strings.TrimSpace(text))

	if m := weekdayRe.FindStringSubmatch(text); m != nil {
		hour, minute := 9, 0
		if c := clockRe.FindStringSubmatch(text); c != nil {
			hour, minute = clockOrDefault(c[1:])
		}
		return FrequencyWeekly, fmt.Sprintf("%s %02d:%02d", m[1], hour, minute)
	}

	if m := dailyAtRe.FindStringSubmatch(text); m != nil {
		hour, minute := clockOrDefault(m[1:])
		return FrequencyDaily, fmt.Sprintf("%02d:%02d", hour, minute)
	}
	if dailyRe.MatchString(text) {
		return FrequencyDaily, "09:00"
	}

	if m := hourlyAtRe.FindStringSubmatch(text); m != nil {
		if minute, _ := strconv.Atoi(m[1]); minute <= 59 {
			return FrequencyHourly, strconv.Itoa(minute)
		}
		return FrequencyHourly, "0"
	}
	if hourlyRe.MatchString(text) {
		return FrequencyHourly, "0"
	}

	if m := everyRe.FindStringSubmatch(text); m != nil {
		if d := unitDuration(m[1], m[2]); d > 0 {
			return FrequencyCustom, strconv.Itoa(int(d / time.Minute))
		}
	}

	if m := inRe.FindStringSubmatch(text); m != nil {
		if d := unitDuration(m[1], m[2]); d > 0 {
			return FrequencyOnce, now.Add(d).Format(OnceLayout)
		}
	}

	if tomorrowRe.MatchString(text) {
		hour, minute := 9, 0
		if c := clockRe.FindStringSubmatch(text); c != nil {
			hour, minute = clockOrDefault(c[1:])
		}
		y, mo, d := now.AddDate(0, 0, 1).Date()
		return FrequencyOnce, time.Date(y, mo, d, hour, minute, 0, 0, now.Location()).Format(OnceLayout)
	}

	if explicitDate.MatchString(text) {
		phrase := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "on "), "at "))
		if t, err := dateparse.ParseIn(phrase, now.Location()); err == nil {
			return FrequencyOnce, t.Format(OnceLayout)
		}
	}

	return FrequencyDaily, "09:00"
}

// clockOrDefault converts hour, minute and am/pm captures to 24-hour time,
// falling back to 09:00 when out of range.
func clockOrDefault(groups []string) (int, int) {
	hour, _ := strconv.Atoi(groups[0])
	minute := 0
	if len(groups) > 1 && groups[1] != "" {
		minute, _ = strconv.Atoi(groups[1])
	}
	if len(groups) > 2 {
		switch groups[2] {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
	}
	if hour > 23 || minute > 59 {
		return 9, 0
	}
	return hour, minute
}

func unitDuration(value, unit string) time.Duration {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0
	}
	step := 24 * time.Hour
	switch {
	case strings.HasPrefix(unit, "m"):
		step = time.Minute
	case strings.HasPrefix(unit, "h"):
		step = time.Hour
	}
	if int64(n) > int64(maxInterval/step) {
		return 0
	}
	return time.Duration(n) * step
}

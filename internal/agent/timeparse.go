package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var extraDateLayouts = []string{"2006-01-02", "01/02/2006", "January 2, 2006", "Jan 2, 2006"}

// NormalizeDate resolves a natural-language date expression against the
// caller-supplied reference date and returns canonical YYYY-MM-DD. The
// reference date keeps "tomorrow" and "next Monday" deterministic.
func NormalizeDate(raw string, ref time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	switch s {
	case "today":
		return ref.Format("2006-01-02"), true
	case "tomorrow":
		return ref.AddDate(0, 0, 1).Format("2006-01-02"), true
	}

	for name, wd := range weekdayNames {
		if !strings.Contains(s, name) {
			continue
		}
		ahead := int(wd - ref.Weekday())
		if strings.Contains(s, "next") {
			// "next Monday" is always in the future, never today.
			if ahead <= 0 {
				ahead += 7
			}
		} else {
			// "this Monday" or a bare weekday: today counts.
			if ahead < 0 {
				ahead += 7
			}
		}
		return ref.AddDate(0, 0, ahead).Format("2006-01-02"), true
	}

	for _, layout := range extraDateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

var (
	timeWithMinutesRE = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(am|pm)?$`)
	timeHourOnlyRE    = regexp.MustCompile(`^(\d{1,2})\s*(am|pm)$`)
)

// NormalizeTime converts a natural-language time expression to canonical
// 24-hour HH:MM. Day-part words map to the clinic's defaults.
func NormalizeTime(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	switch {
	case strings.Contains(s, "morning"):
		return "09:00", true
	case strings.Contains(s, "afternoon"):
		return "14:00", true
	case strings.Contains(s, "evening"):
		return "17:00", true
	case strings.Contains(s, "noon"), s == "12pm", s == "12 pm":
		return "12:00", true
	}

	if m := timeWithMinutesRE.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		hour, ok := applyMeridiem(hour, m[3])
		if !ok || minute > 59 {
			return "", false
		}
		return fmt.Sprintf("%02d:%02d", hour, minute), true
	}
	if m := timeHourOnlyRE.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		hour, ok := applyMeridiem(hour, m[2])
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%02d:00", hour), true
	}
	return "", false
}

func applyMeridiem(hour int, meridiem string) (int, bool) {
	switch meridiem {
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return 0, false
		}
	}
	return hour, true
}

// FormatDate renders a canonical date for user-facing messages.
func FormatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// FormatTime renders a canonical time for user-facing messages.
func FormatTime(timeOfDay string) string {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return timeOfDay
	}
	return t.Format("3:04 PM")
}

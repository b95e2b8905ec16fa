package agentrt

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// resolveTimeExpression turns a natural-language time expression extracted
// by the Intent Agent (spec.md §4.3 "time_expression") into an absolute
// instant relative to now. It returns ok=false when the expression cannot be
// resolved, in which case business_outputs.time stays unset and status
// forces to 0 (spec.md §4.3).
//
// Coverage is intentionally narrow: an optional day anchor (today/tomorrow/
// day after tomorrow and their Chinese equivalents, or a weekday name)
// combined with a required part-of-day or clock time; an expression with no
// part-of-day or clock time does not resolve. This is the same class of
// expression the worked example in spec.md §8 exercises ("明天下午" ->
// tomorrow afternoon).
func resolveTimeExpression(expr string, now time.Time) (time.Time, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, false
	}
	lower := strings.ToLower(expr)

	day := now
	anchored := true
	switch {
	case containsAny(lower, "today", "今天", "今日"):
		day = now
	case containsAny(lower, "day after tomorrow", "后天"):
		day = now.AddDate(0, 0, 2)
	case containsAny(lower, "tomorrow", "明天", "明日"):
		day = now.AddDate(0, 0, 1)
	default:
		if wd, ok := matchWeekday(lower); ok {
			day = nextWeekday(now, wd)
		} else {
			// no recognizable day anchor; only accept a bare clock time if
			// present, anchored to today (falls back to tomorrow if past).
			anchored = false
		}
	}

	hour, minute, hasClock := matchClockTime(lower)
	if !hasClock {
		hour, minute, hasClock = matchPartOfDay(lower)
	}
	if !hasClock {
		return time.Time{}, false
	}

	resolved := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
	if !resolved.After(now) {
		// if the caller only gave a bare clock time with no day anchor and
		// it has already passed today, assume tomorrow.
		if !anchored {
			resolved = resolved.AddDate(0, 0, 1)
		} else {
			return time.Time{}, false
		}
	}
	return resolved, true
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "周一": time.Monday, "星期一": time.Monday,
	"tuesday": time.Tuesday, "周二": time.Tuesday, "星期二": time.Tuesday,
	"wednesday": time.Wednesday, "周三": time.Wednesday, "星期三": time.Wednesday,
	"thursday": time.Thursday, "周四": time.Thursday, "星期四": time.Thursday,
	"friday": time.Friday, "周五": time.Friday, "星期五": time.Friday,
	"saturday": time.Saturday, "周六": time.Saturday, "星期六": time.Saturday,
	"sunday": time.Sunday, "周日": time.Sunday, "星期日": time.Sunday, "周天": time.Sunday,
}

func matchWeekday(s string) (time.Weekday, bool) {
	for name, wd := range weekdayNames {
		if strings.Contains(s, name) {
			return wd, true
		}
	}
	return 0, false
}

func nextWeekday(now time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(now.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return now.AddDate(0, 0, delta)
}

var clockPattern = regexp.MustCompile(`(\d{1,2})[:：点时](\d{0,2})?`)

func matchClockTime(s string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	min := 0
	if m[2] != "" {
		min, _ = strconv.Atoi(m[2])
	}
	if containsAny(s, "下午", "晚上", "pm") && h < 12 {
		h += 12
	}
	return h, min, true
}

func matchPartOfDay(s string) (hour, minute int, ok bool) {
	switch {
	case containsAny(s, "早上", "上午", "morning"):
		return 9, 0, true
	case containsAny(s, "中午", "noon"):
		return 12, 0, true
	case containsAny(s, "下午", "afternoon"):
		return 15, 0, true
	case containsAny(s, "晚上", "evening", "night"):
		return 19, 0, true
	default:
		return 0, 0, false
	}
}

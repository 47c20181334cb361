// Package nlp normalizes natural-language Spanish date, time and duration
// expressions into the canonical forms the rest of the system works with:
// ISO "YYYY-MM-DD" dates and 24-hour "HH:MM" times.
package nlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is a textual range such as "del 10 al 15 de marzo", resolved
// to inclusive start and end dates in the same month and year.
type DateRange struct {
	Start string
	End   string
}

var months = map[string]string{
	"enero": "01", "febrero": "02", "marzo": "03", "abril": "04",
	"mayo": "05", "junio": "06", "julio": "07", "agosto": "08",
	"septiembre": "09", "setiembre": "09", "octubre": "10",
	"noviembre": "11", "diciembre": "12",
}

var (
	isoPattern     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	numericPattern = regexp.MustCompile(`(\d{1,2})[\/\-\.](\d{1,2})[\/\-\.](\d{2,4})`)
	rangePattern   = regexp.MustCompile(`del\s+(\d{1,2})\s+al\s+(\d{1,2})\s+de\s+([a-zñ]+)(?:\s+de\s+(\d{4}))?`)
	monthPattern   = regexp.MustCompile(`(\d{1,2})\s*de\s*([a-zñ]+)(?:\s*(?:de\s*)?(\d{4}))?`)
	timePattern    = regexp.MustCompile(`^(?:a\s+las\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	durationHours  = regexp.MustCompile(`(\d+)\s*(?:horas?|h)\b`)
)

// accentFold maps accented vowels to their plain forms. The ñ is kept as
// is because month names depend on it.
var accentFold = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
)

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// NormalizeDate interprets a natural-language date expression relative to
// now. It returns either a single ISO date or a range, plus ok=false when
// nothing parseable was found. Already-ISO input is returned unchanged.
func NormalizeDate(text string, now time.Time) (string, *DateRange, bool) {
	text = accentFold.Replace(strings.ToLower(strings.TrimSpace(text)))
	if text == "" {
		return "", nil, false
	}

	if isoPattern.MatchString(text) {
		if _, err := time.Parse("2006-01-02", text); err != nil {
			return "", nil, false
		}
		return text, nil, true
	}

	if strings.Contains(text, "hoy") {
		return formatDate(now), nil, true
	}
	if strings.Contains(text, "mañana") || strings.Contains(text, "manana") {
		return formatDate(now.AddDate(0, 0, 1)), nil, true
	}

	if m := rangePattern.FindStringSubmatch(text); m != nil {
		mes, ok := months[m[3]]
		if !ok {
			return "", nil, false
		}
		year := m[4]
		if year == "" {
			year = strconv.Itoa(now.Year())
		}
		r := &DateRange{
			Start: fmt.Sprintf("%s-%s-%s", year, mes, pad2(m[1])),
			End:   fmt.Sprintf("%s-%s-%s", year, mes, pad2(m[2])),
		}
		return "", r, true
	}

	if m := numericPattern.FindStringSubmatch(text); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		return fmt.Sprintf("%s-%s-%s", year, pad2(m[2]), pad2(m[1])), nil, true
	}

	if m := monthPattern.FindStringSubmatch(text); m != nil {
		if mes, ok := months[m[2]]; ok {
			year := m[3]
			if year == "" {
				year = strconv.Itoa(now.Year())
			}
			return fmt.Sprintf("%s-%s-%s", year, mes, pad2(m[1])), nil, true
		}
	}

	// A bare month name means the first of that month.
	if mes, ok := months[text]; ok {
		return fmt.Sprintf("%d-%s-01", now.Year(), mes), nil, true
	}

	return "", nil, false
}

// NormalizeTime interprets a time expression and returns it as "HH:MM" in
// 24-hour form. Accepts "14:30", "2pm", "2:30 pm", "a las 9" and a bare
// hour. 12pm stays 12; 12am becomes 00.
func NormalizeTime(text string) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return "", false
	}
	minutes := m[2]
	if minutes == "" {
		minutes = "00"
	} else if mm, err := strconv.Atoi(minutes); err != nil || mm > 59 {
		return "", false
	}
	switch m[3] {
	case "pm":
		if hour > 12 {
			return "", false
		}
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	}
	return fmt.Sprintf("%02d:%s", hour, minutes), true
}

// NormalizeDuration extracts a duration in whole hours ("2 horas", "3h").
// Absent or unparseable input defaults to one hour.
func NormalizeDuration(text string) int {
	m := durationHours.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// AddHours advances an "HH:MM" time by n hours, wrapping within the same
// day. Day rollover is not tracked.
func AddHours(hhmm string, n int) (string, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return "", false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", false
	}
	h = (h + n) % 24
	return fmt.Sprintf("%02d:%02d", h, m), true
}

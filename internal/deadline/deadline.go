// Package deadline normalizes scholarship deadline strings to ISO dates and
// finds the first recognizable date in page text.
package deadline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	beforeKeyword = 250
	afterKeyword  = 350
	leadingText   = 1500
)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

const monthAlt = `Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t|tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?`

var (
	isoExact  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthName = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\b\s+(\d{1,2})(?:st|nd|rd|th)?\s*,\s*(\d{4})`)
	numeric   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
	isoAny    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	keyword   = regexp.MustCompile(`(?i)deadline`)
)

// searchPatterns are tried in order on each text window.
var searchPatterns = []*regexp.Regexp{monthName, numeric, isoAny}

// Parse converts s to YYYY-MM-DD. It accepts ISO dates, "Month D, YYYY"
// (full or short month names, optional ordinal suffix) and M/D/YYYY or
// M/D/YY, where two-digit years are taken as 20YY. Dates that do not exist
// on the calendar are rejected.
func Parse(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if isoExact.MatchString(s) {
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return "", false
		}
		return s, true
	}

	if m := monthName.FindStringSubmatch(s); m != nil {
		month := months[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return format(year, month, day)
	}

	if m := numeric.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return format(year, time.Month(month), day)
	}

	return "", false
}

func format(year int, month time.Month, day int) (string, bool) {
	if month < time.January || month > time.December || day < 1 {
		return "", false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2), which means the date
	// does not exist.
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// Find returns the first parseable date in text. The window from 250
// characters before to 350 after the first "deadline" (any case) is searched
// first, then the leading 1500 characters. Within a window, month-name dates
// win over numeric dates, which win over ISO dates.
func Find(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	// Windows are measured in characters, not bytes.
	runes := []rune(text)
	var windows []string
	if loc := keyword.FindStringIndex(text); loc != nil {
		idx := utf8.RuneCountInString(text[:loc[0]])
		windows = append(windows, string(runes[max(0, idx-beforeKeyword):min(len(runes), idx+afterKeyword)]))
	}
	windows = append(windows, string(runes[:min(len(runes), leadingText)]))

	for _, w := range windows {
		for _, re := range searchPatterns {
			m := re.FindString(w)
			if m == "" {
				continue
			}
			if iso, ok := Parse(m); ok {
				return iso, true
			}
		}
	}
	return "", false
}

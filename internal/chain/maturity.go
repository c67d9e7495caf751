package chain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaturityPolicy decides which day of the contract month a DLR future expires on.
type MaturityPolicy string

const (
	// LastBusinessDay is the last weekday of the month (exchange holidays are not modeled).
	LastBusinessDay MaturityPolicy = "business"
	// LastCalendarDay is the last calendar day of the month.
	LastCalendarDay MaturityPolicy = "calendar"
)

// ParsePolicy maps a config string to a policy, defaulting to LastBusinessDay.
func ParsePolicy(s string) (MaturityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "business", "last_business_day":
		return LastBusinessDay, nil
	case "calendar", "last_calendar_day":
		return LastCalendarDay, nil
	default:
		return "", fmt.Errorf("unknown maturity policy %q", s)
	}
}

// MonthEnd returns the maturity date for the given contract month in loc.
func MonthEnd(year int, month time.Month, policy MaturityPolicy, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	if policy != LastCalendarDay {
		for last.Weekday() == time.Saturday || last.Weekday() == time.Sunday {
			last = last.AddDate(0, 0, -1)
		}
	}
	return last
}

// DaysToExpiry counts whole civil days between today and maturity.
func DaysToExpiry(today, maturity time.Time) int {
	a := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(maturity.Year(), maturity.Month(), maturity.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

var monthCodes = map[string]time.Month{
	"ENE": time.January, "FEB": time.February, "MAR": time.March, "ABR": time.April,
	"MAY": time.May, "JUN": time.June, "JUL": time.July, "AGO": time.August,
	"SEP": time.September, "OCT": time.October, "NOV": time.November, "DIC": time.December,
}

var monthNames = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March, "abril": time.April,
	"mayo": time.May, "junio": time.June, "julio": time.July, "agosto": time.August,
	"septiembre": time.September, "setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

// ParseMonthCode resolves "ENE26" style codes (Spanish 3-letter month + 2-digit year).
func ParseMonthCode(code string) (int, time.Month, error) {
	if len(code) != 5 {
		return 0, 0, fmt.Errorf("month code %q: want 5 characters", code)
	}
	month, ok := monthCodes[strings.ToUpper(code[:3])]
	if !ok {
		return 0, 0, fmt.Errorf("month code %q: unknown month %q", code, code[:3])
	}
	yy, err := strconv.Atoi(code[3:])
	if err != nil {
		return 0, 0, fmt.Errorf("month code %q: %w", code, err)
	}
	return 2000 + yy, month, nil
}

var maturityTextRe = regexp.MustCompile(`(?i)(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre).*?(\d{4})`)

// ParseMaturityText finds a full Spanish month name followed by a 4-digit year, as used in
// the Ámbito contract descriptions ("Dólar Futuro Enero 2026").
func ParseMaturityText(text string) (int, time.Month, error) {
	m := maturityTextRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, fmt.Errorf("no month/year in %q", text)
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, fmt.Errorf("year in %q: %w", text, err)
	}
	return year, monthNames[strings.ToLower(m[1])], nil
}

// SyntheticTicker builds "DLR/DEC25" from a maturity date.
func SyntheticTicker(maturity time.Time) string {
	return Prefix + strings.ToUpper(maturity.Format("Jan06"))
}

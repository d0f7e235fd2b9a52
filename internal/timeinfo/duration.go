package timeinfo

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/rendis/procperf/pkg/schema"
)

// Fixed calendar multipliers. No month or leap-year arithmetic is applied.
const (
	msSecond = int64(1000)
	msMinute = 60 * msSecond
	msHour   = 60 * msMinute
	msDay    = 24 * msHour
	msWeek   = 7 * msDay
	msMonth  = 30 * msDay
	msYear   = 365 * msDay
)

var durationPattern = regexp.MustCompile(
	`^P(?:(\d+(?:[.,]\d+)?)Y)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)W)?(?:(\d+(?:[.,]\d+)?)D)?` +
		`(?:T(?:(\d+(?:[.,]\d+)?)H)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)

var durationUnits = [...]int64{msYear, msMonth, msWeek, msDay, msHour, msMinute, msSecond}

// ParseDuration converts an ISO-8601 duration (PnYnMnWnDTnHnMnS) into
// milliseconds using fixed multipliers.
func ParseDuration(s string) (int64, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s[len(s)-1] == 'T' {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "invalid ISO-8601 duration %q", s)
	}

	var total float64
	for i, unit := range durationUnits {
		part := m[i+1]
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(normalizeDecimal(part), 64)
		if err != nil {
			return 0, schema.NewErrorf(schema.ErrCodeValidation, "invalid ISO-8601 duration %q", s).WithCause(err)
		}
		total += v * float64(unit)
	}
	return int64(math.Round(total)), nil
}

func normalizeDecimal(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == ',' {
			b[i] = '.'
		}
	}
	return string(b)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an absolute timestamp as RFC 3339 or a calendar
// date. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, schema.NewErrorf(schema.ErrCodeValidation, "invalid timestamp %q", s)
}

package utils

import (
	"strings"
	"time"
	_ "time/tzdata" // zone rendering must not depend on the host's zoneinfo
)

const (
	InvalidDate = "Invalid Date"
	InvalidTime = "Invalid Time"

	layoutDateTime = "Jan 2, 2006, 3:04 PM"
	layoutDateDay  = "Mon, 01/02/2006"
	layoutDateOnly = "Jan 2, 2006"
	layoutTimeOnly = "3:04 PM"
)

// FormattedDateTime holds the display strings for one instant.
type FormattedDateTime struct {
	DateTime string `json:"dateTime"`
	DateDay  string `json:"dateDay"`
	DateOnly string `json:"dateOnly"`
	TimeOnly string `json:"timeOnly"`
}

var invalidFormatted = FormattedDateTime{
	DateTime: InvalidDate,
	DateDay:  InvalidDate,
	DateOnly: InvalidDate,
	TimeOnly: InvalidTime,
}

// zonedLayouts carry their own offset; localLayouts are read as wall clock
// time in the requested zone.
var (
	zonedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999Z0700"}
	localLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05", "2006-01-02T15:04"}
)

// FormatDateTime renders value in timeZone using fixed en-US conventions.
// value may be a time.Time, a *time.Time or a string. Anything missing or
// unparseable yields the "Invalid Date" / "Invalid Time" sentinels.
// An empty or unknown timeZone falls back to the local zone.
func FormatDateTime(value interface{}, timeZone string) FormattedDateTime {
	loc := LoadZone(timeZone)
	t, ok := ParseInstant(value, loc)
	if !ok {
		return invalidFormatted
	}
	t = t.In(loc)
	return FormattedDateTime{
		DateTime: t.Format(layoutDateTime),
		DateDay:  t.Format(layoutDateDay),
		DateOnly: t.Format(layoutDateOnly),
		TimeOnly: t.Format(layoutTimeOnly),
	}
}

// LoadZone resolves an IANA zone id, falling back to time.Local.
func LoadZone(timeZone string) *time.Location {
	timeZone = strings.TrimSpace(timeZone)
	if timeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ParseInstant converts a timestamp-bearing value to a time.Time.
// Strings without an offset are read in loc. A date-only string is midnight UTC.
func ParseInstant(value interface{}, loc *time.Location) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		return parseInstantString(v, loc)
	case *string:
		if v == nil {
			return time.Time{}, false
		}
		return parseInstantString(*v, loc)
	default:
		return time.Time{}, false
	}
}

func parseInstantString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, !t.IsZero()
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

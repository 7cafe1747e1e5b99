package utils

import (
	"testing"
	"time"
)

func TestFormatDateTime_KnownInstantUTC(t *testing.T) {
	got := FormatDateTime("2024-03-15T14:30:00Z", "UTC")

	want := FormattedDateTime{
		DateTime: "Mar 15, 2024, 2:30 PM",
		DateDay:  "Fri, 03/15/2024",
		DateOnly: "Mar 15, 2024",
		TimeOnly: "2:30 PM",
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFormatDateTime_ZoneShiftsWallClock(t *testing.T) {
	instant := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	got := FormatDateTime(instant, "Asia/Kolkata")
	if got.TimeOnly != "8:00 PM" {
		t.Errorf("expected 8:00 PM in Kolkata, got %s", got.TimeOnly)
	}

	got = FormatDateTime(&instant, "America/New_York")
	if got.DateTime != "Mar 15, 2024, 10:30 AM" {
		t.Errorf("expected New York rendering, got %s", got.DateTime)
	}
	if got.DateDay != "Fri, 03/15/2024" {
		t.Errorf("unexpected DateDay %s", got.DateDay)
	}
}

func TestFormatDateTime_CrossesDateLine(t *testing.T) {
	got := FormatDateTime("2024-03-15T23:30:00Z", "Asia/Tokyo")
	if got.DateOnly != "Mar 16, 2024" {
		t.Errorf("expected next day in Tokyo, got %s", got.DateOnly)
	}
	if got.DateDay != "Sat, 03/16/2024" {
		t.Errorf("expected Saturday in Tokyo, got %s", got.DateDay)
	}
}

func TestFormatDateTime_InvalidInputs(t *testing.T) {
	var nilTime *time.Time
	inputs := []interface{}{
		nil,
		"utc",
		"",
		"not a date",
		time.Time{},
		nilTime,
		42,
		struct{}{},
	}
	for _, in := range inputs {
		got := FormatDateTime(in, "UTC")
		if got.DateTime != InvalidDate || got.DateDay != InvalidDate || got.DateOnly != InvalidDate {
			t.Errorf("input %#v: expected Invalid Date sentinels, got %+v", in, got)
		}
		if got.TimeOnly != InvalidTime {
			t.Errorf("input %#v: expected Invalid Time, got %s", in, got.TimeOnly)
		}
	}
}

func TestFormatDateTime_Deterministic(t *testing.T) {
	a := FormatDateTime("2024-03-15T14:30:00.123Z", "Europe/Paris")
	b := FormatDateTime("2024-03-15T14:30:00.123Z", "Europe/Paris")
	if a != b {
		t.Errorf("same inputs produced different output: %+v vs %+v", a, b)
	}
	if a.TimeOnly != "3:30 PM" {
		t.Errorf("expected 3:30 PM in Paris, got %s", a.TimeOnly)
	}
}

func TestLoadZone_FallsBackToLocal(t *testing.T) {
	if LoadZone("") != time.Local {
		t.Error("empty zone must fall back to local")
	}
	if LoadZone("Mars/Olympus_Mons") != time.Local {
		t.Error("unknown zone must fall back to local")
	}
	if LoadZone("UTC").String() != "UTC" {
		t.Error("expected UTC to resolve")
	}
}

func TestParseInstant_ZonelessStringUsesLocation(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Kolkata")
	got, ok := ParseInstant("2024-03-15T20:00:00", loc)
	if !ok {
		t.Fatal("expected zoneless timestamp to parse")
	}
	want := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got.UTC(), want)
	}

	got, ok = ParseInstant("2024-03-15", loc)
	if !ok || !got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date-only must be midnight UTC, got %v", got)
	}
}

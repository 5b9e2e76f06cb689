package nlp

import (
	"testing"
	"time"
)

func TestParseCalendar_RequiresDateTime(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	_, _, ok := parseCalendar("a meeting with no date reference", LangEnglish, now, 30)
	if ok {
		t.Fatal("expected failure without a date reference")
	}
}

func TestParseCalendar_DetectsVideocallSentinel(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	data, _, ok := parseCalendar("zoom call tomorrow at 10:00", LangEnglish, now, 30)
	if !ok {
		t.Fatal("expected a match")
	}
	if data.Location != VideocallSentinel {
		t.Fatalf("expected videocall sentinel, got %q", data.Location)
	}
	if data.Platform != "zoom" {
		t.Fatalf("expected zoom platform, got %q", data.Platform)
	}
}

func TestParseCalendar_FallsBackToDefaultDuration(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	data, _, ok := parseCalendar("meeting tomorrow at 14:00", LangEnglish, now, 45)
	if !ok {
		t.Fatal("expected a match")
	}
	if data.DurationMinutes != 45 {
		t.Fatalf("expected default duration 45, got %d", data.DurationMinutes)
	}
}

func TestParseCalendar_DetectsRecurrence(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	data, _, ok := parseCalendar("standup every day tomorrow at 09:00", LangEnglish, now, 30)
	if !ok {
		t.Fatal("expected a match")
	}
	if data.Recurrence != "daily" {
		t.Fatalf("expected daily recurrence, got %q", data.Recurrence)
	}
}

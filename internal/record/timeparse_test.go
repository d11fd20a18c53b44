package record

import (
	"testing"
	"time"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("failed to load Europe/Berlin: %v", err)
	}
	return loc
}

func TestParseTime_RFC3339PassesThrough(t *testing.T) {
	got, err := ParseTime("2025-03-01T09:00:00+02:00", berlin(t))
	if err != nil {
		t.Fatalf("ParseTime() error = %v", err)
	}
	want := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseTime() = %v, want %v", got, want)
	}
}

// オフセットの無い入力はアプリケーションのタイムゾーンの壁時計時刻として解釈する。
// 3月1日のベルリンはCET（UTC+1）。
func TestParseTime_NaiveUsesAppTimezone(t *testing.T) {
	got, err := ParseTime("2025-03-01T10:00:00", berlin(t))
	if err != nil {
		t.Fatalf("ParseTime() error = %v", err)
	}
	want := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseTime() = %v (UTC %v), want %v", got, got.UTC(), want)
	}
}

func TestParseTime_AcceptedLayouts(t *testing.T) {
	loc := berlin(t)
	inputs := []string{
		"2025-03-01T10:00",
		"2025-03-01 10:00:00",
		"2025-03-01 10:00",
		"2025-03-01",
	}
	for _, in := range inputs {
		if _, err := ParseTime(in, loc); err != nil {
			t.Errorf("ParseTime(%q) error = %v", in, err)
		}
	}
}

func TestParseTime_RejectsGarbage(t *testing.T) {
	if _, err := ParseTime("next tuesday", berlin(t)); err == nil {
		t.Error("expected error for unparseable input")
	}
}

func TestParseOptionalTime_EmptyIsNil(t *testing.T) {
	got, err := ParseOptionalTime("", berlin(t))
	if err != nil || got != nil {
		t.Errorf("ParseOptionalTime(\"\") = %v, %v, want nil, nil", got, err)
	}
}

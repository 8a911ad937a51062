package catalog

import (
	"testing"
	"time"

	"dinner-house/internal/domain"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestAvailableAt(t *testing.T) {
	lunch := domain.ItemAvailability{DOW: 1, StartTime: "11:00", EndTime: "14:00"}     // Monday
	lateNight := domain.ItemAvailability{DOW: 5, StartTime: "22:00", EndTime: "02:00"} // Friday night

	tests := []struct {
		name    string
		windows []domain.ItemAvailability
		when    string // 2025-03-10 is a Monday, 2025-03-14 a Friday
		want    bool
	}{
		{"no windows means always", nil, "2025-03-10 03:00", true},
		{"inside lunch window", []domain.ItemAvailability{lunch}, "2025-03-10 12:30", true},
		{"before lunch window", []domain.ItemAvailability{lunch}, "2025-03-10 10:59", false},
		{"right day wrong time", []domain.ItemAvailability{lunch}, "2025-03-10 15:00", false},
		{"wrong day", []domain.ItemAvailability{lunch}, "2025-03-11 12:30", false},
		{"overnight late evening", []domain.ItemAvailability{lateNight}, "2025-03-14 23:30", true},
		{"overnight small hours same day", []domain.ItemAvailability{lateNight}, "2025-03-14 01:30", true},
		{"overnight gap between spans", []domain.ItemAvailability{lateNight}, "2025-03-14 03:00", false},
		{"overnight next day", []domain.ItemAvailability{lateNight}, "2025-03-15 01:30", false},
		{"overnight wrong evening", []domain.ItemAvailability{lateNight}, "2025-03-13 23:30", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AvailableAt(tt.windows, at(t, tt.when)); got != tt.want {
				t.Errorf("AvailableAt(%s) = %v, want %v", tt.when, got, tt.want)
			}
		})
	}
}

func TestAvailableAtDateBounds(t *testing.T) {
	start := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	w := domain.ItemAvailability{DOW: 1, StartTime: "11:00", EndTime: "14:00", StartDate: &start}

	if AvailableAt([]domain.ItemAvailability{w}, at(t, "2025-03-10 12:00")) {
		t.Error("window should not match before its start date")
	}
	if !AvailableAt([]domain.ItemAvailability{w}, at(t, "2025-03-17 12:00")) {
		t.Error("window should match after its start date")
	}
}

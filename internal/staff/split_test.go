package staff

import (
	"testing"
	"time"
)

const seoulOffset = 540 // minutes east of UTC

// local builds a UTC instant from wall-clock time in the given fixed offset.
func local(t *testing.T, offsetMin int, value string) time.Time {
	t.Helper()
	loc := time.FixedZone("local", offsetMin*60)
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", value, loc)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts.UTC()
}

func TestElapsedMinutes(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"exact hour", base.Add(time.Hour), 60},
		{"truncates seconds", base.Add(90*time.Minute + 59*time.Second), 90},
		{"under a minute", base.Add(45 * time.Second), 0},
		{"equal timestamps", base, 0},
		{"end before start", base.Add(-time.Minute), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ElapsedMinutes(base, tt.end); got != tt.want {
				t.Errorf("ElapsedMinutes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSplitLocalDaysSingleDay(t *testing.T) {
	start := local(t, seoulOffset, "2025-03-10 09:00:00")
	end := local(t, seoulOffset, "2025-03-10 17:30:00")

	got := SplitLocalDays(start, end, seoulOffset)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d: %+v", len(got), got)
	}
	if got[0].Minutes != 510 {
		t.Errorf("minutes = %d, want 510", got[0].Minutes)
	}
	if d := got[0].Date.Format("2006-01-02"); d != "2025-03-10" {
		t.Errorf("date = %s, want 2025-03-10", d)
	}
}

func TestSplitLocalDaysAcrossMidnight(t *testing.T) {
	// 23:30 local clock-in, 00:45 next-day clock-out: 30 + 45 = 75.
	start := local(t, seoulOffset, "2025-03-10 23:30:00")
	end := local(t, seoulOffset, "2025-03-11 00:45:00")

	got := SplitLocalDays(start, end, seoulOffset)
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %+v", len(got), got)
	}
	if got[0].Minutes != 30 || got[1].Minutes != 45 {
		t.Errorf("minutes = %d/%d, want 30/45", got[0].Minutes, got[1].Minutes)
	}
	if d := got[0].Date.Format("2006-01-02"); d != "2025-03-10" {
		t.Errorf("first date = %s, want 2025-03-10", d)
	}
	if d := got[1].Date.Format("2006-01-02"); d != "2025-03-11" {
		t.Errorf("second date = %s, want 2025-03-11", d)
	}
}

func TestSplitLocalDaysMultipleMidnights(t *testing.T) {
	// 22:00 day one through 02:00 day three: 120 + 1440 + 120.
	start := local(t, seoulOffset, "2025-03-10 22:00:00")
	end := local(t, seoulOffset, "2025-03-12 02:00:00")

	got := SplitLocalDays(start, end, seoulOffset)
	if len(got) != 3 {
		t.Fatalf("expected 3 buckets, got %d: %+v", len(got), got)
	}
	want := []int{120, 1440, 120}
	for i, b := range got {
		if b.Minutes != want[i] {
			t.Errorf("bucket %d minutes = %d, want %d", i, b.Minutes, want[i])
		}
	}
}

func TestSplitLocalDaysSumsExactly(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
	}{
		{"odd seconds near midnight", "2025-03-10 23:59:41", "2025-03-11 00:10:19"},
		{"seconds on both ends", "2025-03-10 21:15:30", "2025-03-11 03:40:10"},
		{"ends exactly at midnight", "2025-03-10 20:00:00", "2025-03-11 00:00:00"},
		{"starts exactly at midnight", "2025-03-11 00:00:00", "2025-03-11 06:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := local(t, seoulOffset, tt.start)
			end := local(t, seoulOffset, tt.end)

			total := ElapsedMinutes(start, end)
			sum := 0
			for _, b := range SplitLocalDays(start, end, seoulOffset) {
				if b.Minutes <= 0 {
					t.Errorf("non-positive bucket: %+v", b)
				}
				sum += b.Minutes
			}
			if sum != total {
				t.Errorf("bucket sum = %d, want total %d", sum, total)
			}
		})
	}
}

func TestSplitLocalDaysEmptyInterval(t *testing.T) {
	start := local(t, seoulOffset, "2025-03-10 09:00:00")
	if got := SplitLocalDays(start, start, seoulOffset); got != nil {
		t.Errorf("expected nil for empty interval, got %+v", got)
	}
	if got := SplitLocalDays(start, start.Add(30*time.Second), seoulOffset); got != nil {
		t.Errorf("expected nil for sub-minute interval, got %+v", got)
	}
}

func TestSplitLocalDaysUsesLocalOffset(t *testing.T) {
	// 23:30 UTC is 08:30 next day in UTC+9, so this does not cross a
	// Seoul midnight even though it crosses a UTC one.
	start := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	end := start.Add(75 * time.Minute)

	got := SplitLocalDays(start, end, seoulOffset)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d: %+v", len(got), got)
	}
	if got[0].Minutes != 75 {
		t.Errorf("minutes = %d, want 75", got[0].Minutes)
	}
	if d := got[0].Date.Format("2006-01-02"); d != "2025-03-11" {
		t.Errorf("date = %s, want 2025-03-11", d)
	}
}

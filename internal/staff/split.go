package staff

import "time"

// DayBucket is one local-calendar-date share of a closed shift.
type DayBucket struct {
	Date    time.Time // midnight in the local offset, date part is what matters
	Minutes int
}

// ElapsedMinutes returns whole minutes between start and end, truncated.
func ElapsedMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// SplitLocalDays distributes a closed shift's [start, end) interval across
// local calendar dates, splitting at each local midnight. offsetMinutes is
// the fixed local UTC offset. Boundaries are computed in elapsed-minute
// units so the bucket minutes always sum exactly to ElapsedMinutes(start, end):
// a 23:30 to 00:45 local shift yields 30 minutes on the first date and 45 on
// the second.
func SplitLocalDays(start, end time.Time, offsetMinutes int) []DayBucket {
	total := ElapsedMinutes(start, end)
	if total <= 0 {
		return nil
	}

	loc := time.FixedZone("local", offsetMinutes*60)
	localStart := start.In(loc)
	day := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, loc)

	// Elapsed-minute offsets of each local midnight after start, clamped to
	// the shift's range. Truncation matches ElapsedMinutes so no minute is
	// lost or counted twice.
	var buckets []DayBucket
	prev := 0
	for {
		nextMidnight := day.AddDate(0, 0, 1)
		boundary := int(nextMidnight.Sub(start) / time.Minute)
		if boundary < prev {
			boundary = prev
		}
		if boundary >= total {
			buckets = append(buckets, DayBucket{Date: day, Minutes: total - prev})
			return buckets
		}
		if boundary > prev {
			buckets = append(buckets, DayBucket{Date: day, Minutes: boundary - prev})
		}
		prev = boundary
		day = nextMidnight
	}
}

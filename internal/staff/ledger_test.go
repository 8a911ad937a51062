package staff

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
)

// fakeStore reproduces the repository's transactional semantics in memory:
// at most one open shift per staff, close validates the window, distribution
// is idempotent by shift id.
type fakeStore struct {
	staff  map[int64]*domain.Staff
	shifts map[int64]*domain.Shift
	hours  map[string]*domain.DailyHours // staffID|date
	nextID int64
	offset int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		staff:  map[int64]*domain.Staff{},
		shifts: map[int64]*domain.Shift{},
		hours:  map[string]*domain.DailyHours{},
		nextID: 1,
		offset: 540,
	}
}

func (f *fakeStore) addStaff(id int64, active bool) {
	f.staff[id] = &domain.Staff{ID: id, DisplayName: "staff", Role: domain.RoleKitchen, IsActive: active}
}

func (f *fakeStore) GetStaff(_ context.Context, id int64) (*domain.Staff, error) {
	s, ok := f.staff[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) OpenShiftTx(_ context.Context, staffID int64, startedAt time.Time) (*domain.Shift, error) {
	for _, sh := range f.shifts {
		if sh.StaffID == staffID && sh.Open() {
			return nil, domain.Conflictf("staff %d already has open shift %d", staffID, sh.ID)
		}
	}
	sh := &domain.Shift{ID: f.nextID, StaffID: staffID, StartedAt: startedAt.UTC()}
	f.nextID++
	f.shifts[sh.ID] = sh
	return sh, nil
}

func (f *fakeStore) CloseShiftTx(_ context.Context, shiftID int64, endedAt time.Time) (*domain.Shift, []DayBucket, error) {
	sh, ok := f.shifts[shiftID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if !sh.Open() {
		return nil, nil, domain.Invalidf("shift %d is already closed", shiftID)
	}
	endedAt = endedAt.UTC()
	if !endedAt.After(sh.StartedAt) {
		return nil, nil, domain.Invalidf("shift end is not after start")
	}
	minutes := ElapsedMinutes(sh.StartedAt, endedAt)
	sh.EndedAt = &endedAt
	sh.WorkMinutes = &minutes
	buckets := SplitLocalDays(sh.StartedAt, endedAt, f.offset)
	for _, b := range buckets {
		f.applyBucket(sh.StaffID, shiftID, b)
	}
	return sh, buckets, nil
}

func (f *fakeStore) applyBucket(staffID, shiftID int64, b DayBucket) {
	key := b.Date.Format("2006-01-02")
	dh, ok := f.hours[keyFor(staffID, key)]
	if !ok {
		f.hours[keyFor(staffID, key)] = &domain.DailyHours{
			StaffID: staffID, WorkDate: b.Date, Minutes: b.Minutes, ShiftIDs: []int64{shiftID},
		}
		return
	}
	for _, id := range dh.ShiftIDs {
		if id == shiftID {
			return
		}
	}
	dh.Minutes += b.Minutes
	dh.ShiftIDs = append(dh.ShiftIDs, shiftID)
}

func keyFor(staffID int64, date string) string {
	return fmt.Sprintf("%d|%s", staffID, date)
}

func (f *fakeStore) OpenShiftFor(_ context.Context, staffID int64) (*domain.Shift, error) {
	for _, sh := range f.shifts {
		if sh.StaffID == staffID && sh.Open() {
			return sh, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) ListShifts(_ context.Context, staffID int64, _, _ time.Time, _ int) ([]domain.Shift, error) {
	var out []domain.Shift
	for _, sh := range f.shifts {
		if sh.StaffID == staffID {
			out = append(out, *sh)
		}
	}
	return out, nil
}

func (f *fakeStore) DailyHoursRange(_ context.Context, staffID int64, _, _ time.Time) ([]domain.DailyHours, error) {
	var out []domain.DailyHours
	for _, dh := range f.hours {
		if dh.StaffID == staffID {
			out = append(out, *dh)
		}
	}
	return out, nil
}

func (f *fakeStore) DailyHoursReport(_ context.Context, _, _ time.Time) ([]DailyHoursReportRow, error) {
	return nil, nil
}

type capturedEvents struct {
	events []domain.ShiftEvent
	err    error
}

func (c *capturedEvents) PublishShiftEvent(_ context.Context, ev domain.ShiftEvent) error {
	c.events = append(c.events, ev)
	return c.err
}

func newTestLedger(store *fakeStore, events *capturedEvents) *Ledger {
	return NewLedger(store, events, logger.NewNop())
}

func TestClockInOpensShift(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	events := &capturedEvents{}
	ledger := newTestLedger(store, events)

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sh, err := ledger.ClockIn(context.Background(), 1, start)
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	if !sh.Open() {
		t.Error("new shift should be open")
	}
	if len(events.events) != 1 || events.events[0].Event != domain.EventShiftOpened {
		t.Errorf("expected one shift_opened event, got %+v", events.events)
	}
}

func TestClockInRejectsSecondOpenShift(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	ledger := newTestLedger(store, &capturedEvents{})

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if _, err := ledger.ClockIn(context.Background(), 1, start); err != nil {
		t.Fatalf("first ClockIn: %v", err)
	}
	_, err := ledger.ClockIn(context.Background(), 1, start.Add(time.Hour))
	if !domain.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestClockInUnknownOrInactiveStaff(t *testing.T) {
	store := newFakeStore()
	store.addStaff(2, false)
	ledger := newTestLedger(store, &capturedEvents{})

	if _, err := ledger.ClockIn(context.Background(), 99, time.Time{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown staff: expected ErrNotFound, got %v", err)
	}
	if _, err := ledger.ClockIn(context.Background(), 2, time.Time{}); !domain.IsValidation(err) {
		t.Errorf("inactive staff: expected validation error, got %v", err)
	}
}

func TestClockOutComputesFlooredMinutes(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	ledger := newTestLedger(store, &capturedEvents{})

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sh, err := ledger.ClockIn(context.Background(), 1, start)
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	closed, err := ledger.ClockOut(context.Background(), sh.ID, start.Add(90*time.Minute+45*time.Second))
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if closed.WorkMinutes == nil || *closed.WorkMinutes != 90 {
		t.Errorf("work minutes = %v, want 90", closed.WorkMinutes)
	}
	if closed.Open() {
		t.Error("shift should be closed")
	}
}

func TestClockOutRejectsNonPositiveWindow(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	ledger := newTestLedger(store, &capturedEvents{})

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sh, _ := ledger.ClockIn(context.Background(), 1, start)

	if _, err := ledger.ClockOut(context.Background(), sh.ID, start); !domain.IsValidation(err) {
		t.Errorf("end == start: expected validation error, got %v", err)
	}
	// The rejected close must leave the shift open and the rollup empty.
	if got, _ := store.OpenShiftFor(context.Background(), 1); got == nil {
		t.Fatal("shift should still be open")
	}
	if hours, _ := store.DailyHoursRange(context.Background(), 1, time.Time{}, time.Time{}); len(hours) != 0 {
		t.Errorf("expected no daily hours, got %+v", hours)
	}
}

func TestClockOutTwiceRejected(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	ledger := newTestLedger(store, &capturedEvents{})

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sh, _ := ledger.ClockIn(context.Background(), 1, start)
	if _, err := ledger.ClockOut(context.Background(), sh.ID, start.Add(time.Hour)); err != nil {
		t.Fatalf("first ClockOut: %v", err)
	}
	if _, err := ledger.ClockOut(context.Background(), sh.ID, start.Add(2*time.Hour)); !domain.IsValidation(err) {
		t.Errorf("second ClockOut: expected validation error, got %v", err)
	}

	// The rejected retry must not touch the rollup.
	hours, _ := store.DailyHoursRange(context.Background(), 1, time.Time{}, time.Time{})
	if len(hours) != 1 || hours[0].Minutes != 60 {
		t.Errorf("daily hours after rejected retry = %+v, want one row of 60", hours)
	}
}

func TestDistributeSameShiftTwiceIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	ledger := newTestLedger(store, &capturedEvents{})

	loc := time.FixedZone("local", 540*60)
	start := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)
	end := time.Date(2025, 3, 11, 0, 45, 0, 0, loc)

	sh, _ := ledger.ClockIn(context.Background(), 1, start)
	if _, err := ledger.ClockOut(context.Background(), sh.ID, end); err != nil {
		t.Fatalf("ClockOut: %v", err)
	}

	snapshot := func() (total int, ids int) {
		hours, _ := store.DailyHoursRange(context.Background(), 1, time.Time{}, time.Time{})
		for _, dh := range hours {
			total += dh.Minutes
			ids += len(dh.ShiftIDs)
		}
		return total, ids
	}
	totalBefore, idsBefore := snapshot()
	if totalBefore != 75 {
		t.Fatalf("total minutes = %d, want 75", totalBefore)
	}

	// Re-applying the same shift's buckets, as a redelivered or retried
	// distribution would, must change nothing: each bucket is keyed by the
	// shift id already recorded in the row.
	for _, b := range SplitLocalDays(sh.StartedAt, *sh.EndedAt, store.offset) {
		store.applyBucket(sh.StaffID, sh.ID, b)
	}

	totalAfter, idsAfter := snapshot()
	if totalAfter != totalBefore || idsAfter != idsBefore {
		t.Errorf("reapplied distribution changed the rollup: minutes %d->%d, shift ids %d->%d",
			totalBefore, totalAfter, idsBefore, idsAfter)
	}
}

func TestClockOutDistributesAcrossMidnight(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	events := &capturedEvents{}
	ledger := newTestLedger(store, events)

	// 23:30 to 00:45 in UTC+9.
	loc := time.FixedZone("local", 540*60)
	start := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)
	end := time.Date(2025, 3, 11, 0, 45, 0, 0, loc)

	sh, _ := ledger.ClockIn(context.Background(), 1, start)
	if _, err := ledger.ClockOut(context.Background(), sh.ID, end); err != nil {
		t.Fatalf("ClockOut: %v", err)
	}

	hours, _ := store.DailyHoursRange(context.Background(), 1, time.Time{}, time.Time{})
	if len(hours) != 2 {
		t.Fatalf("expected 2 daily rows, got %d: %+v", len(hours), hours)
	}
	total := 0
	for _, dh := range hours {
		total += dh.Minutes
	}
	if total != 75 {
		t.Errorf("total minutes = %d, want 75", total)
	}

	// The closing event carries the same per-day breakdown.
	last := events.events[len(events.events)-1]
	if len(last.Days) != 2 || last.Days[0].Minutes != 30 || last.Days[1].Minutes != 45 {
		t.Errorf("event days = %+v, want 30 then 45", last.Days)
	}
}

func TestClockOutPublishesEventAfterCommit(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	events := &capturedEvents{err: errors.New("broker down")}
	ledger := newTestLedger(store, events)

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	sh, _ := ledger.ClockIn(context.Background(), 1, start)

	// A failing publisher must not fail the close itself.
	closed, err := ledger.ClockOut(context.Background(), sh.ID, start.Add(8*time.Hour))
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if closed.Open() {
		t.Error("shift should be closed despite publish failure")
	}
	last := events.events[len(events.events)-1]
	if last.Event != domain.EventShiftClosed || last.Minutes != 480 {
		t.Errorf("unexpected closing event: %+v", last)
	}
}

func TestClockOutByStaff(t *testing.T) {
	store := newFakeStore()
	store.addStaff(1, true)
	ledger := newTestLedger(store, &capturedEvents{})

	if _, err := ledger.ClockOutByStaff(context.Background(), 1, time.Time{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("no open shift: expected ErrNotFound, got %v", err)
	}

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if _, err := ledger.ClockIn(context.Background(), 1, start); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	closed, err := ledger.ClockOutByStaff(context.Background(), 1, start.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("ClockOutByStaff: %v", err)
	}
	if closed.WorkMinutes == nil || *closed.WorkMinutes != 240 {
		t.Errorf("work minutes = %v, want 240", closed.WorkMinutes)
	}
}

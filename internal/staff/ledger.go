package staff

import (
	"context"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
)

// Store is the persistence surface the ledger needs. *Repository satisfies it.
type Store interface {
	GetStaff(ctx context.Context, id int64) (*domain.Staff, error)
	OpenShiftTx(ctx context.Context, staffID int64, startedAt time.Time) (*domain.Shift, error)
	CloseShiftTx(ctx context.Context, shiftID int64, endedAt time.Time) (*domain.Shift, []DayBucket, error)
	OpenShiftFor(ctx context.Context, staffID int64) (*domain.Shift, error)
	ListShifts(ctx context.Context, staffID int64, from, to time.Time, limit int) ([]domain.Shift, error)
	DailyHoursRange(ctx context.Context, staffID int64, from, to time.Time) ([]domain.DailyHours, error)
	DailyHoursReport(ctx context.Context, from, to time.Time) ([]DailyHoursReportRow, error)
}

type EventPublisher interface {
	PublishShiftEvent(ctx context.Context, ev domain.ShiftEvent) error
}

// Ledger orchestrates clock-in/clock-out. All invariant enforcement happens
// inside the store's transactions; the ledger adds input validation, event
// publication and logging.
type Ledger struct {
	store  Store
	events EventPublisher
	log    *logger.Logger
	now    func() time.Time
}

func NewLedger(store Store, events EventPublisher, log *logger.Logger) *Ledger {
	return &Ledger{store: store, events: events, log: log, now: time.Now}
}

// ClockIn opens a shift for the staff member. startedAt defaults to now when
// zero. Fails with a conflict when a shift is already open, and with a
// validation error for unknown or deactivated staff.
func (l *Ledger) ClockIn(ctx context.Context, staffID int64, startedAt time.Time) (*domain.Shift, error) {
	member, err := l.store.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if !member.IsActive {
		return nil, domain.Invalidf("staff %d is deactivated", staffID)
	}
	if startedAt.IsZero() {
		startedAt = l.now()
	}

	sh, err := l.store.OpenShiftTx(ctx, staffID, startedAt)
	if err != nil {
		return nil, err
	}
	l.log.Info("shift opened", "shift_id", sh.ID, "staff_id", staffID)

	l.publish(ctx, domain.ShiftEvent{
		Event:      domain.EventShiftOpened,
		ShiftID:    sh.ID,
		StaffID:    staffID,
		StaffName:  member.DisplayName,
		Role:       member.Role,
		StartedAt:  sh.StartedAt,
		OccurredAt: l.now().UTC(),
	})
	return sh, nil
}

// ClockOut closes the shift and distributes its minutes into the daily
// rollup. endedAt defaults to now when zero.
func (l *Ledger) ClockOut(ctx context.Context, shiftID int64, endedAt time.Time) (*domain.Shift, error) {
	if endedAt.IsZero() {
		endedAt = l.now()
	}

	sh, buckets, err := l.store.CloseShiftTx(ctx, shiftID, endedAt)
	if err != nil {
		return nil, err
	}

	minutes := 0
	if sh.WorkMinutes != nil {
		minutes = *sh.WorkMinutes
	}
	l.log.Info("shift closed", "shift_id", sh.ID, "staff_id", sh.StaffID, "minutes", minutes)

	days := make([]domain.ShiftDay, 0, len(buckets))
	for _, b := range buckets {
		days = append(days, domain.ShiftDay{Date: b.Date, Minutes: b.Minutes})
	}
	ev := domain.ShiftEvent{
		Event:      domain.EventShiftClosed,
		ShiftID:    sh.ID,
		StaffID:    sh.StaffID,
		StartedAt:  sh.StartedAt,
		EndedAt:    sh.EndedAt,
		Minutes:    minutes,
		Days:       days,
		OccurredAt: l.now().UTC(),
	}
	if member, err := l.store.GetStaff(ctx, sh.StaffID); err == nil {
		ev.StaffName = member.DisplayName
		ev.Role = member.Role
	}
	l.publish(ctx, ev)
	return sh, nil
}

// ClockOutByStaff closes the staff member's currently open shift.
func (l *Ledger) ClockOutByStaff(ctx context.Context, staffID int64, endedAt time.Time) (*domain.Shift, error) {
	open, err := l.store.OpenShiftFor(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return l.ClockOut(ctx, open.ID, endedAt)
}

func (l *Ledger) CurrentShift(ctx context.Context, staffID int64) (*domain.Shift, error) {
	return l.store.OpenShiftFor(ctx, staffID)
}

func (l *Ledger) Shifts(ctx context.Context, staffID int64, from, to time.Time, limit int) ([]domain.Shift, error) {
	return l.store.ListShifts(ctx, staffID, from, to, limit)
}

func (l *Ledger) DailyHours(ctx context.Context, staffID int64, from, to time.Time) ([]domain.DailyHours, error) {
	return l.store.DailyHoursRange(ctx, staffID, from, to)
}

func (l *Ledger) Report(ctx context.Context, from, to time.Time) ([]DailyHoursReportRow, error) {
	return l.store.DailyHoursReport(ctx, from, to)
}

// publish failures are logged, never propagated: the shift state is already
// committed and consumers can resync from the database.
func (l *Ledger) publish(ctx context.Context, ev domain.ShiftEvent) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishShiftEvent(ctx, ev); err != nil {
		l.log.Error("publish shift event failed", "event", ev.Event, "shift_id", ev.ShiftID, "error", err)
	}
}

package domain

import "time"

// Event names published to the orders topic exchange.
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventShiftOpened        = "shift_opened"
	EventShiftClosed        = "shift_closed"
)

type OrderEvent struct {
	Event       string    `json:"event"`
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	OldStatus   string    `json:"old_status,omitempty"`
	TotalCents  int64     `json:"total_cents,omitempty"`
	ChangedBy   string    `json:"changed_by,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ShiftDay is one local calendar date's share of a closed shift.
type ShiftDay struct {
	Date    time.Time `json:"date"`
	Minutes int       `json:"minutes"`
}

type ShiftEvent struct {
	Event      string     `json:"event"`
	ShiftID    int64      `json:"shift_id"`
	StaffID    int64      `json:"staff_id"`
	StaffName  string     `json:"staff_name,omitempty"`
	Role       string     `json:"role,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Minutes    int        `json:"minutes,omitempty"`
	Days       []ShiftDay `json:"days,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

package domain

import "time"

// Staff roles.
const (
	RoleOwner    = "OWNER"
	RoleManager  = "MANAGER"
	RoleKitchen  = "KITCHEN"
	RoleDelivery = "DELIVERY"
)

func ValidRole(r string) bool {
	switch r {
	case RoleOwner, RoleManager, RoleKitchen, RoleDelivery:
		return true
	}
	return false
}

type Staff struct {
	ID           int64          `json:"staff_id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"-"`
	DisplayName  string         `json:"display_name"`
	Role         string         `json:"role"`
	IsActive     bool           `json:"is_active"`
	Phone        string         `json:"phone,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Shift is one clock-in/clock-out pair. EndedAt == nil means the staff member
// is currently on the clock; WorkMinutes is set exactly once, at close.
type Shift struct {
	ID          int64      `json:"shift_id"`
	StaffID     int64      `json:"staff_id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	WorkMinutes *int       `json:"work_minutes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *Shift) Open() bool { return s.EndedAt == nil }

// DailyHours is the per-staff per-local-date rollup. ShiftIDs records which
// shifts have already been folded in, so re-applying a shift is a no-op.
type DailyHours struct {
	StaffID   int64     `json:"staff_id"`
	WorkDate  time.Time `json:"work_date"` // date only, local calendar
	Minutes   int       `json:"minutes"`
	ShiftIDs  []int64   `json:"shift_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

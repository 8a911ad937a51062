package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/staff"
)

func (s *Server) listStaff(w http.ResponseWriter, r *http.Request) {
	list, err := s.staffRepo.ListStaff(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": list})
}

type clockRequest struct {
	At *time.Time `json:"at,omitempty"`
}

func (c *clockRequest) when() time.Time {
	if c.At != nil {
		return *c.At
	}
	return time.Time{}
}

func (s *Server) clockIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req clockRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.log, err)
			return
		}
	}
	shift, err := s.ledger.ClockIn(r.Context(), id, req.when())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

func (s *Server) clockOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req clockRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.log, err)
			return
		}
	}
	shift, err := s.ledger.ClockOutByStaff(r.Context(), id, req.when())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (s *Server) currentShift(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	shift, err := s.ledger.CurrentShift(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (s *Server) listShifts(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	shifts, err := s.ledger.Shifts(r.Context(), id, from, to, queryInt(r, "limit"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (s *Server) dailyHours(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	rows, err := s.ledger.DailyHours(r.Context(), id, from, to)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daily_hours": rows})
}

// dailyHoursReport streams the rollup for every staff member as a
// spreadsheet download.
func (s *Server) dailyHoursReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	rows, err := s.ledger.Report(r.Context(), from, to)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	name := fmt.Sprintf("daily-hours-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := staff.WriteDailyHoursXLSX(w, rows); err != nil {
		s.log.Error("write daily hours report", "error", err)
	}
}

// dateRange reads from/to query dates, defaulting to the last 30 days.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.IsZero() {
		to = time.Now().UTC()
	} else {
		to = to.AddDate(0, 0, 1) // inclusive upper bound
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, domain.Invalidf("from must be before to")
	}
	return from, to, nil
}

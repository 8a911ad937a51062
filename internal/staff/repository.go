package staff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dinner-house/internal/domain"
)

type Repository struct {
	pool          *pgxpool.Pool
	offsetMinutes int
}

func NewRepository(pool *pgxpool.Pool, offsetMinutes int) *Repository {
	return &Repository{pool: pool, offsetMinutes: offsetMinutes}
}

func (r *Repository) CreateStaff(ctx context.Context, s *domain.Staff) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO staff (username, password_hash, display_name, role, phone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.Username, s.PasswordHash, s.DisplayName, s.Role, s.Phone, s.IsActive,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, domain.Conflictf("staff username %q already exists", s.Username)
		}
		return 0, fmt.Errorf("insert staff: %w", err)
	}
	return id, nil
}

func (r *Repository) GetStaff(ctx context.Context, id int64) (*domain.Staff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, display_name, role, phone, is_active, meta, created_at, updated_at
		FROM staff WHERE id = $1`, id)
	return scanStaff(row)
}

func (r *Repository) GetStaffByUsername(ctx context.Context, username string) (*domain.Staff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, display_name, role, phone, is_active, meta, created_at, updated_at
		FROM staff WHERE username = $1`, username)
	return scanStaff(row)
}

func (r *Repository) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, password_hash, display_name, role, phone, is_active, meta, created_at, updated_at
		FROM staff ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []domain.Staff
	for rows.Next() {
		var s domain.Staff
		if err := rows.Scan(&s.ID, &s.Username, &s.PasswordHash, &s.DisplayName, &s.Role,
			&s.Phone, &s.IsActive, &s.Meta, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanStaff(row pgx.Row) (*domain.Staff, error) {
	var s domain.Staff
	err := row.Scan(&s.ID, &s.Username, &s.PasswordHash, &s.DisplayName, &s.Role,
		&s.Phone, &s.IsActive, &s.Meta, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan staff: %w", err)
	}
	return &s, nil
}

// OpenShiftTx inserts a new open shift for the staff member. The existing
// open shift, if any, is locked and checked inside the same transaction so
// two concurrent clock-ins cannot both succeed; the partial unique index on
// (staff_id) WHERE ended_at IS NULL backstops the check.
func (r *Repository) OpenShiftTx(ctx context.Context, staffID int64, startedAt time.Time) (*domain.Shift, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var openID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM staff_shift
		WHERE staff_id = $1 AND ended_at IS NULL
		FOR UPDATE`, staffID).Scan(&openID)
	if err == nil {
		return nil, domain.Conflictf("staff %d already has open shift %d", staffID, openID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check open shift: %w", err)
	}

	var sh domain.Shift
	err = tx.QueryRow(ctx, `
		INSERT INTO staff_shift (staff_id, started_at)
		VALUES ($1, $2)
		RETURNING id, staff_id, started_at, ended_at, work_minutes, created_at, updated_at`,
		staffID, startedAt.UTC(),
	).Scan(&sh.ID, &sh.StaffID, &sh.StartedAt, &sh.EndedAt, &sh.WorkMinutes, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.Conflictf("staff %d already has an open shift", staffID)
		}
		return nil, fmt.Errorf("insert shift: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &sh, nil
}

// CloseShiftTx sets the shift's end and minutes and upserts the daily hours
// buckets in one transaction, so a failed upsert never leaves a closed shift
// without its distributed minutes. The upsert skips buckets whose shift id is
// already recorded in shift_ids, which makes a retried close a no-op.
func (r *Repository) CloseShiftTx(ctx context.Context, shiftID int64, endedAt time.Time) (*domain.Shift, []DayBucket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var sh domain.Shift
	err = tx.QueryRow(ctx, `
		SELECT id, staff_id, started_at, ended_at, work_minutes, created_at, updated_at
		FROM staff_shift WHERE id = $1
		FOR UPDATE`, shiftID,
	).Scan(&sh.ID, &sh.StaffID, &sh.StartedAt, &sh.EndedAt, &sh.WorkMinutes, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock shift: %w", err)
	}
	if !sh.Open() {
		return nil, nil, domain.Invalidf("shift %d is already closed", shiftID)
	}

	endedAt = endedAt.UTC()
	if !endedAt.After(sh.StartedAt) {
		return nil, nil, domain.Invalidf("shift end %s is not after start %s",
			endedAt.Format(time.RFC3339), sh.StartedAt.Format(time.RFC3339))
	}

	minutes := ElapsedMinutes(sh.StartedAt, endedAt)
	_, err = tx.Exec(ctx, `
		UPDATE staff_shift SET ended_at = $2, work_minutes = $3, updated_at = NOW() WHERE id = $1`,
		shiftID, endedAt, minutes)
	if err != nil {
		return nil, nil, fmt.Errorf("close shift: %w", err)
	}

	buckets := SplitLocalDays(sh.StartedAt, endedAt, r.offsetMinutes)
	for _, b := range buckets {
		if err := upsertDailyHours(ctx, tx, sh.StaffID, shiftID, b); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	sh.EndedAt = &endedAt
	sh.WorkMinutes = &minutes
	return &sh, buckets, nil
}

func upsertDailyHours(ctx context.Context, tx pgx.Tx, staffID, shiftID int64, b DayBucket) error {
	// The WHERE on the update arm keeps a retried distribution from adding
	// the same shift's minutes twice.
	_, err := tx.Exec(ctx, `
		INSERT INTO staff_daily_hours (staff_id, work_date, minutes, shift_ids)
		VALUES ($1, $2, $3, ARRAY[$4]::BIGINT[])
		ON CONFLICT (staff_id, work_date) DO UPDATE
		SET minutes = staff_daily_hours.minutes + EXCLUDED.minutes,
		    shift_ids = staff_daily_hours.shift_ids || EXCLUDED.shift_ids,
		    updated_at = NOW()
		WHERE NOT ($4 = ANY(staff_daily_hours.shift_ids))`,
		staffID, b.Date.Format("2006-01-02"), b.Minutes, shiftID)
	if err != nil {
		return fmt.Errorf("upsert daily hours for %s: %w", b.Date.Format("2006-01-02"), err)
	}
	return nil
}

func (r *Repository) OpenShiftFor(ctx context.Context, staffID int64) (*domain.Shift, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, staff_id, started_at, ended_at, work_minutes, created_at, updated_at
		FROM staff_shift
		WHERE staff_id = $1 AND ended_at IS NULL`, staffID)

	var sh domain.Shift
	err := row.Scan(&sh.ID, &sh.StaffID, &sh.StartedAt, &sh.EndedAt, &sh.WorkMinutes, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get open shift: %w", err)
	}
	return &sh, nil
}

func (r *Repository) ListShifts(ctx context.Context, staffID int64, from, to time.Time, limit int) ([]domain.Shift, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id, started_at, ended_at, work_minutes, created_at, updated_at
		FROM staff_shift
		WHERE staff_id = $1 AND started_at >= $2 AND started_at < $3
		ORDER BY started_at DESC
		LIMIT $4`, staffID, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var out []domain.Shift
	for rows.Next() {
		var sh domain.Shift
		if err := rows.Scan(&sh.ID, &sh.StaffID, &sh.StartedAt, &sh.EndedAt,
			&sh.WorkMinutes, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (r *Repository) DailyHoursRange(ctx context.Context, staffID int64, from, to time.Time) ([]domain.DailyHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id, work_date, minutes, shift_ids, created_at, updated_at
		FROM staff_daily_hours
		WHERE staff_id = $1 AND work_date >= $2 AND work_date <= $3
		ORDER BY work_date`, staffID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list daily hours: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyHours
	for rows.Next() {
		var dh domain.DailyHours
		if err := rows.Scan(&dh.StaffID, &dh.WorkDate, &dh.Minutes,
			&dh.ShiftIDs, &dh.CreatedAt, &dh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan daily hours: %w", err)
		}
		out = append(out, dh)
	}
	return out, rows.Err()
}

// DailyHoursReportRow joins staff names onto the rollup for report export.
type DailyHoursReportRow struct {
	StaffID   int64
	StaffName string
	Role      string
	WorkDate  time.Time
	Minutes   int
}

func (r *Repository) DailyHoursReport(ctx context.Context, from, to time.Time) ([]DailyHoursReportRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.staff_id, s.display_name, s.role, h.work_date, h.minutes
		FROM staff_daily_hours h
		JOIN staff s ON s.id = h.staff_id
		WHERE h.work_date >= $1 AND h.work_date <= $2
		ORDER BY h.work_date, s.display_name`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("daily hours report: %w", err)
	}
	defer rows.Close()

	var out []DailyHoursReportRow
	for rows.Next() {
		var row DailyHoursReportRow
		if err := rows.Scan(&row.StaffID, &row.StaffName, &row.Role, &row.WorkDate, &row.Minutes); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dinner-house/internal/domain"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ActiveMembership(ctx context.Context, customerID int64) (*domain.Membership, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT customer_id, label, percent_off, active, valid_from, valid_until
		FROM membership
		WHERE customer_id = $1 AND active`, customerID)

	var m domain.Membership
	err := row.Scan(&m.CustomerID, &m.Label, &m.PercentOff, &m.Active, &m.ValidFrom, &m.ValidUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

const couponColumns = `code, name, label, active, kind, value, valid_from, valid_until,
	min_subtotal_cents, max_discount_cents, stackable_with_membership, stackable_with_coupons,
	channel, max_redemptions_global, max_redemptions_per_user, notes, created_at, updated_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(&c.Code, &c.Name, &c.Label, &c.Active, &c.Kind, &c.Value,
		&c.ValidFrom, &c.ValidUntil, &c.MinSubtotalCents, &c.MaxDiscountCents,
		&c.StackableWithMembership, &c.StackableWithCoupons, &c.Channel,
		&c.MaxRedemptionsGlobal, &c.MaxRedemptionsPerUser, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupon WHERE code = $1`, domain.NormalizeCouponCode(code)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

func (r *Repository) CouponsByCode(ctx context.Context, codes []string) (map[string]*domain.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupon WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Coupon, len(codes))
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		out[c.Code] = c
	}
	return out, rows.Err()
}

func (r *Repository) ListCoupons(ctx context.Context, activeOnly bool) ([]domain.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupon ORDER BY code`
	if activeOnly {
		q = `SELECT ` + couponColumns + ` FROM coupon WHERE active ORDER BY code`
	}
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var out []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertCoupon(ctx context.Context, c *domain.Coupon) error {
	c.Code = domain.NormalizeCouponCode(c.Code)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coupon (code, name, label, active, kind, value, valid_from, valid_until,
			min_subtotal_cents, max_discount_cents, stackable_with_membership,
			stackable_with_coupons, channel, max_redemptions_global, max_redemptions_per_user, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, label = EXCLUDED.label, active = EXCLUDED.active,
			kind = EXCLUDED.kind, value = EXCLUDED.value,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			min_subtotal_cents = EXCLUDED.min_subtotal_cents,
			max_discount_cents = EXCLUDED.max_discount_cents,
			stackable_with_membership = EXCLUDED.stackable_with_membership,
			stackable_with_coupons = EXCLUDED.stackable_with_coupons,
			channel = EXCLUDED.channel,
			max_redemptions_global = EXCLUDED.max_redemptions_global,
			max_redemptions_per_user = EXCLUDED.max_redemptions_per_user,
			notes = EXCLUDED.notes, updated_at = NOW()`,
		c.Code, c.Name, c.Label, c.Active, c.Kind, c.Value, c.ValidFrom, c.ValidUntil,
		c.MinSubtotalCents, c.MaxDiscountCents, c.StackableWithMembership,
		c.StackableWithCoupons, c.Channel, c.MaxRedemptionsGlobal, c.MaxRedemptionsPerUser, c.Notes)
	if err != nil {
		return fmt.Errorf("upsert coupon: %w", err)
	}
	return nil
}

func (r *Repository) UpsertMembership(ctx context.Context, m *domain.Membership) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO membership (customer_id, label, percent_off, active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (customer_id) DO UPDATE SET
			label = EXCLUDED.label, percent_off = EXCLUDED.percent_off,
			active = EXCLUDED.active, valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until`,
		m.CustomerID, m.Label, m.PercentOff, m.Active, m.ValidFrom, m.ValidUntil)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (r *Repository) RedemptionCount(ctx context.Context, code string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_redemption WHERE coupon_code = $1`, code).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}

func (r *Repository) RedemptionCountForCustomer(ctx context.Context, code string, customerID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_redemption WHERE coupon_code = $1 AND customer_id = $2`,
		code, customerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count customer redemptions: %w", err)
	}
	return n, nil
}

// RedeemInTx records the coupon lines of an evaluated discount set inside the
// caller's transaction, normally the order-creation transaction. Coupon rows
// are locked and the limits rechecked under the lock, so two concurrent
// orders cannot both take the last redemption. Lines that fail the recheck
// are skipped, matching the soft evaluation semantics.
func RedeemInTx(ctx context.Context, tx pgx.Tx, orderID, customerID int64, channel string, discounts []domain.DiscountLine) error {
	perCode := map[string]int64{}
	var order []string
	for _, d := range discounts {
		if d.Type != "coupon" || d.Code == "" {
			continue
		}
		code := domain.NormalizeCouponCode(d.Code)
		if _, seen := perCode[code]; !seen {
			order = append(order, code)
		}
		perCode[code] += d.AmountCents
	}
	if len(perCode) == 0 {
		return nil
	}

	now := time.Now()
	for _, code := range order {
		c, err := scanCoupon(tx.QueryRow(ctx,
			`SELECT `+couponColumns+` FROM coupon WHERE code = $1 FOR UPDATE`, code))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("lock coupon %s: %w", code, err)
		}
		if !c.ValidNow(now) {
			continue
		}
		if c.Channel != domain.ChannelAny && c.Channel != channel {
			continue
		}
		if ok, err := limitsOKInTx(ctx, tx, c, customerID); err != nil {
			return err
		} else if !ok {
			continue
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO coupon_redemption (coupon_code, customer_id, order_id, amount_cents, channel)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (coupon_code, order_id) DO NOTHING`,
			code, customerID, orderID, perCode[code], channel)
		if err != nil {
			return fmt.Errorf("insert redemption %s: %w", code, err)
		}
	}
	return nil
}

func limitsOKInTx(ctx context.Context, tx pgx.Tx, c *domain.Coupon, customerID int64) (bool, error) {
	if c.MaxRedemptionsPerUser != nil {
		var used int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM coupon_redemption WHERE coupon_code = $1 AND customer_id = $2`,
			c.Code, customerID).Scan(&used)
		if err != nil {
			return false, fmt.Errorf("recheck per-user limit: %w", err)
		}
		if used >= *c.MaxRedemptionsPerUser {
			return false, nil
		}
	}
	if c.MaxRedemptionsGlobal != nil {
		var used int
		err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM coupon_redemption WHERE coupon_code = $1`, c.Code).Scan(&used)
		if err != nil {
			return false, fmt.Errorf("recheck global limit: %w", err)
		}
		if used >= *c.MaxRedemptionsGlobal {
			return false, nil
		}
	}
	return true, nil
}

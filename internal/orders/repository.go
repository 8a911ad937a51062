package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dinner-house/internal/domain"
	"dinner-house/internal/promotion"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nextOrderNumber issues ORD_YYYYMMDD_NNN, numbered per calendar day.
func nextOrderNumber(ctx context.Context, tx pgx.Tx, now time.Time) (string, error) {
	prefix := "ORD_" + now.UTC().Format("20060102") + "_"
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE number LIKE $1 || '%'`, prefix).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("count today's orders: %w", err)
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

// CreateOrderTx persists the full snapshot, records coupon redemptions and
// writes the initial status log entry in one transaction. The order's ID,
// Number and OrderedAt are filled in on success.
func (r *Repository) CreateOrderTx(ctx context.Context, o *domain.Order, discounts []domain.DiscountLine) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	number, err := nextOrderNumber(ctx, tx, now)
	if err != nil {
		return err
	}
	o.Number = number

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (number, customer_id, status, order_source,
			receiver_name, receiver_phone, delivery_address, geo_lat, geo_lng,
			place_label, address_meta, payment_token, card_last4,
			subtotal_cents, discount_cents, total_cents, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, ordered_at`,
		o.Number, o.CustomerID, domain.OrderPending, o.OrderSource,
		o.ReceiverName, o.ReceiverPhone, o.DeliveryAddress, o.GeoLat, o.GeoLng,
		o.PlaceLabel, o.AddressMeta, o.PaymentToken, o.CardLast4,
		o.SubtotalCents, o.DiscountCents, o.TotalCents, o.Meta,
	).Scan(&o.ID, &o.OrderedAt)
	if err != nil {
		// Two transactions can count the same day prefix and pick the same
		// number; the UNIQUE constraint turns the loser into a retryable 409.
		if isUniqueViolation(err) {
			return domain.Conflictf("order number %s already taken, retry", o.Number)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	o.Status = domain.OrderPending

	for di := range o.Dinners {
		d := &o.Dinners[di]
		d.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_dinner (order_id, dinner_type_id, style_id, person_label,
				quantity, base_price_cents, style_adjust_cents, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			o.ID, d.DinnerTypeID, d.StyleID, d.PersonLabel,
			d.Quantity, d.BasePriceCents, d.StyleAdjustCents, d.Notes,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("insert order dinner: %w", err)
		}

		for _, opt := range d.Options {
			_, err = tx.Exec(ctx, `
				INSERT INTO order_dinner_option (order_dinner_id, option_group_name, option_name, price_delta_cents)
				VALUES ($1, $2, $3, $4)`,
				d.ID, opt.OptionGroupName, opt.OptionName, opt.PriceDeltaCents)
			if err != nil {
				return fmt.Errorf("insert dinner option snapshot: %w", err)
			}
		}

		for ii := range d.Items {
			it := &d.Items[ii]
			it.OrderDinnerID = d.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO order_dinner_item (order_dinner_id, item_id, final_qty,
					unit_price_cents, is_default, change_type)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				d.ID, it.ItemID, it.FinalQty, it.UnitPriceCents, it.IsDefault, it.ChangeType,
			).Scan(&it.ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			for _, opt := range it.Options {
				_, err = tx.Exec(ctx, `
					INSERT INTO order_item_option (order_dinner_item_id, option_group_name, option_name, price_delta_cents)
					VALUES ($1, $2, $3, $4)`,
					it.ID, opt.OptionGroupName, opt.OptionName, opt.PriceDeltaCents)
				if err != nil {
					return fmt.Errorf("insert item option snapshot: %w", err)
				}
			}
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by)
		VALUES ($1, $2, 'system')`, o.ID, domain.OrderPending); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}

	channel := o.OrderSource
	if channel == "" {
		channel = domain.SourceGUI
	}
	if err := promotion.RedeemInTx(ctx, tx, o.ID, o.CustomerID, channel, discounts); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const orderColumns = `o.id, o.number, o.customer_id, o.ordered_at, o.status, o.order_source,
	o.receiver_name, o.receiver_phone, o.delivery_address, o.geo_lat, o.geo_lng,
	o.place_label, o.address_meta, o.payment_token, o.card_last4,
	o.subtotal_cents, o.discount_cents, o.total_cents, o.meta`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.OrderedAt, &o.Status, &o.OrderSource,
		&o.ReceiverName, &o.ReceiverPhone, &o.DeliveryAddress, &o.GeoLat, &o.GeoLng,
		&o.PlaceLabel, &o.AddressMeta, &o.PaymentToken, &o.CardLast4,
		&o.SubtotalCents, &o.DiscountCents, &o.TotalCents, &o.Meta)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) loadLines(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.order_id, d.dinner_type_id, t.code, t.name,
		       d.style_id, s.code, s.name, d.person_label, d.quantity,
		       d.base_price_cents, d.style_adjust_cents, d.notes
		FROM order_dinner d
		JOIN dinner_type t ON t.id = d.dinner_type_id
		JOIN serving_style s ON s.id = d.style_id
		WHERE d.order_id = $1
		ORDER BY d.id`, o.ID)
	if err != nil {
		return fmt.Errorf("load order dinners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.OrderDinner
		if err := rows.Scan(&d.ID, &d.OrderID, &d.DinnerTypeID, &d.DinnerCode, &d.DinnerName,
			&d.StyleID, &d.StyleCode, &d.StyleName, &d.PersonLabel, &d.Quantity,
			&d.BasePriceCents, &d.StyleAdjustCents, &d.Notes); err != nil {
			return fmt.Errorf("scan order dinner: %w", err)
		}
		o.Dinners = append(o.Dinners, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for di := range o.Dinners {
		d := &o.Dinners[di]
		if d.Options, err = r.dinnerOptionSnaps(ctx, d.ID); err != nil {
			return err
		}
		if d.Items, err = r.dinnerItems(ctx, d.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) dinnerOptionSnaps(ctx context.Context, orderDinnerID int64) ([]domain.OrderOptionSnap, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, option_group_name, option_name, price_delta_cents
		FROM order_dinner_option WHERE order_dinner_id = $1 ORDER BY id`, orderDinnerID)
	if err != nil {
		return nil, fmt.Errorf("load dinner options: %w", err)
	}
	defer rows.Close()
	return scanSnaps(rows)
}

func (r *Repository) dinnerItems(ctx context.Context, orderDinnerID int64) ([]domain.OrderDinnerItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.order_dinner_id, l.item_id, i.code, i.name,
		       l.final_qty, l.unit_price_cents, l.is_default, l.change_type
		FROM order_dinner_item l
		JOIN menu_item i ON i.id = l.item_id
		WHERE l.order_dinner_id = $1
		ORDER BY l.id`, orderDinnerID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderDinnerItem
	for rows.Next() {
		var it domain.OrderDinnerItem
		if err := rows.Scan(&it.ID, &it.OrderDinnerID, &it.ItemID, &it.ItemCode, &it.ItemName,
			&it.FinalQty, &it.UnitPriceCents, &it.IsDefault, &it.ChangeType); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		snaps, err := r.itemOptionSnaps(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Options = snaps
	}
	return out, nil
}

func (r *Repository) itemOptionSnaps(ctx context.Context, lineID int64) ([]domain.OrderOptionSnap, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, option_group_name, option_name, price_delta_cents
		FROM order_item_option WHERE order_dinner_item_id = $1 ORDER BY id`, lineID)
	if err != nil {
		return nil, fmt.Errorf("load item options: %w", err)
	}
	defer rows.Close()
	return scanSnaps(rows)
}

func scanSnaps(rows pgx.Rows) ([]domain.OrderOptionSnap, error) {
	var out []domain.OrderOptionSnap
	for rows.Next() {
		var s domain.OrderOptionSnap
		if err := rows.Scan(&s.ID, &s.OptionGroupName, &s.OptionName, &s.PriceDeltaCents); err != nil {
			return nil, fmt.Errorf("scan option snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type ListFilter struct {
	Status     string
	CustomerID int64
	Limit      int
	Offset     int
}

func (r *Repository) ListOrders(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE ($1 = '' OR o.status = $1)
		  AND ($2 = 0 OR o.customer_id = $2)
		ORDER BY o.ordered_at DESC
		LIMIT $3 OFFSET $4`, f.Status, f.CustomerID, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Repository) StatusLog(ctx context.Context, orderID int64) ([]domain.StatusLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, status, changed_by, changed_at, notes
		FROM order_status_log WHERE order_id = $1 ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load status log: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusLogEntry
	for rows.Next() {
		var e domain.StatusLogEntry
		if err := rows.Scan(&e.OrderID, &e.Status, &e.ChangedBy, &e.ChangedAt, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendStaffOpTx records a staff action that does not move the status, such
// as marking the food ready while the order stays in preparing. The op lands
// in meta.staff_ops and the status log, leaving the status untouched.
func (r *Repository) AppendStaffOpTx(ctx context.Context, orderID int64, op, by string) (*domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if o.Status == domain.OrderDelivered || o.Status == domain.OrderCanceled {
		return nil, domain.Conflictf("order %s is %s", o.Number, o.Status)
	}

	meta := o.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	ops, _ := meta["staff_ops"].([]any)
	ops = append(ops, map[string]any{
		"op": op,
		"by": by,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
	meta["staff_ops"] = ops

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET meta = $2 WHERE id = $1`, orderID, meta); err != nil {
		return nil, fmt.Errorf("update order meta: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`, orderID, o.Status, by, op); err != nil {
		return nil, fmt.Errorf("insert status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	o.Meta = meta
	return o, nil
}

// TransitionTx moves the order to a new status under a row lock, appends the
// status log entry and records the acting staff in meta.staff_ops. Illegal
// transitions fail with a conflict and change nothing. The previous status is
// returned for event payloads.
func (r *Repository) TransitionTx(ctx context.Context, orderID int64, to, changedBy, notes string) (*domain.Order, string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", domain.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("lock order: %w", err)
	}

	if !domain.CanTransition(o.Status, to) {
		return nil, "", domain.Conflictf("order %s cannot go from %s to %s", o.Number, o.Status, to)
	}

	meta := o.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	ops, _ := meta["staff_ops"].([]any)
	ops = append(ops, map[string]any{
		"status": to,
		"by":     changedBy,
		"at":     time.Now().UTC().Format(time.RFC3339),
	})
	meta["staff_ops"] = ops

	oldStatus := o.Status
	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, meta = $3 WHERE id = $1`, orderID, to, meta); err != nil {
		return nil, "", fmt.Errorf("update order status: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`, orderID, to, changedBy, notes); err != nil {
		return nil, "", fmt.Errorf("insert status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit tx: %w", err)
	}

	o.Status = to
	o.Meta = meta
	return o, oldStatus, nil
}

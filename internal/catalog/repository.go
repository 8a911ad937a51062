package catalog

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

func (r *Repository) ListCategories(ctx context.Context) ([]domain.MenuCategory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, parent_id, name, slug, rank, active
		FROM menu_category
		WHERE active
		ORDER BY rank, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuCategory
	for rows.Next() {
		var c domain.MenuCategory
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Name, &c.Slug, &c.Rank, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const itemColumns = `i.id, i.code, i.name, i.description, i.category_id, c.name, i.unit,
	i.base_price_cents, i.active, i.attrs, i.updated_at`

func scanItem(row pgx.Row) (*domain.MenuItem, error) {
	var m domain.MenuItem
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.CategoryID, &m.CategoryName,
		&m.Unit, &m.BasePriceCents, &m.Active, &m.Attrs, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) ListItems(ctx context.Context, categoryID int64, activeOnly bool) ([]domain.MenuItem, error) {
	q := `SELECT ` + itemColumns + `
		FROM menu_item i
		LEFT JOIN menu_category c ON c.id = i.category_id
		WHERE ($1 = 0 OR i.category_id = $1) AND (NOT $2 OR i.active)
		ORDER BY i.name`
	rows, err := r.pool.Query(ctx, q, categoryID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		m, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repository) GetItemByCode(ctx context.Context, code string) (*domain.MenuItem, error) {
	m, err := scanItem(r.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM menu_item i
		LEFT JOIN menu_category c ON c.id = i.category_id
		WHERE i.code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	m.Tags, err = r.itemTags(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) itemTags(ctx context.Context, itemID int64) ([]domain.ItemTag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name
		FROM item_tag t
		JOIN menu_item_tag mt ON mt.tag_id = t.id
		WHERE mt.item_id = $1
		ORDER BY t.name`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list item tags: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemTag
	for rows.Next() {
		var t domain.ItemTag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) ItemOptionGroups(ctx context.Context, itemID int64) ([]domain.ItemOptionGroup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, item_id, name, select_mode, min_select, max_select, is_required, is_variant, price_mode, rank
		FROM item_option_group
		WHERE item_id = $1
		ORDER BY rank, name`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list option groups: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemOptionGroup
	for rows.Next() {
		var g domain.ItemOptionGroup
		if err := rows.Scan(&g.ID, &g.ItemID, &g.Name, &g.SelectMode, &g.MinSelect,
			&g.MaxSelect, &g.IsRequired, &g.IsVariant, &g.PriceMode, &g.Rank); err != nil {
			return nil, fmt.Errorf("scan option group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repository) GroupOptions(ctx context.Context, groupID int64) ([]domain.ItemOption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.group_id, g.name, g.price_mode, g.item_id, o.name,
		       o.price_delta_cents, o.multiplier, o.is_default, o.rank
		FROM item_option o
		JOIN item_option_group g ON g.id = o.group_id
		WHERE o.group_id = $1
		ORDER BY o.rank, o.name`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()
	return scanItemOptions(rows)
}

// ItemOptionsByID resolves the selected option ids for an item and rejects
// any id belonging to another item's group.
func (r *Repository) ItemOptionsByID(ctx context.Context, itemID int64, ids []int64) ([]domain.ItemOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.group_id, g.name, g.price_mode, g.item_id, o.name,
		       o.price_delta_cents, o.multiplier, o.is_default, o.rank
		FROM item_option o
		JOIN item_option_group g ON g.id = o.group_id
		WHERE o.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve item options: %w", err)
	}
	defer rows.Close()

	opts, err := scanItemOptions(rows)
	if err != nil {
		return nil, err
	}
	found := map[int64]bool{}
	for _, o := range opts {
		if o.GroupItemID != itemID {
			return nil, domain.Invalidf("option %d does not belong to item %d", o.ID, itemID)
		}
		found[o.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, domain.Invalidf("unknown option id %d", id)
		}
	}
	return opts, nil
}

func scanItemOptions(rows pgx.Rows) ([]domain.ItemOption, error) {
	var out []domain.ItemOption
	for rows.Next() {
		var o domain.ItemOption
		if err := rows.Scan(&o.ID, &o.GroupID, &o.GroupName, &o.GroupPriceMode, &o.GroupItemID,
			&o.Name, &o.PriceDeltaCents, &o.Multiplier, &o.IsDefault, &o.Rank); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) ListStyles(ctx context.Context) ([]domain.ServingStyle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, price_mode, price_value, notes
		FROM serving_style ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list styles: %w", err)
	}
	defer rows.Close()

	var out []domain.ServingStyle
	for rows.Next() {
		var s domain.ServingStyle
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.PriceMode, &s.PriceValue, &s.Notes); err != nil {
			return nil, fmt.Errorf("scan style: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetStyleByCode(ctx context.Context, code string) (*domain.ServingStyle, error) {
	var s domain.ServingStyle
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, price_mode, price_value, notes
		FROM serving_style WHERE code = $1`, code,
	).Scan(&s.ID, &s.Code, &s.Name, &s.PriceMode, &s.PriceValue, &s.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get style: %w", err)
	}
	return &s, nil
}

func (r *Repository) ListDinners(ctx context.Context, activeOnly bool) ([]domain.DinnerType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, description, base_price_cents, active
		FROM dinner_type
		WHERE NOT $1 OR active
		ORDER BY code`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list dinners: %w", err)
	}
	defer rows.Close()

	var out []domain.DinnerType
	for rows.Next() {
		var d domain.DinnerType
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.Description, &d.BasePriceCents, &d.Active); err != nil {
			return nil, fmt.Errorf("scan dinner: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) GetDinnerByCode(ctx context.Context, code string) (*domain.DinnerType, error) {
	var d domain.DinnerType
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, description, base_price_cents, active
		FROM dinner_type WHERE code = $1`, code,
	).Scan(&d.ID, &d.Code, &d.Name, &d.Description, &d.BasePriceCents, &d.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dinner: %w", err)
	}
	return &d, nil
}

func (r *Repository) StyleAllowed(ctx context.Context, dinnerID, styleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM dinner_style_allowed
			WHERE dinner_type_id = $1 AND style_id = $2
		)`, dinnerID, styleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check style allowed: %w", err)
	}
	return exists, nil
}

func (r *Repository) AllowedStyles(ctx context.Context, dinnerID int64) ([]domain.ServingStyle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.code, s.name, s.price_mode, s.price_value, s.notes
		FROM serving_style s
		JOIN dinner_style_allowed a ON a.style_id = s.id
		WHERE a.dinner_type_id = $1
		ORDER BY s.code`, dinnerID)
	if err != nil {
		return nil, fmt.Errorf("list allowed styles: %w", err)
	}
	defer rows.Close()

	var out []domain.ServingStyle
	for rows.Next() {
		var s domain.ServingStyle
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.PriceMode, &s.PriceValue, &s.Notes); err != nil {
			return nil, fmt.Errorf("scan style: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DefaultItems returns the dinner's bundled items ordered by item name, with
// names and prices denormalized for snapshotting.
func (r *Repository) DefaultItems(ctx context.Context, dinnerID int64) ([]domain.DinnerDefaultItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.dinner_type_id, d.item_id, i.code, i.name, i.base_price_cents,
		       d.default_qty, d.included_in_base, d.notes
		FROM dinner_default_item d
		JOIN menu_item i ON i.id = d.item_id
		WHERE d.dinner_type_id = $1
		ORDER BY i.name`, dinnerID)
	if err != nil {
		return nil, fmt.Errorf("list default items: %w", err)
	}
	defer rows.Close()

	var out []domain.DinnerDefaultItem
	for rows.Next() {
		var d domain.DinnerDefaultItem
		if err := rows.Scan(&d.DinnerTypeID, &d.ItemID, &d.ItemCode, &d.ItemName,
			&d.ItemPriceCents, &d.DefaultQty, &d.IncludedInBase, &d.Notes); err != nil {
			return nil, fmt.Errorf("scan default item: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AddonItems returns active items from the addons category that are not
// already bundled with the dinner. Availability windows are applied by the
// caller against the requested time.
func (r *Repository) AddonItems(ctx context.Context, dinnerID int64) ([]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM menu_item i
		JOIN menu_category c ON c.id = i.category_id
		WHERE i.active AND c.slug = 'addons'
		  AND i.id NOT IN (SELECT item_id FROM dinner_default_item WHERE dinner_type_id = $1)
		ORDER BY i.name`, dinnerID)
	if err != nil {
		return nil, fmt.Errorf("list addon items: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		m, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan addon item: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// DinnerOptionsByID resolves selected dinner option ids, rejecting ids that
// do not belong to the dinner's option groups.
func (r *Repository) DinnerOptionsByID(ctx context.Context, dinnerID int64, ids []int64) ([]domain.DinnerOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.group_id, g.name, g.price_mode, o.item_id, i.name, o.name,
		       o.price_delta_cents, o.multiplier, o.is_default, o.rank
		FROM dinner_option o
		JOIN dinner_option_group g ON g.id = o.group_id
		LEFT JOIN menu_item i ON i.id = o.item_id
		WHERE o.id = ANY($1) AND g.dinner_type_id = $2`, ids, dinnerID)
	if err != nil {
		return nil, fmt.Errorf("resolve dinner options: %w", err)
	}
	defer rows.Close()

	var out []domain.DinnerOption
	found := map[int64]bool{}
	for rows.Next() {
		var o domain.DinnerOption
		if err := rows.Scan(&o.ID, &o.GroupID, &o.GroupName, &o.GroupPriceMode, &o.ItemID,
			&o.ItemName, &o.Name, &o.PriceDeltaCents, &o.Multiplier, &o.IsDefault, &o.Rank); err != nil {
			return nil, fmt.Errorf("scan dinner option: %w", err)
		}
		out = append(out, o)
		found[o.ID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if !found[id] {
			return nil, domain.Invalidf("dinner option %d is not valid for this dinner", id)
		}
	}
	return out, nil
}

func (r *Repository) DinnerOptionGroups(ctx context.Context, dinnerID int64) ([]domain.DinnerOption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.group_id, g.name, g.price_mode, o.item_id, i.name, o.name,
		       o.price_delta_cents, o.multiplier, o.is_default, o.rank
		FROM dinner_option o
		JOIN dinner_option_group g ON g.id = o.group_id
		LEFT JOIN menu_item i ON i.id = o.item_id
		WHERE g.dinner_type_id = $1
		ORDER BY g.rank, g.name, o.rank`, dinnerID)
	if err != nil {
		return nil, fmt.Errorf("list dinner options: %w", err)
	}
	defer rows.Close()

	var out []domain.DinnerOption
	for rows.Next() {
		var o domain.DinnerOption
		if err := rows.Scan(&o.ID, &o.GroupID, &o.GroupName, &o.GroupPriceMode, &o.ItemID,
			&o.ItemName, &o.Name, &o.PriceDeltaCents, &o.Multiplier, &o.IsDefault, &o.Rank); err != nil {
			return nil, fmt.Errorf("scan dinner option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SaveItemStock writes back the active flag and attrs after an inventory
// mutation.
func (r *Repository) SaveItemStock(ctx context.Context, itemID int64, active bool, attrs map[string]any) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE menu_item SET active = $2, attrs = $3, updated_at = NOW() WHERE id = $1`,
		itemID, active, attrs)
	if err != nil {
		return fmt.Errorf("save item stock: %w", err)
	}
	return nil
}

func (r *Repository) SearchItems(ctx context.Context, q string, active *bool, limit int) ([]domain.MenuItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM menu_item i
		LEFT JOIN menu_category c ON c.id = i.category_id
		WHERE ($1 = '' OR i.name ILIKE '%' || $1 || '%' OR i.code ILIKE '%' || $1 || '%')
		  AND ($2::boolean IS NULL OR i.active = $2)
		ORDER BY c.rank NULLS LAST, i.name
		LIMIT $3`, q, active, limit)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		m, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repository) ItemAvailability(ctx context.Context, itemID int64) ([]domain.ItemAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT item_id, dow, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), start_date, end_date
		FROM item_availability
		WHERE item_id = $1
		ORDER BY dow, start_time`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemAvailability
	for rows.Next() {
		var a domain.ItemAvailability
		if err := rows.Scan(&a.ItemID, &a.DOW, &a.StartTime, &a.EndTime, &a.StartDate, &a.EndDate); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AvailableAt evaluates the weekly windows at the given local time. No rows
// means always available. Windows only match on their own day of week; a
// window whose start exceeds its end wraps past midnight, so on that day it
// covers both the late evening and the small hours.
func AvailableAt(windows []domain.ItemAvailability, at time.Time) bool {
	if len(windows) == 0 {
		return true
	}
	dow := int(at.Weekday())
	clock := at.Format("15:04")
	date := at.Format("2006-01-02")

	for _, w := range windows {
		if w.DOW != dow {
			continue
		}
		if w.StartDate != nil && date < w.StartDate.Format("2006-01-02") {
			continue
		}
		if w.EndDate != nil && date > w.EndDate.Format("2006-01-02") {
			continue
		}
		if w.StartTime <= w.EndTime {
			if clock >= w.StartTime && clock <= w.EndTime {
				return true
			}
			continue
		}
		if clock >= w.StartTime || clock <= w.EndTime {
			return true
		}
	}
	return false
}

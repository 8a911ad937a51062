package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dinner-house/internal/logger"
)

// Run applies the schema in dependency order. Every statement is idempotent,
// so reruns against an existing database are safe.
func Run(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"catalog", schemaCatalog},
		{"customers", schemaCustomers},
		{"orders", schemaOrders},
		{"staff", schemaStaff},
		{"promotion", schemaPromotion},
	}
	for _, s := range steps {
		if _, err := pool.Exec(ctx, s.sql); err != nil {
			return fmt.Errorf("apply %s schema: %w", s.name, err)
		}
		log.Debug("schema applied", "step", s.name)
	}
	log.Info("database schema up to date", "steps", len(steps))
	return nil
}

const schemaCatalog = `
CREATE TABLE IF NOT EXISTS menu_category (
    id BIGSERIAL PRIMARY KEY,
    parent_id BIGINT REFERENCES menu_category(id) ON DELETE SET NULL,
    name VARCHAR(100) NOT NULL,
    slug VARCHAR(100) UNIQUE,
    rank INT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS item_tag (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS menu_item (
    id BIGSERIAL PRIMARY KEY,
    category_id BIGINT REFERENCES menu_category(id) ON DELETE SET NULL,
    code VARCHAR(64) NOT NULL UNIQUE,
    name VARCHAR(150) NOT NULL,
    description TEXT,
    unit VARCHAR(20),
    base_price_cents BIGINT NOT NULL DEFAULT 0 CHECK (base_price_cents >= 0),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    attrs JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_menu_item_category ON menu_item(category_id);
CREATE INDEX IF NOT EXISTS idx_menu_item_active ON menu_item(active);

CREATE TABLE IF NOT EXISTS menu_item_tag (
    item_id BIGINT NOT NULL REFERENCES menu_item(id) ON DELETE CASCADE,
    tag_id BIGINT NOT NULL REFERENCES item_tag(id) ON DELETE CASCADE,
    PRIMARY KEY (item_id, tag_id)
);

CREATE TABLE IF NOT EXISTS item_option_group (
    id BIGSERIAL PRIMARY KEY,
    item_id BIGINT NOT NULL REFERENCES menu_item(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    select_mode VARCHAR(10) NOT NULL DEFAULT 'single' CHECK (select_mode IN ('single', 'multi')),
    min_select INT NOT NULL DEFAULT 0,
    max_select INT,
    is_required BOOLEAN NOT NULL DEFAULT FALSE,
    is_variant BOOLEAN NOT NULL DEFAULT FALSE,
    price_mode VARCHAR(12) NOT NULL DEFAULT 'addon' CHECK (price_mode IN ('addon', 'multiplier')),
    rank INT NOT NULL DEFAULT 0,
    UNIQUE (item_id, name)
);

CREATE TABLE IF NOT EXISTS item_option (
    id BIGSERIAL PRIMARY KEY,
    group_id BIGINT NOT NULL REFERENCES item_option_group(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    price_delta_cents BIGINT NOT NULL DEFAULT 0,
    multiplier NUMERIC(8,4),
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    rank INT NOT NULL DEFAULT 0,
    UNIQUE (group_id, name)
);

CREATE TABLE IF NOT EXISTS serving_style (
    id BIGSERIAL PRIMARY KEY,
    code VARCHAR(50) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    price_mode VARCHAR(12) NOT NULL DEFAULT 'addon' CHECK (price_mode IN ('addon', 'multiplier')),
    price_value NUMERIC(12,4) NOT NULL DEFAULT 0,
    notes TEXT
);

CREATE TABLE IF NOT EXISTS dinner_type (
    id BIGSERIAL PRIMARY KEY,
    code VARCHAR(64) NOT NULL UNIQUE,
    name VARCHAR(150) NOT NULL,
    description TEXT,
    base_price_cents BIGINT NOT NULL DEFAULT 0 CHECK (base_price_cents >= 0),
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS dinner_style_allowed (
    dinner_type_id BIGINT NOT NULL REFERENCES dinner_type(id) ON DELETE CASCADE,
    style_id BIGINT NOT NULL REFERENCES serving_style(id) ON DELETE CASCADE,
    PRIMARY KEY (dinner_type_id, style_id)
);

CREATE TABLE IF NOT EXISTS dinner_default_item (
    dinner_type_id BIGINT NOT NULL REFERENCES dinner_type(id) ON DELETE CASCADE,
    item_id BIGINT NOT NULL REFERENCES menu_item(id) ON DELETE CASCADE,
    default_qty NUMERIC(8,2) NOT NULL DEFAULT 1 CHECK (default_qty > 0),
    included_in_base BOOLEAN NOT NULL DEFAULT TRUE,
    notes TEXT,
    PRIMARY KEY (dinner_type_id, item_id)
);

CREATE TABLE IF NOT EXISTS dinner_option_group (
    id BIGSERIAL PRIMARY KEY,
    dinner_type_id BIGINT NOT NULL REFERENCES dinner_type(id) ON DELETE CASCADE,
    name VARCHAR(100) NOT NULL,
    select_mode VARCHAR(10) NOT NULL DEFAULT 'single' CHECK (select_mode IN ('single', 'multi')),
    price_mode VARCHAR(12) NOT NULL DEFAULT 'addon' CHECK (price_mode IN ('addon', 'multiplier')),
    rank INT NOT NULL DEFAULT 0,
    UNIQUE (dinner_type_id, name)
);

CREATE TABLE IF NOT EXISTS dinner_option (
    id BIGSERIAL PRIMARY KEY,
    group_id BIGINT NOT NULL REFERENCES dinner_option_group(id) ON DELETE CASCADE,
    item_id BIGINT REFERENCES menu_item(id) ON DELETE SET NULL,
    name VARCHAR(100),
    price_delta_cents BIGINT NOT NULL DEFAULT 0,
    multiplier NUMERIC(8,4),
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    rank INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS item_availability (
    id BIGSERIAL PRIMARY KEY,
    item_id BIGINT NOT NULL REFERENCES menu_item(id) ON DELETE CASCADE,
    dow INT NOT NULL CHECK (dow BETWEEN 0 AND 6),
    start_time TIME NOT NULL,
    end_time TIME NOT NULL,
    start_date DATE,
    end_date DATE,
    UNIQUE (item_id, dow, start_time, end_time)
);
`

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customer (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(64) NOT NULL UNIQUE,
    password_hash VARCHAR(100) NOT NULL,
    real_name VARCHAR(150),
    phone VARCHAR(32) UNIQUE,
    addresses JSONB NOT NULL DEFAULT '[]'::jsonb,
    loyalty_tier VARCHAR(10) NOT NULL DEFAULT 'none' CHECK (loyalty_tier IN ('none', 'silver', 'gold')),
    profile_consent BOOLEAN NOT NULL DEFAULT FALSE,
    profile_consent_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT customer_addresses_max CHECK (jsonb_array_length(addresses) <= 3)
);
`

const schemaOrders = `
CREATE TABLE IF NOT EXISTS orders (
    id BIGSERIAL PRIMARY KEY,
    number VARCHAR(32) NOT NULL UNIQUE,
    customer_id BIGINT NOT NULL REFERENCES customer(id) ON DELETE RESTRICT,
    ordered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    status VARCHAR(20) NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'preparing', 'out_for_delivery', 'delivered', 'canceled')),
    order_source VARCHAR(10) NOT NULL DEFAULT 'GUI' CHECK (order_source IN ('GUI', 'VOICE')),
    receiver_name VARCHAR(150),
    receiver_phone VARCHAR(32),
    delivery_address TEXT,
    geo_lat DOUBLE PRECISION,
    geo_lng DOUBLE PRECISION,
    place_label VARCHAR(150),
    address_meta JSONB,
    payment_token VARCHAR(128),
    card_last4 VARCHAR(4),
    subtotal_cents BIGINT NOT NULL DEFAULT 0 CHECK (subtotal_cents >= 0),
    discount_cents BIGINT NOT NULL DEFAULT 0 CHECK (discount_cents >= 0),
    total_cents BIGINT NOT NULL DEFAULT 0 CHECK (total_cents >= 0),
    meta JSONB
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_orders_ordered_at ON orders(ordered_at);

CREATE TABLE IF NOT EXISTS order_dinner (
    id BIGSERIAL PRIMARY KEY,
    order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    dinner_type_id BIGINT NOT NULL REFERENCES dinner_type(id) ON DELETE RESTRICT,
    style_id BIGINT NOT NULL REFERENCES serving_style(id) ON DELETE RESTRICT,
    person_label VARCHAR(100),
    quantity NUMERIC(8,2) NOT NULL DEFAULT 1 CHECK (quantity > 0),
    base_price_cents BIGINT NOT NULL DEFAULT 0,
    style_adjust_cents BIGINT NOT NULL DEFAULT 0,
    notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_order_dinner_order ON order_dinner(order_id);

CREATE TABLE IF NOT EXISTS order_dinner_item (
    id BIGSERIAL PRIMARY KEY,
    order_dinner_id BIGINT NOT NULL REFERENCES order_dinner(id) ON DELETE CASCADE,
    item_id BIGINT NOT NULL REFERENCES menu_item(id) ON DELETE RESTRICT,
    final_qty NUMERIC(8,2) NOT NULL DEFAULT 1 CHECK (final_qty >= 0),
    unit_price_cents BIGINT NOT NULL DEFAULT 0,
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    change_type VARCHAR(12) NOT NULL DEFAULT 'unchanged'
        CHECK (change_type IN ('unchanged', 'added', 'removed', 'increased', 'decreased')),
    UNIQUE (order_dinner_id, item_id)
);

CREATE TABLE IF NOT EXISTS order_dinner_option (
    id BIGSERIAL PRIMARY KEY,
    order_dinner_id BIGINT NOT NULL REFERENCES order_dinner(id) ON DELETE CASCADE,
    option_group_name VARCHAR(100) NOT NULL,
    option_name VARCHAR(150) NOT NULL,
    price_delta_cents BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_item_option (
    id BIGSERIAL PRIMARY KEY,
    order_dinner_item_id BIGINT NOT NULL REFERENCES order_dinner_item(id) ON DELETE CASCADE,
    option_group_name VARCHAR(100) NOT NULL,
    option_name VARCHAR(150) NOT NULL,
    price_delta_cents BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_status_log (
    id BIGSERIAL PRIMARY KEY,
    order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL,
    changed_by VARCHAR(100) NOT NULL DEFAULT '',
    changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    notes TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_order_status_log_order ON order_status_log(order_id);
`

const schemaStaff = `
CREATE TABLE IF NOT EXISTS staff (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(64) NOT NULL UNIQUE,
    password_hash VARCHAR(100) NOT NULL,
    display_name VARCHAR(150) NOT NULL,
    role VARCHAR(20) NOT NULL CHECK (role IN ('OWNER', 'MANAGER', 'KITCHEN', 'DELIVERY')),
    phone VARCHAR(32) NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    meta JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS staff_shift (
    id BIGSERIAL PRIMARY KEY,
    staff_id BIGINT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ,
    work_minutes INT CHECK (work_minutes >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT staff_shift_window CHECK (ended_at IS NULL OR ended_at > started_at)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_staff_shift_open
    ON staff_shift(staff_id) WHERE ended_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_staff_shift_staff ON staff_shift(staff_id, started_at);

CREATE TABLE IF NOT EXISTS staff_daily_hours (
    staff_id BIGINT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
    work_date DATE NOT NULL,
    minutes INT NOT NULL DEFAULT 0 CHECK (minutes >= 0),
    shift_ids BIGINT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (staff_id, work_date)
);

CREATE INDEX IF NOT EXISTS idx_staff_daily_hours_date ON staff_daily_hours(work_date);
`

const schemaPromotion = `
CREATE TABLE IF NOT EXISTS coupon (
    code VARCHAR(40) PRIMARY KEY,
    name VARCHAR(150) NOT NULL,
    label VARCHAR(150) NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    kind VARCHAR(10) NOT NULL CHECK (kind IN ('percent', 'fixed')),
    value NUMERIC(12,2) NOT NULL CHECK (value >= 0),
    valid_from TIMESTAMPTZ,
    valid_until TIMESTAMPTZ,
    min_subtotal_cents BIGINT,
    max_discount_cents BIGINT,
    stackable_with_membership BOOLEAN NOT NULL DEFAULT TRUE,
    stackable_with_coupons BOOLEAN NOT NULL DEFAULT FALSE,
    channel VARCHAR(10) NOT NULL DEFAULT 'ANY' CHECK (channel IN ('ANY', 'GUI', 'VOICE')),
    max_redemptions_global INT,
    max_redemptions_per_user INT,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS coupon_redemption (
    id BIGSERIAL PRIMARY KEY,
    coupon_code VARCHAR(40) NOT NULL REFERENCES coupon(code) ON DELETE CASCADE,
    customer_id BIGINT NOT NULL REFERENCES customer(id) ON DELETE CASCADE,
    order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    amount_cents BIGINT NOT NULL DEFAULT 0,
    channel VARCHAR(10) NOT NULL DEFAULT 'GUI',
    redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (coupon_code, order_id)
);

CREATE INDEX IF NOT EXISTS idx_coupon_redemption_customer ON coupon_redemption(coupon_code, customer_id);

CREATE TABLE IF NOT EXISTS membership (
    id BIGSERIAL PRIMARY KEY,
    customer_id BIGINT NOT NULL UNIQUE REFERENCES customer(id) ON DELETE CASCADE,
    label VARCHAR(150) NOT NULL DEFAULT '',
    percent_off NUMERIC(5,2) NOT NULL DEFAULT 0 CHECK (percent_off >= 0 AND percent_off <= 100),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    valid_from TIMESTAMPTZ,
    valid_until TIMESTAMPTZ
);
`

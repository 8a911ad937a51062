package domain

import "time"

// Select modes for option groups.
const (
	SelectSingle = "single"
	SelectMulti  = "multi"
)

// Price modes shared by option groups and serving styles.
const (
	PriceAddon      = "addon"
	PriceMultiplier = "multiplier"
)

type MenuCategory struct {
	ID       int64   `json:"category_id"`
	ParentID *int64  `json:"parent_id,omitempty"`
	Name     string  `json:"name"`
	Slug     *string `json:"slug,omitempty"`
	Rank     int     `json:"rank"`
	Active   bool    `json:"active"`
}

type ItemTag struct {
	ID   int64  `json:"tag_id"`
	Name string `json:"name"`
}

// MenuItem is a sellable unit. Stock bookkeeping lives in Attrs under
// "stock_qty" / "soldout_reason", mirroring how the menu data is curated.
type MenuItem struct {
	ID             int64          `json:"item_id"`
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Description    *string        `json:"description,omitempty"`
	CategoryID     *int64         `json:"category_id,omitempty"`
	CategoryName   *string        `json:"category,omitempty"`
	Unit           *string        `json:"unit,omitempty"`
	BasePriceCents int64          `json:"base_price_cents"`
	Active         bool           `json:"active"`
	Attrs          map[string]any `json:"attrs,omitempty"`
	Tags           []ItemTag      `json:"tags,omitempty"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

// StockQty reads the stock counter out of Attrs; absent means zero.
func (m *MenuItem) StockQty() int {
	if m.Attrs == nil {
		return 0
	}
	switch v := m.Attrs["stock_qty"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

type ItemOptionGroup struct {
	ID         int64  `json:"group_id"`
	ItemID     int64  `json:"item_id"`
	Name       string `json:"name"`
	SelectMode string `json:"select_mode"`
	MinSelect  int    `json:"min_select"`
	MaxSelect  *int   `json:"max_select,omitempty"` // nil = unbounded
	IsRequired bool   `json:"is_required"`
	IsVariant  bool   `json:"is_variant"`
	PriceMode  string `json:"price_mode"`
	Rank       int    `json:"rank"`
}

type ItemOption struct {
	ID              int64    `json:"option_id"`
	GroupID         int64    `json:"group_id"`
	GroupName       string   `json:"group_name"`
	GroupPriceMode  string   `json:"group_price_mode"`
	GroupItemID     int64    `json:"group_item_id"`
	Name            string   `json:"name"`
	PriceDeltaCents int64    `json:"price_delta_cents"`
	Multiplier      *float64 `json:"multiplier,omitempty"`
	IsDefault       bool     `json:"is_default"`
	Rank            int      `json:"rank"`
}

type ServingStyle struct {
	ID         int64   `json:"style_id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	PriceMode  string  `json:"price_mode"`
	PriceValue float64 `json:"price_value"` // addon cents or multiplier
	Notes      *string `json:"notes,omitempty"`
}

type DinnerType struct {
	ID             int64   `json:"dinner_type_id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	BasePriceCents int64   `json:"base_price_cents"`
	Active         bool    `json:"active"`
}

type DinnerDefaultItem struct {
	DinnerTypeID   int64   `json:"dinner_type_id"`
	ItemID         int64   `json:"item_id"`
	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name"`
	ItemPriceCents int64   `json:"item_price_cents"`
	DefaultQty     float64 `json:"default_qty"`
	IncludedInBase bool    `json:"included_in_base"`
	Notes          *string `json:"notes,omitempty"`
}

type DinnerOption struct {
	ID              int64    `json:"option_id"`
	GroupID         int64    `json:"group_id"`
	GroupName       string   `json:"group_name"`
	GroupPriceMode  string   `json:"group_price_mode"`
	ItemID          *int64   `json:"item_id,omitempty"`
	ItemName        *string  `json:"item_name,omitempty"`
	Name            *string  `json:"name,omitempty"`
	PriceDeltaCents int64    `json:"price_delta_cents"`
	Multiplier      *float64 `json:"multiplier,omitempty"`
	IsDefault       bool     `json:"is_default"`
	Rank            int      `json:"rank"`
}

// DisplayName prefers the option's own label, falling back to its item.
func (o DinnerOption) DisplayName() string {
	if o.Name != nil && *o.Name != "" {
		return *o.Name
	}
	if o.ItemName != nil {
		return *o.ItemName
	}
	return "Option"
}

// ItemAvailability is a weekly selling window; Start > End means the window
// wraps past midnight.
type ItemAvailability struct {
	ItemID    int64      `json:"item_id"`
	DOW       int        `json:"dow"` // 0=Sunday .. 6=Saturday
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

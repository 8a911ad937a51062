package domain

import "time"

// Order statuses. The machine is pending → preparing → out_for_delivery →
// delivered; cancel is allowed from any non-terminal state.
const (
	OrderPending   = "pending"
	OrderPreparing = "preparing"
	OrderOut       = "out_for_delivery"
	OrderDelivered = "delivered"
	OrderCanceled  = "canceled"
)

// Order sources.
const (
	SourceGUI   = "GUI"
	SourceVoice = "VOICE"
)

// Change types recorded on snapshot lines relative to the dinner's defaults.
const (
	ChangeUnchanged = "unchanged"
	ChangeAdded     = "added"
	ChangeRemoved   = "removed"
	ChangeIncreased = "increased"
	ChangeDecreased = "decreased"
)

// Order is a pricing snapshot: every amount and name on it is copied from the
// catalog at ordering time and never recomputed afterwards.
type Order struct {
	ID          int64     `json:"id"`
	Number      string    `json:"order_number"`
	CustomerID  int64     `json:"customer_id"`
	OrderedAt   time.Time `json:"ordered_at"`
	Status      string    `json:"status"`
	OrderSource string    `json:"order_source"`

	ReceiverName    *string        `json:"receiver_name,omitempty"`
	ReceiverPhone   *string        `json:"receiver_phone,omitempty"`
	DeliveryAddress *string        `json:"delivery_address,omitempty"`
	GeoLat          *float64       `json:"geo_lat,omitempty"`
	GeoLng          *float64       `json:"geo_lng,omitempty"`
	PlaceLabel      *string        `json:"place_label,omitempty"`
	AddressMeta     map[string]any `json:"address_meta,omitempty"`

	PaymentToken *string `json:"payment_token,omitempty"`
	CardLast4    *string `json:"card_last4,omitempty"`

	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`

	Meta map[string]any `json:"meta,omitempty"`

	Dinners []OrderDinner `json:"dinners,omitempty"`
}

type OrderDinner struct {
	ID               int64             `json:"id"`
	OrderID          int64             `json:"order_id"`
	DinnerTypeID     int64             `json:"dinner_type_id"`
	DinnerCode       string            `json:"dinner_code"`
	DinnerName       string            `json:"dinner_name"`
	StyleID          int64             `json:"style_id"`
	StyleCode        string            `json:"style_code"`
	StyleName        string            `json:"style_name"`
	PersonLabel      *string           `json:"person_label,omitempty"`
	Quantity         float64           `json:"quantity"`
	BasePriceCents   int64             `json:"base_price_cents"`
	StyleAdjustCents int64             `json:"style_adjust_cents"`
	Notes            *string           `json:"notes,omitempty"`
	Items            []OrderDinnerItem `json:"items"`
	Options          []OrderOptionSnap `json:"options"`
}

type OrderDinnerItem struct {
	ID             int64             `json:"id"`
	OrderDinnerID  int64             `json:"order_dinner_id"`
	ItemID         int64             `json:"item_id"`
	ItemCode       string            `json:"item_code"`
	ItemName       string            `json:"item_name"`
	FinalQty       float64           `json:"final_qty"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	IsDefault      bool              `json:"is_default"`
	ChangeType     string            `json:"change_type"`
	Options        []OrderOptionSnap `json:"options"`
}

// OrderOptionSnap is a frozen option line: names and deltas only, no foreign
// keys back into the live catalog.
type OrderOptionSnap struct {
	ID              int64  `json:"id,omitempty"`
	OptionGroupName string `json:"option_group_name"`
	OptionName      string `json:"option_name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
}

type StatusLogEntry struct {
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Notes     string    `json:"notes,omitempty"`
}

// CanTransition reports whether an order in `from` may move to `to`.
func CanTransition(from, to string) bool {
	switch to {
	case OrderPreparing:
		return from == OrderPending
	case OrderOut:
		return from == OrderPreparing
	case OrderDelivered:
		return from == OrderOut
	case OrderCanceled:
		return from != OrderDelivered && from != OrderCanceled
	}
	return false
}

package orders

import (
	"context"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
	"dinner-house/internal/promotion"
)

// Catalog is the read surface the order builder needs from the menu.
// *catalog.Repository satisfies it.
type Catalog interface {
	GetDinnerByCode(ctx context.Context, code string) (*domain.DinnerType, error)
	GetStyleByCode(ctx context.Context, code string) (*domain.ServingStyle, error)
	StyleAllowed(ctx context.Context, dinnerID, styleID int64) (bool, error)
	DinnerOptionsByID(ctx context.Context, dinnerID int64, ids []int64) ([]domain.DinnerOption, error)
	DefaultItems(ctx context.Context, dinnerID int64) ([]domain.DinnerDefaultItem, error)
	GetItemByCode(ctx context.Context, code string) (*domain.MenuItem, error)
	ItemOptionsByID(ctx context.Context, itemID int64, ids []int64) ([]domain.ItemOption, error)
}

type Customers interface {
	Get(ctx context.Context, id int64) (*domain.Customer, error)
}

type Promotions interface {
	Evaluate(ctx context.Context, in promotion.EvalInput) (promotion.EvalResult, error)
}

// Store is the persistence surface. *Repository satisfies it.
type Store interface {
	CreateOrderTx(ctx context.Context, o *domain.Order, discounts []domain.DiscountLine) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]domain.Order, error)
	StatusLog(ctx context.Context, orderID int64) ([]domain.StatusLogEntry, error)
	TransitionTx(ctx context.Context, orderID int64, to, changedBy, notes string) (*domain.Order, string, error)
	AppendStaffOpTx(ctx context.Context, orderID int64, op, by string) (*domain.Order, error)
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev domain.OrderEvent) error
}

type Service struct {
	store     Store
	catalog   Catalog
	customers Customers
	promos    Promotions
	events    EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

func NewService(store Store, cat Catalog, customers Customers, promos Promotions, events EventPublisher, log *logger.Logger) *Service {
	return &Service{
		store: store, catalog: cat, customers: customers,
		promos: promos, events: events, log: log, now: time.Now,
	}
}

type DefaultOverride struct {
	Code string  `json:"code"`
	Qty  float64 `json:"qty"`
}

type DinnerSelection struct {
	Code             string            `json:"code"`
	Quantity         float64           `json:"quantity"`
	Style            string            `json:"style"`
	DinnerOptions    []int64           `json:"dinner_options,omitempty"`
	DefaultOverrides []DefaultOverride `json:"default_overrides,omitempty"`
}

type ItemSelection struct {
	Code    string  `json:"code"`
	Qty     float64 `json:"qty"`
	Options []int64 `json:"options,omitempty"`
}

type PlaceOrderRequest struct {
	CustomerID  int64           `json:"customer_id"`
	OrderSource string          `json:"order_source,omitempty"`
	Dinner      DinnerSelection `json:"dinner"`
	Items       []ItemSelection `json:"items,omitempty"`
	Coupons     []string        `json:"coupons,omitempty"`

	ReceiverName    *string        `json:"receiver_name,omitempty"`
	ReceiverPhone   *string        `json:"receiver_phone,omitempty"`
	DeliveryAddress *string        `json:"delivery_address,omitempty"`
	GeoLat          *float64       `json:"geo_lat,omitempty"`
	GeoLng          *float64       `json:"geo_lng,omitempty"`
	PlaceLabel      *string        `json:"place_label,omitempty"`
	AddressMeta     map[string]any `json:"address_meta,omitempty"`
	PaymentToken    *string        `json:"payment_token,omitempty"`
	CardLast4       *string        `json:"card_last4,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// PlaceOrder builds the immutable pricing snapshot, evaluates discounts,
// persists everything in one transaction and publishes order_created.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if _, err := s.customers.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	order, subtotal, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	eval, err := s.promos.Evaluate(ctx, promotion.EvalInput{
		SubtotalCents: subtotal,
		CustomerID:    req.CustomerID,
		Channel:       order.OrderSource,
		CouponCodes:   req.Coupons,
	})
	if err != nil {
		return nil, err
	}

	order.SubtotalCents = subtotal
	order.DiscountCents = eval.DiscountCents
	order.TotalCents = eval.TotalCents
	if len(eval.Discounts) > 0 {
		if order.Meta == nil {
			order.Meta = map[string]any{}
		}
		order.Meta["discounts"] = eval.Discounts
	}

	if err := s.store.CreateOrderTx(ctx, order, eval.Discounts); err != nil {
		return nil, err
	}
	s.log.Info("order created", "order_number", order.Number,
		"customer_id", order.CustomerID, "total_cents", order.TotalCents)

	s.publish(ctx, domain.OrderEvent{
		Event:       domain.EventOrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Status:      order.Status,
		TotalCents:  order.TotalCents,
		OccurredAt:  s.now().UTC(),
	})
	return order, nil
}

// PricePreview mirrors PlaceOrder's arithmetic without persisting anything
// or consuming coupon redemptions.
type PricePreview struct {
	Dinners       []domain.OrderDinner  `json:"dinners"`
	SubtotalCents int64                 `json:"subtotal_cents"`
	DiscountCents int64                 `json:"discount_cents"`
	TotalCents    int64                 `json:"total_cents"`
	Discounts     []domain.DiscountLine `json:"discounts,omitempty"`
}

func (s *Service) PreviewPrice(ctx context.Context, req PlaceOrderRequest) (*PricePreview, error) {
	order, subtotal, err := s.buildSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	eval, err := s.promos.Evaluate(ctx, promotion.EvalInput{
		SubtotalCents: subtotal,
		CustomerID:    req.CustomerID,
		Channel:       order.OrderSource,
		CouponCodes:   req.Coupons,
	})
	if err != nil {
		return nil, err
	}
	return &PricePreview{
		Dinners:       order.Dinners,
		SubtotalCents: subtotal,
		DiscountCents: eval.DiscountCents,
		TotalCents:    eval.TotalCents,
		Discounts:     eval.Discounts,
	}, nil
}

// buildSnapshot turns the request into a fully-priced order snapshot.
// Returned subtotal excludes discounts.
func (s *Service) buildSnapshot(ctx context.Context, req PlaceOrderRequest) (*domain.Order, int64, error) {
	source := req.OrderSource
	if source == "" {
		source = domain.SourceGUI
	}
	if source != domain.SourceGUI && source != domain.SourceVoice {
		return nil, 0, domain.Invalidf("unknown order source %q", source)
	}

	dinner, err := s.catalog.GetDinnerByCode(ctx, req.Dinner.Code)
	if err != nil {
		return nil, 0, err
	}
	if !dinner.Active {
		return nil, 0, domain.Invalidf("dinner %q is not available", dinner.Code)
	}
	style, err := s.catalog.GetStyleByCode(ctx, req.Dinner.Style)
	if err != nil {
		return nil, 0, err
	}
	allowed, err := s.catalog.StyleAllowed(ctx, dinner.ID, style.ID)
	if err != nil {
		return nil, 0, err
	}
	if !allowed {
		return nil, 0, domain.Invalidf("style %q is not allowed for dinner %q", style.Code, dinner.Code)
	}

	qty := req.Dinner.Quantity
	if qty <= 0 {
		qty = 1
	}

	unitCents, styleAdjust := ApplyStyleToBase(dinner, style)

	dinnerOpts, err := s.catalog.DinnerOptionsByID(ctx, dinner.ID, req.Dinner.DinnerOptions)
	if err != nil {
		return nil, 0, err
	}
	var optionSnaps []domain.OrderOptionSnap
	for i := range dinnerOpts {
		opt := &dinnerOpts[i]
		delta := DinnerOptionDelta(opt, unitCents)
		unitCents += delta
		optionSnaps = append(optionSnaps, domain.OrderOptionSnap{
			OptionGroupName: opt.GroupName,
			OptionName:      opt.DisplayName(),
			PriceDeltaCents: delta,
		})
	}

	subtotal := LineTotalCents(unitCents, qty)

	od := domain.OrderDinner{
		DinnerTypeID:     dinner.ID,
		DinnerCode:       dinner.Code,
		DinnerName:       dinner.Name,
		StyleID:          style.ID,
		StyleCode:        style.Code,
		StyleName:        style.Name,
		Quantity:         qty,
		BasePriceCents:   dinner.BasePriceCents,
		StyleAdjustCents: styleAdjust,
		Options:          optionSnaps,
	}

	// Default items snapshot at qty from the bundle. Lines covered by the
	// base price carry a zero unit price; removing them later does not
	// change the dinner price.
	defaults, err := s.catalog.DefaultItems(ctx, dinner.ID)
	if err != nil {
		return nil, 0, err
	}
	lineByItem := map[int64]int{} // item id -> index in od.Items
	defaultQty := map[string]float64{}
	lineByCode := map[string]int{}
	for _, def := range defaults {
		unit := def.ItemPriceCents
		if def.IncludedInBase {
			unit = 0
		}
		od.Items = append(od.Items, domain.OrderDinnerItem{
			ItemID:         def.ItemID,
			ItemCode:       def.ItemCode,
			ItemName:       def.ItemName,
			FinalQty:       def.DefaultQty,
			UnitPriceCents: unit,
			IsDefault:      true,
			ChangeType:     domain.ChangeUnchanged,
		})
		idx := len(od.Items) - 1
		lineByItem[def.ItemID] = idx
		lineByCode[def.ItemCode] = idx
		defaultQty[def.ItemCode] = def.DefaultQty
	}

	// Overrides may only remove or shrink a default line.
	for _, ov := range req.Dinner.DefaultOverrides {
		idx, ok := lineByCode[ov.Code]
		if !ok {
			return nil, 0, domain.Invalidf("default override for unknown item %q", ov.Code)
		}
		orig := defaultQty[ov.Code]
		if ov.Qty < 0 || ov.Qty > orig {
			return nil, 0, domain.Invalidf("override qty for %q must be between 0 and %g", ov.Code, orig)
		}
		line := &od.Items[idx]
		line.FinalQty = ov.Qty
		switch {
		case ov.Qty == 0:
			line.ChangeType = domain.ChangeRemoved
		case ov.Qty < orig:
			line.ChangeType = domain.ChangeDecreased
		default:
			line.ChangeType = domain.ChangeUnchanged
		}
	}

	// Extra items merge into existing lines per item.
	for _, sel := range req.Items {
		if sel.Qty <= 0 {
			return nil, 0, domain.Invalidf("item %q quantity must be positive", sel.Code)
		}
		item, err := s.catalog.GetItemByCode(ctx, sel.Code)
		if err != nil {
			return nil, 0, err
		}
		if !item.Active {
			return nil, 0, domain.Invalidf("item %q is not available", item.Code)
		}
		opts, err := s.catalog.ItemOptionsByID(ctx, item.ID, sel.Options)
		if err != nil {
			return nil, 0, err
		}

		itemUnit, snaps := CalcItemUnitCents(item, opts)
		subtotal += LineTotalCents(itemUnit, sel.Qty)

		if idx, ok := lineByItem[item.ID]; ok {
			line := &od.Items[idx]
			line.FinalQty += sel.Qty
			if line.IsDefault && line.ChangeType == domain.ChangeUnchanged {
				line.ChangeType = domain.ChangeAdded
			}
			line.Options = append(line.Options, snaps...)
			continue
		}
		od.Items = append(od.Items, domain.OrderDinnerItem{
			ItemID:         item.ID,
			ItemCode:       item.Code,
			ItemName:       item.Name,
			FinalQty:       sel.Qty,
			UnitPriceCents: itemUnit,
			IsDefault:      false,
			ChangeType:     domain.ChangeAdded,
			Options:        snaps,
		})
		lineByItem[item.ID] = len(od.Items) - 1
	}

	order := &domain.Order{
		CustomerID:      req.CustomerID,
		OrderSource:     source,
		ReceiverName:    req.ReceiverName,
		ReceiverPhone:   req.ReceiverPhone,
		DeliveryAddress: req.DeliveryAddress,
		GeoLat:          req.GeoLat,
		GeoLng:          req.GeoLng,
		PlaceLabel:      req.PlaceLabel,
		AddressMeta:     req.AddressMeta,
		PaymentToken:    req.PaymentToken,
		CardLast4:       req.CardLast4,
		Meta:            req.Meta,
		Dinners:         []domain.OrderDinner{od},
	}
	return order, subtotal, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return s.store.GetOrderByNumber(ctx, number)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, f)
}

func (s *Service) History(ctx context.Context, orderID int64) ([]domain.StatusLogEntry, error) {
	return s.store.StatusLog(ctx, orderID)
}

// Action names accepted by Transition.
var actionStatus = map[string]string{
	"accept":   domain.OrderPreparing,
	"dispatch": domain.OrderOut,
	"deliver":  domain.OrderDelivered,
	"cancel":   domain.OrderCanceled,
}

// Transition applies a staff action to the order and publishes the status
// change after commit.
func (s *Service) Transition(ctx context.Context, orderID int64, action, staffName, notes string) (*domain.Order, error) {
	if action == "mark_ready" {
		order, err := s.store.AppendStaffOpTx(ctx, orderID, action, staffName)
		if err != nil {
			return nil, err
		}
		s.log.Info("order marked ready", "order_number", order.Number, "by", staffName)
		return order, nil
	}

	to, ok := actionStatus[action]
	if !ok {
		return nil, domain.Invalidf("unknown action %q", action)
	}

	order, oldStatus, err := s.store.TransitionTx(ctx, orderID, to, staffName, notes)
	if err != nil {
		return nil, err
	}
	s.log.Info("order status changed", "order_number", order.Number,
		"from", oldStatus, "to", order.Status, "by", staffName)

	s.publish(ctx, domain.OrderEvent{
		Event:       domain.EventOrderStatusChanged,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Status:      order.Status,
		OldStatus:   oldStatus,
		ChangedBy:   staffName,
		OccurredAt:  s.now().UTC(),
	})
	return order, nil
}

func (s *Service) publish(ctx context.Context, ev domain.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, ev); err != nil {
		s.log.Error("publish order event failed", "event", ev.Event, "order_id", ev.OrderID, "error", err)
	}
}

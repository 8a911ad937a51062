package orders

import (
	"context"
	"testing"
	"time"

	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
	"dinner-house/internal/promotion"
)

type fakeCatalog struct {
	dinners  map[string]*domain.DinnerType
	styles   map[string]*domain.ServingStyle
	allowed  map[[2]int64]bool
	dinOpts  map[int64]domain.DinnerOption
	defaults map[int64][]domain.DinnerDefaultItem
	items    map[string]*domain.MenuItem
	itemOpts map[int64]domain.ItemOption
}

func (f *fakeCatalog) GetDinnerByCode(_ context.Context, code string) (*domain.DinnerType, error) {
	if d, ok := f.dinners[code]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) GetStyleByCode(_ context.Context, code string) (*domain.ServingStyle, error) {
	if s, ok := f.styles[code]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) StyleAllowed(_ context.Context, dinnerID, styleID int64) (bool, error) {
	return f.allowed[[2]int64{dinnerID, styleID}], nil
}

func (f *fakeCatalog) DinnerOptionsByID(_ context.Context, dinnerID int64, ids []int64) ([]domain.DinnerOption, error) {
	var out []domain.DinnerOption
	for _, id := range ids {
		o, ok := f.dinOpts[id]
		if !ok {
			return nil, domain.Invalidf("dinner option %d is not valid for this dinner", id)
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeCatalog) DefaultItems(_ context.Context, dinnerID int64) ([]domain.DinnerDefaultItem, error) {
	return f.defaults[dinnerID], nil
}

func (f *fakeCatalog) GetItemByCode(_ context.Context, code string) (*domain.MenuItem, error) {
	if it, ok := f.items[code]; ok {
		return it, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) ItemOptionsByID(_ context.Context, itemID int64, ids []int64) ([]domain.ItemOption, error) {
	var out []domain.ItemOption
	for _, id := range ids {
		o, ok := f.itemOpts[id]
		if !ok || o.GroupItemID != itemID {
			return nil, domain.Invalidf("unknown option id %d", id)
		}
		out = append(out, o)
	}
	return out, nil
}

type fakeCustomers struct{ known map[int64]bool }

func (f *fakeCustomers) Get(_ context.Context, id int64) (*domain.Customer, error) {
	if !f.known[id] {
		return nil, domain.ErrNotFound
	}
	return &domain.Customer{ID: id, Username: "cust"}, nil
}

type fakePromos struct {
	result promotion.EvalResult
	seen   *promotion.EvalInput
}

func (f *fakePromos) Evaluate(_ context.Context, in promotion.EvalInput) (promotion.EvalResult, error) {
	f.seen = &in
	if f.result.TotalCents == 0 && f.result.DiscountCents == 0 {
		return promotion.EvalResult{TotalCents: in.SubtotalCents}, nil
	}
	return f.result, nil
}

type fakeOrderStore struct {
	created   *domain.Order
	discounts []domain.DiscountLine
	orders    map[int64]*domain.Order
}

func (f *fakeOrderStore) CreateOrderTx(_ context.Context, o *domain.Order, discounts []domain.DiscountLine) error {
	o.ID = 1
	o.Number = "ORD_20250310_001"
	o.Status = domain.OrderPending
	o.OrderedAt = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	f.created = o
	f.discounts = discounts
	return nil
}

func (f *fakeOrderStore) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	if o, ok := f.orders[id]; ok {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOrderStore) GetOrderByNumber(_ context.Context, _ string) (*domain.Order, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeOrderStore) ListOrders(_ context.Context, _ ListFilter) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeOrderStore) StatusLog(_ context.Context, _ int64) ([]domain.StatusLogEntry, error) {
	return nil, nil
}

func (f *fakeOrderStore) AppendStaffOpTx(_ context.Context, orderID int64, op, by string) (*domain.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if o.Status == domain.OrderDelivered || o.Status == domain.OrderCanceled {
		return nil, domain.Conflictf("order %s is %s", o.Number, o.Status)
	}
	if o.Meta == nil {
		o.Meta = map[string]any{}
	}
	ops, _ := o.Meta["staff_ops"].([]any)
	o.Meta["staff_ops"] = append(ops, map[string]any{"op": op, "by": by})
	return o, nil
}

func (f *fakeOrderStore) TransitionTx(_ context.Context, orderID int64, to, changedBy, _ string) (*domain.Order, string, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	if !domain.CanTransition(o.Status, to) {
		return nil, "", domain.Conflictf("order %s cannot go from %s to %s", o.Number, o.Status, to)
	}
	old := o.Status
	o.Status = to
	return o, old, nil
}

type orderEvents struct{ events []domain.OrderEvent }

func (c *orderEvents) PublishOrderEvent(_ context.Context, ev domain.OrderEvent) error {
	c.events = append(c.events, ev)
	return nil
}

// valentineCatalog builds a dinner priced at 10000 with a 1.2x deluxe style,
// a wine default included in base, a free steak default priced separately,
// and an extra coke item.
func valentineCatalog() *fakeCatalog {
	return &fakeCatalog{
		dinners: map[string]*domain.DinnerType{
			"valentine": {ID: 1, Code: "valentine", Name: "Valentine Dinner", BasePriceCents: 10000, Active: true},
		},
		styles: map[string]*domain.ServingStyle{
			"simple": {ID: 1, Code: "simple", Name: "Simple", PriceMode: domain.PriceAddon, PriceValue: 0},
			"deluxe": {ID: 2, Code: "deluxe", Name: "Deluxe", PriceMode: domain.PriceMultiplier, PriceValue: 1.2},
		},
		allowed: map[[2]int64]bool{{1, 1}: true, {1, 2}: true},
		dinOpts: map[int64]domain.DinnerOption{
			11: {ID: 11, GroupName: "Extras", GroupPriceMode: domain.PriceAddon, Name: strptr("Candle"), PriceDeltaCents: 500},
			12: {ID: 12, GroupName: "Size", GroupPriceMode: domain.PriceMultiplier, Multiplier: fptr(1.5), Name: strptr("Grand")},
		},
		defaults: map[int64][]domain.DinnerDefaultItem{
			1: {
				{DinnerTypeID: 1, ItemID: 101, ItemCode: "steak", ItemName: "Steak", ItemPriceCents: 4000, DefaultQty: 1, IncludedInBase: false},
				{DinnerTypeID: 1, ItemID: 102, ItemCode: "wine", ItemName: "Wine", ItemPriceCents: 3000, DefaultQty: 1, IncludedInBase: true},
			},
		},
		items: map[string]*domain.MenuItem{
			"coke":  {ID: 103, Code: "coke", Name: "Coke", BasePriceCents: 300, Active: true},
			"steak": {ID: 101, Code: "steak", Name: "Steak", BasePriceCents: 4000, Active: true},
		},
		itemOpts: map[int64]domain.ItemOption{
			21: {ID: 21, GroupItemID: 103, GroupName: "Size", GroupPriceMode: domain.PriceAddon, Name: "Large", PriceDeltaCents: 100},
		},
	}
}

func strptr(s string) *string { return &s }

func newTestOrderService(cat *fakeCatalog, store *fakeOrderStore, promos *fakePromos, events *orderEvents) *Service {
	return NewService(store, cat, &fakeCustomers{known: map[int64]bool{7: true}}, promos, events, logger.NewNop())
}

func TestPlaceOrderSnapshotsDinner(t *testing.T) {
	store := &fakeOrderStore{}
	events := &orderEvents{}
	svc := newTestOrderService(valentineCatalog(), store, &fakePromos{}, events)

	got, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: 7,
		Dinner:     DinnerSelection{Code: "valentine", Style: "simple", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if got.SubtotalCents != 10000 || got.TotalCents != 10000 {
		t.Errorf("subtotal/total = %d/%d, want 10000/10000", got.SubtotalCents, got.TotalCents)
	}
	if len(got.Dinners) != 1 {
		t.Fatalf("expected 1 dinner, got %d", len(got.Dinners))
	}
	d := got.Dinners[0]
	if d.BasePriceCents != 10000 || d.StyleAdjustCents != 0 {
		t.Errorf("dinner snapshot = %+v", d)
	}
	// Both defaults snapshot; the included-in-base wine carries a zero unit.
	if len(d.Items) != 2 {
		t.Fatalf("expected 2 default lines, got %+v", d.Items)
	}
	for _, it := range d.Items {
		if it.ItemCode == "wine" && it.UnitPriceCents != 0 {
			t.Errorf("wine should cost 0 in the bundle, got %d", it.UnitPriceCents)
		}
		if it.ItemCode == "steak" && it.UnitPriceCents != 4000 {
			t.Errorf("steak unit = %d, want 4000", it.UnitPriceCents)
		}
		if !it.IsDefault || it.ChangeType != domain.ChangeUnchanged {
			t.Errorf("default line flags wrong: %+v", it)
		}
	}
	if len(events.events) != 1 || events.events[0].Event != domain.EventOrderCreated {
		t.Errorf("expected order_created event, got %+v", events.events)
	}
}

func TestPlaceOrderStyleAndDinnerOptions(t *testing.T) {
	store := &fakeOrderStore{}
	svc := newTestOrderService(valentineCatalog(), store, &fakePromos{}, &orderEvents{})

	got, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: 7,
		Dinner: DinnerSelection{
			Code: "valentine", Style: "deluxe", Quantity: 2,
			DinnerOptions: []int64{11, 12},
		},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	// deluxe: 10000 * 1.2 = 12000; +500 addon = 12500;
	// grand multiplier: 12500 * 0.5 = 6250 delta -> unit 18750; qty 2 = 37500.
	if got.SubtotalCents != 37500 {
		t.Errorf("subtotal = %d, want 37500", got.SubtotalCents)
	}
	d := got.Dinners[0]
	if d.StyleAdjustCents != 2000 {
		t.Errorf("style adjust = %d, want 2000", d.StyleAdjustCents)
	}
	if len(d.Options) != 2 {
		t.Fatalf("expected 2 option snapshots, got %+v", d.Options)
	}
	if d.Options[0].PriceDeltaCents != 500 || d.Options[1].PriceDeltaCents != 6250 {
		t.Errorf("option deltas = %d/%d, want 500/6250",
			d.Options[0].PriceDeltaCents, d.Options[1].PriceDeltaCents)
	}
}

func TestPlaceOrderDefaultOverridesAndMerge(t *testing.T) {
	store := &fakeOrderStore{}
	svc := newTestOrderService(valentineCatalog(), store, &fakePromos{}, &orderEvents{})

	got, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: 7,
		Dinner: DinnerSelection{
			Code: "valentine", Style: "simple", Quantity: 1,
			DefaultOverrides: []DefaultOverride{{Code: "wine", Qty: 0}},
		},
		Items: []ItemSelection{
			{Code: "coke", Qty: 2, Options: []int64{21}},
			{Code: "steak", Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	// Removing the bundled wine does not change the dinner price. Coke with
	// the large option is (300+100)*2 = 800; the extra steak adds 4000.
	if got.SubtotalCents != 14800 {
		t.Errorf("subtotal = %d, want 14800", got.SubtotalCents)
	}

	byCode := map[string]domain.OrderDinnerItem{}
	for _, it := range got.Dinners[0].Items {
		byCode[it.ItemCode] = it
	}
	if w := byCode["wine"]; w.FinalQty != 0 || w.ChangeType != domain.ChangeRemoved {
		t.Errorf("wine line = %+v, want removed", w)
	}
	// The extra steak merged into the default steak line.
	if s := byCode["steak"]; s.FinalQty != 2 || s.ChangeType != domain.ChangeAdded || !s.IsDefault {
		t.Errorf("steak line = %+v, want merged qty 2", s)
	}
	if c := byCode["coke"]; c.FinalQty != 2 || len(c.Options) != 1 || c.UnitPriceCents != 400 {
		t.Errorf("coke line = %+v", c)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	store := &fakeOrderStore{}
	svc := newTestOrderService(valentineCatalog(), store, &fakePromos{}, &orderEvents{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  PlaceOrderRequest
	}{
		{"style not allowed", PlaceOrderRequest{CustomerID: 7,
			Dinner: DinnerSelection{Code: "valentine", Style: "takeout"}}},
		{"override exceeds default", PlaceOrderRequest{CustomerID: 7,
			Dinner: DinnerSelection{Code: "valentine", Style: "simple",
				DefaultOverrides: []DefaultOverride{{Code: "wine", Qty: 5}}}}},
		{"override unknown code", PlaceOrderRequest{CustomerID: 7,
			Dinner: DinnerSelection{Code: "valentine", Style: "simple",
				DefaultOverrides: []DefaultOverride{{Code: "pasta", Qty: 0}}}}},
		{"bad source", PlaceOrderRequest{CustomerID: 7, OrderSource: "FAX",
			Dinner: DinnerSelection{Code: "valentine", Style: "simple"}}},
		{"zero item qty", PlaceOrderRequest{CustomerID: 7,
			Dinner: DinnerSelection{Code: "valentine", Style: "simple"},
			Items:  []ItemSelection{{Code: "coke", Qty: 0}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.PlaceOrder(ctx, tc.req); err == nil {
				t.Error("expected error")
			} else if store.created != nil {
				t.Error("nothing should be persisted on validation failure")
			}
		})
	}
}

func TestPlaceOrderAppliesDiscounts(t *testing.T) {
	store := &fakeOrderStore{}
	promos := &fakePromos{result: promotion.EvalResult{
		Discounts:     []domain.DiscountLine{{Type: "coupon", Code: "SAVE10", Label: "SAVE10", AmountCents: 1000}},
		DiscountCents: 1000,
		TotalCents:    9000,
	}}
	svc := newTestOrderService(valentineCatalog(), store, promos, &orderEvents{})

	got, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: 7,
		Dinner:     DinnerSelection{Code: "valentine", Style: "simple"},
		Coupons:    []string{"SAVE10"},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if got.DiscountCents != 1000 || got.TotalCents != 9000 {
		t.Errorf("discount/total = %d/%d, want 1000/9000", got.DiscountCents, got.TotalCents)
	}
	if _, ok := got.Meta["discounts"]; !ok {
		t.Error("discount lines should be recorded in meta")
	}
	if len(store.discounts) != 1 {
		t.Errorf("redemption should receive the discount lines, got %+v", store.discounts)
	}
	if promos.seen == nil || promos.seen.SubtotalCents != 10000 {
		t.Errorf("evaluation input = %+v", promos.seen)
	}
}

func TestPreviewPriceDoesNotPersist(t *testing.T) {
	store := &fakeOrderStore{}
	svc := newTestOrderService(valentineCatalog(), store, &fakePromos{}, &orderEvents{})

	preview, err := svc.PreviewPrice(context.Background(), PlaceOrderRequest{
		CustomerID: 7,
		Dinner:     DinnerSelection{Code: "valentine", Style: "deluxe"},
	})
	if err != nil {
		t.Fatalf("PreviewPrice: %v", err)
	}
	if preview.SubtotalCents != 12000 {
		t.Errorf("subtotal = %d, want 12000", preview.SubtotalCents)
	}
	if store.created != nil {
		t.Error("preview must not create an order")
	}
}

func TestTransition(t *testing.T) {
	store := &fakeOrderStore{orders: map[int64]*domain.Order{
		1: {ID: 1, Number: "ORD_20250310_001", Status: domain.OrderPending},
	}}
	events := &orderEvents{}
	svc := newTestOrderService(valentineCatalog(), store, &fakePromos{}, events)
	ctx := context.Background()

	got, err := svc.Transition(ctx, 1, "accept", "kim", "")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != domain.OrderPreparing {
		t.Errorf("status = %s, want preparing", got.Status)
	}
	ev := events.events[len(events.events)-1]
	if ev.Event != domain.EventOrderStatusChanged || ev.OldStatus != domain.OrderPending || ev.ChangedBy != "kim" {
		t.Errorf("event = %+v", ev)
	}

	// mark_ready records the op without moving the status
	before := len(events.events)
	got, err = svc.Transition(ctx, 1, "mark_ready", "kim", "")
	if err != nil {
		t.Fatalf("mark_ready: %v", err)
	}
	if got.Status != domain.OrderPreparing {
		t.Errorf("mark_ready must not change status, got %s", got.Status)
	}
	if ops, _ := got.Meta["staff_ops"].([]any); len(ops) == 0 {
		t.Error("mark_ready should append a staff op")
	}
	if len(events.events) != before {
		t.Error("mark_ready should not publish a status change")
	}

	// deliver straight from preparing is illegal
	if _, err := svc.Transition(ctx, 1, "deliver", "kim", ""); !domain.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
	// cancel is allowed from any non-terminal state
	if _, err := svc.Transition(ctx, 1, "cancel", "kim", "customer call"); err != nil {
		t.Errorf("cancel: %v", err)
	}
	// further actions on a canceled order fail
	if _, err := svc.Transition(ctx, 1, "dispatch", "kim", ""); !domain.IsConflict(err) {
		t.Errorf("expected conflict on canceled order, got %v", err)
	}
	if _, err := svc.Transition(ctx, 1, "reheat", "kim", ""); !domain.IsValidation(err) {
		t.Errorf("expected validation error for unknown action, got %v", err)
	}
}

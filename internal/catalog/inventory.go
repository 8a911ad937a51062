package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"dinner-house/internal/domain"
)

// StockUpdate is one inventory mutation. Qty is absolute, Delta relative;
// when both are present Qty applies first. The result never goes negative.
type StockUpdate struct {
	Code   string  `json:"code"`
	Qty    *int    `json:"qty,omitempty"`
	Delta  *int    `json:"delta,omitempty"`
	Active *bool   `json:"active,omitempty"`
	Reason *string `json:"reason,omitempty"`
}

type StockResult struct {
	Code   string `json:"code"`
	Active bool   `json:"active"`
	Qty    int    `json:"qty"`
}

type UploadError struct {
	Row    int    `json:"row"`
	Detail string `json:"detail"`
}

// UpdateStock applies the updates one by one, skipping unknown codes the way
// the close-of-day workflow expects, and invalidates the menu cache once.
func (s *Service) UpdateStock(ctx context.Context, updates []StockUpdate) ([]StockResult, error) {
	var changed []StockResult
	for _, upd := range updates {
		item, err := s.repo.GetItemByCode(ctx, strings.TrimSpace(upd.Code))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res, err := s.applyStock(ctx, item, upd)
		if err != nil {
			return nil, err
		}
		changed = append(changed, *res)
	}
	if len(changed) > 0 {
		s.cache.InvalidateMenu(ctx)
	}
	return changed, nil
}

// PatchStock mutates a single item by code and returns its new state.
func (s *Service) PatchStock(ctx context.Context, code string, upd StockUpdate) (*domain.MenuItem, error) {
	item, err := s.repo.GetItemByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.applyStock(ctx, item, upd); err != nil {
		return nil, err
	}
	s.cache.InvalidateMenu(ctx)
	return item, nil
}

func (s *Service) applyStock(ctx context.Context, item *domain.MenuItem, upd StockUpdate) (*StockResult, error) {
	attrs := item.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	qty := item.StockQty()

	if upd.Qty != nil {
		qty = *upd.Qty
	}
	if upd.Delta != nil {
		qty += *upd.Delta
	}
	if qty < 0 {
		qty = 0
	}
	attrs["stock_qty"] = qty

	if upd.Active != nil {
		item.Active = *upd.Active
	}
	// A soldout reason only sticks while the item is inactive or out of
	// stock; otherwise it is cleared.
	if upd.Reason != nil {
		if !item.Active || qty == 0 {
			attrs["soldout_reason"] = *upd.Reason
		} else {
			attrs["soldout_reason"] = nil
		}
	}

	item.Attrs = attrs
	if err := s.repo.SaveItemStock(ctx, item.ID, item.Active, attrs); err != nil {
		return nil, err
	}
	s.log.Info("stock updated", "code", item.Code, "qty", qty, "active", item.Active)
	return &StockResult{Code: item.Code, Active: item.Active, Qty: qty}, nil
}

// ImportStockXLSX reads a close-of-day stocktake workbook and applies the
// quantities as absolute values. Required headers: code (or item_code) and
// qty (or quantity); active and reason are optional. Row errors are
// collected, not fatal.
func (s *Service) ImportStockXLSX(ctx context.Context, r io.Reader) ([]StockResult, []UploadError, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, domain.Invalidf("not a readable xlsx file: %v", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, domain.Invalidf("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, domain.Invalidf("workbook needs a header row and at least one data row")
	}

	col := map[string]int{}
	for i, h := range rows[0] {
		col[normalizeHeader(h)] = i
	}
	pick := func(row []string, names ...string) (string, bool) {
		for _, n := range names {
			if i, ok := col[n]; ok && i < len(row) {
				return strings.TrimSpace(row[i]), true
			}
		}
		return "", false
	}

	var (
		updates []StockUpdate
		errs    []UploadError
	)
	for idx, row := range rows[1:] {
		rowNum := idx + 2
		code, _ := pick(row, "code", "itemcode")
		if code == "" {
			errs = append(errs, UploadError{Row: rowNum, Detail: "missing code"})
			continue
		}
		rawQty, ok := pick(row, "qty", "quantity")
		if !ok || rawQty == "" {
			errs = append(errs, UploadError{Row: rowNum, Detail: "missing qty"})
			continue
		}
		qty, err := strconv.Atoi(rawQty)
		if err != nil {
			errs = append(errs, UploadError{Row: rowNum, Detail: fmt.Sprintf("qty not an integer: %s", rawQty)})
			continue
		}
		if qty < 0 {
			qty = 0
		}

		upd := StockUpdate{Code: code, Qty: &qty}
		if raw, ok := pick(row, "active"); ok && raw != "" {
			active := parseBool(raw)
			upd.Active = &active
		}
		if raw, ok := pick(row, "reason"); ok && raw != "" {
			upd.Reason = &raw
		}
		updates = append(updates, upd)
	}

	changed, err := s.UpdateStock(ctx, updates)
	if err != nil {
		return nil, errs, err
	}
	return changed, errs, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(h)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true
	}
	return false
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/port"
)

// ItemRow is an item together with where it lives in the inventory sheet.
type ItemRow struct {
	Row  int
	Item domain.Item

	// stock cell exactly as read, used as the compare-and-swap guard
	stockCell string
}

// FindItem scans the inventory for an exact, case-sensitive name match. If
// several rows share the name the first one wins; AddItem refuses to create
// such rows.
func (s *VendingService) FindItem(ctx context.Context, name string) (ItemRow, error) {
	records, err := s.sheets.Records(ctx, s.opts.Sheets.Inventory)
	if err != nil {
		return ItemRow{}, storeFault("read inventory", err)
	}

	for _, rec := range records {
		if rec.Values[ColItemName] != name {
			continue
		}
		item, err := parseItem(rec)
		if err != nil {
			return ItemRow{}, err
		}
		return ItemRow{Row: rec.Row, Item: item, stockCell: rec.Values[ColItemStock]}, nil
	}

	return ItemRow{}, ErrItemNotFound
}

// DecrementStock writes stock-1 into the row's stock cell and returns the new
// value. The write only lands if the cell still holds what FindItem read.
func (s *VendingService) DecrementStock(ctx context.Context, row ItemRow) (int, error) {
	if !row.Item.InStock() {
		return 0, ErrInsufficientStock
	}

	newStock := row.Item.Stock - 1
	col := s.columns().Inventory.Col(ColItemStock)

	swapped, err := s.sheets.CompareAndSwapCell(ctx, s.opts.Sheets.Inventory, row.Row, col, row.stockCell, strconv.Itoa(newStock))
	if err != nil {
		return 0, storeFault("write stock", err)
	}
	if !swapped {
		return 0, ErrStockConflict
	}
	return newStock, nil
}

func (s *VendingService) ListItems(ctx context.Context) ([]domain.Item, error) {
	records, err := s.sheets.Records(ctx, s.opts.Sheets.Inventory)
	if err != nil {
		return nil, storeFault("read inventory", err)
	}

	items := make([]domain.Item, 0, len(records))
	for _, rec := range records {
		item, err := parseItem(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// AddItem provisions a new inventory row. Names must be unique.
func (s *VendingService) AddItem(ctx context.Context, item domain.Item) error {
	if item.Name == "" || item.Stock < 0 || item.Price.IsNegative() {
		return ErrInvalidInput
	}

	unlock, err := s.locker.Lock(ctx, itemLockKey(item.Name))
	if err != nil {
		return fmt.Errorf("lock item %q: %w", item.Name, err)
	}
	defer unlock()

	records, err := s.sheets.Records(ctx, s.opts.Sheets.Inventory)
	if err != nil {
		return storeFault("read inventory", err)
	}
	for _, rec := range records {
		if rec.Values[ColItemName] == item.Name {
			return ErrDuplicateItem
		}
	}

	row := s.columns().Inventory.Row(map[string]string{
		ColItemName:    item.Name,
		ColItemStock:   strconv.Itoa(item.Stock),
		ColItemPrice:   item.Price.String(),
		ColItemShelf:   item.Shelf,
		ColItemAddress: item.Address,
	})
	if err := s.sheets.AppendRow(ctx, s.opts.Sheets.Inventory, row); err != nil {
		return storeFault("append item", err)
	}
	return nil
}

func parseItem(rec port.Record) (domain.Item, error) {
	stock := 0
	if raw := strings.TrimSpace(rec.Values[ColItemStock]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Item{}, storeFault(fmt.Sprintf("inventory row %d", rec.Row), fmt.Errorf("bad stock %q", raw))
		}
		stock = n
	}

	price := decimal.Zero
	if raw := strings.TrimSpace(rec.Values[ColItemPrice]); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Item{}, storeFault(fmt.Sprintf("inventory row %d", rec.Row), fmt.Errorf("bad price %q", raw))
		}
		price = p
	}

	return domain.Item{
		Name:    rec.Values[ColItemName],
		Stock:   stock,
		Price:   price,
		Shelf:   rec.Values[ColItemShelf],
		Address: rec.Values[ColItemAddress],
	}, nil
}

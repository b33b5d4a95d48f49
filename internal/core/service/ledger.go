package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

func (s *VendingService) appendSale(ctx context.Context, sale domain.SaleRecord) error {
	row := s.columns().Sales.Row(map[string]string{
		ColSaleTime:  sale.Timestamp.Format(domain.SaleTimeLayout),
		ColSaleUser:  sale.DisplayName,
		ColSaleItem:  sale.ItemName,
		ColSalePrice: sale.Price.String(),
	})
	if err := s.sheets.AppendRow(ctx, s.opts.Sheets.Sales, row); err != nil {
		return storeFault("append sale", err)
	}
	return nil
}

// Sales returns the ledger in append order. Timestamps are read in the local
// zone, the zone they were written in.
func (s *VendingService) Sales(ctx context.Context) ([]domain.SaleRecord, error) {
	records, err := s.sheets.Records(ctx, s.opts.Sheets.Sales)
	if err != nil {
		return nil, storeFault("read sales", err)
	}

	sales := make([]domain.SaleRecord, 0, len(records))
	for _, rec := range records {
		ts, err := time.ParseInLocation(domain.SaleTimeLayout, strings.TrimSpace(rec.Values[ColSaleTime]), time.Local)
		if err != nil {
			return nil, storeFault(fmt.Sprintf("sales row %d", rec.Row), err)
		}
		price := decimal.Zero
		if raw := strings.TrimSpace(rec.Values[ColSalePrice]); raw != "" {
			if price, err = decimal.NewFromString(raw); err != nil {
				return nil, storeFault(fmt.Sprintf("sales row %d", rec.Row), err)
			}
		}
		sales = append(sales, domain.SaleRecord{
			Timestamp:   ts,
			DisplayName: rec.Values[ColSaleUser],
			ItemName:    rec.Values[ColSaleItem],
			Price:       price,
		})
	}
	return sales, nil
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleTimeLayout is the timestamp format written to the ledger.
const SaleTimeLayout = "2006-01-02 15:04:05"

type SaleRecord struct {
	Timestamp   time.Time
	DisplayName string
	ItemName    string
	Price       decimal.Decimal
}

package domain

import "github.com/shopspring/decimal"

type Item struct {
	Name    string
	Stock   int
	Price   decimal.Decimal
	Shelf   string
	Address string
}

// InStock reports whether at least one unit can be sold.
func (i Item) InStock() bool {
	return i.Stock > 0
}

// DispenseCode is the payload the dispenser controller expects for this item.
func (i Item) DispenseCode() string {
	return i.Shelf + i.Address
}

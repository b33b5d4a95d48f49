package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rl1809/vending-machine/internal/port"
)

// Header names. Columns are always addressed through these, never by offset,
// so rows can be reordered in the sheet without breaking the engine.
const (
	ColItemName    = "name"
	ColItemStock   = "stock"
	ColItemPrice   = "price"
	ColItemShelf   = "shelf"
	ColItemAddress = "address"

	ColUserName      = "name"
	ColUserStudentID = "student_id"
	ColUserGrade     = "grade"
	ColUserID        = "id"

	ColSaleTime  = "timestamp"
	ColSaleUser  = "name"
	ColSaleItem  = "item"
	ColSalePrice = "price"
)

var (
	inventoryHeader = []string{ColItemName, ColItemStock, ColItemPrice, ColItemShelf, ColItemAddress}
	userHeader      = []string{ColUserName, ColUserStudentID, ColUserGrade, ColUserID}
	saleHeader      = []string{ColSaleTime, ColSaleUser, ColSaleItem, ColSalePrice}
)

type SheetNames struct {
	Inventory string
	Users     string
	Sales     string
}

func DefaultSheetNames() SheetNames {
	return SheetNames{
		Inventory: "inventory",
		Users:     "users",
		Sales:     "sales",
	}
}

// Columns maps the header names of one sheet to 1-based column positions.
type Columns struct {
	sheet string
	width int
	index map[string]int
}

// ResolveColumns indexes header and checks that every required name is
// present. When a name repeats, the leftmost column wins.
func ResolveColumns(sheet string, header []string, required []string) (Columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if _, seen := index[name]; !seen {
			index[name] = i + 1
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Columns{}, fmt.Errorf("%w: sheet %q lacks %s", ErrSchemaMismatch, sheet, strings.Join(missing, ", "))
	}

	return Columns{sheet: sheet, width: len(header), index: index}, nil
}

// Col returns the position of name, or 0 if the header has no such column.
func (c Columns) Col(name string) int {
	return c.index[name]
}

// Row lays values out in header order. Names absent from the header are dropped.
func (c Columns) Row(values map[string]string) []string {
	row := make([]string, c.width)
	for name, v := range values {
		if col, ok := c.index[name]; ok {
			row[col-1] = v
		}
	}
	return row
}

// Schema is the column layout of the three sheets, resolved from their
// header rows. It is read-only once built.
type Schema struct {
	Inventory Columns
	Users     Columns
	Sales     Columns
}

func LoadSchema(ctx context.Context, sheets port.SheetStore, names SheetNames) (*Schema, error) {
	inventory, err := loadColumns(ctx, sheets, names.Inventory, inventoryHeader)
	if err != nil {
		return nil, err
	}
	users, err := loadColumns(ctx, sheets, names.Users, userHeader)
	if err != nil {
		return nil, err
	}
	sales, err := loadColumns(ctx, sheets, names.Sales, saleHeader)
	if err != nil {
		return nil, err
	}

	return &Schema{Inventory: inventory, Users: users, Sales: sales}, nil
}

func loadColumns(ctx context.Context, sheets port.SheetStore, sheet string, required []string) (Columns, error) {
	header, err := sheets.Header(ctx, sheet)
	if err != nil {
		return Columns{}, storeFault("read header of "+sheet, err)
	}
	return ResolveColumns(sheet, header, required)
}

// InitSheets writes the default header into every sheet that has none yet.
// Sheets that already carry a header are left untouched.
func InitSheets(ctx context.Context, sheets port.SheetStore, names SheetNames) error {
	defaults := []struct {
		sheet  string
		header []string
	}{
		{names.Inventory, inventoryHeader},
		{names.Users, userHeader},
		{names.Sales, saleHeader},
	}

	for _, d := range defaults {
		header, err := sheets.Header(ctx, d.sheet)
		if err != nil {
			return storeFault("read header of "+d.sheet, err)
		}
		if len(header) > 0 {
			continue
		}
		if err := sheets.AppendRow(ctx, d.sheet, d.header); err != nil {
			return storeFault("write header of "+d.sheet, err)
		}
	}
	return nil
}

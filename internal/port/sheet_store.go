package port

import "context"

// Record is one data row of a sheet keyed by header name. Row is the
// 1-based sheet position; the header occupies row 1.
type Record struct {
	Row    int
	Values map[string]string
}

type SheetStore interface {
	// Header returns the cells of row 1, or nil for an empty sheet.
	Header(ctx context.Context, sheet string) ([]string, error)

	// Records returns every row below the header in row order.
	Records(ctx context.Context, sheet string) ([]Record, error)

	// UpdateCell overwrites a single cell addressed by 1-based row and column.
	UpdateCell(ctx context.Context, sheet string, row, col int, value string) error

	// CompareAndSwapCell writes value only if the cell still holds expected,
	// returns false when it does not
	CompareAndSwapCell(ctx context.Context, sheet string, row, col int, expected, value string) (bool, error)

	// AppendRow writes values as a new row after the last one.
	AppendRow(ctx context.Context, sheet string, values []string) error
}

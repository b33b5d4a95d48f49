package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/rl1809/vending-machine/internal/port"
)

const maxAppendAttempts = 5

var ErrRowOutOfRange = errors.New("row or column out of range")

// Every sheet lives in one cell table; row 1 is the header. Cells that were
// never written are absent and read back as "".
const createCellsTable = `
CREATE TABLE IF NOT EXISTS sheet_cells (
	sheet   VARCHAR(64) NOT NULL,
	row_num INT         NOT NULL,
	col_num INT         NOT NULL,
	value   TEXT        NOT NULL,
	PRIMARY KEY (sheet, row_num, col_num)
)`

// SQLSheet is a port.SheetStore on MySQL or SQLite. Both drivers accept the
// same placeholder syntax, so the queries are shared.
type SQLSheet struct {
	db *sql.DB
}

func NewSQLSheet(db *sql.DB) *SQLSheet {
	return &SQLSheet{db: db}
}

func (s *SQLSheet) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createCellsTable); err != nil {
		return fmt.Errorf("create sheet_cells: %w", err)
	}
	return nil
}

func (s *SQLSheet) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLSheet) Header(ctx context.Context, sheet string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT col_num, value FROM sheet_cells
		WHERE sheet = ? AND row_num = 1
		ORDER BY col_num`, sheet)
	if err != nil {
		return nil, fmt.Errorf("query header: %w", err)
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var col int
		var value string
		if err := rows.Scan(&col, &value); err != nil {
			return nil, fmt.Errorf("scan header: %w", err)
		}
		header = placeCell(header, col, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return header, nil
}

func (s *SQLSheet) Records(ctx context.Context, sheet string) ([]port.Record, error) {
	header, err := s.Header(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row_num, col_num, value FROM sheet_cells
		WHERE sheet = ? AND row_num > 1
		ORDER BY row_num, col_num`, sheet)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []port.Record
	for rows.Next() {
		var rowNum, col int
		var value string
		if err := rows.Scan(&rowNum, &col, &value); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if n := len(records); n == 0 || records[n-1].Row != rowNum {
			records = append(records, newRecord(rowNum, header))
		}
		if col <= len(header) && header[col-1] != "" && firstColumn(header, col) {
			records[len(records)-1].Values[header[col-1]] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return records, nil
}

func (s *SQLSheet) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return ErrRowOutOfRange
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE sheet_cells SET value = ?
		WHERE sheet = ? AND row_num = ? AND col_num = ?`,
		value, sheet, row, col,
	)
	if err != nil {
		return fmt.Errorf("update cell: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged, so the
		// cell may exist already; the primary key tells the two cases apart.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sheet_cells (sheet, row_num, col_num, value)
			VALUES (?, ?, ?, ?)`,
			sheet, row, col, value,
		)
		if err != nil && !isDuplicateKey(err) {
			return fmt.Errorf("insert cell: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLSheet) CompareAndSwapCell(ctx context.Context, sheet string, row, col int, expected, value string) (bool, error) {
	if row < 1 || col < 1 {
		return false, ErrRowOutOfRange
	}
	if expected == value {
		current, err := s.cell(ctx, sheet, row, col)
		if err != nil {
			return false, err
		}
		return current == expected, nil
	}

	if expected == "" {
		// A never-written cell has no row yet. If the insert collides, the
		// cell exists and the guarded update below decides.
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sheet_cells (sheet, row_num, col_num, value)
			VALUES (?, ?, ?, ?)`,
			sheet, row, col, value,
		)
		if err == nil {
			return true, nil
		}
		if !isDuplicateKey(err) {
			return false, fmt.Errorf("insert cell: %w", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sheet_cells SET value = ?
		WHERE sheet = ? AND row_num = ? AND col_num = ? AND value = ?`,
		value, sheet, row, col, expected,
	)
	if err != nil {
		return false, fmt.Errorf("swap cell: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap cell: %w", err)
	}
	return n == 1, nil
}

// AppendRow allocates the row after the current last one. Two appenders can
// pick the same number; the loser hits the primary key and tries again.
func (s *SQLSheet) AppendRow(ctx context.Context, sheet string, values []string) error {
	var err error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err = s.appendRow(ctx, sheet, values)
		if err == nil || !isDuplicateKey(err) {
			return err
		}
	}
	return fmt.Errorf("append row after %d attempts: %w", maxAppendAttempts, err)
}

func (s *SQLSheet) appendRow(ctx context.Context, sheet string, values []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var last int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(row_num), 0) FROM sheet_cells WHERE sheet = ?`, sheet,
	).Scan(&last); err != nil {
		return fmt.Errorf("query last row: %w", err)
	}
	next := last + 1

	for _, c := range rowCells(values) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sheet_cells (sheet, row_num, col_num, value)
			VALUES (?, ?, ?, ?)`,
			sheet, next, c.col, c.value,
		); err != nil {
			return fmt.Errorf("insert cell: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLSheet) cell(ctx context.Context, sheet string, row, col int) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sheet_cells
		WHERE sheet = ? AND row_num = ? AND col_num = ?`,
		sheet, row, col,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query cell: %w", err)
	}
	return value, nil
}

func newRecord(row int, header []string) port.Record {
	values := make(map[string]string, len(header))
	for _, name := range header {
		if name != "" {
			values[name] = ""
		}
	}
	return port.Record{Row: row, Values: values}
}

// placeCell grows cells so that col (1-based) exists and sets it.
func placeCell(cells []string, col int, value string) []string {
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	return cells
}

func firstColumn(header []string, col int) bool {
	name := header[col-1]
	for i := 0; i < col-1; i++ {
		if header[i] == name {
			return false
		}
	}
	return true
}

type cellValue struct {
	col   int
	value string
}

// rowCells keeps the non-empty cells of a row. A row with none still needs one
// stored cell to hold its position.
func rowCells(values []string) []cellValue {
	var cells []cellValue
	for i, v := range values {
		if v != "" {
			cells = append(cells, cellValue{col: i + 1, value: v})
		}
	}
	if len(cells) == 0 {
		cells = append(cells, cellValue{col: 1})
	}
	return cells
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

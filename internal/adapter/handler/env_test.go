package handler

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rl1809/vending-machine/internal/adapter/storage"
	"github.com/rl1809/vending-machine/internal/core/service"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (d *fakeDispatcher) Publish(ctx context.Context, topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, string(payload))
	return nil
}

type fakeCheck struct{ err error }

func (c fakeCheck) Check(ctx context.Context) error { return c.err }

var errBrokerDown = errors.New("broker down")

type testEnv struct {
	sheet    *storage.SQLSheet
	db       *sql.DB
	vending  *service.VendingService
	dispatch *fakeDispatcher
}

// newTestEnv wires the engine to a SQLite-backed sheet seeded with Cola
// (stock 3, price 150) and Empty (stock 0).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "vending.db")+"?_busy_timeout=5000")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	sheet := storage.NewSQLSheet(db)
	require.NoError(t, sheet.EnsureSchema(ctx))

	names := service.DefaultSheetNames()
	require.NoError(t, service.InitSheets(ctx, sheet, names))
	require.NoError(t, sheet.AppendRow(ctx, names.Inventory, []string{"Cola", "3", "150", "A", "1"}))
	require.NoError(t, sheet.AppendRow(ctx, names.Inventory, []string{"Empty", "0", "100", "B", "2"}))

	dispatch := &fakeDispatcher{}
	vending, err := service.NewVendingService(ctx, sheet, storage.NewLocalLocker(), dispatch, service.DefaultOptions())
	require.NoError(t, err)

	return &testEnv{sheet: sheet, db: db, vending: vending, dispatch: dispatch}
}

func (e *testEnv) rows(t *testing.T, sheet string) [][]string {
	t.Helper()
	records, err := e.sheet.Records(context.Background(), sheet)
	require.NoError(t, err)
	header, err := e.sheet.Header(context.Background(), sheet)
	require.NoError(t, err)

	out := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = rec.Values[name]
		}
		out = append(out, row)
	}
	return out
}

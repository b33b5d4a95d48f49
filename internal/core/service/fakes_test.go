package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rl1809/vending-machine/internal/port"
)

var errStoreDown = errors.New("store down")

// Mock SheetStore
type mockSheets struct {
	mu     sync.Mutex
	sheets map[string][][]string
	writes int

	failRecords map[string]bool
	failAppend  map[string]bool
	failCAS     bool

	// beforeCAS runs with the lock released, just before a swap is applied.
	beforeCAS func()
}

func newMockSheets() *mockSheets {
	names := DefaultSheetNames()
	return &mockSheets{
		sheets: map[string][][]string{
			names.Inventory: {append([]string(nil), inventoryHeader...)},
			names.Users:     {append([]string(nil), userHeader...)},
			names.Sales:     {append([]string(nil), saleHeader...)},
		},
		failRecords: map[string]bool{},
		failAppend:  map[string]bool{},
	}
}

func (m *mockSheets) seed(sheet string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = append(m.sheets[sheet], rows...)
}

func (m *mockSheets) rows(sheet string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, 0, len(m.sheets[sheet]))
	for _, r := range m.sheets[sheet][1:] {
		out = append(out, append([]string(nil), r...))
	}
	return out
}

func (m *mockSheets) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *mockSheets) Header(ctx context.Context, sheet string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[sheet]
	if len(rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), rows[0]...), nil
}

func (m *mockSheets) Records(ctx context.Context, sheet string) ([]port.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecords[sheet] {
		return nil, errStoreDown
	}
	rows := m.sheets[sheet]
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	records := make([]port.Record, 0, len(rows)-1)
	for i, r := range rows[1:] {
		values := make(map[string]string, len(header))
		for c, name := range header {
			if c < len(r) {
				values[name] = r[c]
			}
		}
		records = append(records, port.Record{Row: i + 2, Values: values})
	}
	return records, nil
}

func (m *mockSheets) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet][row-1][col-1] = value
	m.writes++
	return nil
}

func (m *mockSheets) CompareAndSwapCell(ctx context.Context, sheet string, row, col int, expected, value string) (bool, error) {
	if m.beforeCAS != nil {
		m.beforeCAS()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCAS {
		return false, errStoreDown
	}
	cell := &m.sheets[sheet][row-1][col-1]
	if *cell != expected {
		return false, nil
	}
	*cell = value
	m.writes++
	return true, nil
}

func (m *mockSheets) AppendRow(ctx context.Context, sheet string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend[sheet] {
		return errStoreDown
	}
	m.sheets[sheet] = append(m.sheets[sheet], append([]string(nil), values...))
	m.writes++
	return nil
}

// Mock Locker, one mutex per key
type mockLocker struct {
	mu    sync.Mutex
	keys  map[string]*sync.Mutex
	calls []string
}

func newMockLocker() *mockLocker {
	return &mockLocker{keys: make(map[string]*sync.Mutex)}
}

func (l *mockLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	km, ok := l.keys[key]
	if !ok {
		km = &sync.Mutex{}
		l.keys[key] = km
	}
	l.calls = append(l.calls, key)
	l.mu.Unlock()

	km.Lock()
	var once sync.Once
	return func() { once.Do(km.Unlock) }, nil
}

// Mock Dispatcher
type mockDispatcher struct {
	mu        sync.Mutex
	published []publishedMessage
	err       error
}

type publishedMessage struct {
	topic   string
	payload string
}

func (d *mockDispatcher) Publish(ctx context.Context, topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.published = append(d.published, publishedMessage{topic: topic, payload: string(payload)})
	return nil
}

func (d *mockDispatcher) messages() []publishedMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]publishedMessage(nil), d.published...)
}

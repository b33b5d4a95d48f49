package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/port"
)

var (
	ErrItemNotFound          = errors.New("item not found")
	ErrInsufficientStock     = errors.New("out of stock")
	ErrDuplicateRegistration = errors.New("already registered")
	ErrInvalidInput          = errors.New("missing required fields")
	ErrUnknownPurchaser      = errors.New("purchaser is not registered")
	ErrStockConflict         = errors.New("stock changed during purchase")
	ErrLedgerAppend          = errors.New("sale not recorded")
	ErrDuplicateItem         = errors.New("item already exists")
	ErrSchemaMismatch        = errors.New("sheet header mismatch")
	ErrStoreFault            = errors.New("store unavailable")
)

const (
	defaultDispatchTopic   = "vending/dispense"
	defaultDispatchTimeout = 3 * time.Second
)

func storeFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFault, op, err)
}

type Options struct {
	Sheets          SheetNames
	DispatchTopic   string
	DispatchTimeout time.Duration

	// AllowUnknownPurchaser lets identities missing from the directory buy
	// under domain.UnknownUserName.
	AllowUnknownPurchaser bool

	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Sheets:                DefaultSheetNames(),
		DispatchTopic:         defaultDispatchTopic,
		DispatchTimeout:       defaultDispatchTimeout,
		AllowUnknownPurchaser: true,
		Now:                   time.Now,
	}
}

type PurchaseResult struct {
	ItemName string
	NewStock int
	Price    decimal.Decimal
	Dispatch domain.DispatchStatus
}

type VendingService struct {
	sheets     port.SheetStore
	locker     port.Locker
	dispatcher port.Dispatcher
	opts       Options
	schema     atomic.Pointer[Schema]
}

// NewVendingService resolves the column layout of every sheet before
// returning, so a store with a broken header fails here rather than on the
// first purchase.
func NewVendingService(ctx context.Context, sheets port.SheetStore, locker port.Locker, dispatcher port.Dispatcher, opts Options) (*VendingService, error) {
	if opts.Sheets == (SheetNames{}) {
		opts.Sheets = DefaultSheetNames()
	}
	if opts.DispatchTopic == "" {
		opts.DispatchTopic = defaultDispatchTopic
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &VendingService{
		sheets:     sheets,
		locker:     locker,
		dispatcher: dispatcher,
		opts:       opts,
	}
	if err := s.ReloadSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ReloadSchema re-reads the header rows. The previous layout stays in use if
// the new one cannot be resolved.
func (s *VendingService) ReloadSchema(ctx context.Context) error {
	schema, err := LoadSchema(ctx, s.sheets, s.opts.Sheets)
	if err != nil {
		return err
	}
	s.schema.Store(schema)
	return nil
}

func (s *VendingService) columns() *Schema {
	return s.schema.Load()
}

// Purchase sells one unit of itemName to identity. Stock lookup, decrement and
// the ledger append run while holding the item's lock; the dispenser is
// notified afterwards and its failure is reported in the result, not as an
// error.
func (s *VendingService) Purchase(ctx context.Context, itemName, identity string) (*PurchaseResult, error) {
	if itemName == "" {
		return nil, ErrInvalidInput
	}

	displayName, err := s.ResolveName(ctx, identity)
	if err != nil {
		return nil, err
	}
	if displayName == domain.UnknownUserName && !s.opts.AllowUnknownPurchaser {
		return nil, ErrUnknownPurchaser
	}

	unlock, err := s.locker.Lock(ctx, itemLockKey(itemName))
	if err != nil {
		return nil, fmt.Errorf("lock item %q: %w", itemName, err)
	}
	defer unlock()

	row, err := s.FindItem(ctx, itemName)
	if err != nil {
		return nil, err
	}
	if !row.Item.InStock() {
		return nil, ErrInsufficientStock
	}

	newStock, err := s.DecrementStock(ctx, row)
	if err != nil {
		return nil, err
	}

	sale := domain.SaleRecord{
		Timestamp:   s.opts.Now(),
		DisplayName: displayName,
		ItemName:    row.Item.Name,
		Price:       row.Item.Price,
	}
	if err := s.appendSale(ctx, sale); err != nil {
		log.Printf("purchase %s: stock decremented to %d but ledger append failed: %v", itemName, newStock, err)
		return nil, fmt.Errorf("%w: %w", ErrLedgerAppend, err)
	}
	unlock()

	log.Printf("purchase %s by %s: stock %d -> %d", itemName, displayName, row.Item.Stock, newStock)

	return &PurchaseResult{
		ItemName: row.Item.Name,
		NewStock: newStock,
		Price:    row.Item.Price,
		Dispatch: s.dispatch(ctx, row.Item),
	}, nil
}

func (s *VendingService) dispatch(ctx context.Context, item domain.Item) domain.DispatchStatus {
	if s.dispatcher == nil {
		return domain.DispatchStatus{Error: "dispatch channel not configured"}
	}

	msg := domain.DispatchMessage{Topic: s.opts.DispatchTopic, Payload: item.DispenseCode()}

	// The sale is final at this point; a caller hanging up must not cut the
	// publish short.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.DispatchTimeout)
	defer cancel()

	if err := s.dispatcher.Publish(pubCtx, msg.Topic, []byte(msg.Payload)); err != nil {
		log.Printf("dispatch %s to %s failed: %v", msg.Payload, msg.Topic, err)
		return domain.DispatchStatus{Error: err.Error()}
	}
	return domain.DispatchStatus{OK: true}
}

func itemLockKey(name string) string {
	return "item:" + name
}

func userLockKey(identity string) string {
	return "user:" + identity
}

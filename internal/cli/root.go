package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rl1809/vending-machine/internal/adapter/storage"
	"github.com/rl1809/vending-machine/internal/config"
	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/internal/port"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver    string
	DSN       string
	RedisAddr string
	Format    string // "json" | "text"

	sheets service.SheetNames
	cfg    config.Config
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the vendingctl root command. Flag defaults come from
// the same environment the server reads.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{
		sheets: service.SheetNames{
			Inventory: cfg.SheetInventory,
			Users:     cfg.SheetUsers,
			Sales:     cfg.SheetSales,
		},
		cfg:    cfg,
	}

	cmd := &cobra.Command{
		Use:   "vendingctl",
		Short: "Operate the vending machine store",
		Long:  "Provision sheets and items, inspect stock and sales, and load test purchases.",

		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", cfg.StoreDriver, "store driver (mysql|sqlite3)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", cfg.StoreDSN, "store data source name")
	cmd.PersistentFlags().StringVar(&opts.RedisAddr, "redis", cfg.RedisAddr, "redis address for distributed locks")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewItemCommand(opts))
	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewSalesCommand(opts))
	cmd.AddCommand(NewLoadTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is an open store plus a service bound to it.
type session struct {
	db      *sql.DB
	rdb     *redis.Client
	sheets  *storage.SQLSheet
	vending *service.VendingService
}

func (s *session) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	s.db.Close()
}

// openStore connects to the store and makes sure every sheet has a header.
func openStore(ctx context.Context, opts *RootOptions) (*sql.DB, *storage.SQLSheet, error) {
	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", opts.Driver, err)
	}
	if opts.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping store: %w", err)
	}

	sheets := storage.NewSQLSheet(db)
	if err := sheets.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := service.InitSheets(ctx, sheets, opts.sheets); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, sheets, nil
}

// openSession has no dispatcher: commands never move hardware.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	db, sheets, err := openStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	s := &session{db: db, sheets: sheets}

	var locker port.Locker = storage.NewLocalLocker()
	if opts.RedisAddr != "" {
		s.rdb = redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		locker = storage.NewRedisAdapter(s.rdb, opts.cfg.LockTTL, opts.cfg.LockWait)
	}

	svcOpts := service.DefaultOptions()
	svcOpts.Sheets = opts.sheets
	svcOpts.AllowUnknownPurchaser = true
	s.vending, err = service.NewVendingService(ctx, sheets, locker, nil, svcOpts)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/core/service"
)

// LoadTestOptions holds flags for loadtest.
type LoadTestOptions struct {
	Stock    int
	Requests int
}

// LoadTestResult is the outcome of one load test run.
type LoadTestResult struct {
	Item         string        `json:"item"`
	InitialStock int           `json:"initial_stock"`
	Requests     int           `json:"requests"`
	Succeeded    int           `json:"succeeded"`
	OutOfStock   int           `json:"out_of_stock"`
	Failed       int           `json:"failed"`
	FinalStock   int           `json:"final_stock"`
	SalesLogged  int           `json:"sales_logged"`
	Duration     time.Duration `json:"duration_ns"`
	Pass         bool          `json:"pass"`
}

// NewLoadTestCommand creates the loadtest command.
func NewLoadTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadTestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Race concurrent purchases against one item",
		Long: `Add a fresh item with --stock units and fire --requests concurrent
purchases at it, each from a new identity. The run passes when exactly
--stock purchases succeed, the rest are rejected as out of stock, the
item ends at zero and every sale reached the ledger.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := RunLoadTest(cmd.Context(), s.vending, *opts)
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printLoadTest(cmd, res)
			}
			if !res.Pass {
				return errors.New("load test failed")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Stock, "stock", 20, "initial stock of the test item")
	cmd.Flags().IntVar(&opts.Requests, "requests", 50, "number of concurrent purchases")

	return cmd
}

// RunLoadTest provisions a uniquely named item and races purchases at it.
func RunLoadTest(ctx context.Context, vending *service.VendingService, opts LoadTestOptions) (*LoadTestResult, error) {
	if opts.Stock < 0 || opts.Requests < 1 {
		return nil, fmt.Errorf("stock must be >= 0 and requests >= 1")
	}

	item := domain.Item{
		Name:  "loadtest-" + uuid.NewString()[:8],
		Stock: opts.Stock,
		Price: decimal.NewFromInt(1),
	}
	if err := vending.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add test item: %w", err)
	}

	salesBefore, err := countSales(ctx, vending, item.Name)
	if err != nil {
		return nil, err
	}

	var succeeded, outOfStock, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < opts.Requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := vending.Purchase(ctx, item.Name, uuid.NewString())
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				outOfStock.Add(1)
			default:
				failed.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	row, err := vending.FindItem(ctx, item.Name)
	if err != nil {
		return nil, fmt.Errorf("read final stock: %w", err)
	}
	salesAfter, err := countSales(ctx, vending, item.Name)
	if err != nil {
		return nil, err
	}

	res := &LoadTestResult{
		Item:         item.Name,
		InitialStock: opts.Stock,
		Requests:     opts.Requests,
		Succeeded:    int(succeeded.Load()),
		OutOfStock:   int(outOfStock.Load()),
		Failed:       int(failed.Load()),
		FinalStock:   row.Item.Stock,
		SalesLogged:  salesAfter - salesBefore,
		Duration:     elapsed,
	}

	expected := min(opts.Stock, opts.Requests)
	res.Pass = res.Succeeded == expected &&
		res.OutOfStock == opts.Requests-expected &&
		res.Failed == 0 &&
		res.FinalStock == opts.Stock-expected &&
		res.SalesLogged == expected
	return res, nil
}

func countSales(ctx context.Context, vending *service.VendingService, itemName string) (int, error) {
	sales, err := vending.Sales(ctx)
	if err != nil {
		return 0, fmt.Errorf("read sales: %w", err)
	}
	n := 0
	for _, sale := range sales {
		if sale.ItemName == itemName {
			n++
		}
	}
	return n, nil
}

func printLoadTest(cmd *cobra.Command, res *LoadTestResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "========== LOAD TEST RESULTS ==========")
	fmt.Fprintf(out, "Item:             %s\n", res.Item)
	fmt.Fprintf(out, "Initial Stock:    %d\n", res.InitialStock)
	fmt.Fprintf(out, "Total Requests:   %d\n", res.Requests)
	fmt.Fprintf(out, "Successful:       %d\n", res.Succeeded)
	fmt.Fprintf(out, "Out of stock:     %d\n", res.OutOfStock)
	fmt.Fprintf(out, "Failed:           %d\n", res.Failed)
	fmt.Fprintf(out, "Final Stock:      %d\n", res.FinalStock)
	fmt.Fprintf(out, "Sales Logged:     %d\n", res.SalesLogged)
	fmt.Fprintf(out, "Duration:         %v\n", res.Duration)
	fmt.Fprintln(out, "========================================")
	if res.Pass {
		fmt.Fprintln(out, "PASS")
	} else {
		fmt.Fprintln(out, "FAIL")
	}
}

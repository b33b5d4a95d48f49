package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

type itemJSON struct {
	Name    string      `json:"name"`
	Stock   int         `json:"stock"`
	Price   json.Number `json:"price"`
	Shelf   string      `json:"shelf"`
	Address string      `json:"address"`
}

type saleJSON struct {
	Timestamp string      `json:"timestamp"`
	Name      string      `json:"name"`
	Item      string      `json:"item"`
	Price     json.Number `json:"price"`
}

func itemView(it domain.Item) itemJSON {
	return itemJSON{
		Name:    it.Name,
		Stock:   it.Stock,
		Price:   json.Number(it.Price.String()),
		Shelf:   it.Shelf,
		Address: it.Address,
	}
}

// NewStockCommand creates the stock command.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "stock",
		Short:        "List inventory items",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			items, err := s.vending.ListItems(cmd.Context())
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				out := make([]itemJSON, 0, len(items))
				for _, it := range items {
					out = append(out, itemView(it))
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTOCK\tPRICE\tSLOT")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", it.Name, it.Stock, it.Price, it.DispenseCode())
			}
			return w.Flush()
		},
	}
}

// NewSalesCommand creates the sales command.
func NewSalesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "sales",
		Short:        "Print the sales ledger",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			sales, err := s.vending.Sales(cmd.Context())
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				out := make([]saleJSON, 0, len(sales))
				for _, sale := range sales {
					out = append(out, saleJSON{
						Timestamp: sale.Timestamp.Format(domain.SaleTimeLayout),
						Name:      sale.DisplayName,
						Item:      sale.ItemName,
						Price:     json.Number(sale.Price.String()),
					})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tNAME\tITEM\tPRICE")
			for _, sale := range sales {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					sale.Timestamp.Format(domain.SaleTimeLayout), sale.DisplayName, sale.ItemName, sale.Price)
			}
			return w.Flush()
		},
	}
}

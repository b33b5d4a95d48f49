package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

// ItemAddOptions holds flags for item add.
type ItemAddOptions struct {
	Stock   int
	Price   string
	Shelf   string
	Address string
}

// NewItemCommand creates the item command group.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage inventory items",
	}
	cmd.AddCommand(newItemAddCommand(rootOpts))
	return cmd
}

func newItemAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemAddOptions{}

	cmd := &cobra.Command{
		Use:          "add <name>",
		Short:        "Add an item to the inventory sheet",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(opts.Price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", opts.Price, err)
			}
			item := domain.Item{
				Name:    args[0],
				Stock:   opts.Stock,
				Price:   price,
				Shelf:   opts.Shelf,
				Address: opts.Address,
			}

			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.vending.AddItem(cmd.Context(), item); err != nil {
				return fmt.Errorf("add %q: %w", item.Name, err)
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), itemView(item))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s: stock %d, price %s, slot %s\n",
				item.Name, item.Stock, item.Price, item.DispenseCode())
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Stock, "stock", 0, "initial stock")
	cmd.Flags().StringVar(&opts.Price, "price", "0", "unit price")
	cmd.Flags().StringVar(&opts.Shelf, "shelf", "", "shelf code")
	cmd.Flags().StringVar(&opts.Address, "address", "", "slot address on the shelf")

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "init",
		Short:        "Create the store tables and sheet headers",
		Long:         "Create the cell table if missing and write the default header into every empty sheet. Existing sheets are left as they are.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openStore(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"status": "ok", "sheets": rootOpts.sheets})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sheets ready: %s, %s, %s\n",
				rootOpts.sheets.Inventory, rootOpts.sheets.Users, rootOpts.sheets.Sales)
			return nil
		},
	}
}

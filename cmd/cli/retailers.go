package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gondola/availability-service/internal/database"
)

// retailersCmd groups retailer config subcommands
var retailersCmd = &cobra.Command{
	Use:   "retailers",
	Short: "Inspect configured retailers",
}

// retailersListCmd represents the retailers list command
var retailersListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all configured retailers",
	Example: `  availability-service retailers list`,
	Args:    cobra.NoArgs,
	RunE:    runRetailersList,
}

func init() {
	rootCmd.AddCommand(retailersCmd)
	retailersCmd.AddCommand(retailersListCmd)
}

func runRetailersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	retailers, err := database.ListRetailers(ctx)
	if err != nil {
		return err
	}

	if len(retailers) == 0 {
		fmt.Println("No retailers configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHOST\tSALES CHANNELS\tENABLED")
	fmt.Fprintln(w, "--\t----\t----\t--------------\t-------")

	for _, r := range retailers {
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.RetailerID, r.Name, r.Host, r.SalesChannels, enabled)
	}

	w.Flush()
	return nil
}

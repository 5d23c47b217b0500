package main

import (
	"fmt"
	"text/tabwriter"

	"codeberg.org/mutker/yubikill/internal/config"
	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List attached USB devices and mark the ones that would be watched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			oracle, err := newOracle(cfg)
			if err != nil {
				return err
			}

			devices, matches, err := oracle.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MATCH\tBUS/DEV\tID\tSERIAL\tMANUFACTURER\tPRODUCT")
			for i, d := range devices {
				mark := ""
				if matches[i] {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%03d/%03d\t%04x:%04x\t%s\t%s\t%s\n",
					mark, d.Bus, d.Address, d.VendorID, d.ProductID,
					d.Serial, d.Manufacturer, d.Product)
			}

			return w.Flush()
		},
	}
}

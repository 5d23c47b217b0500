package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/yubikill/internal/config"
	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/journal"
	"codeberg.org/mutker/yubikill/internal/logger"
	"github.com/spf13/cobra"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
)

func newEventsCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent presence events from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			jcfg := cfg.JournalConfig()
			// reading does not depend on recording being switched on
			jcfg.Enabled = true
			jcfg.BatchSize = 1
			jcfg.FlushInterval = 0

			j, err := journal.NewService(jcfg, logger.New("journal"))
			if err != nil {
				return errors.New().Wrap(errors.ErrInitJournal, err)
			}
			defer j.Close()

			events, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			switch format {
			case outputFormatJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			case outputFormatText:
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tEVENT\tDEVICE\tSERIAL\tELAPSED\tACTION\tDETAIL")
				for _, e := range events {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
						e.Timestamp.Format(time.RFC3339), e.Kind, e.Device,
						e.Serial, e.ElapsedTicks, e.Action, e.Detail)
				}
				return w.Flush()
			default:
				return errors.New().WithData(errors.ErrInvalidArgument, format)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events to show")
	cmd.Flags().StringVarP(&format, "output", "o", outputFormatText, "Output format: text or json")

	return cmd
}

package main

import (
	"codeberg.org/mutker/yubikill/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "yubikill",
		Short: "Power off the host when the security token is unplugged",
		Long: `yubikill watches a USB security token and shuts down or hibernates
the machine when the token is removed and not reinserted within the
configured delay.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runWatchdog,
	}

	config.RegisterFlags(rootCmd.PersistentFlags())
	registerRunFlags(rootCmd)
	rootCmd.MarkFlagsMutuallyExclusive("hibernate", "poweroff")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

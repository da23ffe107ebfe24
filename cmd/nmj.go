package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"medialib/services/nmj"
)

var (
	nmjTimeout time.Duration
	scanTarget nmj.DeviceSettings
)

var nmjCmd = &cobra.Command{
	Use:   "nmj",
	Short: "Talk to a Popcorn Hour NMJ library",
}

var nmjProbeCmd = &cobra.Command{
	Use:   "probe <host>",
	Short: "Read the NMJ database and mount from the device and save them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, settings, err := loadSettings()
		if err != nil {
			return err
		}
		setupLogging(settings.Log)

		ctx, cancel := context.WithTimeout(cmd.Context(), nmjTimeout)
		defer cancel()

		notifier := nmj.NewNotifier(mgr, nmj.NewProber(nil, nmjTimeout), nil)
		dev, ok := notifier.ProbeSettings(ctx, args[0])
		if !ok {
			return fmt.Errorf("could not read NMJ settings from %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "host:     %s\ndatabase: %s\nmount:    %s\n", dev.Host, dev.Database, dev.Mount)
		return nil
	},
}

var nmjScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Start a background library scan",
	Long: `Start a background NMJ library scan. Host, database and mount default
to the saved settings; the scan is sent even when the notifier is disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, settings, err := loadSettings()
		if err != nil {
			return err
		}
		setupLogging(settings.Log)

		ctx, cancel := context.WithTimeout(cmd.Context(), nmjTimeout)
		defer cancel()

		notifier := nmj.NewNotifier(mgr, nil, nil)
		if !notifier.Notify(ctx, scanTarget, true) {
			return fmt.Errorf("NMJ scan was not started")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "NMJ started background scan")
		return nil
	},
}

func init() {
	nmjCmd.PersistentFlags().DurationVar(&nmjTimeout, "timeout", 30*time.Second, "device session timeout")
	nmjScanCmd.Flags().StringVar(&scanTarget.Host, "host", "", "device host (default from settings)")
	nmjScanCmd.Flags().StringVar(&scanTarget.Database, "database", "", "NMJ database path (default from settings)")
	nmjScanCmd.Flags().StringVar(&scanTarget.Mount, "mount", "", "mount URL to ping first (default from settings)")

	nmjCmd.AddCommand(nmjProbeCmd, nmjScanCmd)
	rootCmd.AddCommand(nmjCmd)
}

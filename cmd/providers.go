package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"medialib/internal/database"
	"medialib/models"
	"medialib/services/providers"
)

var searchMode string

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect and query torrent providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List builtin providers and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, settings, err := loadSettings()
		if err != nil {
			return err
		}
		registry := providers.NewRegistry(settings.Providers)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKIND\tDAILY\tBACKLOG\tMOVIES\tPUBLIC\tENABLED")
		for _, d := range providers.Builtin() {
			_, err := registry.Get(d.Name)
			c := d.Capabilities
			fmt.Fprintf(tw, "%s\t%s\t%v\t%v\t%v\t%v\t%v\n", d.Name, c.Kind, c.CanDaily, c.CanBacklog, c.SupportsMovies, c.Public, err == nil)
		}
		return tw.Flush()
	},
}

var providersSearchCmd = &cobra.Command{
	Use:   "search <provider> [query]",
	Short: "Run one search against an enabled provider",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, settings, err := loadSettings()
		if err != nil {
			return err
		}
		setupLogging(settings.Log)

		p, err := providers.NewRegistry(settings.Providers).Get(args[0])
		if err != nil {
			return err
		}
		mode, ok := providers.ParseMode(searchMode)
		if !ok {
			return fmt.Errorf("unknown mode %q", searchMode)
		}
		query := ""
		if len(args) == 2 {
			query = args[1]
		}

		results, err := p.Search(cmd.Context(), providers.SearchStrings{mode: {query}})
		if err != nil {
			return err
		}
		printResults(cmd, results)
		return nil
	},
}

var providersRefreshCmd = &cobra.Command{
	Use:   "refresh [provider...]",
	Short: "Refresh the RSS cache of the enabled daily providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, settings, err := loadSettings()
		if err != nil {
			return err
		}
		setupLogging(settings.Log)

		db, err := database.Open(cmd.Context(), settings.Cache.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		store := providers.NewStore(db, time.Duration(settings.Cache.RecentTTLMins)*time.Minute)
		registry := providers.NewRegistry(settings.Providers)

		targets := registry.All()
		if len(args) > 0 {
			targets = targets[:0]
			for _, name := range args {
				p, err := registry.Get(name)
				if err != nil {
					return err
				}
				targets = append(targets, p)
			}
		}

		var caches []*providers.Cache
		for _, p := range targets {
			if p.Capabilities().CanDaily {
				caches = append(caches, providers.NewCache(p, store))
			}
		}
		counts, err := providers.UpdateAll(cmd.Context(), caches)
		for name, n := range counts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d results\n", name, n)
		}
		return err
	},
}

func printResults(cmd *cobra.Command, results []models.SearchResult) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEEDS\tPEERS\tSIZE\tTITLE")
	for _, r := range results {
		size := "?"
		if s := providers.Size(r); s > 0 {
			size = units.BytesSize(float64(s))
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", r.Seeders, r.Leechers, size, r.Title)
	}
	tw.Flush()
}

func init() {
	providersSearchCmd.Flags().StringVar(&searchMode, "mode", string(providers.ModeEpisode), "RSS, Episode, Season or Movie")
	providersCmd.AddCommand(providersListCmd, providersSearchCmd, providersRefreshCmd)
	rootCmd.AddCommand(providersCmd)
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tokradar/tokradar/internal/utils"
	"github.com/tokradar/tokradar/pkg/feed"
	"github.com/tokradar/tokradar/pkg/pipeline"
	"github.com/tokradar/tokradar/pkg/storage"
	"github.com/tokradar/tokradar/pkg/whttp"
)

// collectCmd implements: tokradar collect
// Without a subcommand it runs the daily products collection. Subcommands
// cover videos and the monthly rollup.
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect a trend snapshot and store it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'tokradar collect --help'", args[0])
		}
		return runCollect(cmd, "products", pipeline.DailyKey(time.Now()))
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)

	// Make common flags persistent so subcommands inherit them
	collectCmd.PersistentFlags().String("region", "US", "Region code for the trend feed")
	collectCmd.PersistentFlags().Int("days", 7, "Trend window in days")
	collectCmd.PersistentFlags().Int("target", 100, "Number of records to accumulate")
	collectCmd.PersistentFlags().Int("page-size", 50, "Records per upstream page")
	collectCmd.PersistentFlags().Int("max-pages", 50, "Hard cap on pages fetched per run")
	collectCmd.PersistentFlags().Int("offset", 0, "Starting offset in the upstream feed")
	collectCmd.PersistentFlags().Int("delay", 1500, "Milliseconds to wait between page requests")
	collectCmd.PersistentFlags().String("shop", "", "Only collect records from this shop ID")
	collectCmd.PersistentFlags().Bool("enrich", false, "Fetch share pages to fill in missing product data")
	collectCmd.PersistentFlags().Int("max-enrich", 10, "Hard cap on share-page fetches per run (requires --enrich)")
	collectCmd.PersistentFlags().Bool("dry-run", false, "Print the normalized snapshot as JSON without writing to the database")
}

// runCollect executes one collection for the given feed kind and snapshot key.
func runCollect(cmd *cobra.Command, kind, key string) error {
	baseURL := viper.GetString("upstream.base_url")
	if baseURL == "" {
		return fmt.Errorf("upstream.base_url not set. Configure it in ~/.tokradar.yaml")
	}

	if proxy, _ := rootCmd.Flags().GetString("proxy"); proxy != "" {
		if err := whttp.SetupProxy(proxy); err != nil {
			return fmt.Errorf("invalid proxy: %w", err)
		}
	}

	client := feed.NewClient(feed.Config{
		BaseURL: baseURL,
		Token:   viper.GetString("upstream.token"),
		Cookie:  viper.GetString("upstream.cookie"),
		Log:     utils.Log,
	})

	region, _ := cmd.Flags().GetString("region")
	days, _ := cmd.Flags().GetInt("days")
	target, _ := cmd.Flags().GetInt("target")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	offset, _ := cmd.Flags().GetInt("offset")
	delayMs, _ := cmd.Flags().GetInt("delay")
	shopID, _ := cmd.Flags().GetString("shop")

	cfg := pipeline.Config{
		Fetcher: client,
		Key:     key,
		Collect: feed.CollectOptions{
			TargetCount: target,
			PageSize:    pageSize,
			MaxPages:    maxPages,
			StartOffset: offset,
			Delay:       time.Duration(delayMs) * time.Millisecond,
			Filters: feed.Filters{
				Kind:   kind,
				Region: region,
				Days:   days,
				ShopID: shopID,
			},
		},
		Log: utils.Log,
	}

	if enrich, _ := cmd.Flags().GetBool("enrich"); enrich {
		cfg.Enricher = client
		cfg.MaxEnrich, _ = cmd.Flags().GetInt("max-enrich")
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		cfg.Store = discardStore{}
	} else {
		dbPath, _ := cmd.Flags().GetString("dbpath")

		lock, err := utils.NewRunLock(dbPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		absPath, err := utils.GetAbsDBPath(dbPath)
		if err != nil {
			return err
		}
		db, err := storage.Open(absPath)
		if err != nil {
			return err
		}
		defer db.Close()
		cfg.Store = db
	}

	summary, err := pipeline.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	if dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	printSummary(summary)
	return nil
}

func printSummary(s *pipeline.Summary) {
	if s.NoData {
		fmt.Printf("No records collected for %s, existing snapshot left untouched.\n", s.CollectionKey)
		return
	}

	fmt.Printf("Stored %d records under %s (total GMV %.2f)\n", s.RowCount, s.CollectionKey, s.TotalGMV)

	if len(s.Top) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tGMV\tVIEWS\tSHOP\t")
	for _, p := range s.Top {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%d\t%s\t\n", p.Rank, p.Name, p.GMV, p.Views, p.ShopName)
	}
	w.Flush()
}

// discardStore backs --dry-run: the pipeline runs end to end but nothing
// touches the database.
type discardStore struct{}

func (discardStore) ReplaceSnapshot(ctx context.Context, key string, rows []storage.Row) error {
	return nil
}

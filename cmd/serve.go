package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tokradar/tokradar/internal/server"
	"github.com/tokradar/tokradar/internal/utils"
	"github.com/tokradar/tokradar/pkg/feed"
	"github.com/tokradar/tokradar/pkg/storage"
	"github.com/tokradar/tokradar/pkg/whttp"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tokradar read API",
	Long:  `Start an HTTP server exposing stored snapshots and a live feed passthrough.`,
	Run: func(cmd *cobra.Command, args []string) {
		if proxy, _ := rootCmd.Flags().GetString("proxy"); proxy != "" {
			if err := whttp.SetupProxy(proxy); err != nil {
				log.Fatalf("Invalid proxy: %v", err)
			}
		}

		dbPath, _ := cmd.Flags().GetString("dbpath")
		absPath, err := utils.GetAbsDBPath(dbPath)
		if err != nil {
			log.Fatalf("Failed to get DB path: %v", err)
		}

		db, err := storage.Open(absPath)
		if err != nil {
			log.Fatalf("Failed to open DB: %v", err)
		}
		defer db.Close()

		// /api/live needs upstream credentials; without a base URL the
		// endpoint just reports itself unavailable.
		var feedClient *feed.Client
		if baseURL := viper.GetString("upstream.base_url"); baseURL != "" {
			feedClient = feed.NewClient(feed.Config{
				BaseURL: baseURL,
				Token:   viper.GetString("upstream.token"),
				Cookie:  viper.GetString("upstream.cookie"),
				Log:     utils.Log,
			})
		}

		// Auth
		user, _ := cmd.Flags().GetString("username")
		pass, _ := cmd.Flags().GetString("password")
		addr, _ := cmd.Flags().GetString("bind")

		srv := server.New(db, feedClient, user, pass)
		if err := srv.Start(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", ":9999", "Address to bind the server to")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")
}

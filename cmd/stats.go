package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tokradar/tokradar/internal/utils"
	"github.com/tokradar/tokradar/pkg/storage"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the snapshots in the database.",
	Long:  "Prints statistics about the snapshots in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		absPath, err := utils.GetAbsDBPath(dbPath)
		if err != nil {
			return err
		}

		db, err := storage.Open(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("database file not found: %s", absPath)
			}
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No data in the database to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "KEY\tRECORDS\tGMV\tUPDATED\t")

		var totalRows int
		var totalGMV float64
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\t\n", s.CollectionKey, s.RowCount, s.TotalGMV, s.LastUpdated)
			totalRows += s.RowCount
			totalGMV += s.TotalGMV
		}

		fmt.Fprintln(w, " \t \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%.2f\t \t\n", totalRows, totalGMV)

		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

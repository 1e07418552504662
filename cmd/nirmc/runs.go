package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tissueoptics/nirmc/internal/config"
	"github.com/tissueoptics/nirmc/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted runs, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.FromEnv()
		if err != nil {
			fmt.Printf("Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("db") {
			cfg.DBPath, _ = cmd.Flags().GetString("db")
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Printf("Error opening run database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		records, err := st.ListRuns(context.Background(), limit)
		if err != nil {
			fmt.Printf("Error listing runs: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("No runs recorded yet")
			return
		}

		for _, rec := range records {
			fmt.Printf("%4d  %s  %-20s %8d photons  R=%.5f T=%.5f A=%.5f  %v\n",
				rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Model,
				rec.Photons, rec.Reflectance, rec.Transmittance, rec.Absorbed, rec.Duration)
		}
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	runsCmd.Flags().String("db", "", "SQLite database path (overrides NIRMC_DB_PATH)")
}

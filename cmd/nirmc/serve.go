package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tissueoptics/nirmc/internal/config"
	"github.com/tissueoptics/nirmc/internal/store"
	"github.com/tissueoptics/nirmc/pkg/core"
	"github.com/tissueoptics/nirmc/web/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Starts the web dashboard: interactive simulations streamed over SSE,
persisted run history, and Prometheus metrics on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.FromEnv()
		if err != nil {
			fmt.Printf("Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("addr") {
			cfg.ListenAddr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("db") {
			cfg.DBPath, _ = cmd.Flags().GetString("db")
		}
		if cmd.Flags().Changed("static") {
			cfg.StaticDir, _ = cmd.Flags().GetString("static")
		}

		var st *store.Store
		if cfg.DBPath != "" {
			st, err = store.Open(cfg.DBPath)
			if err != nil {
				fmt.Printf("Error opening run database: %v\n", err)
				os.Exit(1)
			}
			defer st.Close()
		} else {
			fmt.Println("Run persistence disabled (no database path configured)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := core.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
		srv := server.NewServer(cfg, st, logger)
		if err := srv.Start(ctx); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Server stopped gracefully")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("db", "", "SQLite database path for run history")
	serveCmd.Flags().String("static", "", "Directory of dashboard static files")
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rephrasego/internal/scheduler"
	"rephrasego/internal/service/session"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the expired and stale sweeps once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, driver, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		cache, closeCache, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer closeCache()
		store := session.NewStore(db, driver, session.Options{
			TTL:      cfg.SessionTTL(),
			StaleAge: cfg.StaleAge(),
			Cache:    cache,
		})
		expired, stale, err := scheduler.New(store, scheduler.Config{}).RunOnce(context.Background())
		fmt.Fprintf(cmd.OutOrStdout(), "expired: %d sessions, %d files\n", expired.Sessions, expired.Files)
		fmt.Fprintf(cmd.OutOrStdout(), "stale: %d sessions, %d files\n", stale.Sessions, stale.Files)
		return err
	},
}

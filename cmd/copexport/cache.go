package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var purgeSystem string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the zone response cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge ZONE [ZONE...]",
	Short: "Drop cached zone data so the next fetch goes to the service",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Cache.RedisAddr == "" {
			return errors.New("no response cache configured (set REDIS_ADDR)")
		}
		p, err := newPipeline(cmd.Context(), cfg, appLog)
		if err != nil {
			return err
		}
		defer p.Close()

		system := pick(purgeSystem, cfg.DGGS.System)
		if err := p.client.Forget(cmd.Context(), system, args...); err != nil {
			return err
		}
		fmt.Printf("Purged %d zone(s) for %s\n", len(args), system)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().StringVar(&purgeSystem, "dggs", "", "DGGS identifier (default from config)")
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

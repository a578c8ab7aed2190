package cmd

import (
	"fmt"
	"log"

	"muselib/cache"
	"muselib/config"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the redis connection",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("Redis check failed: %v", err)
		}
		defer cache.CloseRedis()

		fmt.Printf("Redis OK at %s:%s (db %d)\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}

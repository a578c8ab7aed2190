package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"muselib/config"
	"muselib/storage"

	"github.com/spf13/cobra"
)

var (
	storagePrefix string
	storageStats  bool
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the blob bucket",
	Long:  `List the objects stored in the configured bucket, optionally filtered by prefix (music/ or album-art/).`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		client, err := storage.NewAdminClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to object storage: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		print := func(key string, size int64, modified time.Time) {
			fmt.Printf("%-60s %10d  %s\n", key, size, modified.Format(time.RFC3339))
		}
		if storageStats {
			print = nil
		}

		stats, err := client.ListObjects(ctx, storagePrefix, print)
		if err != nil {
			log.Fatalf("Failed to list objects: %v", err)
		}

		fmt.Printf("\n%d objects, %.2f MB total", stats.Objects, float64(stats.TotalSize)/(1024*1024))
		if !stats.LastModified.IsZero() {
			fmt.Printf(", last modified %s", stats.LastModified.Format(time.RFC3339))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)

	storageCmd.Flags().StringVarP(&storagePrefix, "prefix", "p", "", "filter objects by prefix")
	storageCmd.Flags().BoolVarP(&storageStats, "stats", "s", false, "print totals only")

	storageCmd.Example = `  # list everything
  muselib storage

  # list only audio blobs
  muselib storage -p "music/"

  # totals only
  muselib storage -s`
}

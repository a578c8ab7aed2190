package cmd

import (
	"fmt"
	"log"

	"muselib/core/auth"

	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Generate the bcrypt hash for ADMIN_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
}

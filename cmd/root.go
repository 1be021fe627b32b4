package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "memory-anchor",
	Short: "Face recognition companion that reminds you who is visiting",
	Long: `Memory Anchor watches a camera, recognizes enrolled family members and
friends, and shows who they are, how they are related and what was talked
about last time.

Enroll people with a photo and a short profile, then start scanning from the
CLI or through the web API.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

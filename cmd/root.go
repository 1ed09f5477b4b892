package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "facecluster",
	Short: "Recognize and cluster faces against a persistent identity store",
	Long: `facecluster associates face embeddings with numeric identities, recognizes
known identities in new images and groups unlabeled faces into clusters of
likely-same people.

Embeddings are produced by an external face embedding server (EMBEDDING_URL).
Identities are kept in a persistent store selected with STORE_BACKEND.`,
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
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	level := logLevel
	if level == "" {
		level = config.Load().Log.Level
	}
	logging.Setup(level)
}

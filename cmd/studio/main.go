package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brandviz.io/studio/internal/config"
	"brandviz.io/studio/internal/logging"
)

var (
	// Global flags
	apiURL   string
	dbPath   string
	logLevel string
	logFile  string
	asJSON   bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "Brand design studio client",
	Long: `studio collects brand preferences, browses the feedback groups the
grouping service builds from them, and turns a group into generated
design variations.

Run "studio serve" for the web UI or "studio chat" for the terminal UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = config.AppConfig

		flags := cmd.Flags()
		if flags.Changed("api-url") {
			cfg.APIBaseURL = apiURL
		}
		if flags.Changed("db") {
			cfg.DatabaseURL = dbPath
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// The terminal UI owns the screen; it only logs to a file.
		if cmd.Name() == "chat" && logFile == "" {
			logger = zap.NewNop()
			return nil
		}
		var err error
		logger, err = logging.New(logging.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, OutputPath: logFile})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Grouping service base URL (or set API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Local history database (or set DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (or set LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stdout")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(generationsCmd)
	rootCmd.AddCommand(generationCmd)
	rootCmd.AddCommand(healthCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmcdole/kinotv/internal/config"
	"github.com/mmcdole/kinotv/internal/log"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kinotv",
	Short: "Personalized suggestions for your Jellyfin libraries",
	Long: "kinotv keeps a per-library list of suggestions for the signed-in Jellyfin user,\n" +
		"refreshed in the background and served from a local cache.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/kinotv/config.yaml)")
	rootCmd.PersistentFlags().String("cache-dir", "", "cache directory (default: ~/.local/share/kinotv/cache)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")

	viper.BindPFlag("cache.dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func loadConfig(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	var err error
	cfg, err = config.Load(viper.GetViper(), configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err = log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Debug("loaded config", "file", viper.ConfigFileUsed(), "command", cmd.Name())
	return nil
}

func requireConfigured() error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("not signed in; run 'kinotv login' first")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/adblock-engine/internal/engine"
	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/observability"
	"github.com/bnema/adblock-engine/internal/version"
)

var (
	cfgFile string
	cfg     models.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "adblock-engine",
	Short: "Adblock Plus filter engine",
	Long: `Maintains Adblock Plus filter subscriptions and answers blocking and
element hiding queries, from the command line or over HTTP.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured filter lists",
	RunE:  runList,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetInfo()
		fmt.Printf("%s %s\n", version.ApplicationName, info.Version)
		fmt.Printf("  commit:   %s\n", info.Commit)
		fmt.Printf("  built:    %s\n", info.Date)
		fmt.Printf("  go:       %s\n", info.GoVersion)
		fmt.Printf("  platform: %s\n", info.Platform)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/adblock_engine.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(listCmd, initCmd, versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("adblock_engine")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("ADBLOCK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("http.max_size", 32<<20)
	viper.SetDefault("logging.level", "warn")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "adblock-engine.db")
	viper.SetDefault("database.log_level", "warn")
	viper.SetDefault("sync.schedule", "@every 1h")
	viper.SetDefault("sync.default_expiration", "120h")
	viper.SetDefault("sync.max_concurrent", 4)
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("subscriptions.locale", "en-US")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
	}
}

// openEngine builds an engine from the loaded configuration. The caller
// must Close it.
func openEngine(ctx context.Context) (*engine.Engine, *slog.Logger, error) {
	logger := observability.NewLogger(cfg.Logging)
	e, err := engine.New(ctx, engine.Options{
		Config: cfg,
		Logger: logger,
		App: models.AppInfo{
			Application:        version.ApplicationName,
			ApplicationVersion: version.Version,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return e, logger, nil
}

func runList(cmd *cobra.Command, args []string) error {
	if len(cfg.Lists) == 0 {
		fmt.Println("No filter lists configured")
		return nil
	}

	fmt.Println("Configured filter lists:")
	for _, l := range cfg.Lists {
		status := "enabled"
		if !l.Enabled {
			status = "disabled"
		}
		fmt.Printf("  %-20s [%s] %s\n", l.Name, status, l.URL)
	}
	fmt.Println("\nEnabled lists are added on the first run only; use \"subscriptions add\" afterwards.")
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "./configs/adblock_engine.toml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := writeFile(configPath, defaultConfig); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}

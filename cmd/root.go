package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/internal/config"
	"github.com/webvoyant/voyant-cli/internal/observability"
)

var (
	cfgFile string
	appCfg  *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "voyant",
	Short:   "Voyant is an LLM-driven browser automation agent.",
	Long:    "Voyant drives a headless Chrome session through a bounded perceive/decide/act loop,\nletting a language model accomplish goals on real web pages.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Best effort; a missing .env is not an error.
		_ = godotenv.Load()

		cfg, err := initializeConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}
		appCfg = cfg

		observability.InitializeLogger(cfg.Logger)

		observability.GetLogger().Debug("Configuration loaded",
			zap.String("version", Version),
			zap.String("powerful_model", cfg.Agent.LLM.PowerfulModel),
			zap.Bool("headless", cfg.Browser.Headless),
		)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func initializeConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("voyant")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return nil, fmt.Errorf("could not read config file %s: %w", cfgFile, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("could not bind flags: %w", err)
	}

	return config.NewConfigFromViper(v)
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (default ./voyant.yaml)")
	rootCmd.SetVersionTemplate("voyant version {{.Version}}\n")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newFillCmd())
	rootCmd.AddCommand(newVersionCmd())
}

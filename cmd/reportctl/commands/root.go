package commands

import (
	"fmt"

	"report_renderer/internal/config"
	"report_renderer/internal/di"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Report renderer command line tool",
	Long: `reportctl renders reports offline, validates HCL layouts and manages
the render journal database using the same configuration as the HTTP service.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadEnvironment читает конфигурацию и создает логгер для команды
func loadEnvironment(cmd *cobra.Command) (config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger := di.NewLogger(cfg)
	logger.SetOutput(cmd.ErrOrStderr())
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return cfg, logger, nil
}

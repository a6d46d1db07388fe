package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	debug    bool
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cablecat",
	Short: "Talk to ActionCable servers from the terminal",
	Long: `cablecat connects to an ActionCable endpoint, subscribes to channels
and prints whatever the server broadcasts to them, one JSON line per message.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output, including every frame")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func setupLogger() (*zap.Logger, error) {
	level := logLevel
	if debug {
		level = "debug"
	}

	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.Development = debug

	return config.Build()
}

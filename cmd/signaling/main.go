package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mossy-p/burner-signaling/config"
	"github.com/mossy-p/burner-signaling/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	flagConfig      string
	flagEnvironment string
	flagLogLevel    string
	flagLogFormat   string
	flagRedisAddr   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "signaling",
	Short: "Burner signaling server for ephemeral chat, WebRTC signaling and meetings",
	Long: `Burner signaling hands out disposable identities and brokers ephemeral rooms:
text chat rooms with expiring messages, two-party WebRTC signaling rooms and
host-controlled meetings. Nothing is persisted; everything expires.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file (overrides SIGNALING_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flagEnvironment, "environment", "", "development or production")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "text or json")
	rootCmd.PersistentFlags().StringVar(&flagRedisAddr, "redis", "", "Redis address host:port (enables Redis)")

	rootCmd.AddCommand(serveCmd, identityCmd, roomsCmd)
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flags on top of file and env
// configuration and validates the result.
func loadConfig(port string) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Path:        flagConfig,
		Port:        port,
		Environment: flagEnvironment,
		LogLevel:    flagLogLevel,
		LogFormat:   flagLogFormat,
		RedisAddr:   flagRedisAddr,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

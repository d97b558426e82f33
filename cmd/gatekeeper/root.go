package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	logLevel     string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Gatekeeper - multi-level decision engine for agent actions",
		Long: `Gatekeeper decides whether an autonomous agent's proposed action is
approved, denied, or escalated for human review.

Level 1 checks the action against an immutable rule set. Levels 2-4 consult
advisory context, truth, and risk collaborators when the action warrants it.
Level 5 synthesizes everything into a verdict with a confidence score.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults only when empty)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, csv)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		// The decide command has already printed a rejected decision.
		var ve *cli.VerdictError
		if !errors.As(err, &ve) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return cli.ExitCode(err)
}

// loadConfig loads the config file with environment overrides. Commands pass
// the result down explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	return cfg, nil
}

// setupLogging installs the configured logger as the slog default.
func setupLogging(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	lc := cfg.Telemetry.Logging
	patterns := make([]logging.Pattern, 0, len(lc.RedactPatterns))
	for _, p := range lc.RedactPatterns {
		patterns = append(patterns, logging.Pattern{
			Name:        p.Name,
			Pattern:     p.Pattern,
			Replacement: p.Replacement,
		})
	}
	logger, err := logging.Setup(logging.Config{
		Level:          lc.Level,
		Format:         lc.Format,
		AddSource:      lc.AddSource,
		RedactPII:      lc.RedactPII,
		RedactPatterns: patterns,
		Writer:         w,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

func formatter() (cli.Formatter, error) {
	f, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return cli.NewFormatter(f), nil
}

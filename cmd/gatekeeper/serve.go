package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/server"
)

var serveFlags struct {
	listenAddress string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the decision API server",
	Long: `Start the Gatekeeper HTTP API with the specified configuration.

The server loads the rule set once at start-up. Edits to a watched rule file
are reported but never applied; restart the server to pick them up.

Examples:
  # Start with defaults
  gatekeeper serve

  # Start with a config file
  gatekeeper serve --config /etc/gatekeeper/gatekeeper.yaml

  # Override listen address
  gatekeeper serve --listen 0.0.0.0:8090

  # Validate config without starting the server
  gatekeeper serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
		if err := config.Validate(cfg); err != nil {
			return cli.NewConfigError("server.listen_address", err.Error())
		}
	}

	logger, err := setupLogging(cfg, os.Stderr)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer a.Close()

	if _, err := a.watchRules(ctx); err != nil {
		logger.Warn("rule drift watcher not started", "error", err)
	}

	if a.storage != nil && cfg.Audit.Retention.PruneSchedule != "" {
		pruner := newPruner(a.storage, &cfg.Audit.Retention)
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				logger.Debug("audit retention scheduler started", "next_pruning", next)
			}
		}
	}

	srv, err := server.NewServer(&cfg.Server, serverDeps(a, logger))
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	printBanner(cmd, a)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func serverDeps(a *app, logger *slog.Logger) server.Deps {
	healthRate := a.cfg.Telemetry.Health.RequestsPerSecond
	if healthRate < 0 {
		healthRate = 0
	}
	deps := server.Deps{
		Decider:         a.orchestrator,
		RuleSet:         a.rules.RuleSet,
		RulesFallback:   a.rules.Fallback,
		Storage:         a.storage,
		Health:          a.health,
		HealthRateLimit: healthRate,
		Version:         Version,
		Commit:          GitCommit,
		BuildTime:       BuildDate,
		Logger:          logger,
	}
	if a.cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = a.metrics
		deps.MetricsPath = a.cfg.Telemetry.Metrics.Path
	}
	return deps
}

func printBanner(cmd *cobra.Command, a *app) {
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Gatekeeper v%s\n", Version)

	switch {
	case a.rulesErr != nil:
		fmt.Fprintf(out, "✗ Rules unavailable, denying every action: %v\n", a.rulesErr)
	case a.rules.Fallback:
		fmt.Fprintf(out, "! Rules fell back to compiled-in %s (%d rules)\n", a.rules.RuleSet.Version(), a.rules.RuleSet.Len())
	default:
		fmt.Fprintf(out, "✓ Rules loaded: %s (%d rules)\n", a.rules.RuleSet.Version(), a.rules.RuleSet.Len())
	}
	fmt.Fprintf(out, "✓ Collaborators registered: %v\n", a.orchestrator.Registered())
	if a.storage != nil {
		fmt.Fprintf(out, "✓ Audit store: %s\n", a.cfg.Audit.Backend)
	}
	fmt.Fprintf(out, "✓ Listening on %s\n", a.cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}


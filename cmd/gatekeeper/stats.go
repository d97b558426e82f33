package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/orchestrator"
)

var statsFlags struct {
	server  string
	timeout time.Duration
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show decision statistics from a running server",
	Long: `Fetch /v1/statistics from a running gatekeeper server.

The server address defaults to server.listen_address from the config.

Examples:
  gatekeeper stats
  gatekeeper stats --server http://gatekeeper.internal:8090 -o json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsFlags.server, "server", "", "server base URL")
	statsCmd.Flags().DurationVar(&statsFlags.timeout, "timeout", 5*time.Second, "request timeout")
}

// statsTable renders statistics as metric/value rows.
type statsTable orchestrator.Statistics

func (s statsTable) Headers() []string { return []string{"metric", "value"} }

func (s statsTable) Rows() [][]string {
	rows := [][]string{
		{"total_decisions", strconv.FormatInt(s.TotalDecisions, 10)},
		{"fast_path", strconv.FormatInt(s.FastPathCount, 10)},
		{"full_path", strconv.FormatInt(s.FullPathCount, 10)},
		{"short_circuit", strconv.FormatInt(s.ShortCircuitCount, 10)},
		{"fast_path_percentage", strconv.FormatFloat(s.FastPathPercentage, 'f', 1, 64)},
		{"avg_duration_ms", strconv.FormatFloat(s.AvgDurationMs, 'f', 3, 64)},
		{"audit_failures", strconv.FormatInt(s.AuditFailures, 10)},
		{"history", fmt.Sprintf("%d/%d", s.HistorySize, s.HistoryCapacity)},
	}
	verdicts := make([]string, 0, len(s.Verdicts))
	for v := range s.Verdicts {
		verdicts = append(verdicts, v)
	}
	sort.Strings(verdicts)
	for _, v := range verdicts {
		rows = append(rows, []string{"verdict_" + v, strconv.FormatInt(s.Verdicts[v], 10)})
	}
	return rows
}

func runStats(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	base := statsFlags.server
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base = serverURL(cfg.Server.ListenAddress)
	}

	stats, err := fetchStatistics(cmd.Context(), &http.Client{Timeout: statsFlags.timeout}, base)
	if err != nil {
		return cli.NewCommandError("stats", err)
	}
	if _, isJSON := f.(*cli.JSONFormatter); isJSON {
		return f.FormatTo(cmd.OutOrStdout(), stats)
	}
	return f.FormatTo(cmd.OutOrStdout(), statsTable(stats))
}

// serverURL turns a listen address into a base URL a client can dial.
func serverURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func fetchStatistics(ctx context.Context, client *http.Client, base string) (orchestrator.Statistics, error) {
	var stats orchestrator.Statistics

	endpoint := strings.TrimRight(base, "/") + "/v1/statistics"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return stats, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return stats, fmt.Errorf("failed to reach %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return stats, fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("invalid statistics response: %w", err)
	}
	return stats, nil
}

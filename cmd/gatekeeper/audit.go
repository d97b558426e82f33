package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/audit/export"
	"mercator-hq/gatekeeper/pkg/audit/recorder"
	"mercator-hq/gatekeeper/pkg/audit/storage"
	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/server/handlers"
)

// queryFlags maps audit filter flags to the API query parameters they set.
var queryFlags = []struct {
	flag, param, usage string
}{
	{"agent", "agent", "filter by agent"},
	{"action-type", "action_type", "filter by action type"},
	{"verdict", "verdict", "filter by verdict (approved, denied, escalate, error)"},
	{"path", "path", "filter by path (fast, full, short_circuit)"},
	{"decision", "decision_id", "filter by decision ID"},
	{"since", "start", "decided at or after (RFC 3339)"},
	{"until", "end", "decided at or before (RFC 3339)"},
	{"min-confidence", "min_confidence", "minimum confidence"},
	{"max-confidence", "max_confidence", "maximum confidence"},
	{"limit", "limit", "maximum records (default 100)"},
	{"offset", "offset", "records to skip"},
	{"sort-by", "sort_by", "decided_at, confidence, or duration"},
	{"order", "order", "asc or desc"},
}

var auditFlags struct {
	format string
	output string
	pretty bool
	dryRun bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query, export, verify, and prune the audit log",
	Long: `Work with the durable decision log configured under audit.

Examples:
  # Denied decisions for one agent
  gatekeeper audit query --agent alpha --verdict denied

  # Export a day to CSV
  gatekeeper audit export --since 2026-03-01T00:00:00Z --until 2026-03-02T00:00:00Z --format csv --file day.csv

  # Check content hashes
  gatekeeper audit verify

  # Apply retention now
  gatekeeper audit prune`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit records",
	Args:  cobra.NoArgs,
	RunE:  runAuditQuery,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records as JSON or CSV",
	Args:  cobra.NoArgs,
	RunE:  runAuditExport,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the content hash of audit records",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy once",
	Args:  cobra.NoArgs,
	RunE:  runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditExportCmd, auditVerifyCmd, auditPruneCmd)

	for _, c := range []*cobra.Command{auditQueryCmd, auditExportCmd, auditVerifyCmd} {
		for _, f := range queryFlags {
			c.Flags().String(f.flag, "", f.usage)
		}
	}

	auditExportCmd.Flags().StringVar(&auditFlags.format, "format", "json", "export format (json, csv)")
	auditExportCmd.Flags().StringVarP(&auditFlags.output, "file", "f", "", "output file (stdout when empty)")
	auditExportCmd.Flags().BoolVar(&auditFlags.pretty, "pretty", false, "indent JSON output")

	auditPruneCmd.Flags().BoolVar(&auditFlags.dryRun, "dry-run", false, "report the retention policy without deleting")
}

// buildQuery reads the filter flags of cmd into an audit query.
func buildQuery(cmd *cobra.Command) (*audit.Query, error) {
	values := url.Values{}
	for _, f := range queryFlags {
		flag := cmd.Flags().Lookup(f.flag)
		if flag == nil || !flag.Changed {
			continue
		}
		values.Set(f.param, flag.Value.String())
	}
	q, err := handlers.ParseQuery(values)
	if err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	return q, nil
}

// openAuditStorage opens the configured durable audit store.
func openAuditStorage() (audit.Storage, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Audit.Backend == storage.BackendMemory {
		return nil, nil, cli.NewConfigError("audit.backend", "the memory backend keeps no records between processes")
	}
	if _, err := setupLogging(cfg, os.Stderr); err != nil {
		return nil, nil, err
	}
	store, err := openStorage(&cfg.Audit)
	if err != nil {
		return nil, nil, cli.NewCommandError("audit", err)
	}
	return store, cfg, nil
}

// recordTable renders audit records as rows.
type recordTable []*audit.Record

func (t recordTable) Headers() []string {
	return []string{"decided_at", "decision_id", "agent", "action_type", "verdict", "confidence", "path", "levels"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, r := range t {
		levels := make([]string, len(r.ExecutedLevels))
		for j, l := range r.ExecutedLevels {
			levels[j] = strconv.Itoa(l)
		}
		rows[i] = []string{
			r.DecidedAt.Format(time.RFC3339),
			r.DecisionID,
			r.Agent,
			r.ActionType,
			r.FinalDecision,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.Path,
			strings.Join(levels, ","),
		}
	}
	return rows
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	q, err := buildQuery(cmd)
	if err != nil {
		return err
	}
	store, _, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	if _, isJSON := f.(*cli.JSONFormatter); isJSON {
		return f.FormatTo(cmd.OutOrStdout(), records)
	}
	return f.FormatTo(cmd.OutOrStdout(), recordTable(records))
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(auditFlags.format, auditFlags.pretty)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}
	q, err := buildQuery(cmd)
	if err != nil {
		return err
	}
	store, _, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	w := cmd.OutOrStdout()
	if auditFlags.output != "" {
		file, err := os.Create(auditFlags.output)
		if err != nil {
			return cli.NewCommandError("audit export", err)
		}
		defer file.Close()
		w = file
	}
	if err := exporter.Export(cmd.Context(), records, w); err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if auditFlags.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d records to %s\n", len(records), auditFlags.output)
	}
	return nil
}

// verifyResult is the outcome of audit verify.
type verifyResult struct {
	Checked  int      `json:"checked"`
	Tampered []string `json:"tampered"`
}

func (r verifyResult) Headers() []string { return []string{"checked", "tampered"} }

func (r verifyResult) Rows() [][]string {
	return [][]string{{strconv.Itoa(r.Checked), strings.Join(r.Tampered, " ")}}
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	q, err := buildQuery(cmd)
	if err != nil {
		return err
	}
	store, _, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.Count(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit verify", err)
	}
	progress := cli.NewProgress(cmd.ErrOrStderr(), "verify")
	progress.Start(total)

	result, err := verifyRecords(cmd, store, q, progress)
	if err != nil {
		progress.Fail(err)
		return cli.NewCommandError("audit verify", err)
	}
	progress.Done()

	if err := f.FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if len(result.Tampered) > 0 {
		return cli.NewCommandError("audit verify", fmt.Errorf("%d of %d records failed hash verification", len(result.Tampered), result.Checked))
	}
	return nil
}

// verifyRecords pages through every record matching q and checks its hash.
// The caller's limit and offset are ignored.
func verifyRecords(cmd *cobra.Command, store audit.Storage, q *audit.Query, progress *cli.Progress) (verifyResult, error) {
	result := verifyResult{Tampered: []string{}}
	page := *q
	page.Limit = audit.MaxQueryLimit
	page.Offset = 0
	page.SortBy = "decided_at"
	page.SortOrder = "asc"
	for {
		batch, err := store.Query(cmd.Context(), &page)
		if err != nil {
			return result, err
		}
		var flagged int64
		for _, r := range batch {
			if !recorder.Verify(r) {
				result.Tampered = append(result.Tampered, r.ID)
				flagged++
			}
		}
		result.Checked += len(batch)
		progress.Advance(int64(len(batch)), flagged)
		if len(batch) < page.Limit {
			return result, nil
		}
		page.Offset += len(batch)
	}
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	store, cfg, err := openAuditStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	rc := cfg.Audit.Retention
	out := cmd.OutOrStdout()
	if auditFlags.dryRun {
		fmt.Fprintf(out, "retention_days=%d max_records=%d archive=%t\n", rc.Days, rc.MaxRecords, rc.ArchiveBeforeDelete)
		return nil
	}

	deleted, err := newPruner(store, &rc).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(out, "✓ Pruned %d records\n", deleted)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/decision"
	"mercator-hq/gatekeeper/pkg/orchestrator"
	"mercator-hq/gatekeeper/pkg/server/handlers"
)

var decideFlags struct {
	actionFile  string
	agent       string
	forceLevels []int
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Decide one action locally",
	Long: `Run one action through the decision pipeline without starting a server.

The action file holds either a bare action or a request body with "action",
"agent", and "force_levels" fields, as JSON or YAML. Use "-" for stdin.

The command exits 0 when the action is approved and 3 otherwise.

Examples:
  gatekeeper decide --action trade.json
  gatekeeper decide --action trade.yaml --agent alpha --force-levels 2,4 -o json
  cat action.json | gatekeeper decide --action -`,
	RunE: runDecide,
}

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVarP(&decideFlags.actionFile, "action", "a", "", "action file (JSON or YAML, - for stdin)")
	decideCmd.Flags().StringVar(&decideFlags.agent, "agent", "", "agent name (overrides the file)")
	decideCmd.Flags().IntSliceVar(&decideFlags.forceLevels, "force-levels", nil, "advisory levels to force (2-4)")
	_ = decideCmd.MarkFlagRequired("action")
}

func runDecide(cmd *cobra.Command, args []string) error {
	req, err := readDecideRequest(decideFlags.actionFile, cmd.InOrStdin())
	if err != nil {
		return cli.NewCommandError("decide", err)
	}
	if decideFlags.agent != "" {
		req.Agent = decideFlags.agent
	}
	if len(decideFlags.forceLevels) > 0 {
		req.ForceLevels = decideFlags.forceLevels
	}
	for _, l := range req.ForceLevels {
		if l < decision.LevelContext || l > decision.LevelRisk {
			return cli.NewConfigError("force-levels", fmt.Sprintf("level %d is not an advisory level (2-4)", l))
		}
	}

	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("decide", err)
	}
	defer a.Close()

	agent := req.Agent
	if agent == "" {
		agent = req.Action.Agent
	}
	d, err := a.orchestrator.Decide(ctx, req.Action, agent, orchestrator.WithForcedLevels(req.ForceLevels...))
	if err != nil {
		return cli.NewCommandError("decide", err)
	}

	var view any = decisionView{d}
	if format == cli.FormatJSON {
		view = d
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), view); err != nil {
		return err
	}
	if !d.Allowed() {
		return &cli.VerdictError{DecisionID: d.ID, Verdict: string(d.FinalDecision)}
	}
	return nil
}

// readDecideRequest reads a request body or a bare action from path.
func readDecideRequest(path string, stdin io.Reader) (*handlers.DecideRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		// #nosec G304 -- path comes from the command line.
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read action: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse action YAML: %w", err)
		}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse action JSON: %w", err)
	}

	req := &handlers.DecideRequest{}
	if _, wrapped := envelope["action"]; wrapped {
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
	} else {
		req.Action = &action.Action{}
		if err := json.Unmarshal(data, req.Action); err != nil {
			return nil, fmt.Errorf("invalid action: %w", err)
		}
	}
	if req.Action == nil {
		return nil, fmt.Errorf("field \"action\" is required")
	}
	return req, nil
}

// yamlToJSON re-encodes a YAML document so the action's JSON decoding rules
// apply to both formats.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// decisionView renders a decision as one row per level.
type decisionView struct {
	d *decision.Decision
}

func (v decisionView) Headers() []string {
	return []string{"level", "name", "status", "duration", "detail"}
}

func (v decisionView) Rows() [][]string {
	d := v.d
	rows := make([][]string, 0, len(d.Levels)+len(d.Warnings)+2)
	for _, l := range d.Levels {
		detail := l.Reason
		if l.Error != "" {
			detail = l.Error
		}
		rows = append(rows, []string{strconv.Itoa(l.Level), l.Name, string(l.Status), l.Duration.String(), detail})
	}
	for _, w := range d.Warnings {
		rows = append(rows, []string{"", "warning", "", "", w})
	}
	rows = append(rows, []string{
		"", "verdict", string(d.FinalDecision), d.TotalDuration.String(),
		fmt.Sprintf("path=%s confidence=%.2f id=%s", d.Path, d.Confidence, d.ID),
	})
	return rows
}

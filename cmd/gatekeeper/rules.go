package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/rules"
	"mercator-hq/gatekeeper/pkg/rules/source"
)

var rulesFlags struct {
	category string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule sets",
	Long: `Inspect the rule set the configured source would load, or validate a
rule document before deploying it.

Examples:
  gatekeeper rules list --category risk_management
  gatekeeper rules show max_leverage -o json
  gatekeeper rules validate rules.yaml`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rules of the configured source",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesShow,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a rule document",
	Long: `Parse and validate a rule document. Without an argument the configured
rules.path is validated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesValidate,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesShowCmd, rulesValidateCmd)

	rulesListCmd.Flags().StringVar(&rulesFlags.category, "category", "", "only list rules in this category")
}

// ruleTable renders rules as rows.
type ruleTable []rules.Rule

func (t ruleTable) Headers() []string {
	return []string{"name", "category", "value", "description"}
}

func (t ruleTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, r := range t {
		rows[i] = []string{r.Name, string(r.Category), r.Value.String(), r.Description}
	}
	return rows
}

// loadConfiguredRules loads the rule set from the configured source, with
// the same fallback behavior as the server.
func loadConfiguredRules(cmd *cobra.Command) (source.Result, error) {
	cfg, err := loadConfig()
	if err != nil {
		return source.Result{}, err
	}
	logger, err := setupLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return source.Result{}, err
	}
	src, err := ruleSource(&cfg.Rules, logger)
	if err != nil {
		return source.Result{}, cli.NewConfigError("rules.source", err.Error())
	}
	res, err := source.LoadWithFallback(cmd.Context(), src, cfg.Rules.Strict, logger)
	if err != nil {
		return res, cli.NewCommandError("rules", err)
	}
	if res.Fallback {
		fmt.Fprintf(cmd.ErrOrStderr(), "! source unavailable, showing compiled-in rules: %v\n", res.Err)
	}
	return res, nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	res, err := loadConfiguredRules(cmd)
	if err != nil {
		return err
	}
	rs := res.RuleSet

	list := rs.Rules()
	if rulesFlags.category != "" {
		c := rules.Category(rulesFlags.category)
		if !c.Valid() {
			return cli.NewConfigError("category", fmt.Sprintf("unknown category %q", rulesFlags.category))
		}
		filtered := list[:0]
		for _, r := range list {
			if r.Category == c {
				filtered = append(filtered, r)
			}
		}
		list = filtered
	}
	return f.FormatTo(cmd.OutOrStdout(), ruleTable(list))
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	res, err := loadConfiguredRules(cmd)
	if err != nil {
		return err
	}
	r, ok := res.RuleSet.Get(args[0])
	if !ok {
		return cli.NewCommandError("rules show", fmt.Errorf("rule %q not found in %s", args[0], res.RuleSet.Version()))
	}
	if _, isJSON := f.(*cli.JSONFormatter); isJSON {
		return f.FormatTo(cmd.OutOrStdout(), r)
	}
	return f.FormatTo(cmd.OutOrStdout(), ruleTable{r})
}

// validationSummary is the result of rules validate.
type validationSummary struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Rules   int    `json:"rules"`
	Digest  string `json:"digest"`

	// Missing lists enforced rules the file does not define.
	Missing []string `json:"missing,omitempty"`
}

func (s validationSummary) Headers() []string {
	return []string{"path", "version", "rules", "digest", "missing"}
}

func (s validationSummary) Rows() [][]string {
	return [][]string{{s.Path, s.Version, strconv.Itoa(s.Rules), s.Digest, strings.Join(s.Missing, ",")}}
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Rules.Path
	}

	summary, err := validateRuleFile(path)
	if err != nil {
		return cli.NewCommandError("rules validate", err)
	}
	return f.FormatTo(cmd.OutOrStdout(), summary)
}

func validateRuleFile(path string) (validationSummary, error) {
	// #nosec G304 -- path comes from the command line or config.
	data, err := os.ReadFile(path)
	if err != nil {
		return validationSummary{}, err
	}
	rs, err := rules.Parse(data, path)
	if err != nil {
		return validationSummary{}, err
	}
	return validationSummary{
		Path:    path,
		Version: rs.Version(),
		Rules:   rs.Len(),
		Digest:  rs.Digest(),
		Missing: rs.Missing(),
	}, nil
}

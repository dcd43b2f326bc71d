package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"statbench/adapters/excel"
	"statbench/domain/table"
	"statbench/internal"
	"statbench/internal/config"
	"statbench/internal/errors"
	"statbench/internal/expr"
	"statbench/internal/pipeline"
	"statbench/internal/report"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "statbench",
		Short:         "statbench CLI for running the transformation pipeline and checking expressions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newDescribeCmd(),
		newCheckExprCmd(),
		newRenderExprCmd(),
	)
	return rootCmd
}

func newDescribeCmd() *cobra.Command {
	var rulesPath string
	var format string

	cmd := &cobra.Command{
		Use:   "describe [file.csv|file.xlsx]",
		Short: "Run the pipeline over a file and print the column summary",
		Long: `Import a CSV or XLSX file, apply an optional JSON rule set and print the
materialized column statistics.

Example: statbench describe survey.csv --rules rules.json --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "markdown" {
				return errors.InvalidInput("format must be json or markdown")
			}
			return runDescribe(cmd.Context(), cmd.OutOrStdout(), args[0], rulesPath, format)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to a JSON rule set")
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: json or markdown")

	return cmd
}

func newCheckExprCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-expr [expression]",
		Short: "Check an expression for safety and syntax",
		Long: `Check that an expression passes the definition-time checks: the forbidden
token list and a full parse. Column references are not resolved.

Example: statbench check-expr ":::age::: > mean(:::age:::)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := expr.Validate(args[0], nil); err != nil {
				return fmt.Errorf("%s: %w", errors.GetCode(err), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}

func newRenderExprCmd() *cobra.Command {
	var file string
	var rulesPath string
	var row int
	var policyName string

	cmd := &cobra.Command{
		Use:   "render-expr [expression]",
		Short: "Substitute one row into an expression and evaluate it",
		Long: `Run the pipeline over a file, substitute the chosen row into the expression
and print the substituted text and the evaluated value.

Example: statbench render-expr ":::income::: / :::age:::" --file survey.csv --row 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := parsePolicy(policyName)
			if err != nil {
				return err
			}
			return runRenderExpr(cmd.Context(), cmd.OutOrStdout(), args[0], file, rulesPath, row, policy)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV or XLSX file to evaluate against")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to a JSON rule set")
	cmd.Flags().IntVar(&row, "row", 0, "Zero-based row index in the materialized table")
	cmd.Flags().StringVar(&policyName, "absent", "undefined", "Absent value handling: undefined, null or short_circuit")
	cmd.MarkFlagRequired("file")

	return cmd
}

func parsePolicy(name string) (expr.AbsentPolicy, error) {
	switch name {
	case "undefined":
		return expr.AbsentUndefined, nil
	case "null":
		return expr.AbsentNull, nil
	case "short_circuit":
		return expr.AbsentShortCircuit, nil
	}
	return 0, errors.InvalidInput(fmt.Sprintf("unknown absent policy %q", name))
}

func loadPipelineConfig() (config.PipelineConfig, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return config.PipelineConfig{}, err
	}
	return cfg.Pipeline, nil
}

func loadRules(path string) (table.RuleSet, error) {
	var rules table.RuleSet
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, errors.Wrapf(err, "failed to read rules file")
	}
	if err := json.Unmarshal(data, &rules); err != nil {
		return rules, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("invalid rules file: %w", err))
	}
	return rules, nil
}

func materialize(ctx context.Context, path, rulesPath string) (*pipeline.Result, table.RuleSet, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rules, err := loadRules(rulesPath)
	if err != nil {
		return nil, rules, err
	}
	cfg, err := loadPipelineConfig()
	if err != nil {
		return nil, rules, err
	}

	logger := internal.NewDefaultLogger()
	reader := excel.NewDataReader(excel.DefaultReaderConfig(), logger)
	if !reader.Supports(path) {
		return nil, rules, errors.InvalidInput("unsupported file type: " + path)
	}
	ds, err := reader.ReadDataset(ctx, path)
	if err != nil {
		return nil, rules, err
	}

	res, err := pipeline.NewOrchestrator(cfg, logger).Run(ctx, ds, rules)
	return res, rules, err
}

func runDescribe(ctx context.Context, out io.Writer, path, rulesPath, format string) error {
	res, rules, err := materialize(ctx, path, rulesPath)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Columns   []table.Column `json:"columns"`
			TotalRows int            `json:"total_rows"`
			KeptRows  int            `json:"kept_rows"`
		}{res.Columns, res.TotalRows, len(res.Rows)})
	}

	_, err = io.WriteString(out, report.Markdown(path, res, rules))
	return err
}

func runRenderExpr(ctx context.Context, out io.Writer, source, path, rulesPath string, row int, policy expr.AbsentPolicy) error {
	if err := expr.CheckSafety(source); err != nil {
		return err
	}
	res, _, err := materialize(ctx, path, rulesPath)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(res.Rows) {
		return errors.InvalidInput(fmt.Sprintf("row %d out of range (table has %d rows)", row, len(res.Rows)))
	}

	rendered, ok, err := expr.Render(source, res.Columns, res.Rows[row], policy)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "expression:  (absent input)")
		fmt.Fprintln(out, "value:       undefined")
		return nil
	}

	prog, err := expr.Compile(source, res.Columns)
	if err != nil {
		return err
	}
	value, err := prog.EvalCell(res.Rows[row], policy)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "expression:  %s\n", rendered)
	fmt.Fprintf(out, "value:       %s\n", value)
	return nil
}

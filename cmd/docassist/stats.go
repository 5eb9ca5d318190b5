package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"docassist/pkg/config"
	"docassist/pkg/metrics"
	"docassist/pkg/persistence"
)

const statsQueryTimeout = 10 * time.Second

type statsOptions struct {
	limit      int
	prometheus string
	jsonOutput bool
}

// statsReport is the --json shape of the stats command.
type statsReport struct {
	History     *persistence.GenerationStats `json:"history"`
	Recent      []*persistence.Generation    `json:"recent"`
	Usage       []metrics.ModelUsage         `json:"usage,omitempty"`
	Submissions map[string]int64             `json:"submissions,omitempty"`
	MetricsErr  string                       `json:"metrics_error,omitempty"`
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	opts := &statsOptions{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation history and token usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			return runStats(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Number of recent generations to list")
	cmd.Flags().StringVar(&opts.prometheus, "prometheus", "", "Prometheus URL (overrides metrics.prometheus_url)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print JSON")
	return cmd
}

func runStats(ctx context.Context, cfg config.Config, opts *statsOptions, out io.Writer) error {
	if err := persistence.Initialize(cfg.DatabasePath()); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer persistence.Close() //nolint:errcheck
	ops := persistence.Ops()

	report := &statsReport{}
	var err error
	if report.History, err = ops.GetGenerationStats(ctx); err != nil {
		return err //nolint:wrapcheck
	}
	if report.Recent, err = ops.ListGenerations(ctx, persistence.GenerationFilter{Limit: opts.limit}); err != nil {
		return err //nolint:wrapcheck
	}

	promURL := opts.prometheus
	if promURL == "" && cfg.Metrics.Enabled {
		promURL = cfg.Metrics.PrometheusURL
	}
	if promURL != "" {
		if err := queryUsage(ctx, promURL, report); err != nil {
			report.MetricsErr = err.Error()
		}
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report) //nolint:wrapcheck
	}
	printReport(out, report)
	return nil
}

func queryUsage(ctx context.Context, url string, report *statsReport) error {
	q, err := metrics.NewQueryService(url)
	if err != nil {
		return err //nolint:wrapcheck
	}
	ctx, cancel := context.WithTimeout(ctx, statsQueryTimeout)
	defer cancel()

	if report.Usage, err = q.GetUsageByModel(ctx); err != nil {
		return err //nolint:wrapcheck
	}
	subs, err := q.GetSubmissionStats(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}
	report.Submissions = subs.ByCategory
	return nil
}

var headingStyle = lipgloss.NewStyle().Bold(true)

func newTable(headers ...string) *table.Table {
	return table.New().Border(lipgloss.NormalBorder()).Headers(headers...)
}

func printReport(out io.Writer, r *statsReport) {
	h := r.History
	fmt.Fprintln(out, headingStyle.Render("Generations"))
	fmt.Fprintf(out, "Total: %d  Succeeded: %d  Failed: %d  Tokens: %d  Cost: $%.4f\n",
		h.Total, h.Succeeded, h.Failed, h.Tokens, h.CostUSD)

	if len(r.Recent) > 0 {
		t := newTable("Created", "Source", "Title", "Model", "Status", "Tokens")
		for _, g := range r.Recent {
			status := g.Status
			if g.ErrorCategory != "" {
				status += " (" + g.ErrorCategory + ")"
			}
			t.Row(
				g.CreatedAt.Local().Format("2006-01-02 15:04"),
				string(g.Source),
				g.Title,
				g.Model,
				status,
				strconv.Itoa(g.PromptTokens+g.CompletionTokens),
			)
		}
		fmt.Fprintln(out, t.Render())
	}

	if r.MetricsErr != "" {
		fmt.Fprintf(out, "\nPrometheus unavailable: %s\n", r.MetricsErr)
		return
	}
	if len(r.Usage) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, headingStyle.Render("Token usage by model"))
		t := newTable("Model", "Requests", "Prompt", "Completion", "Total", "Cost")
		for _, u := range r.Usage {
			t.Row(
				u.Model,
				strconv.FormatInt(u.Requests, 10),
				strconv.FormatInt(u.PromptTokens, 10),
				strconv.FormatInt(u.CompletionTokens, 10),
				strconv.FormatInt(u.TotalTokens, 10),
				fmt.Sprintf("$%.4f", u.TotalCost),
			)
		}
		fmt.Fprintln(out, t.Render())
	}
	if len(r.Submissions) > 0 {
		categories := make([]string, 0, len(r.Submissions))
		for c := range r.Submissions {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		fmt.Fprintln(out)
		fmt.Fprintln(out, headingStyle.Render("Form submissions"))
		t := newTable("Outcome", "Count")
		for _, c := range categories {
			t.Row(c, strconv.FormatInt(r.Submissions[c], 10))
		}
		fmt.Fprintln(out, t.Render())
	}
}

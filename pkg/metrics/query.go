package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ModelUsage is aggregated usage for one model.
type ModelUsage struct {
	Model            string  `json:"model"`
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	TotalCost        float64 `json:"total_cost_usd"`
}

// SubmissionStats counts submissions by outcome.
type SubmissionStats struct {
	ByCategory map[string]int64 `json:"by_category"`
}

// QueryService reads aggregated metrics from a Prometheus server that
// scrapes /metrics.
type QueryService struct {
	queryAPI v1.API
	now      func() time.Time
}

func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client), now: time.Now}, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", query, err)
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, nil
	}
	return vector, nil
}

// byModel runs a "sum by (model)" query and feeds each sample to set.
func (q *QueryService) byModel(ctx context.Context, query string, usage map[string]*ModelUsage, set func(*ModelUsage, model.SampleValue)) error {
	vector, err := q.vector(ctx, query)
	if err != nil {
		return err
	}
	for _, sample := range vector {
		name := string(sample.Metric["model"])
		u, ok := usage[name]
		if !ok {
			u = &ModelUsage{Model: name}
			usage[name] = u
		}
		set(u, sample.Value)
	}
	return nil
}

// GetUsageByModel returns token, request and cost totals per model, sorted by model name.
func (q *QueryService) GetUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	usage := make(map[string]*ModelUsage)

	if err := q.byModel(ctx, `sum by (model) (llm_tokens_total{type="prompt"})`, usage,
		func(u *ModelUsage, v model.SampleValue) { u.PromptTokens = int64(v) }); err != nil {
		return nil, err
	}
	if err := q.byModel(ctx, `sum by (model) (llm_tokens_total{type="completion"})`, usage,
		func(u *ModelUsage, v model.SampleValue) { u.CompletionTokens = int64(v) }); err != nil {
		return nil, err
	}
	if err := q.byModel(ctx, `sum by (model) (llm_requests_total)`, usage,
		func(u *ModelUsage, v model.SampleValue) { u.Requests = int64(v) }); err != nil {
		return nil, err
	}
	if err := q.byModel(ctx, `sum by (model) (llm_costs_total)`, usage,
		func(u *ModelUsage, v model.SampleValue) { u.TotalCost = float64(v) }); err != nil {
		return nil, err
	}

	out := make([]ModelUsage, 0, len(usage))
	for _, u := range usage {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

// GetSubmissionStats returns submission counts keyed by category.
func (q *QueryService) GetSubmissionStats(ctx context.Context) (*SubmissionStats, error) {
	vector, err := q.vector(ctx, `sum by (category) (form_submissions_total)`)
	if err != nil {
		return nil, err
	}
	stats := &SubmissionStats{ByCategory: make(map[string]int64)}
	for _, sample := range vector {
		stats.ByCategory[string(sample.Metric["category"])] = int64(sample.Value)
	}
	return stats, nil
}

// Package pipeline turns one question about one table into generated SQL and
// an approximate result.
//
// Backends only expose a select-all-with-limit API, so the generated SQL is
// never executed. Its first LIMIT count is the only part re-applied to the fetch.
// WHERE, AND and ILIKE conditions in the generated text are shown but not
// applied to the returned rows.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/JonMunkholm/olive/internal/errors"
	"github.com/JonMunkholm/olive/internal/llm"
	"github.com/JonMunkholm/olive/internal/observability"
	"github.com/JonMunkholm/olive/internal/rowstore"
	"github.com/JonMunkholm/olive/internal/schema"
	"github.com/JonMunkholm/olive/internal/sqlguard"
)

// State is a step of one question run.
type State string

const (
	StateIdle               State = "idle"
	StateSampling           State = "sampling"
	StatePromptBuilt        State = "prompt_built"
	StateAwaitingCompletion State = "awaiting_completion"
	StateValidating         State = "validating"
	StateRejected           State = "rejected"
	StateExecuting          State = "executing"
	StateRendered           State = "rendered"
)

// Opener returns a store for a target. rowstore.Open satisfies it once bound
// to options.
type Opener func(rowstore.Target) (rowstore.Store, error)

// Options configure a Pipeline.
type Options struct {
	Provider          llm.Provider
	Open              Opener
	SampleRows        int
	MaxTokens         int
	CompletionTimeout time.Duration
	FetchTimeout      time.Duration
	// MaxRows caps full-table fetches when positive.
	MaxRows int
	Logger  *slog.Logger
}

// Pipeline runs questions. It holds no per-question state and is safe for
// concurrent use.
type Pipeline struct {
	provider          llm.Provider
	open              Opener
	sampler           schema.Sampler
	maxTokens         int
	completionTimeout time.Duration
	fetchTimeout      time.Duration
	maxRows           int
	logger            *slog.Logger
}

func New(opts Options) *Pipeline {
	open := opts.Open
	if open == nil {
		open = func(t rowstore.Target) (rowstore.Store, error) {
			return rowstore.Open(t, rowstore.Options{Timeout: opts.FetchTimeout})
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	return &Pipeline{
		provider:          opts.Provider,
		open:              open,
		sampler:           schema.Sampler{Size: opts.SampleRows},
		maxTokens:         maxTokens,
		completionTimeout: opts.CompletionTimeout,
		fetchTimeout:      opts.FetchTimeout,
		maxRows:           opts.MaxRows,
		logger:            logger,
	}
}

// Provider returns the completion provider, which may be nil.
func (p *Pipeline) Provider() llm.Provider { return p.provider }

// GenerateSQL samples the table, asks the model for a SELECT and validates it.
// The returned query is only meaningful when err is nil.
func (p *Pipeline) GenerateSQL(ctx context.Context, target rowstore.Target, question string) (sqlguard.GeneratedQuery, error) {
	r := p.newRun(target)
	q, err := p.generate(ctx, r, target, question)
	if err != nil {
		r.fail(err)
		return q, err
	}
	r.finish(StateValidating, "")
	return q, nil
}

func (p *Pipeline) generate(ctx context.Context, r *run, target rowstore.Target, question string) (sqlguard.GeneratedQuery, error) {
	if err := target.Validate(); err != nil {
		return sqlguard.GeneratedQuery{}, apperrors.Wrap(apperrors.InvalidTarget, err.Error(), err)
	}
	if p.provider == nil {
		return sqlguard.GeneratedQuery{}, apperrors.New(apperrors.UpstreamCompletion,
			"LLM not configured. Set LLM_API_KEY environment variable.")
	}

	store, err := p.open(target)
	if err != nil {
		return sqlguard.GeneratedQuery{}, apperrors.Wrap(apperrors.InvalidTarget, err.Error(), err)
	}
	defer store.Close()

	r.to(StateSampling)
	sample, err := timed(r, "sample", func() (schema.Sample, error) {
		ctx, cancel := withTimeout(ctx, p.fetchTimeout)
		defer cancel()
		return p.sampler.Sample(ctx, store, target.Table)
	})
	if err != nil {
		return sqlguard.GeneratedQuery{}, err
	}

	prompt := llm.BuildPrompt(sample, question, target.Table)
	r.to(StatePromptBuilt, slog.String("column_source", string(sample.Source)), slog.Int("columns", len(sample.Columns)))

	r.to(StateAwaitingCompletion, slog.String("provider", p.provider.Name()))
	completion, err := timed(r, "completion", func() (llm.Completion, error) {
		ctx, cancel := withTimeout(ctx, p.completionTimeout)
		defer cancel()
		return p.provider.Complete(ctx, llm.CompletionRequest{
			Prompt:      prompt,
			MaxTokens:   p.maxTokens,
			Temperature: llm.DefaultTemperature,
		})
	})
	if err != nil {
		msg := fmt.Sprintf("%s error: %s", llm.DisplayName(p.provider), err.Error())
		return sqlguard.GeneratedQuery{}, apperrors.Wrap(apperrors.UpstreamCompletion, msg, err)
	}
	observability.ObserveCompletionTokens(p.provider.Name(), completion.Tokens)

	r.to(StateValidating)
	return sqlguard.Validate(completion.Text)
}

// Mode selects how an answer is presented.
type Mode string

const (
	RenderTable Mode = "table"
	RenderChart Mode = "chart"
)

// FetchPlan is the fetch that approximates a generated query.
type FetchPlan struct {
	Mode Mode `json:"mode"`
	// Limit is the row cap; nil fetches the whole table.
	Limit *int `json:"limit,omitempty"`
}

// Plan decides the fetch for a validated query. Questions mentioning "chart"
// or "top" anywhere, in any case, fetch the full table for a chart and ignore
// the SQL. Other questions fetch the table capped by the query's LIMIT.
func Plan(question string, q sqlguard.GeneratedQuery) FetchPlan {
	if WantsChart(question) {
		return FetchPlan{Mode: RenderChart}
	}
	plan := FetchPlan{Mode: RenderTable}
	if q.HasLimit() {
		limit := *q.ExtractedLimit
		plan.Limit = &limit
	}
	return plan
}

// WantsChart is a plain substring test, so "stop" also matches "top".
func WantsChart(question string) bool {
	lower := strings.ToLower(question)
	return strings.Contains(lower, "chart") || strings.Contains(lower, "top")
}

// Answer is the rendered outcome of a question.
type Answer struct {
	SQL     string         `json:"sql"`
	Mode    Mode           `json:"mode"`
	Limit   *int           `json:"limit,omitempty"`
	Columns []string       `json:"columns"`
	Rows    []rowstore.Row `json:"rows"`
	Chart   *Chart         `json:"chart,omitempty"`
}

// Ask runs the whole pipeline including the approximating fetch.
func (p *Pipeline) Ask(ctx context.Context, target rowstore.Target, question string) (Answer, error) {
	r := p.newRun(target)
	q, err := p.generate(ctx, r, target, question)
	if err != nil {
		r.fail(err)
		return Answer{}, err
	}

	plan := Plan(question, q)
	r.to(StateExecuting, slog.String("mode", string(plan.Mode)), slog.Bool("limited", plan.Limit != nil))

	rows, err := timed(r, "fetch", func() ([]rowstore.Row, error) {
		return p.fetch(ctx, target, plan.Limit)
	})
	if err != nil {
		r.fail(err)
		return Answer{}, err
	}

	answer := Answer{
		SQL:     q.RawText,
		Mode:    plan.Mode,
		Limit:   plan.Limit,
		Columns: columnsOf(rows),
		Rows:    rows,
	}
	if plan.Mode == RenderChart {
		answer.Chart = BuildChart(rows)
	}
	r.finish(StateRendered, "", slog.Int("rows", len(rows)))
	return answer, nil
}

// Rows fetches the table for browsing. A nil limit fetches every row.
func (p *Pipeline) Rows(ctx context.Context, target rowstore.Target, limit *int) ([]rowstore.Row, error) {
	if err := target.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidTarget, err.Error(), err)
	}
	return p.fetch(ctx, target, limit)
}

func (p *Pipeline) fetch(ctx context.Context, target rowstore.Target, limit *int) ([]rowstore.Row, error) {
	n := p.maxRows
	if limit != nil {
		if *limit == 0 {
			return []rowstore.Row{}, nil
		}
		if n <= 0 || *limit < n {
			n = *limit
		}
	}

	store, err := p.open(target)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidTarget, err.Error(), err)
	}
	defer store.Close()

	ctx, cancel := withTimeout(ctx, p.fetchTimeout)
	defer cancel()

	rows, err := store.Select(ctx, target.Table, n)
	if err != nil {
		msg := fmt.Sprintf("Error fetching data from table %q: %s", target.Table, err.Error())
		return nil, apperrors.Wrap(apperrors.FetchError, msg, err)
	}
	if rows == nil {
		rows = []rowstore.Row{}
	}
	observability.ObserveFetchedRows(len(rows))
	return rows, nil
}

func columnsOf(rows []rowstore.Row) []string {
	if len(rows) == 0 {
		return []string{}
	}
	return rows[0].Keys()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

package pipeline

import (
	"log/slog"
	"time"

	apperrors "github.com/JonMunkholm/olive/internal/errors"
	"github.com/JonMunkholm/olive/internal/observability"
	"github.com/JonMunkholm/olive/internal/rowstore"
	"github.com/google/uuid"
)

// run tracks the state of one question for logging and metrics.
type run struct {
	state  State
	logger *slog.Logger
}

func (p *Pipeline) newRun(target rowstore.Target) *run {
	return &run{
		state: StateIdle,
		logger: p.logger.With(
			slog.String("run_id", uuid.NewString()),
			slog.String("table", target.Table),
			slog.String("endpoint", observability.MaskURL(target.Endpoint)),
		),
	}
}

func (r *run) to(next State, attrs ...any) {
	args := append([]any{slog.String("from", string(r.state)), slog.String("to", string(next))}, attrs...)
	r.logger.Debug("pipeline transition", args...)
	r.state = next
}

// fail moves the run to Rejected. Every failure is terminal.
func (r *run) fail(err error) {
	kind := string(apperrors.KindOf(err))
	r.to(StateRejected, slog.String("kind", kind))
	r.logger.Warn("question rejected", slog.String("kind", kind), slog.String("error", observability.Mask(err.Error())))
	observability.ObserveQuestion(string(StateRejected), kind)
}

func (r *run) finish(state State, kind string, attrs ...any) {
	if r.state != state {
		r.to(state, attrs...)
	}
	observability.ObserveQuestion(string(state), kind)
}

// timed runs fn and records its latency under stage.
func timed[T any](r *run, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	observability.ObserveStage(stage, time.Since(start))
	return v, err
}

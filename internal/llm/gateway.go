package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Gateway invokes a Completer with bounded retries. Every attempt is
// logged, recorded, and fed to the latency stats.
type Gateway struct {
	completer Completer
	stats     *LLMStats
	recorder  CallRecorder
	log       *slog.Logger
}

// NewGateway wires a backend. stats and recorder may be nil.
func NewGateway(c Completer, stats *LLMStats, recorder CallRecorder, log *slog.Logger) *Gateway {
	return &Gateway{completer: c, stats: stats, recorder: recorder, log: log}
}

// Invoke runs up to MaxAttempts completions. Non-retryable errors are
// returned at once; exhaustion wraps ErrExhausted and the last error.
func (g *Gateway) Invoke(ctx context.Context, system, user, callPoint string, p Params) (string, error) {
	req := Request{System: system, User: user, Params: p}
	log := g.log.With("call_point", callPoint, "model", p.Model)

	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := Sleep(ctx, Backoff(BackoffBase, attempt-1)); err != nil {
				return "", fmt.Errorf("%s: %w", callPoint, err)
			}
		}

		start := time.Now()
		text, err := g.completer.Complete(ctx, req)
		latency := time.Since(start).Milliseconds()

		g.observe(ctx, callPoint, p.Model, attempt, latency, user, text, err)

		if err == nil {
			log.Info("completion", "attempt", attempt+1, "latency_ms", latency, "success", true)
			return text, nil
		}
		log.Warn("completion", "attempt", attempt+1, "latency_ms", latency, "success", false, "error", err)

		lastErr = err
		if !IsRetryable(err) {
			return "", fmt.Errorf("%s: %w", callPoint, err)
		}
	}
	return "", fmt.Errorf("%s: %w after %d attempts: %w", callPoint, ErrExhausted, MaxAttempts, lastErr)
}

// Stats returns the gateway's latency window, or nil.
func (g *Gateway) Stats() *LLMStats {
	return g.stats
}

func (g *Gateway) observe(ctx context.Context, callPoint, model string, attempt int, latency int64, prompt, response string, callErr error) {
	if g.stats != nil {
		g.stats.Record(callPoint, latency, callErr == nil)
	}
	if g.recorder == nil {
		return
	}
	rec := CallRecord{
		CallPoint:      callPoint,
		Model:          model,
		Attempt:        attempt + 1,
		LatencyMs:      latency,
		Success:        callErr == nil,
		PromptTokens:   EstimateTokens(prompt),
		ResponseTokens: EstimateTokens(response),
		CreatedAt:      time.Now().UTC(),
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	if err := g.recorder.RecordCall(ctx, rec); err != nil {
		g.log.Warn("record call failed", "call_point", callPoint, "error", err)
	}
}

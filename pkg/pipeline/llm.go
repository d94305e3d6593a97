package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/classify/pkg/config"
	"github.com/codeready-toolchain/classify/pkg/llmgw"
	"github.com/codeready-toolchain/classify/pkg/storage"
)

// defaultTemperature keeps classification calls near-deterministic; these
// are labeling tasks, not creative generation.
const defaultTemperature = 0.1

// chat sends one system/user turn to provider using pc's model and token
// budget, bounded by cfg's request timeout. On success it records the
// call's token usage and estimated cost onto executionID's telemetry row
// (§4.7.5, §3 PipelineExecution) through execs; execs may be nil (e.g. in
// tests that don't exercise telemetry), in which case recording is skipped.
func chat(ctx context.Context, provider llmgw.Provider, pc *config.LLMProviderConfig, cfg *config.Config, executionID string, execs *storage.ExecutionRepo, system, user string) (llmgw.ChatResponse, error) {
	timeout := cfg.Thresholds.RequestTimeout
	if pc.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(pc.RequestTimeoutSeconds) * time.Second
	}

	req := llmgw.ChatRequest{
		Model: pc.Model,
		Messages: []llmgw.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   pc.MaxTokens,
		Temperature: defaultTemperature,
		Timeout:     timeout,
	}
	resp, err := provider.Chat(ctx, req)
	if err != nil {
		return resp, err
	}
	recordUsage(ctx, execs, executionID, string(pc.Type), pc.Model, resp)
	return resp, nil
}

// recordUsage persists one call's token accounting and estimated cost onto
// the execution row. A failure here never fails the calling stage — the
// classification the call produced is still good even if telemetry can't
// be written — so it only logs.
func recordUsage(ctx context.Context, execs *storage.ExecutionRepo, executionID, provider, model string, resp llmgw.ChatResponse) {
	if execs == nil {
		return
	}
	cost := llmgw.EstimateCost(provider, model, resp.TokensIn, resp.TokensOut)
	if err := execs.RecordUsage(ctx, executionID, resp.TokensIn, resp.TokensOut, cost); err != nil {
		slog.Warn("failed to record LLM usage telemetry", "execution_id", executionID, "error", err)
	}
}

// retryConfigOf adapts config.RetryConfig to llmgw.RetryConfig.
func retryConfigOf(cfg *config.Config) llmgw.RetryConfig {
	return llmgw.RetryConfig{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.RetryDelay}
}

// chunk splits items into groups of at most size (size <= 0 means one
// chunk).
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || size >= len(items) {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[0:size:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

// Package augment asks an LLM to critique the baseline audit and merges the
// validated answer over it.
package augment

import (
	"context"
	"log/slog"
	"time"

	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/llm"
	"github.com/fyxxlabs/sitescan/metrics"
	"github.com/fyxxlabs/sitescan/models"
)

// Completer is the LLM boundary. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, params llm.Params, system, user string) (*llm.Completion, error)
}

// Augmenter performs the single AI attempt of a scan.
type Augmenter struct {
	client    Completer
	params    llm.Params
	timeout   time.Duration
	maxTokens int
}

// New returns nil when cfg has no API key. A nil Augmenter reports the AI
// phase as disabled.
func New(client Completer, cfg config.AIConfig) *Augmenter {
	if client == nil || !cfg.Enabled() {
		return nil
	}
	return &Augmenter{
		client:    client,
		params:    llm.Params{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL},
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxPromptTokens,
	}
}

// Outcome is what the AI phase produced.
type Outcome struct {
	// Result is the merged result on success, the untouched baseline otherwise.
	Result      models.BaselineResult
	Diagnostics models.AIDiagnostics
	Notes       Notes
}

// OK reports whether the AI output passed validation and was merged.
func (o Outcome) OK() bool { return o.Diagnostics.Status == models.AIStatusOK }

// Augment makes exactly one completion call. Any failure leaves the
// baseline in place and reports status failed with an error code.
func (a *Augmenter) Augment(ctx context.Context, in Input) Outcome {
	if a == nil {
		return record(Outcome{
			Result:      in.Baseline,
			Diagnostics: models.AIDiagnostics{Enabled: false, Status: models.AIStatusDisabled, ErrorCode: models.ErrCodeAIDisabled},
		})
	}

	out := Outcome{
		Result:      in.Baseline,
		Diagnostics: models.AIDiagnostics{Enabled: true, Model: a.params.Model},
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	system, user, err := BuildPrompt(in, a.maxTokens)
	if err != nil {
		slog.Error("AI prompt not built", "url", in.Request.URL, "error", err)
		return record(failed(out, models.ErrCodeInternal))
	}
	completion, err := a.client.Complete(ctx, a.params, system, user)
	if err != nil {
		slog.Warn("AI summary failed", "url", in.Request.URL, "error", err)
		return record(failed(out, models.ErrorCode(err, models.ErrCodeLLMFailure)))
	}
	out.Diagnostics.Usage = completion.Usage
	if completion.Model != "" {
		out.Diagnostics.Model = completion.Model
	}

	patch, err := ParsePatch(completion.Content)
	if err != nil {
		slog.Warn("AI response rejected", "url", in.Request.URL, "error", err)
		return record(failed(out, models.ErrorCode(err, models.ErrCodeAISchema)))
	}

	out.Result = Merge(in.Baseline, patch)
	out.Notes = patch.Notes
	out.Diagnostics.Status = models.AIStatusOK
	return record(out)
}

func failed(out Outcome, code string) Outcome {
	out.Diagnostics.Status = models.AIStatusFailed
	out.Diagnostics.ErrorCode = code
	return out
}

func record(out Outcome) Outcome {
	metrics.AIResultsTotal.WithLabelValues(out.Diagnostics.Status, out.Diagnostics.ErrorCode).Inc()
	return out
}

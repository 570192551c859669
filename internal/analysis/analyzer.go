// Package analysis turns a free-text casting brief into hard filters and
// weighted soft tags.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/Casting/internal/matching"
	"github.com/MikeSquared-Agency/Casting/internal/metrics"
)

const (
	SourceGemini   = "gemini"
	SourceKeywords = "keywords"
)

var (
	ErrEmptyPrompt   = errors.New("prompt is required")
	ErrEmptyResponse = errors.New("model returned an empty response")
	ErrUnparseable   = errors.New("model response is not valid analysis JSON")
)

type Result struct {
	Analysis matching.Analysis `json:"analysis"`
	Raw      string            `json:"raw,omitempty"`
	Source   string            `json:"source"`
}

type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (*Result, error)
}

// FallbackAnalyzer asks Primary first and answers from Secondary when it
// fails. An empty prompt is never retried.
type FallbackAnalyzer struct {
	Primary   Analyzer
	Secondary Analyzer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func (f *FallbackAnalyzer) Analyze(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if f.Primary != nil {
		res, err := f.Primary.Analyze(ctx, prompt)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.Metrics.IncAnalyzerFallback()
		if f.Logger != nil {
			f.Logger.Warn("analyzer failed, using fallback", "error", err)
		}
	}
	return f.Secondary.Analyze(ctx, prompt)
}

// Package generator implements the C4 capability surface: a single
// schema-constrained generate operation with a provider-agnostic
// retry-with-validator-feedback loop, and the four named functions built
// atop it (ProcessQuery, GenerateTimeline, DetectMisinformation,
// GenerateFollowUpQuestions). Provider backends (anthropic, openai, ollama)
// implement the narrow Provider capability; everything else here is
// provider-agnostic, matching the teacher's Generator interface shape
// extended with schema awareness.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/ratelimit"
)

// maxRetries bounds the retry-with-validator-feedback loop (spec.md §4.4:
// "retry up to 2 times").
const maxRetries = 2

// Provider is the narrow capability every generator backend implements:
// complete a single prompt against an LLM and return raw text.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Engine binds a Provider to a shared rate limiter and runs the
// retry/validator loop on its behalf.
type Engine struct {
	provider Provider
	limiter  ratelimit.Limiter
}

func New(provider Provider, limiter ratelimit.Limiter) *Engine {
	return &Engine{provider: provider, limiter: limiter}
}

// Generate renders prompt, calls the provider, and parses the raw reply
// with parse. On a parse/validation error or a transient provider error, it
// retries up to maxRetries times, appending parse's error message to the
// prompt each time so the model can self-correct. The whole attempt is
// bounded by ctx's deadline; expiry surfaces as ErrDeadlineExceeded and a
// persistent validation failure surfaces as ErrSchemaViolation.
func Generate[T any](ctx context.Context, e *Engine, prompt string, parse func(raw string) (T, error)) (T, error) {
	var zero T
	attemptPrompt := prompt
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %v", chronoerr.ErrDeadlineExceeded, err)
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		raw, err := e.provider.Complete(ctx, attemptPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return zero, fmt.Errorf("%w: %v", chronoerr.ErrDeadlineExceeded, ctx.Err())
			}
			lastErr = err
			attemptPrompt = appendFeedback(prompt, err)
			continue
		}

		value, err := parse(raw)
		if err == nil {
			return value, nil
		}

		lastErr = err
		attemptPrompt = appendFeedback(prompt, err)
	}

	return zero, fmt.Errorf("%w: %v", chronoerr.ErrSchemaViolation, lastErr)
}

func appendFeedback(prompt string, err error) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nYour previous response was invalid: ")
	b.WriteString(err.Error())
	b.WriteString("\nReply again with a single corrected JSON object, and nothing else.")
	return b.String()
}

// WithDeadline derives a context bounded by d from ctx, for callers that
// enforce limits.request_deadline_ms at the pipeline boundary.
func WithDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// Package generator runs one bounded completion call per prompt.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ambedkargpt/internal/domain"
)

// AnswerGenerator calls the generation collaborator under a timeout.
// It never retries and returns the completion verbatim.
type AnswerGenerator struct {
	backend domain.Generator
	opts    domain.GenerateOptions
	timeout time.Duration
}

func New(backend domain.Generator, opts domain.GenerateOptions, timeout time.Duration) *AnswerGenerator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AnswerGenerator{backend: backend, opts: opts, timeout: timeout}
}

// Generate fails with domain.ErrGenerationTimeout when the deadline passes
// and with domain.ErrGenerationService for any other backend failure.
func (g *AnswerGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.backend.Complete(callCtx, prompt, g.opts)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s: %w", domain.ErrGenerationTimeout, g.timeout, err)
	}
	return "", fmt.Errorf("%w: %w", domain.ErrGenerationService, err)
}

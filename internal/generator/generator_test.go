package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"ambedkargpt/internal/domain"
)

type fakeBackend struct {
	reply   string
	err     error
	block   bool
	gotOpts domain.GenerateOptions
	prompts []string
}

func (f *fakeBackend) Complete(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.gotOpts = opts
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func TestGenerate_Verbatim(t *testing.T) {
	reply := "  To destroy the belief in the shastras.\n"
	backend := &fakeBackend{reply: reply}
	opts := domain.GenerateOptions{Temperature: 0.7, Stop: []string{"Question:"}}
	g := New(backend, opts, time.Second)

	got, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != reply {
		t.Errorf("output must be verbatim, got %q", got)
	}
	if backend.gotOpts.Temperature != 0.7 || len(backend.gotOpts.Stop) != 1 {
		t.Errorf("options not forwarded: %+v", backend.gotOpts)
	}
	if len(backend.prompts) != 1 {
		t.Errorf("expected a single call, got %d", len(backend.prompts))
	}
}

func TestGenerate_Timeout(t *testing.T) {
	backend := &fakeBackend{block: true}
	g := New(backend, domain.GenerateOptions{}, 20*time.Millisecond)

	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Fatalf("expected ErrGenerationTimeout, got %v", err)
	}
	if len(backend.prompts) != 1 {
		t.Errorf("generator must not retry, got %d calls", len(backend.prompts))
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	g := New(&fakeBackend{err: errors.New("model not found")}, domain.GenerateOptions{}, time.Second)
	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrGenerationService) {
		t.Fatalf("expected ErrGenerationService, got %v", err)
	}
	if errors.Is(err, domain.ErrGenerationTimeout) {
		t.Error("service error must not be reported as timeout")
	}
}

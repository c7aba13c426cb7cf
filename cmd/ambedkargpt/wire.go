package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ambedkargpt/internal/chunker"
	"ambedkargpt/internal/config"
	"ambedkargpt/internal/corpus"
	"ambedkargpt/internal/domain"
	"ambedkargpt/internal/embedding/openai"
	"ambedkargpt/internal/embedding/tfidf"
	"ambedkargpt/internal/generator"
	llmopenai "ambedkargpt/internal/llm/openai"
	"ambedkargpt/internal/prompt"
	"ambedkargpt/internal/service"
	"ambedkargpt/internal/summarizer"
	"ambedkargpt/internal/vectorstore"
)

// app is the assembled pipeline plus whatever must be released on exit.
type app struct {
	pipeline *service.Pipeline
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func newApp(cfg *config.AppConfig, log *slog.Logger) (*app, error) {
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	newBackend, closeBackends, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	a := &app{closers: []func() error{closeBackends}}

	gen, err := newGenerator(cfg.Generator)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	sum, err := newSummarizer(cfg.Summarizer)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.pipeline = service.NewPipeline(service.Components{
		Source:     corpus.NewFile(cfg.Corpus.Path),
		Chunker:    chunker.NewCharChunker(cfg.Chunker.Size, cfg.Chunker.Overlap, cfg.Chunker.Separator),
		Embedder:   emb,
		NewBackend: newBackend,
		Prompt:     prompt.NewBuilder(cfg.Corpus.Subject, cfg.Prompt.MaxContextChars),
		Generator:  gen,
		Summarizer: sum,
	}, service.Options{
		K:                cfg.Retrieval.K,
		MinScore:         cfg.Retrieval.MinScore,
		SummarySentences: cfg.Summarizer.MaxSentences,
		Logger:           log,
	})
	return a, nil
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrInvalidConfig)
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.OpenAI.BatchSize,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

func newGenerator(cfg config.GeneratorConfig) (*generator.AnswerGenerator, error) {
	switch cfg.Type {
	case "openai", "":
		client, err := llmopenai.New(llmopenai.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("generator: %w", err)
		}
		opts := domain.GenerateOptions{
			Temperature: float32(cfg.Temperature),
			Stop:        cfg.Stop,
			MaxTokens:   cfg.MaxTokens,
		}
		return generator.New(client, opts, time.Duration(cfg.TimeoutSecs)*time.Second), nil
	default:
		return nil, fmt.Errorf("%w: unknown generator %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

func newSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown summarizer %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

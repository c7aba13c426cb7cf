package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"ambedkargpt/internal/corpus"
	"ambedkargpt/internal/domain"
	"ambedkargpt/internal/index"
	"ambedkargpt/internal/logging"
	"ambedkargpt/internal/prompt"
	"ambedkargpt/internal/retriever"
)

// State is the lifecycle marker of a Pipeline.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Outcomes reported by Initialize.
const (
	InitSuccess            = "success"
	InitAlreadyInitialized = "already_initialized"
	InitError              = "error"
)

// InitResult describes the outcome of Initialize or Reinitialize.
type InitResult struct {
	Status      string `json:"status"`
	Detail      string `json:"detail"`
	ChunksCount int    `json:"chunks_count"`
	Summary     string `json:"summary,omitempty"`
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	State           State  `json:"state"`
	CorpusAvailable bool   `json:"corpus_available"`
	IndexAvailable  bool   `json:"index_available"`
	ChunksCount     int    `json:"chunks_count"`
	LastError       string `json:"last_error,omitempty"`
	Err             error  `json:"-"`
}

// AnswerGenerator produces an answer for a fully built prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Components are the collaborators a Pipeline drives.
type Components struct {
	Source     corpus.Source
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	NewBackend func() domain.VectorIndex
	Prompt     *prompt.Builder
	Generator  AnswerGenerator
	Summarizer domain.Summarizer
}

// Options tune retrieval and the corpus summary.
type Options struct {
	K                int
	MinScore         float64
	SummarySentences int
	Logger           *slog.Logger
}

// snapshot is everything an Ask needs, published once per successful build.
// Asks hold mu for reading; retiring takes it for writing, so a backend is
// released only after the last Ask using it returns.
type snapshot struct {
	retriever *retriever.Retriever
	backend   domain.VectorIndex
	chunks    int
	summary   string

	mu      sync.RWMutex
	retired bool
}

// Pipeline owns the corpus index lifecycle and answers questions against it.
// Builds are serialized; asks run in parallel against the published snapshot.
type Pipeline struct {
	c    Components
	opts Options
	log  *slog.Logger

	buildMu sync.Mutex

	mu      sync.Mutex
	state   State
	lastErr error

	ready atomic.Pointer[snapshot]
}

func NewPipeline(c Components, opts Options) *Pipeline {
	if opts.K <= 0 {
		opts.K = 3
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = 3
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{c: c, opts: opts, log: log}
}

// Initialize builds the index unless the pipeline is already Ready.
// Concurrent callers wait for the running build and then see its outcome.
func (p *Pipeline) Initialize(ctx context.Context) (InitResult, error) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	if snap := p.snapshotIfReady(); snap != nil {
		return InitResult{
			Status:      InitAlreadyInitialized,
			Detail:      "pipeline already initialized",
			ChunksCount: snap.chunks,
			Summary:     snap.summary,
		}, nil
	}
	return p.build(ctx)
}

// Reinitialize rebuilds the index from the corpus regardless of state.
// Asks already running finish against the previous index, and Reinitialize
// returns once they have.
func (p *Pipeline) Reinitialize(ctx context.Context) (InitResult, error) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()
	return p.build(ctx)
}

func (p *Pipeline) build(ctx context.Context) (InitResult, error) {
	p.setState(Initializing, nil)
	loc := p.c.Source.Location()
	p.log.Info("initializing pipeline", "corpus", loc)

	snap, err := p.load(ctx)
	if err != nil {
		p.retire(p.ready.Swap(nil))
		p.setState(Failed, err)
		p.log.Error("initialization failed", "corpus", loc, "err", err)
		return InitResult{Status: InitError, Detail: err.Error()}, err
	}

	previous := p.ready.Swap(snap)
	p.setState(Ready, nil)
	p.log.Info("pipeline ready", "chunks", snap.chunks)
	p.retire(previous)
	return InitResult{
		Status:      InitSuccess,
		Detail:      fmt.Sprintf("indexed %d chunks", snap.chunks),
		ChunksCount: snap.chunks,
		Summary:     snap.summary,
	}, nil
}

func (p *Pipeline) load(ctx context.Context) (*snapshot, error) {
	ok, err := p.c.Source.Exists()
	if err != nil {
		return nil, fmt.Errorf("check corpus: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCorpusNotFound, p.c.Source.Location())
	}
	text, err := p.c.Source.Load()
	if err != nil {
		return nil, err
	}

	chunks, err := p.c.Chunker.Chunk(text)
	if err != nil {
		return nil, err
	}
	p.log.Debug("corpus chunked", "runes", len([]rune(text)), "chunks", len(chunks))

	embedder, err := p.fitEmbedder(chunks)
	if err != nil {
		return nil, err
	}
	backend := p.c.NewBackend()
	idx := index.New(embedder, backend)
	if err := idx.Build(ctx, chunks); err != nil {
		p.release(backend)
		return nil, err
	}
	p.log.Debug("index built", "embedder", embedder.Name(), "entries", idx.Len())

	return &snapshot{
		retriever: retriever.New(idx, p.opts.K, p.opts.MinScore),
		backend:   backend,
		chunks:    len(chunks),
		summary:   p.summarize(text),
	}, nil
}

// fitEmbedder binds corpus-derived embedders such as TF-IDF to the chunks.
func (p *Pipeline) fitEmbedder(chunks []domain.Chunk) (domain.Embedder, error) {
	fitter, ok := p.c.Embedder.(domain.CorpusFitter)
	if !ok {
		return p.c.Embedder, nil
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	fitted, err := fitter.Fit(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: fit %s: %w", domain.ErrEmbeddingService, p.c.Embedder.Name(), err)
	}
	return fitted, nil
}

// retire waits for in-flight asks on snap, then releases its backend.
func (p *Pipeline) retire(snap *snapshot) {
	if snap == nil {
		return
	}
	snap.mu.Lock()
	snap.retired = true
	snap.mu.Unlock()
	p.release(snap.backend)
}

func (p *Pipeline) release(backend domain.VectorIndex) {
	r, ok := backend.(domain.Releaser)
	if !ok {
		return
	}
	if err := r.Release(); err != nil {
		p.log.Warn("release index backend", "err", err)
	}
}

// summarize never fails a build; a missing summary is only logged.
func (p *Pipeline) summarize(text string) string {
	if p.c.Summarizer == nil {
		return ""
	}
	summary, err := p.c.Summarizer.Summarize(text, p.opts.SummarySentences)
	if err != nil {
		p.log.Warn("corpus summary failed", "err", err)
		return ""
	}
	return summary
}

// Status never waits for a running build.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	state, lastErr := p.state, p.lastErr
	p.mu.Unlock()

	st := Status{State: state, Err: lastErr}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	if ok, err := p.c.Source.Exists(); err == nil {
		st.CorpusAvailable = ok
	}
	if snap := p.ready.Load(); snap != nil {
		st.IndexAvailable = true
		st.ChunksCount = snap.chunks
	}
	return st
}

// Summary returns the corpus summary of the current index, if any.
func (p *Pipeline) Summary() string {
	if snap := p.ready.Load(); snap != nil {
		return snap.summary
	}
	return ""
}

// Ask answers question from the indexed corpus. Generation is retried once
// with the same prompt. Ask never changes the pipeline state.
func (p *Pipeline) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	snap := p.acquire()
	if snap == nil {
		return nil, domain.ErrNotInitialized
	}
	defer snap.mu.RUnlock()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	results, err := snap.retriever.Retrieve(ctx, question)
	if err != nil {
		p.log.Info("retrieval failed", "question", question, "err", err)
		return nil, err
	}
	text, kept := p.c.Prompt.Build(question, results)
	p.log.Debug("prompt built", "retrieved", len(results), "in_context", kept)

	answer, err := p.c.Generator.Generate(ctx, text)
	if err != nil && ctx.Err() == nil {
		p.log.Warn("generation failed, retrying", "err", err)
		answer, err = p.c.Generator.Generate(ctx, text)
	}
	if err != nil {
		p.log.Error("generation failed", "question", question, "err", err)
		return nil, err
	}

	sources := make([]domain.Source, len(results))
	for i, r := range results {
		sources[i] = domain.Source{
			Rank:    i + 1,
			Score:   r.Score,
			Text:    r.Chunk.Text,
			Ordinal: r.Chunk.Ordinal,
			Start:   r.Chunk.Start,
			End:     r.Chunk.End,
		}
	}
	p.log.Info("question answered", "question", question, "sources", len(sources))
	return &domain.Answer{
		Question:     question,
		Text:         answer,
		Sources:      sources,
		SourcesCount: len(sources),
	}, nil
}

// acquire returns the Ready snapshot read-locked, or nil when not Ready.
// A retired snapshot has always been replaced already, so the loop ends.
func (p *Pipeline) acquire() *snapshot {
	for {
		snap := p.snapshotIfReady()
		if snap == nil {
			return nil
		}
		snap.mu.RLock()
		if !snap.retired {
			return snap
		}
		snap.mu.RUnlock()
	}
}

func (p *Pipeline) snapshotIfReady() *snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Ready {
		return nil
	}
	return p.ready.Load()
}

func (p *Pipeline) setState(s State, err error) {
	p.mu.Lock()
	p.state = s
	p.lastErr = err
	p.mu.Unlock()
}

// IsUserError reports whether err is a per-question error the caller can fix
// by asking something else or waiting for initialization.
func IsUserError(err error) bool {
	return errors.Is(err, domain.ErrEmptyQuestion) ||
		errors.Is(err, domain.ErrNotInitialized) ||
		errors.Is(err, domain.ErrRetrievalEmpty)
}

package domain

import "errors"

var (
	ErrCorpusNotFound    = errors.New("corpus not found")
	ErrEmptyCorpus       = errors.New("corpus is empty")
	ErrEmbeddingService  = errors.New("embedding service failed")
	ErrIndexBuild        = errors.New("index build failed")
	ErrIndexSearch       = errors.New("index search failed")
	ErrNotInitialized    = errors.New("pipeline not initialized")
	ErrRetrievalEmpty    = errors.New("no relevant passage found")
	ErrGenerationTimeout = errors.New("generation timed out")
	ErrGenerationService = errors.New("generation service failed")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrInvalidConfig     = errors.New("invalid config")
)

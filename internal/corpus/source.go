// Package corpus reads the source text the pipeline answers questions about.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"ambedkargpt/internal/domain"
)

// Source is a readable text resource. Exists reports absence without error;
// Load fails with domain.ErrCorpusNotFound when the resource is missing and
// with a plain read error otherwise.
type Source interface {
	Location() string
	Exists() (bool, error)
	Load() (string, error)
}

// File is a corpus stored in a UTF-8 text file.
type File struct {
	path string
}

func NewFile(path string) *File { return &File{path: path} }

func (f *File) Location() string { return f.path }

func (f *File) Exists() (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (f *File) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrCorpusNotFound, f.path)
		}
		return "", fmt.Errorf("read corpus %s: %w", f.path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read corpus %s: not valid UTF-8", f.path)
	}
	return string(data), nil
}

// Text is an in-memory corpus, mostly useful for embedding and tests.
type Text string

func (t Text) Location() string      { return "inline" }
func (t Text) Exists() (bool, error) { return true, nil }
func (t Text) Load() (string, error) { return string(t), nil }

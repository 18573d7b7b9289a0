package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

// Special tokens shared by every vocabulary used for seq2seq training.
const (
	SOS = "[SOS]"
	EOS = "[EOS]"
	PAD = "[PAD]"
	UNK = "[UNK]"
)

// Tokenizer converts raw text to an ordered sequence of token IDs.
// Implementations are immutable once built and safe for concurrent use.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
	TokenToID(token string) (int64, bool)
}

var (
	// ErrUnsupported indicates the tokenizer could not be initialized
	ErrUnsupported = errors.New("unsupported tokenizer configuration")
	ErrEmptyVocab  = errors.New("vocabulary is empty")
)

// Open builds a tokenizer of the given kind from a file on disk.
func Open(kind, path string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "wordpiece", "":
		return LoadWordPiece(path)
	case "hf", "tokenizer.json":
		return LoadHF(path)
	case "hf-wordpiece":
		return NewHFWordPiece(path)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupported, kind)
	}
}

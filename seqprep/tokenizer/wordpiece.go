package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/armon/go-radix"
	"golang.org/x/text/unicode/norm"
)

const (
	continuationPrefix = "##"
	maxWordBytes       = 100
)

// WordPiece is a greedy longest-match-first subword tokenizer.
// The vocabulary lives in a patricia tree so each piece is one LongestPrefix walk.
type WordPiece struct {
	vocab *radix.Tree
	size  int
	unkID int64
	lower bool
}

// WordPieceOption configures a WordPiece tokenizer
type WordPieceOption func(*WordPiece)

// WithLowercase folds input to lower case before lookup.
func WithLowercase() WordPieceOption {
	return func(w *WordPiece) { w.lower = true }
}

// LoadWordPiece reads a vocab file with one token per line; the id is the
// zero-based line index. Blank lines hold their id but map no token.
func LoadWordPiece(path string, opts ...WordPieceOption) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab %s: %w", path, err)
	}
	defer f.Close()
	return ReadWordPiece(f, opts...)
}

// ReadWordPiece builds a WordPiece tokenizer from a vocab stream.
func ReadWordPiece(r io.Reader, opts ...WordPieceOption) (*WordPiece, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	return NewWordPiece(tokens, opts...)
}

// NewWordPiece builds a tokenizer where tokens[i] has id i.
// Empty entries are skipped; duplicate tokens keep their first id.
func NewWordPiece(tokens []string, opts ...WordPieceOption) (*WordPiece, error) {
	w := &WordPiece{vocab: radix.New(), unkID: -1}
	for _, o := range opts {
		o(w)
	}
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, exists := w.vocab.Get(tok); exists {
			continue
		}
		w.vocab.Insert(tok, int64(i))
	}
	if w.vocab.Len() == 0 {
		return nil, ErrEmptyVocab
	}
	w.size = w.vocab.Len()
	if id, ok := w.TokenToID(UNK); ok {
		w.unkID = id
	}
	return w, nil
}

func (w *WordPiece) TokenToID(token string) (int64, bool) {
	v, ok := w.vocab.Get(token)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// VocabSize returns the number of distinct tokens.
func (w *WordPiece) VocabSize() int { return w.size }

// Encode splits text into words and each word into vocabulary pieces.
// A word with no full decomposition maps to [UNK]; without [UNK] in the
// vocabulary that is an error.
func (w *WordPiece) Encode(text string) ([]int64, error) {
	text = norm.NFC.String(text)
	if w.lower {
		text = strings.ToLower(text)
	}
	words := splitWords(text)
	ids := make([]int64, 0, len(words))
	for _, word := range words {
		pieces, ok := w.pieces(word)
		if !ok {
			if w.unkID < 0 {
				return nil, fmt.Errorf("%w: no %s token for word %q", ErrUnsupported, UNK, word)
			}
			ids = append(ids, w.unkID)
			continue
		}
		ids = append(ids, pieces...)
	}
	return ids, nil
}

func (w *WordPiece) pieces(word string) ([]int64, bool) {
	if len(word) > maxWordBytes {
		return nil, false
	}
	if id, ok := w.TokenToID(word); ok {
		return []int64{id}, true
	}
	var out []int64
	for start := 0; start < len(word); {
		prefix := ""
		if start > 0 {
			prefix = continuationPrefix
		}
		key, v, found := w.vocab.LongestPrefix(prefix + word[start:])
		if !found || len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
			return nil, false
		}
		out = append(out, v.(int64))
		start += len(key) - len(prefix)
	}
	return out, true
}

// splitWords splits on whitespace and isolates each punctuation rune.
func splitWords(text string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return words
}

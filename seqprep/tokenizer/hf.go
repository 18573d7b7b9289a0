package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HF wraps a sugarme/tokenizer pipeline (HuggingFace compatible).
type HF struct {
	t *tk.Tokenizer
}

// LoadHF loads a HuggingFace tokenizer.json file.
func LoadHF(path string) (*HF, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: tokenizer path is required", ErrUnsupported)
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, "tokenizer.json")
	}
	t, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", path, err)
	}
	return &HF{t: t}, nil
}

// NewHFWordPiece builds a BERT-style WordPiece pipeline from vocab.txt.
// No post-processor is attached, so Encode returns bare token ids.
func NewHFWordPiece(vocabPath string) (*HF, error) {
	if fi, err := os.Stat(vocabPath); err == nil && fi.IsDir() {
		vocabPath = filepath.Join(vocabPath, "vocab.txt")
	}
	if _, err := os.Stat(vocabPath); err != nil {
		return nil, fmt.Errorf("failed to access vocab %s: %w", vocabPath, err)
	}

	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, UNK)
	if err != nil {
		wp = wordpiece.NewWordPieceBuilder().Files(vocabPath).Build()
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())
	return &HF{t: t}, nil
}

// Encode tokenizes text without adding post-processor special tokens.
func (h *HF) Encode(text string) ([]int64, error) {
	enc, err := h.t.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode text: %w", err)
	}
	ids := make([]int64, len(enc.Ids))
	for i, id := range enc.Ids {
		ids[i] = int64(id)
	}
	return ids, nil
}

func (h *HF) TokenToID(token string) (int64, bool) {
	id, ok := h.t.TokenToId(token)
	if !ok {
		return 0, false
	}
	return int64(id), true
}

// VocabSize reports the vocabulary size including added tokens.
func (h *HF) VocabSize() int {
	return int(h.t.GetVocabSize(true))
}

package corpus

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrMissingLanguage = errors.New("translation is missing language")
)

// Translation maps a language code to the raw sentence in that language.
type Translation map[string]string

// Source is the indexed, ordered parallel corpus as it comes out of a dataset export.
type Source interface {
	Len() int
	At(i int) (Translation, error)
}

// Corpus yields (source, target) string pairs by index.
type Corpus interface {
	Count() int
	Get(i int) (src, tgt string, err error)
}

// PairView projects a Source onto a fixed source and target language.
type PairView struct {
	source  Source
	srcLang string
	tgtLang string
}

// Pairs selects the srcLang and tgtLang fields of every translation in src.
func Pairs(src Source, srcLang, tgtLang string) *PairView {
	return &PairView{source: src, srcLang: srcLang, tgtLang: tgtLang}
}

func (p *PairView) Count() int { return p.source.Len() }

func (p *PairView) Get(i int) (string, string, error) {
	if i < 0 || i >= p.source.Len() {
		return "", "", fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, p.source.Len())
	}
	tr, err := p.source.At(i)
	if err != nil {
		return "", "", fmt.Errorf("failed to read translation %d: %w", i, err)
	}
	src, ok := tr[p.srcLang]
	if !ok {
		return "", "", fmt.Errorf("%w %q at index %d", ErrMissingLanguage, p.srcLang, i)
	}
	tgt, ok := tr[p.tgtLang]
	if !ok {
		return "", "", fmt.Errorf("%w %q at index %d", ErrMissingLanguage, p.tgtLang, i)
	}
	return src, tgt, nil
}

// Languages reports the source and target language codes.
func (p *PairView) Languages() (string, string) { return p.srcLang, p.tgtLang }

// Memory is an in-memory Source.
type Memory []Translation

func (m Memory) Len() int { return len(m) }

func (m Memory) At(i int) (Translation, error) {
	if i < 0 || i >= len(m) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(m))
	}
	return m[i], nil
}

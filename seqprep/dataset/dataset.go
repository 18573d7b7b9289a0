// Package dataset turns bilingual sentence pairs into fixed-length
// encoder/decoder training samples.
package dataset

import (
	"fmt"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/corpus"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/mask"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/tokenizer"

	"github.com/rs/zerolog"
)

// Sample is one prepared training example.
type Sample struct {
	EncoderInput []int64   `json:"encoder_input"`
	DecoderInput []int64   `json:"decoder_input"`
	Label        []int64   `json:"label"`
	EncoderMask  mask.Mask `json:"-"` // [1, 1, seq_len]
	DecoderMask  mask.Mask `json:"-"` // [1, seq_len, seq_len]
	SrcText      string    `json:"src_text"`
	TgtText      string    `json:"tgt_text"`
}

// BilingualDataset prepares samples from a parallel corpus. All fields are
// set at construction and only read afterwards, so Get may be called from
// many goroutines.
type BilingualDataset struct {
	corpus corpus.Corpus
	tokSrc tokenizer.Tokenizer
	tokTgt tokenizer.Tokenizer
	seqLen int

	sos int64
	eos int64
	pad int64

	log zerolog.Logger
}

// Option configures a BilingualDataset
type Option func(*BilingualDataset)

func WithLogger(l zerolog.Logger) Option {
	return func(d *BilingualDataset) { d.log = l }
}

// New builds a dataset over src, reading srcLang as the source side and
// tgtLang as the target side of each translation. Special token ids are
// resolved once from the target tokenizer.
func New(src corpus.Source, tokSrc, tokTgt tokenizer.Tokenizer, srcLang, tgtLang string, seqLen int, opts ...Option) (*BilingualDataset, error) {
	return NewFromCorpus(corpus.Pairs(src, srcLang, tgtLang), tokSrc, tokTgt, seqLen, opts...)
}

// NewFromCorpus builds a dataset over an already paired corpus.
func NewFromCorpus(c corpus.Corpus, tokSrc, tokTgt tokenizer.Tokenizer, seqLen int, opts ...Option) (*BilingualDataset, error) {
	if seqLen <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSeqLen, seqLen)
	}
	d := &BilingualDataset{
		corpus: c,
		tokSrc: tokSrc,
		tokTgt: tokTgt,
		seqLen: seqLen,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}

	var ok bool
	if d.sos, ok = tokTgt.TokenToID(tokenizer.SOS); !ok {
		return nil, fmt.Errorf("%w %s", ErrMissingSpecialToken, tokenizer.SOS)
	}
	if d.eos, ok = tokTgt.TokenToID(tokenizer.EOS); !ok {
		return nil, fmt.Errorf("%w %s", ErrMissingSpecialToken, tokenizer.EOS)
	}
	if d.pad, ok = tokTgt.TokenToID(tokenizer.PAD); !ok {
		return nil, fmt.Errorf("%w %s", ErrMissingSpecialToken, tokenizer.PAD)
	}
	return d, nil
}

// Len returns the number of pairs in the underlying corpus.
func (d *BilingualDataset) Len() int { return d.corpus.Count() }

func (d *BilingualDataset) SeqLen() int { return d.seqLen }

// SpecialTokens returns the cached SOS, EOS and PAD ids.
func (d *BilingualDataset) SpecialTokens() (sos, eos, pad int64) { return d.sos, d.eos, d.pad }

// Get prepares the sample at index i.
func (d *BilingualDataset) Get(i int) (Sample, error) {
	srcText, tgtText, err := d.corpus.Get(i)
	if err != nil {
		return Sample{}, err
	}

	srcIDs, err := d.tokSrc.Encode(srcText)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to tokenize source at index %d: %w", i, err)
	}
	tgtIDs, err := d.tokTgt.Encode(tgtText)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to tokenize target at index %d: %w", i, err)
	}

	encPad, decPad := PaddingCounts(len(srcIDs), len(tgtIDs), d.seqLen)
	if encPad < 0 || decPad < 0 {
		d.log.Debug().Int("index", i).Int("src_tokens", len(srcIDs)).Int("tgt_tokens", len(tgtIDs)).
			Int("seq_len", d.seqLen).Msg("pair does not fit sequence length")
		return Sample{}, &OversizedSequenceError{Index: i, SeqLen: d.seqLen, SrcTokens: len(srcIDs), TgtTokens: len(tgtIDs)}
	}

	encoderInput := make([]int64, 0, d.seqLen)
	encoderInput = append(encoderInput, d.sos)
	encoderInput = append(encoderInput, srcIDs...)
	encoderInput = append(encoderInput, d.eos)
	encoderInput = d.padTo(encoderInput, encPad)

	decoderInput := make([]int64, 0, d.seqLen)
	decoderInput = append(decoderInput, d.sos)
	decoderInput = append(decoderInput, tgtIDs...)
	decoderInput = d.padTo(decoderInput, decPad)

	label := make([]int64, 0, d.seqLen)
	label = append(label, tgtIDs...)
	label = append(label, d.eos)
	label = d.padTo(label, decPad)

	if len(encoderInput) != d.seqLen || len(decoderInput) != d.seqLen || len(label) != d.seqLen {
		return Sample{}, fmt.Errorf("index %d: built lengths %d/%d/%d, want %d",
			i, len(encoderInput), len(decoderInput), len(label), d.seqLen)
	}

	return Sample{
		EncoderInput: encoderInput,
		DecoderInput: decoderInput,
		Label:        label,
		EncoderMask:  mask.Padding(encoderInput, d.pad),
		DecoderMask:  mask.Decoder(decoderInput, d.pad),
		SrcText:      srcText,
		TgtText:      tgtText,
	}, nil
}

func (d *BilingualDataset) padTo(ids []int64, n int) []int64 {
	for k := 0; k < n; k++ {
		ids = append(ids, d.pad)
	}
	return ids
}

// PaddingCounts returns how many PAD tokens the encoder and decoder
// sequences need. The encoder reserves room for SOS and EOS, the decoder
// only for SOS (its label carries EOS instead). Negative means too long.
func PaddingCounts(nSrc, nTgt, seqLen int) (enc, dec int) {
	return seqLen - nSrc - 2, seqLen - nTgt - 1
}

// Fits reports whether a pair of the given token counts can be prepared.
func Fits(nSrc, nTgt, seqLen int) bool {
	enc, dec := PaddingCounts(nSrc, nTgt, seqLen)
	return enc >= 0 && dec >= 0
}

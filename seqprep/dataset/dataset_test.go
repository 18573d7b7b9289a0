package dataset

import (
	"errors"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/corpus"
	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/tokenizer"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTokenizer maps whole strings to fixed ids.
type stubTokenizer struct {
	encodings map[string][]int64
	specials  map[string]int64
}

func (s *stubTokenizer) Encode(text string) ([]int64, error) {
	ids, ok := s.encodings[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return append([]int64(nil), ids...), nil
}

func (s *stubTokenizer) TokenToID(token string) (int64, bool) {
	id, ok := s.specials[token]
	return id, ok
}

var specials = map[string]int64{tokenizer.PAD: 0, tokenizer.SOS: 1, tokenizer.EOS: 2}

func newStubs() (*stubTokenizer, *stubTokenizer) {
	src := &stubTokenizer{
		encodings: map[string][]int64{
			"three words here":    {5, 6, 7},
			"five words are here": {5, 6, 7, 8, 9},
			"":                    {},
		},
		specials: map[string]int64{tokenizer.PAD: 40, tokenizer.SOS: 41, tokenizer.EOS: 42},
	}
	tgt := &stubTokenizer{
		encodings: map[string][]int64{
			"due parole":             {8, 9},
			"una":                    {8},
			"cinque parole per riga": {8, 9, 8, 9, 8},
			"":                       {},
		},
		specials: specials,
	}
	return src, tgt
}

var pairs = corpus.Memory{
	{"en": "three words here", "it": "due parole"},
	{"en": "five words are here", "it": "una"},
	{"en": "", "it": ""},
}

func newDataset(t *testing.T, seqLen int) *BilingualDataset {
	t.Helper()
	src, tgt := newStubs()
	ds, err := New(pairs, src, tgt, "en", "it", seqLen)
	require.NoError(t, err)
	return ds
}

func TestGetWorkedExample(t *testing.T) {
	ds := newDataset(t, 10)

	s, err := ds.Get(0)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 5, 6, 7, 2, 0, 0, 0, 0, 0}, s.EncoderInput)
	assert.Equal(t, []int64{1, 8, 9, 0, 0, 0, 0, 0, 0, 0}, s.DecoderInput)
	assert.Equal(t, []int64{8, 9, 2, 0, 0, 0, 0, 0, 0, 0}, s.Label)
	assert.Equal(t, "three words here", s.SrcText)
	assert.Equal(t, "due parole", s.TgtText)
}

func TestGetUsesTargetSpecialTokens(t *testing.T) {
	ds := newDataset(t, 10)
	sos, eos, pad := ds.SpecialTokens()
	assert.Equal(t, int64(1), sos)
	assert.Equal(t, int64(2), eos)
	assert.Equal(t, int64(0), pad)
}

func TestGetMasks(t *testing.T) {
	ds := newDataset(t, 10)
	s, err := ds.Get(0)
	require.NoError(t, err)

	require.Equal(t, [3]int{1, 1, 10}, s.EncoderMask.Shape())
	for j := 0; j < 10; j++ {
		assert.Equal(t, j < 5, s.EncoderMask.At(0, j), "encoder position %d", j)
	}

	require.Equal(t, [3]int{1, 10, 10}, s.DecoderMask.Shape())
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			want := j <= i && j < 3
			assert.Equal(t, want, s.DecoderMask.At(i, j), "decoder i=%d j=%d", i, j)
		}
	}
}

func TestGetProperties(t *testing.T) {
	src, tgt := newStubs()
	for _, seqLen := range []int{7, 8, 12, 64} {
		ds, err := New(pairs, src, tgt, "en", "it", seqLen)
		require.NoError(t, err)
		for i := 0; i < ds.Len(); i++ {
			srcText, tgtText, err := corpus.Pairs(pairs, "en", "it").Get(i)
			require.NoError(t, err)
			nSrc, nTgt := len(src.encodings[srcText]), len(tgt.encodings[tgtText])

			s, err := ds.Get(i)
			require.NoError(t, err, "seqLen=%d i=%d", seqLen, i)

			assert.Len(t, s.EncoderInput, seqLen)
			assert.Len(t, s.DecoderInput, seqLen)
			assert.Len(t, s.Label, seqLen)
			assert.Equal(t, int64(1), s.EncoderInput[0])
			assert.Equal(t, int64(2), s.EncoderInput[nSrc+1])
			assert.Equal(t, int64(1), s.DecoderInput[0])
			assert.Equal(t, int64(2), s.Label[nTgt])
			for j := nSrc + 2; j < seqLen; j++ {
				assert.Equal(t, int64(0), s.EncoderInput[j])
				assert.False(t, s.EncoderMask.At(0, j))
			}
		}
	}
}

func TestGetIsDeterministic(t *testing.T) {
	ds := newDataset(t, 10)
	a, err := ds.Get(0)
	require.NoError(t, err)
	b, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGetConcurrent(t *testing.T) {
	ds := newDataset(t, 10)
	want, err := ds.Get(0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := ds.Get(0)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestGetOversized(t *testing.T) {
	tests := []struct {
		name   string
		seqLen int
		index  int
		fits   bool
	}{
		{name: "source of five in four", seqLen: 4, index: 1, fits: false},
		{name: "source exactly fills", seqLen: 7, index: 1, fits: true},
		{name: "source one over", seqLen: 6, index: 1, fits: false},
		{name: "empty pair fits in three", seqLen: 3, index: 2, fits: true},
		{name: "empty pair needs two", seqLen: 1, index: 2, fits: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newDataset(t, tt.seqLen)
			s, err := ds.Get(tt.index)
			if tt.fits {
				require.NoError(t, err)
				assert.Len(t, s.EncoderInput, tt.seqLen)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSequenceTooLong)
			var oversized *OversizedSequenceError
			require.ErrorAs(t, err, &oversized)
			assert.Equal(t, tt.index, oversized.Index)
			assert.Equal(t, tt.seqLen, oversized.SeqLen)
			assert.Nil(t, s.EncoderInput)
		})
	}
}

func TestGetTargetOverflow(t *testing.T) {
	src, tgt := newStubs()
	long := corpus.Memory{{"en": "three words here", "it": "cinque parole per riga"}}
	tests := []struct {
		name   string
		seqLen int
		fits   bool
	}{
		{name: "target equal to seq len", seqLen: 5, fits: false},
		{name: "target plus one fills", seqLen: 6, fits: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := New(long, src, tgt, "en", "it", tt.seqLen)
			require.NoError(t, err)
			s, err := ds.Get(0)
			if tt.fits {
				require.NoError(t, err)
				assert.Equal(t, []int64{1, 8, 9, 8, 9, 8}, s.DecoderInput)
				assert.Equal(t, []int64{8, 9, 8, 9, 8, 2}, s.Label)
				assert.Equal(t, []int64{1, 5, 6, 7, 2, 0}, s.EncoderInput)
				return
			}
			enc, _ := PaddingCounts(3, 5, tt.seqLen)
			require.GreaterOrEqual(t, enc, 0, "source alone fits")
			assert.ErrorIs(t, err, ErrSequenceTooLong)
			var oversized *OversizedSequenceError
			require.ErrorAs(t, err, &oversized)
			assert.Equal(t, 3, oversized.SrcTokens)
			assert.Equal(t, 5, oversized.TgtTokens)
			assert.Nil(t, s.Label)
		})
	}
}

func TestGetZeroPaddingBoundary(t *testing.T) {
	ds := newDataset(t, 5)
	s, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 5, 6, 7, 2}, s.EncoderInput)
	assert.Equal(t, []int64{1, 8, 9, 0, 0}, s.DecoderInput)
}

func TestGetPropagatesErrors(t *testing.T) {
	ds := newDataset(t, 10)
	_, err := ds.Get(9)
	assert.ErrorIs(t, err, corpus.ErrIndexOutOfRange)

	src, tgt := newStubs()
	bad, err := New(corpus.Memory{{"en": "unseen", "it": "una"}}, src, tgt, "en", "it", 10)
	require.NoError(t, err)
	_, err = bad.Get(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokenize source")
}

func TestNewValidation(t *testing.T) {
	src, tgt := newStubs()

	_, err := New(pairs, src, tgt, "en", "it", 0)
	assert.ErrorIs(t, err, ErrInvalidSeqLen)

	noEOS := &stubTokenizer{specials: map[string]int64{tokenizer.PAD: 0, tokenizer.SOS: 1}}
	_, err = New(pairs, src, noEOS, "en", "it", 10)
	assert.ErrorIs(t, err, ErrMissingSpecialToken)
	assert.Contains(t, err.Error(), tokenizer.EOS)
}

func TestLen(t *testing.T) {
	assert.Equal(t, 3, newDataset(t, 10).Len())
}

func TestPaddingCounts(t *testing.T) {
	enc, dec := PaddingCounts(3, 2, 10)
	assert.Equal(t, 5, enc)
	assert.Equal(t, 7, dec)
	assert.True(t, Fits(8, 9, 10))
	assert.False(t, Fits(9, 0, 10))
	assert.False(t, Fits(0, 10, 10))
}

func TestSubset(t *testing.T) {
	ds := newDataset(t, 10)
	sub := NewSubset(ds, roaring.BitmapOf(0, 2, 17))
	require.Equal(t, 2, sub.Len())

	idx, err := sub.Index(1)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	s, err := sub.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "due parole", s.TgtText)

	_, err = sub.Get(2)
	assert.ErrorIs(t, err, corpus.ErrIndexOutOfRange)

	assert.Equal(t, 0, NewSubset(ds, nil).Len())
}

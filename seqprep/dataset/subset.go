package dataset

import (
	"fmt"

	"github.com/ZanzyTHEbar/bilingual-seqprep/seqprep/corpus"

	roaring "github.com/RoaringBitmap/roaring"
)

// Subset exposes the corpus indices in a bitmap as a dense 0..Len()-1 range.
type Subset struct {
	ds      *BilingualDataset
	indices []uint32
}

// NewSubset selects the indices set in keep. Indices past ds.Len() are dropped.
func NewSubset(ds *BilingualDataset, keep *roaring.Bitmap) *Subset {
	if keep == nil {
		return &Subset{ds: ds}
	}
	sel := keep.Clone()
	sel.RemoveRange(uint64(ds.Len()), uint64(1)<<32)
	return &Subset{ds: ds, indices: sel.ToArray()}
}

func (s *Subset) Len() int { return len(s.indices) }

// Index maps a subset position back to its corpus index.
func (s *Subset) Index(i int) (int, error) {
	if i < 0 || i >= len(s.indices) {
		return 0, fmt.Errorf("%w: %d (len %d)", corpus.ErrIndexOutOfRange, i, len(s.indices))
	}
	return int(s.indices[i]), nil
}

func (s *Subset) Get(i int) (Sample, error) {
	idx, err := s.Index(i)
	if err != nil {
		return Sample{}, err
	}
	return s.ds.Get(idx)
}

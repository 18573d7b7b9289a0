package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrSequenceTooLong     = errors.New("sentence is too long")
	ErrInvalidSeqLen       = errors.New("sequence length must be positive")
	ErrMissingSpecialToken = errors.New("target tokenizer is missing special token")
)

// OversizedSequenceError reports a pair whose token count plus the required
// special tokens exceeds the fixed sequence length.
type OversizedSequenceError struct {
	Index     int
	SeqLen    int
	SrcTokens int
	TgtTokens int
}

func (e *OversizedSequenceError) Error() string {
	return fmt.Sprintf("%s: index %d has %d source and %d target tokens, seq_len %d",
		ErrSequenceTooLong, e.Index, e.SrcTokens, e.TgtTokens, e.SeqLen)
}

func (e *OversizedSequenceError) Is(target error) bool {
	return target == ErrSequenceTooLong
}

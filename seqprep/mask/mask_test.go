package mask

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCausal(t *testing.T) {
	for _, size := range []int{1, 2, 5, 16} {
		m := Causal(size)
		assert.Equal(t, [3]int{1, size, size}, m.Shape())
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				assert.Equal(t, j <= i, m.At(i, j), "size=%d i=%d j=%d", size, i, j)
			}
		}
	}
}

func TestCausalIsPure(t *testing.T) {
	assert.Equal(t, Causal(7), Causal(7))
}

func TestPadding(t *testing.T) {
	m := Padding([]int64{1, 5, 6, 2, 0, 0}, 0)
	assert.Equal(t, [3]int{1, 1, 6}, m.Shape())
	assert.Equal(t, []bool{true, true, true, true, false, false}, m.Row(0))
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0}, m.Ints())
}

func TestDecoder(t *testing.T) {
	m := Decoder([]int64{1, 8, 9, 0}, 0)
	require.Equal(t, [3]int{1, 4, 4}, m.Shape())

	want := [][]bool{
		{true, false, false, false},
		{true, true, false, false},
		{true, true, true, false},
		{true, true, true, false},
	}
	for i, row := range want {
		assert.Equal(t, row, m.Row(i), "row %d", i)
	}
}

func TestDecoderMatchesAnd(t *testing.T) {
	for _, ids := range [][]int64{
		{},
		{0},
		{1, 8, 9, 0},
		{1, 0, 9, 0, 0},
		{7, 7, 7},
	} {
		want, err := And(Padding(ids, 0), Causal(len(ids)))
		require.NoError(t, err)
		assert.Equal(t, want, Decoder(ids, 0), "ids=%v", ids)
	}
}

func TestAndBroadcast(t *testing.T) {
	pad := Padding([]int64{3, 0, 3}, 0)
	causal := Causal(3)

	left, err := And(pad, causal)
	require.NoError(t, err)
	right, err := And(causal, pad)
	require.NoError(t, err)
	assert.Equal(t, left, right)
	assert.Equal(t, [3]int{1, 3, 3}, left.Shape())
}

func TestAndShapeMismatch(t *testing.T) {
	_, err := And(Causal(3), Causal(4))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	two, err := And(Causal(3), Causal(3))
	require.NoError(t, err)
	_, err = And(two, Mask{rows: 2, cols: 3, data: make([]bool, 6)})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestBias(t *testing.T) {
	b := Bias(Decoder([]int64{1, 4, 0}, 0))
	r, c := b.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 3, c)

	assert.Equal(t, 0.0, b.At(1, 0))
	assert.Equal(t, 0.0, b.At(1, 1))
	assert.True(t, math.IsInf(b.At(0, 1), -1))
	assert.True(t, math.IsInf(b.At(2, 2), -1), "padding column is blocked")
}

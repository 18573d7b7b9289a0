// Package mask builds the boolean attention masks fed to an encoder-decoder
// transformer. A Mask has logical shape [1, rows, cols]; true means the
// query position (row) may attend to the key position (col).
package mask

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrShapeMismatch = errors.New("mask shapes are not broadcastable")

// Mask is a row-major boolean tensor of shape [1, rows, cols].
type Mask struct {
	rows, cols int
	data       []bool
}

func newMask(rows, cols int) Mask {
	return Mask{rows: rows, cols: cols, data: make([]bool, rows*cols)}
}

// Shape returns the logical [1, rows, cols] shape.
func (m Mask) Shape() [3]int { return [3]int{1, m.rows, m.cols} }

func (m Mask) At(i, j int) bool { return m.data[i*m.cols+j] }

// Row returns a copy of row i.
func (m Mask) Row(i int) []bool {
	out := make([]bool, m.cols)
	copy(out, m.data[i*m.cols:(i+1)*m.cols])
	return out
}

// Ints flattens the mask to 0/1 values in row-major order.
func (m Mask) Ints() []int64 {
	out := make([]int64, len(m.data))
	for i, v := range m.data {
		if v {
			out[i] = 1
		}
	}
	return out
}

// Padding marks real tokens true and pad tokens false; shape [1, 1, len(ids)].
func Padding(ids []int64, pad int64) Mask {
	m := newMask(1, len(ids))
	for j, id := range ids {
		m.data[j] = id != pad
	}
	return m
}

// Causal returns the [1, size, size] lower-triangular mask: At(i, j) == (j <= i).
func Causal(size int) Mask {
	m := newMask(size, size)
	for i := 0; i < size; i++ {
		for j := 0; j <= i; j++ {
			m.data[i*size+j] = true
		}
	}
	return m
}

// And combines two masks elementwise. A single-row operand is broadcast
// across the rows of the other.
func And(a, b Mask) (Mask, error) {
	if a.cols != b.cols {
		return Mask{}, fmt.Errorf("%w: %v and %v", ErrShapeMismatch, a.Shape(), b.Shape())
	}
	rows := a.rows
	switch {
	case a.rows == b.rows:
	case a.rows == 1:
		rows = b.rows
	case b.rows == 1:
	default:
		return Mask{}, fmt.Errorf("%w: %v and %v", ErrShapeMismatch, a.Shape(), b.Shape())
	}
	out := newMask(rows, a.cols)
	for i := 0; i < rows; i++ {
		ai, bi := i, i
		if a.rows == 1 {
			ai = 0
		}
		if b.rows == 1 {
			bi = 0
		}
		for j := 0; j < a.cols; j++ {
			out.data[i*a.cols+j] = a.At(ai, j) && b.At(bi, j)
		}
	}
	return out, nil
}

// Decoder is the padding mask of ids combined with a causal mask; shape [1, n, n].
// It equals And(Padding(ids, pad), Causal(len(ids))), built in one pass.
func Decoder(ids []int64, pad int64) Mask {
	n := len(ids)
	m := newMask(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			m.data[i*n+j] = ids[j] != pad
		}
	}
	return m
}

// Bias converts m into an additive attention bias: 0 where attention is
// allowed, -Inf where it is blocked. The result is rows x cols.
func Bias(m Mask) *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, len(m.data))
	negInf := math.Inf(-1)
	for i, v := range m.data {
		if !v {
			data[i] = negInf
		}
	}
	return mat.NewDense(m.rows, m.cols, data)
}

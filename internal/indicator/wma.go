// Package indicator computes market signals over a date-ascending price series.
//
// The moving average used throughout is linearly weighted toward recency:
// within a window of size w the newest sample has weight 1 and the oldest
// has weight 1/w. Every function here is pure.
package indicator

import (
	"encoding/json"
	"math"
)

// Value is a possibly undefined number.
type Value struct {
	V  float64
	OK bool
}

// Series is a sequence aligned index-by-index with its input.
type Series []Value

// Some returns a defined value.
func Some(v float64) Value {
	return Value{V: v, OK: true}
}

// MarshalJSON encodes undefined (and non-finite) values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.OK || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// Last returns the last defined value of the series.
func (s Series) Last() Value {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].OK {
			return s[i]
		}
	}
	return Value{}
}

// Defined counts defined entries.
func (s Series) Defined() int {
	n := 0
	for _, v := range s {
		if v.OK {
			n++
		}
	}
	return n
}

// WMA returns the linearly weighted moving average of x over window w.
//
// y[i] is undefined for i < w-1. Otherwise
//
//	y[i] = Σ x[i-j]·(w-j)/w / Σ (w-j)/w,  j = 0..w-1
//
// A window outside [1, len(x)] yields an all-undefined series. NaN inputs
// propagate.
func WMA(x []float64, w int) Series {
	y := make(Series, len(x))
	if w <= 0 || w > len(x) {
		return y
	}
	weights := make([]float64, w)
	var denom float64
	for j := range weights {
		weights[j] = float64(w-j) / float64(w)
		denom += weights[j]
	}
	for i := w - 1; i < len(x); i++ {
		var num float64
		for j, wt := range weights {
			num += x[i-j] * wt
		}
		y[i] = Some(num / denom)
	}
	return y
}

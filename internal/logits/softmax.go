package logits

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogSoftmax writes log(softmax(logits)) into dst and returns it. dst is
// reallocated when too small; it may alias logits.
func LogSoftmax(dst, logits []float64) []float64 {
	if cap(dst) < len(logits) {
		dst = make([]float64, len(logits))
	}
	dst = dst[:len(logits)]
	if len(logits) == 0 {
		return dst
	}
	lse := floats.LogSumExp(logits)
	if math.IsInf(lse, 0) || math.IsNaN(lse) {
		// Degenerate row: fall back to a uniform distribution.
		u := -math.Log(float64(len(logits)))
		for i := range dst {
			dst[i] = u
		}
		return dst
	}
	for i, l := range logits {
		dst[i] = l - lse
	}
	return dst
}

// LogSoftmax32 widens float32 model output and applies LogSoftmax.
func LogSoftmax32(dst []float64, logits []float32) []float64 {
	if cap(dst) < len(logits) {
		dst = make([]float64, len(logits))
	}
	dst = dst[:len(logits)]
	for i, l := range logits {
		dst[i] = float64(l)
	}
	return LogSoftmax(dst, dst)
}

package logits

// TopK returns the indices and values of the k largest elements of values,
// ordered from largest to smallest. Equal values keep their input order, so
// the lower index wins a tie. idx and val are scratch buffers that are reused
// when large enough; callers may pass nil.
// This is an O(N*K) insertion selection suitable for small K.
func TopK(values []float64, k int, idx []int, val []float64) ([]int, []float64) {
	if k <= 0 {
		return idx[:0], val[:0]
	}
	k = min(k, len(values))
	if cap(idx) < k+1 {
		idx = make([]int, 0, k+1)
	}
	if cap(val) < k+1 {
		val = make([]float64, 0, k+1)
	}
	topIdx := idx[:0]
	topVal := val[:0]

	for i, v := range values {
		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)

		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	return topIdx, topVal
}

// Argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func Argmax(x []float64) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

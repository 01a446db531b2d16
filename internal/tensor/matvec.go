package tensor

// MatVec computes dst = w * x, where len(x) == w.C and len(dst) >= w.R.
func MatVec(dst []float32, w *Mat, x []float32) {
	if len(x) != w.C {
		panic("matvec: input length mismatch")
	}
	if len(dst) < w.R {
		panic("matvec: output buffer too small")
	}
	for r := 0; r < w.R; r++ {
		row := w.Data[r*w.Stride : r*w.Stride+w.C]
		var sum float32
		for j, v := range row {
			sum += v * x[j]
		}
		dst[r] = sum
	}
}

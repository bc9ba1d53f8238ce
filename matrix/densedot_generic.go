//go:build !(goexperiment.simd && amd64)

package matrix

const simdCompiled = false

func denseDotSIMD(x, y []float32) float32 {
	return denseDotNaive(x, y)
}

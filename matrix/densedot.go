package matrix

import (
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// denseDot computes sum(x[i] * y[i]).  It is chosen once at startup.
var denseDot = denseDotNaive

// denseDotKernel names the kernel installed in denseDot.
var denseDotKernel = "naive"

func init() {
	// The vectorized kernel only exists when built with GOEXPERIMENT=simd on
	// amd64, and needs AVX2 + FMA at runtime.
	if simdCompiled && cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3) {
		denseDot = denseDotSIMD
		denseDotKernel = "simd-avx2"
	}
}

func denseDotNaive(x, y []float32) float32 {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	var sum float32
	for i := range len(x) {
		sum += x[i] * y[i]
	}
	return sum
}

// Features describes the active backend, the dot kernel and the CPU it was
// selected for.
func Features() string {
	var b strings.Builder
	b.WriteString("backend=")
	b.WriteString(current.String())
	b.WriteString(" dot-kernel=")
	b.WriteString(denseDotKernel)
	b.WriteString(" cpu=")
	b.WriteString(strings.TrimSpace(cpuid.CPU.BrandName))
	if cpuid.CPU.Supports(cpuid.AVX2) {
		b.WriteString(" avx2")
	}
	if cpuid.CPU.Supports(cpuid.FMA3) {
		b.WriteString(" fma3")
	}
	return b.String()
}

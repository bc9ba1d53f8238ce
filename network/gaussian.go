package network

import (
	"math"
	"math/rand"

	"github.com/chewxy/math32"
)

// Gaussian draws standard normal samples with the Box-Muller transform.  Each
// pair of uniforms yields two samples; the second is handed out by the next
// call.
type Gaussian struct {
	r *rand.Rand

	cached    float32
	hasCached bool
}

func NewGaussian(seed int64) *Gaussian {
	return NewGaussianFromRand(rand.New(rand.NewSource(seed)))
}

func NewGaussianFromRand(r *rand.Rand) *Gaussian {
	return &Gaussian{r: r}
}

// Next returns a sample from N(0, 1).
func (g *Gaussian) Next() float32 {
	if g.hasCached {
		g.hasCached = false
		return g.cached
	}

	var u1, u2 float32
	for {
		u1 = g.r.Float32()
		u2 = g.r.Float32()
		// log(u1) must be finite.
		if u1 > minNormalFloat32 {
			break
		}
	}

	mag := math32.Sqrt(-2 * math32.Log(u1))
	theta := 2 * math.Pi * u2

	g.cached = mag * math32.Sin(theta)
	g.hasCached = true
	return mag * math32.Cos(theta)
}

package domain

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// RiskGradient returns a placeholder risk value in [0, 1] for each of n path
// points. Three to five key points are spread evenly along the path and joined
// with ease-in-out cubic curves. The values are seeded from the encoded path,
// so a path always gets the same gradient.
func RiskGradient(encodedPath string, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	h := fnv.New64a()
	h.Write([]byte(encodedPath)) //nolint:errcheck // hash writes never fail
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	keys := min(3+rng.IntN(3), n)
	if keys == 1 {
		out[0] = rng.Float64()
		return out
	}

	pos := make([]int, keys)
	val := make([]float64, keys)
	for k := range keys {
		pos[k] = int(math.Round(float64(k) * float64(n-1) / float64(keys-1)))
		val[k] = rng.Float64()
	}

	for k := 0; k < keys-1; k++ {
		from, to := pos[k], pos[k+1]
		span := float64(to - from)
		for i := from; i <= to; i++ {
			t := 0.0
			if span > 0 {
				t = float64(i-from) / span
			}
			out[i] = val[k] + (val[k+1]-val[k])*easeInOutCubic(t)
		}
	}
	return out
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

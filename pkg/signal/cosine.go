package signal

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CosineDrift builds a discrete cosine (DCT-II) drift basis covering
// frequencies below highPassHz for nFrames timepoints sampled every tr
// seconds. The constant term is omitted: callers center their design
// columns, and a constant would collapse to zero there.
//
// The number of basis functions is floor(2 * duration * highPassHz),
// capped at nFrames-1 so the basis never saturates the sample count.
func CosineDrift(highPassHz, tr float64, nFrames int) *mat.Dense {
	if nFrames < 2 || highPassHz <= 0 || tr <= 0 {
		return nil
	}
	duration := float64(nFrames) * tr
	order := int(math.Floor(2 * duration * highPassHz))
	if order > nFrames-1 {
		order = nFrames - 1
	}
	if order < 1 {
		return nil
	}

	basis := mat.NewDense(nFrames, order, nil)
	norm := math.Sqrt(2 / float64(nFrames))
	for k := 1; k <= order; k++ {
		for i := 0; i < nFrames; i++ {
			basis.Set(i, k-1, norm*math.Cos((math.Pi/float64(nFrames))*(float64(i)+0.5)*float64(k)))
		}
	}
	return basis
}

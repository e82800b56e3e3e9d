package signal

import (
	"fmt"
	"math"
)

// butterworthOrder matches the filter order used by the reference
// denoising stack for its high-pass option.
const butterworthOrder = 5

// biquad is one second-order (or degenerate first-order) filter
// section with normalized a0 == 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// HighPassFilter is a zero-phase Butterworth high-pass filter realized
// as cascaded biquad sections.
type HighPassFilter struct {
	sections []biquad
}

// NewHighPass designs a Butterworth high-pass filter with the given
// cutoff frequency for data sampled every tr seconds. The cutoff must
// sit strictly between zero and the Nyquist frequency.
func NewHighPass(cutoffHz, tr float64) (*HighPassFilter, error) {
	if tr <= 0 {
		return nil, fmt.Errorf("repetition time must be positive, got %g", tr)
	}
	fs := 1 / tr
	if cutoffHz <= 0 || cutoffHz >= fs/2 {
		return nil, fmt.Errorf("high-pass cutoff %gHz outside (0, %gHz) for TR %gs", cutoffHz, fs/2, tr)
	}

	// Bilinear transform with frequency prewarping.
	k := 2 * fs
	wc := k * math.Tan(math.Pi*cutoffHz/fs)

	var sections []biquad

	// Conjugate pole pairs of the analog Butterworth prototype,
	// high-pass transformed: s^2 / (s^2 + 2*sin(alpha)*wc*s + wc^2).
	pairs := butterworthOrder / 2
	for i := 1; i <= pairs; i++ {
		alpha := math.Pi * float64(2*i-1) / float64(2*butterworthOrder)
		beta := 2 * math.Sin(alpha) * wc
		gamma := wc * wc

		a0 := k*k + beta*k + gamma
		sections = append(sections, biquad{
			b0: k * k / a0,
			b1: -2 * k * k / a0,
			b2: k * k / a0,
			a1: 2 * (gamma - k*k) / a0,
			a2: (k*k - beta*k + gamma) / a0,
		})
	}

	// Odd orders contribute one real pole: s / (s + wc).
	if butterworthOrder%2 == 1 {
		a0 := k + wc
		sections = append(sections, biquad{
			b0: k / a0,
			b1: -k / a0,
			a1: (wc - k) / a0,
		})
	}

	return &HighPassFilter{sections: sections}, nil
}

// Apply filters x forward and backward through the cascade so the
// result has zero phase shift. The input is extended at both ends by
// odd reflection to suppress edge transients; x itself is not
// modified.
func (f *HighPassFilter) Apply(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	padlen := 3 * (2*len(f.sections) + 1)
	if padlen > n-1 {
		padlen = n - 1
	}

	ext := make([]float64, n+2*padlen)
	for i := 0; i < padlen; i++ {
		ext[i] = 2*x[0] - x[padlen-i]
	}
	copy(ext[padlen:], x)
	for i := 0; i < padlen; i++ {
		ext[padlen+n+i] = 2*x[n-1] - x[n-2-i]
	}

	f.cascade(ext)
	reverse(ext)
	f.cascade(ext)
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[padlen:padlen+n])
	return out
}

// cascade runs every section over the buffer in place (direct form II
// transposed). Each section starts from the steady state it would have
// reached had the first sample been applied forever, so a constant
// input produces the filter's DC response immediately instead of a
// long start-up transient.
func (f *HighPassFilter) cascade(x []float64) {
	for _, s := range f.sections {
		x0 := x[0]
		dcGain := (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
		yss := dcGain * x0
		z1 := yss - s.b0*x0
		z2 := s.b2*x0 - s.a2*yss
		for i, v := range x {
			y := s.b0*v + z1
			z1 = s.b1*v - s.a1*y + z2
			z2 = s.b2*v - s.a2*y
			x[i] = y
		}
	}
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

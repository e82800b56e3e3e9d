package signal

import (
	"math"
	"testing"
)

func TestNewHighPassValidation(t *testing.T) {
	if _, err := NewHighPass(0.008, 0); err == nil {
		t.Error("Expected an error for a non-positive TR")
	}
	if _, err := NewHighPass(0, 2); err == nil {
		t.Error("Expected an error for a zero cutoff")
	}
	// Nyquist for TR=2s is 0.25Hz.
	if _, err := NewHighPass(0.3, 2); err == nil {
		t.Error("Expected an error for a cutoff beyond Nyquist")
	}
	if _, err := NewHighPass(1.0/128, 2); err != nil {
		t.Errorf("Expected a valid design, got %v", err)
	}
}

func TestHighPassRejectsDC(t *testing.T) {
	filter, err := NewHighPass(1.0/128, 2)
	if err != nil {
		t.Fatalf("Filter design failed: %v", err)
	}

	x := make([]float64, 200)
	for i := range x {
		x[i] = 7.5
	}
	y := filter.Apply(x)
	if len(y) != len(x) {
		t.Fatalf("Expected output length %d, got %d", len(x), len(y))
	}
	for i, v := range y {
		if math.Abs(v) > 1e-6 {
			t.Fatalf("DC should be rejected, got %g at sample %d", v, i)
		}
	}
	// The input buffer is untouched.
	if x[0] != 7.5 || x[199] != 7.5 {
		t.Error("Apply must not modify its input")
	}
}

func TestHighPassKeepsFastOscillation(t *testing.T) {
	filter, err := NewHighPass(1.0/128, 2)
	if err != nil {
		t.Fatalf("Filter design failed: %v", err)
	}

	// An alternating tone sits at the Nyquist frequency, far above
	// the cutoff; zero-phase filtering should keep it nearly intact.
	n := 200
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Pow(-1, float64(i))
	}
	y := filter.Apply(x)
	for i := n / 4; i < 3*n/4; i++ {
		if math.Abs(y[i]-x[i]) > 0.1 {
			t.Fatalf("Fast oscillation distorted at sample %d: in %g, out %g", i, x[i], y[i])
		}
	}
}

func TestHighPassSuppressesDrift(t *testing.T) {
	filter, err := NewHighPass(1.0/100, 1)
	if err != nil {
		t.Fatalf("Filter design failed: %v", err)
	}

	// Drift at 1/1000 Hz is a decade below the 1/100 Hz cutoff.
	n := 500
	x := make([]float64, n)
	var in2 float64
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * float64(i) / 1000)
		in2 += x[i] * x[i]
	}
	y := filter.Apply(x)
	var out2 float64
	for _, v := range y {
		out2 += v * v
	}
	if out2 > in2/10 {
		t.Errorf("Drift should be suppressed: residual power %.1f%%", 100*out2/in2)
	}
}

func TestHighPassShortInput(t *testing.T) {
	filter, err := NewHighPass(1.0/128, 2)
	if err != nil {
		t.Fatalf("Filter design failed: %v", err)
	}
	// Shorter than the preferred padding length.
	y := filter.Apply([]float64{1, 2, 3, 4, 5})
	if len(y) != 5 {
		t.Fatalf("Expected 5 output samples, got %d", len(y))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Non-finite output %g at sample %d", v, i)
		}
	}
	if out := filter.Apply(nil); out != nil {
		t.Error("Empty input should produce empty output")
	}
}

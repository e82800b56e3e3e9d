package signal

import (
	"math"
	"testing"

	"fmriclean/pkg/volume"
)

// condensedSeries builds a small series with distinguishable volumes:
// every voxel of volume i holds the value i+1.
func condensedSeries(nVols int) *volume.Series {
	s := volume.NewSeries(2, 2, 2, nVols)
	for t := 0; t < nVols; t++ {
		frame := s.Frame(t)
		for i := range frame {
			frame[i] = float64(t + 1)
		}
	}
	return s
}

func maskWithout(n int, excluded ...int) []int {
	skip := make(map[int]bool)
	for _, idx := range excluded {
		skip[idx] = true
	}
	var mask []int
	for i := 0; i < n; i++ {
		if !skip[i] {
			mask = append(mask, i)
		}
	}
	return mask
}

func TestPadRoundTrip(t *testing.T) {
	// A typical run: 116 post-drop volumes, outliers {5, 6, 40}.
	nVols := 116
	sampleMask := maskWithout(nVols, 5, 6, 40)
	denoised := condensedSeries(len(sampleMask))

	padded, err := Pad(denoised, sampleMask, nVols)
	if err != nil {
		t.Fatalf("Pad failed: %v", err)
	}
	if padded.NT != nVols {
		t.Fatalf("Expected %d padded volumes, got %d", nVols, padded.NT)
	}

	member := make(map[int]bool)
	for _, idx := range sampleMask {
		member[idx] = true
	}

	cursor := 0
	for i := 0; i < nVols; i++ {
		frame := padded.Frame(i)
		if member[i] {
			// Non-missing volumes appear in denoised order.
			want := denoised.Frame(cursor)
			for v := range frame {
				if frame[v] != want[v] {
					t.Fatalf("Volume %d voxel %d: expected %g, got %g", i, v, want[v], frame[v])
				}
			}
			cursor++
		} else {
			for v := range frame {
				if !math.IsNaN(frame[v]) {
					t.Fatalf("Scrubbed volume %d voxel %d should be NaN, got %g", i, v, frame[v])
				}
			}
		}
	}
	if cursor != denoised.NT {
		t.Fatalf("Expected to consume all %d denoised volumes, used %d", denoised.NT, cursor)
	}
}

func TestPadNoGaps(t *testing.T) {
	// An empty outlier list means no NaN volumes are inserted.
	denoised := condensedSeries(10)
	padded, err := Pad(denoised, maskWithout(10), 10)
	if err != nil {
		t.Fatalf("Pad failed: %v", err)
	}
	if padded.NT != denoised.NT {
		t.Fatalf("Expected identical lengths, got %d vs %d", padded.NT, denoised.NT)
	}
	for t2 := 0; t2 < 10; t2++ {
		want := denoised.Frame(t2)
		got := padded.Frame(t2)
		for v := range got {
			if got[v] != want[v] {
				t.Fatalf("Volume %d differs without scrubbing", t2)
			}
		}
	}
}

func TestPadErrors(t *testing.T) {
	denoised := condensedSeries(4)

	t.Run("MaskLengthMismatch", func(t *testing.T) {
		if _, err := Pad(denoised, []int{0, 1, 2}, 6); err == nil {
			t.Fatal("Expected an error when mask length differs from denoised length")
		}
	})

	t.Run("IndexBeyondSeries", func(t *testing.T) {
		if _, err := Pad(denoised, []int{0, 1, 2, 9}, 6); err == nil {
			t.Fatal("Expected an error for a mask index beyond the padded length")
		}
	})

	t.Run("NotIncreasing", func(t *testing.T) {
		if _, err := Pad(denoised, []int{0, 2, 2, 3}, 6); err == nil {
			t.Fatal("Expected an error for a non-increasing mask")
		}
	})
}

// Package export writes condensed in-brain timecourses as NumPy .npy
// matrices for downstream statistical tooling.
package export

import (
	"fmt"

	"github.com/kshedden/gonpy"

	"fmriclean/pkg/volume"
)

// WriteMaskedMatrix writes the in-mask voxel-by-time matrix of a
// series to path in .npy format. Rows are in-mask voxels in ascending
// linear-index order; columns are timepoints.
func WriteMaskedMatrix(path string, s *volume.Series, mask *volume.Mask) error {
	if !mask.SameSpace(s) {
		return fmt.Errorf("mask dimensions %dx%dx%d do not match series %dx%dx%d",
			mask.NX, mask.NY, mask.NZ, s.NX, s.NY, s.NZ)
	}

	voxels := mask.Indices()
	data := make([]float64, len(voxels)*s.NT)
	for i, voxel := range voxels {
		for t := 0; t < s.NT; t++ {
			data[i*s.NT+t] = s.Frame(t)[voxel]
		}
	}

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to open npy file: %w", err)
	}
	w.Shape = []int{len(voxels), s.NT}
	w.Version = 2
	if err := w.WriteFloat64(data); err != nil {
		return fmt.Errorf("failed to write npy file: %w", err)
	}
	return nil
}

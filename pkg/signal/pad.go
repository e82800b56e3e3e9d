package signal

import (
	"fmt"

	"fmriclean/pkg/volume"
)

// Pad expands a condensed denoised series back to the full post-drop
// volume count. Indices in sampleMask receive the next denoised volume
// in order; every other index receives an all-NaN volume of identical
// spatial shape, so scrubbed timepoints stay positionally marked as
// missing and total frame ordering is preserved.
func Pad(denoised *volume.Series, sampleMask []int, nVols int) (*volume.Series, error) {
	if len(sampleMask) != denoised.NT {
		return nil, fmt.Errorf("sample mask has %d entries but denoised series has %d volumes",
			len(sampleMask), denoised.NT)
	}
	if err := validateSampleMask(sampleMask, nVols); err != nil {
		return nil, err
	}

	padded := volume.NewSeries(denoised.NX, denoised.NY, denoised.NZ, nVols)
	padded.VoxelSize = denoised.VoxelSize

	member := make(map[int]bool, len(sampleMask))
	for _, t := range sampleMask {
		member[t] = true
	}

	cursor := 0
	for t := 0; t < nVols; t++ {
		if member[t] {
			copy(padded.Frame(t), denoised.Frame(cursor))
			cursor++
		} else {
			padded.FillNaN(t)
		}
	}

	return padded, nil
}

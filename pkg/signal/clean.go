// Package signal implements the per-run conditioning core: fused
// detrending, confound regression, temporal filtering and
// standardization restricted to the retained sample set, plus the
// gap-padded reconstruction of scrubbed series.
package signal

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"fmriclean/internal/models"
	"fmriclean/pkg/volume"
)

// CleanOptions parameterize one run's denoising pass.
type CleanOptions struct {
	// TR is the repetition time in seconds.
	TR float64

	// HighPassSec is the high-pass cutoff period in seconds; it is
	// converted to a cutoff frequency as 1/period. Ignored when
	// Filter is FilterNone.
	HighPassSec float64

	// Filter selects the temporal filter mode.
	Filter models.FilterMode

	// Detrend enables removal of each voxel's linear trend.
	Detrend bool

	// Standardize selects the final per-voxel normalization.
	Standardize models.StandardizeMode

	// Workers bounds the voxel fan-out; <= 0 means one per CPU.
	Workers int
}

// Clean applies the configured conditioning to every in-mask voxel of
// series, restricted to the timepoints in sampleMask, and returns the
// condensed denoised series of length len(sampleMask). Out-of-mask
// voxels are zero in the output.
//
// The regressor matrix must have one row per timepoint of the full
// post-drop series; sample selection happens here, not in the matrix.
func Clean(series *volume.Series, mask *volume.Mask, regressors *mat.Dense, sampleMask []int, opts CleanOptions) (*volume.Series, error) {
	// Configuration is validated before any numeric work begins.
	switch opts.Filter {
	case models.FilterNone, models.FilterCosine, models.FilterButterworth:
	default:
		return nil, fmt.Errorf("unrecognized filter mode %v", opts.Filter)
	}
	if opts.Filter != models.FilterNone && opts.HighPassSec <= 0 {
		return nil, fmt.Errorf("high-pass cutoff period must be positive for %s filtering, got %g",
			opts.Filter, opts.HighPassSec)
	}
	if opts.Filter != models.FilterNone && opts.TR <= 0 {
		return nil, fmt.Errorf("repetition time must be positive for %s filtering, got %g",
			opts.Filter, opts.TR)
	}

	if !mask.SameSpace(series) {
		return nil, fmt.Errorf("mask dimensions %dx%dx%d do not match series %dx%dx%d",
			mask.NX, mask.NY, mask.NZ, series.NX, series.NY, series.NZ)
	}
	if regressors != nil {
		if rows, _ := regressors.Dims(); rows != series.NT {
			return nil, fmt.Errorf("regressor matrix has %d rows for a series of %d volumes", rows, series.NT)
		}
	}
	if err := validateSampleMask(sampleMask, series.NT); err != nil {
		return nil, err
	}

	m := len(sampleMask)
	var cutoffHz float64
	if opts.Filter != models.FilterNone {
		cutoffHz = 1 / opts.HighPassSec
	}

	var filter *HighPassFilter
	if opts.Filter == models.FilterButterworth {
		var err error
		filter, err = NewHighPass(cutoffHz, opts.TR)
		if err != nil {
			return nil, err
		}
	}

	design, pinv, err := buildDesign(regressors, sampleMask, series.NT, cutoffHz, opts, filter)
	if err != nil {
		return nil, err
	}

	out := volume.NewSeries(series.NX, series.NY, series.NZ, m)
	out.VoxelSize = series.VoxelSize

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	voxels := mask.Indices()
	jobs := make(chan int, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			y := make([]float64, m)
			var beta []float64
			if design != nil {
				_, p := design.Dims()
				beta = make([]float64, p)
			}
			for voxel := range jobs {
				for i, t := range sampleMask {
					y[i] = series.Frame(t)[voxel]
				}
				cleanVoxel(y, sampleMask, design, pinv, beta, filter, opts)
				for i := range y {
					out.Frame(i)[voxel] = y[i]
				}
			}
		}()
	}
	for _, voxel := range voxels {
		jobs <- voxel
	}
	close(jobs)
	wg.Wait()

	return out, nil
}

// cleanVoxel conditions one voxel's retained samples in place:
// detrend, Butterworth filter, confound regression, standardization.
func cleanVoxel(y []float64, sampleMask []int, design, pinv *mat.Dense, beta []float64, filter *HighPassFilter, opts CleanOptions) {
	if opts.Detrend {
		detrend(y, sampleMask)
	}
	if filter != nil {
		copy(y, filter.Apply(y))
	}
	if design != nil {
		_, p := design.Dims()
		for j := 0; j < p; j++ {
			beta[j] = floats.Dot(pinv.RawRowView(j), y)
		}
		for i := range y {
			y[i] -= floats.Dot(design.RawRowView(i), beta)
		}
	}
	standardize(y, opts.Standardize)
}

// buildDesign assembles the confound design matrix restricted to the
// retained samples: regressor rows at sampleMask, plus the cosine
// drift basis in cosine mode, Butterworth-filtered in butterworth
// mode, all columns centered. It returns the design and its
// pseudoinverse, or nil when no columns remain.
func buildDesign(regressors *mat.Dense, sampleMask []int, nVols int, cutoffHz float64, opts CleanOptions, filter *HighPassFilter) (*mat.Dense, *mat.Dense, error) {
	m := len(sampleMask)
	var cols [][]float64

	if regressors != nil {
		_, k := regressors.Dims()
		for j := 0; j < k; j++ {
			col := make([]float64, m)
			for i, t := range sampleMask {
				col[i] = regressors.At(t, j)
			}
			cols = append(cols, col)
		}
	}

	if opts.Filter == models.FilterCosine {
		// The cosine basis is computed over the full post-drop frame
		// grid and then restricted to the retained samples, so drift
		// phase stays aligned with real acquisition time.
		basis := CosineDrift(cutoffHz, opts.TR, nVols)
		if basis != nil {
			_, k := basis.Dims()
			for j := 0; j < k; j++ {
				col := make([]float64, m)
				for i, t := range sampleMask {
					col[i] = basis.At(t, j)
				}
				cols = append(cols, col)
			}
		}
	}

	if filter != nil {
		for i, col := range cols {
			cols[i] = filter.Apply(col)
		}
	}

	// Center the columns and drop any that carry no variance; a
	// constant column would make the system singular.
	kept := cols[:0]
	for _, col := range cols {
		floats.AddConst(-stat.Mean(col, nil), col)
		if floats.Norm(col, 2) > 1e-10 {
			kept = append(kept, col)
		}
	}
	if len(kept) == 0 {
		return nil, nil, nil
	}
	if m <= len(kept) {
		return nil, nil, fmt.Errorf("%d retained samples cannot fit %d nuisance columns", m, len(kept))
	}

	design := mat.NewDense(m, len(kept), nil)
	for j, col := range kept {
		design.SetCol(j, col)
	}

	var qr mat.QR
	qr.Factorize(design)
	eye := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		eye.Set(i, i, 1)
	}
	pinv := mat.NewDense(len(kept), m, nil)
	if err := qr.SolveTo(pinv, false, eye); err != nil {
		return nil, nil, fmt.Errorf("nuisance design is rank deficient: %w", err)
	}
	return design, pinv, nil
}

// detrend removes the least-squares linear trend (including the mean)
// from y, using the retained frame indices as the time axis so gaps
// from scrubbing keep their true spacing.
func detrend(y []float64, sampleMask []int) {
	n := len(y)
	if n < 2 {
		return
	}
	var tMean float64
	for _, t := range sampleMask {
		tMean += float64(t)
	}
	tMean /= float64(n)
	yMean := stat.Mean(y, nil)

	var num, den float64
	for i, t := range sampleMask {
		dt := float64(t) - tMean
		num += dt * (y[i] - yMean)
		den += dt * dt
	}
	slope := 0.0
	if den > 0 {
		slope = num / den
	}
	for i, t := range sampleMask {
		y[i] -= yMean + slope*(float64(t)-tMean)
	}
}

// standardize applies the configured normalization in place.
func standardize(y []float64, mode models.StandardizeMode) {
	switch mode {
	case models.StandardizeZScore:
		mean := stat.Mean(y, nil)
		std := stat.StdDev(y, nil)
		if std == 0 || math.IsNaN(std) {
			zero(y)
			return
		}
		for i := range y {
			y[i] = (y[i] - mean) / std
		}
	case models.StandardizePSC:
		mean := stat.Mean(y, nil)
		if math.Abs(mean) < 1e-12 {
			zero(y)
			return
		}
		for i := range y {
			y[i] = (y[i]/mean - 1) * 100
		}
	}
}

func zero(y []float64) {
	for i := range y {
		y[i] = 0
	}
}

// validateSampleMask checks the strictly-increasing-subset invariant.
func validateSampleMask(sampleMask []int, nVols int) error {
	if len(sampleMask) == 0 {
		return fmt.Errorf("sample mask is empty: no volumes retained")
	}
	prev := -1
	for _, t := range sampleMask {
		if t <= prev {
			return fmt.Errorf("sample mask is not strictly increasing at index %d", t)
		}
		if t >= nVols {
			return fmt.Errorf("sample mask index %d out of range for %d volumes", t, nVols)
		}
		prev = t
	}
	return nil
}

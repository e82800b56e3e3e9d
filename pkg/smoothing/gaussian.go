// Package smoothing implements optional spatial Gaussian smoothing of
// a 4-D series, restricted to a brain mask. A zero kernel width makes
// the stage an identity pass-through so the pipeline shape never
// changes with configuration.
package smoothing

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"fmriclean/pkg/volume"
)

// fwhmToSigma converts a full-width-at-half-maximum to the Gaussian
// standard deviation: FWHM = 2*sqrt(2*ln 2) * sigma.
const fwhmToSigma = 2.3548200450309493

// Smooth applies a separable 3-D Gaussian of the given FWHM (mm) to
// every volume of the series, within the mask only. Kernel weights are
// renormalized over in-mask neighbors so intensities do not bleed
// across the brain edge. fwhmMM == 0 returns the input unchanged.
func Smooth(s *volume.Series, mask *volume.Mask, fwhmMM float64, workers int) (*volume.Series, error) {
	if fwhmMM == 0 {
		return s, nil
	}
	if fwhmMM < 0 {
		return nil, fmt.Errorf("smoothing kernel must be non-negative, got %gmm", fwhmMM)
	}
	if !mask.SameSpace(s) {
		return nil, fmt.Errorf("mask dimensions %dx%dx%d do not match series %dx%dx%d",
			mask.NX, mask.NY, mask.NZ, s.NX, s.NY, s.NZ)
	}

	kernels := make([][]float64, 3)
	for axis := 0; axis < 3; axis++ {
		kernels[axis] = gaussianKernel(fwhmMM / fwhmToSigma / s.VoxelSize[axis])
	}

	out := volume.NewSeries(s.NX, s.NY, s.NZ, s.NT)
	out.VoxelSize = s.VoxelSize

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobs := make(chan int, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			scratch := make([]float64, s.VolumeLen())
			for t := range jobs {
				smoothVolume(s.Frame(t), out.Frame(t), scratch, mask, s.NX, s.NY, s.NZ, kernels)
			}
		}()
	}
	for t := 0; t < s.NT; t++ {
		jobs <- t
	}
	close(jobs)
	wg.Wait()

	return out, nil
}

// gaussianKernel returns a normalized kernel truncated at three
// standard deviations.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// smoothVolume runs the three separable passes for one volume. src and
// dst are full-volume frames; scratch is reused between passes.
func smoothVolume(src, dst, scratch []float64, mask *volume.Mask, nx, ny, nz int, kernels [][]float64) {
	copy(dst, src)
	pass(dst, scratch, mask, nx, ny, nz, kernels[0], 0)
	pass(scratch, dst, mask, nx, ny, nz, kernels[1], 1)
	pass(dst, scratch, mask, nx, ny, nz, kernels[2], 2)
	copy(dst, scratch)
}

// pass convolves along one axis, renormalizing over in-mask neighbors.
// Out-of-mask voxels pass through unchanged.
func pass(src, dst []float64, mask *volume.Mask, nx, ny, nz int, kernel []float64, axis int) {
	radius := len(kernel) / 2
	stride := [3]int{1, nx, nx * ny}[axis]
	dim := [3]int{nx, ny, nz}[axis]

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				idx := z*ny*nx + y*nx + x
				if !mask.In[idx] {
					dst[idx] = src[idx]
					continue
				}
				pos := [3]int{x, y, z}[axis]
				var acc, norm float64
				for k := -radius; k <= radius; k++ {
					p := pos + k
					if p < 0 || p >= dim {
						continue
					}
					nIdx := idx + k*stride
					if !mask.In[nIdx] {
						continue
					}
					w := kernel[k+radius]
					acc += w * src[nIdx]
					norm += w
				}
				if norm > 0 {
					dst[idx] = acc / norm
				} else {
					dst[idx] = src[idx]
				}
			}
		}
	}
}

// Package volume models 4-D volumetric series and binary brain masks,
// and bridges them to NIfTI-1 files on disk.
package volume

import (
	"fmt"
	"math"
)

// Series is a 4-D volume: three spatial dimensions and time. Data is a
// flat row-major array indexed t, then z, y, x, so one timepoint's
// volume occupies a contiguous block.
type Series struct {
	NX, NY, NZ, NT int

	// VoxelSize is the physical voxel extent in mm per spatial axis.
	// Axes with unknown extent are set to 1.
	VoxelSize [3]float64

	Data []float64
}

// NewSeries allocates a zero-filled series with the given dimensions.
func NewSeries(nx, ny, nz, nt int) *Series {
	return &Series{
		NX:        nx,
		NY:        ny,
		NZ:        nz,
		NT:        nt,
		VoxelSize: [3]float64{1, 1, 1},
		Data:      make([]float64, nx*ny*nz*nt),
	}
}

// VolumeLen returns the number of voxels in one timepoint's volume.
func (s *Series) VolumeLen() int { return s.NX * s.NY * s.NZ }

// At returns the value at spatial position (x, y, z) and timepoint t.
func (s *Series) At(x, y, z, t int) float64 {
	return s.Data[t*s.VolumeLen()+z*s.NY*s.NX+y*s.NX+x]
}

// Set stores a value at spatial position (x, y, z) and timepoint t.
func (s *Series) Set(x, y, z, t int, v float64) {
	s.Data[t*s.VolumeLen()+z*s.NY*s.NX+y*s.NX+x] = v
}

// Frame returns the backing slice for one timepoint's volume.
func (s *Series) Frame(t int) []float64 {
	n := s.VolumeLen()
	return s.Data[t*n : (t+1)*n]
}

// SameSpace reports whether two series share spatial dimensions.
func (s *Series) SameSpace(o *Series) bool {
	return s.NX == o.NX && s.NY == o.NY && s.NZ == o.NZ
}

// DropLeading returns a new series with the first n timepoints removed.
// n == 0 returns the receiver unchanged.
func (s *Series) DropLeading(n int) (*Series, error) {
	if n == 0 {
		return s, nil
	}
	if n < 0 || n >= s.NT {
		return nil, fmt.Errorf("cannot drop %d leading volumes from a series of %d", n, s.NT)
	}
	out := &Series{
		NX:        s.NX,
		NY:        s.NY,
		NZ:        s.NZ,
		NT:        s.NT - n,
		VoxelSize: s.VoxelSize,
		Data:      make([]float64, (s.NT-n)*s.VolumeLen()),
	}
	copy(out.Data, s.Data[n*s.VolumeLen():])
	return out, nil
}

// FillNaN sets every voxel of timepoint t to NaN, marking the volume
// as missing.
func (s *Series) FillNaN(t int) {
	frame := s.Frame(t)
	for i := range frame {
		frame[i] = math.NaN()
	}
}

// Mask is a binary brain mask over one spatial grid.
type Mask struct {
	NX, NY, NZ int
	In         []bool
}

// NewMask allocates an all-false mask with the given dimensions.
func NewMask(nx, ny, nz int) *Mask {
	return &Mask{NX: nx, NY: ny, NZ: nz, In: make([]bool, nx*ny*nz)}
}

// SameSpace reports whether the mask matches a series' spatial grid.
func (m *Mask) SameSpace(s *Series) bool {
	return m.NX == s.NX && m.NY == s.NY && m.NZ == s.NZ
}

// Count returns the number of in-mask voxels.
func (m *Mask) Count() int {
	n := 0
	for _, in := range m.In {
		if in {
			n++
		}
	}
	return n
}

// Indices returns the linear voxel indices inside the mask, in
// ascending order.
func (m *Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i, in := range m.In {
		if in {
			out = append(out, i)
		}
	}
	return out
}

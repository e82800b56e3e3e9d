package volume

import (
	"fmt"
	"os"

	"github.com/KyungWonPark/nifti"
)

// LoadSeries reads a 4-D NIfTI file into a Series. The source image is
// returned alongside so its header can seed outputs written later.
func LoadSeries(path string) (*Series, *nifti.Nifti1Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("volumetric file not found: %w", err)
	}

	img := new(nifti.Nifti1Image)
	img.LoadImage(path, true)

	hdr := img.GetHeader()
	nx, ny, nz, nt := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3]), int(hdr.Dim[4])
	if nt < 1 {
		nt = 1
	}
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, nil, fmt.Errorf("volumetric file %s has invalid dimensions %dx%dx%d", path, nx, ny, nz)
	}

	s := NewSeries(nx, ny, nz, nt)
	for i := 0; i < 3; i++ {
		if v := float64(hdr.Pixdim[i+1]); v > 0 {
			s.VoxelSize[i] = v
		}
	}
	for t := 0; t < nt; t++ {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					s.Set(x, y, z, t, float64(img.GetAt(uint32(x), uint32(y), uint32(z), uint32(t))))
				}
			}
		}
	}
	return s, img, nil
}

// LoadMask reads a 3-D NIfTI file as a binary mask; any voxel with a
// positive value is in-brain.
func LoadMask(path string) (*Mask, error) {
	s, _, err := LoadSeries(path)
	if err != nil {
		return nil, err
	}
	m := NewMask(s.NX, s.NY, s.NZ)
	frame := s.Frame(0)
	for i, v := range frame {
		m.In[i] = v > 0
	}
	return m, nil
}

// SaveSeries writes a Series as a NIfTI file. When ref is non-nil its
// header is copied onto the output before the dimensions are reset to
// the series being written, preserving orientation and scaling fields.
func SaveSeries(path string, s *Series, ref *nifti.Nifti1Image) error {
	out := nifti.NewImg(s.NX, s.NY, s.NZ, s.NT)
	if ref != nil {
		out.SetNewHeader(ref.GetHeader())
	}
	out.SetHeaderDim(s.NX, s.NY, s.NZ, s.NT)

	for t := 0; t < s.NT; t++ {
		for z := 0; z < s.NZ; z++ {
			for y := 0; y < s.NY; y++ {
				for x := 0; x < s.NX; x++ {
					out.SetAt(uint32(x), uint32(y), uint32(z), uint32(t), float32(s.At(x, y, z, t)))
				}
			}
		}
	}

	out.Save(path)
	return nil
}

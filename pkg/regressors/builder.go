package regressors

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"fmriclean/pkg/confounds"
)

// Result holds one run's regressor matrix and retained-sample mask.
//
// The matrix keeps one row per post-drop timepoint regardless of
// scrubbing: outlier removal narrows which samples are used for
// fitting, not the matrix itself.
type Result struct {
	// Matrix is the nuisance design matrix, nVolsAfterDrop x k.
	// It is nil when no column kinds were requested (scrub-only
	// configurations).
	Matrix *mat.Dense

	// Columns names the matrix columns in order.
	Columns []string

	// SampleMask lists the retained timepoint indices, zero-based
	// against the post-drop series, strictly increasing.
	SampleMask []int

	// Outliers is the outlier list the mask was derived from.
	Outliers []int
}

// Build selects the requested regressor kinds from the confound table,
// applies each kind's missing-value policy, drops the leading dropvols
// rows uniformly, and computes the retained-sample mask.
//
// When scrub is true and the outlier list is non-empty, outlier indices
// (interpreted against the post-drop series) are removed from the mask.
// The mask is rebuilt from scratch rather than edited in place so the
// strictly-increasing invariant holds by construction.
func Build(table *confounds.Table, outliers []int, aliases []string, scrub bool, dropvols int) (*Result, error) {
	if dropvols < 0 {
		return nil, fmt.Errorf("dropvols must be non-negative, got %d", dropvols)
	}
	nVols := table.Rows() - dropvols
	if nVols <= 0 {
		return nil, fmt.Errorf("dropvols %d leaves no volumes (table has %d rows)", dropvols, table.Rows())
	}

	var names []string
	var cols [][]float64
	for _, alias := range aliases {
		kind, ok := Lookup(alias)
		if !ok {
			return nil, fmt.Errorf("unrecognized regressor kind %q (supported: %s)",
				alias, strings.Join(Aliases(), ", "))
		}
		for _, name := range kind.Columns {
			col, err := table.Column(name)
			if err != nil {
				return nil, err
			}
			if kind.Fill {
				for i, v := range col {
					if math.IsNaN(v) {
						col[i] = 0
					}
				}
			}
			col = col[dropvols:]
			if !kind.Fill {
				for i, v := range col {
					if math.IsNaN(v) {
						return nil, fmt.Errorf("confound column %q has a missing value at post-drop row %d", name, i)
					}
				}
			}
			names = append(names, name)
			cols = append(cols, col)
		}
	}

	var matrix *mat.Dense
	if len(cols) > 0 {
		matrix = mat.NewDense(nVols, len(cols), nil)
		for j, col := range cols {
			for i, v := range col {
				matrix.Set(i, j, v)
			}
		}
	}

	sampleMask, err := buildSampleMask(nVols, outliers, scrub)
	if err != nil {
		return nil, err
	}

	return &Result{
		Matrix:     matrix,
		Columns:    names,
		SampleMask: sampleMask,
		Outliers:   outliers,
	}, nil
}

// buildSampleMask returns [0, nVols) minus the outlier indices when
// scrubbing is enabled. Outlier indices at or beyond nVols indicate the
// detector and the drop window disagree and are rejected.
func buildSampleMask(nVols int, outliers []int, scrub bool) ([]int, error) {
	if !scrub || len(outliers) == 0 {
		mask := make([]int, nVols)
		for i := range mask {
			mask[i] = i
		}
		return mask, nil
	}

	excluded := make(map[int]bool, len(outliers))
	for _, idx := range outliers {
		if idx >= nVols {
			return nil, fmt.Errorf("outlier index %d out of range for %d post-drop volumes", idx, nVols)
		}
		excluded[idx] = true
	}

	mask := make([]int, 0, nVols-len(excluded))
	for i := 0; i < nVols; i++ {
		if !excluded[i] {
			mask = append(mask, i)
		}
	}
	return mask, nil
}

// Write persists the regressor matrix and the retained-sample vector as
// tab-separated files without header or index, named by subject and
// zero-padded run id. Output is byte-identical across reruns on the
// same inputs.
func (r *Result) Write(dir, subject string, run int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create regressor directory: %w", err)
	}

	var sb strings.Builder
	if r.Matrix != nil {
		rows, cols := r.Matrix.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if j > 0 {
					sb.WriteByte('\t')
				}
				sb.WriteString(strconv.FormatFloat(r.Matrix.At(i, j), 'g', -1, 64))
			}
			sb.WriteByte('\n')
		}
	}
	confoundFile := filepath.Join(dir, fmt.Sprintf("sub-%s_run-%02d_confounds.txt", subject, run))
	if err := os.WriteFile(confoundFile, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write regressor matrix: %w", err)
	}

	sb.Reset()
	for _, idx := range r.SampleMask {
		sb.WriteString(strconv.Itoa(idx))
		sb.WriteByte('\n')
	}
	maskFile := filepath.Join(dir, fmt.Sprintf("sub-%s_run-%02d_retained_volumes.txt", subject, run))
	if err := os.WriteFile(maskFile, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write retained-volume vector: %w", err)
	}

	return nil
}

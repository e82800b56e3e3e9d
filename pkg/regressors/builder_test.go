package regressors

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fmriclean/pkg/confounds"
)

// writeConfounds builds a confound table on disk with the named
// columns and one row per timepoint; the first nanRows rows of every
// column are missing markers.
func writeConfounds(t *testing.T, rows, nanRows int, names ...string) *confounds.Table {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(strings.Join(names, "\t"))
	sb.WriteByte('\n')
	for i := 0; i < rows; i++ {
		for j := range names {
			if j > 0 {
				sb.WriteByte('\t')
			}
			if i < nanRows {
				sb.WriteString("n/a")
			} else {
				sb.WriteString(fmt.Sprintf("%d.%d", i, j))
			}
		}
		sb.WriteByte('\n')
	}

	path := filepath.Join(t.TempDir(), "confounds.tsv")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("Failed to write confounds: %v", err)
	}
	table, err := confounds.LoadTable(path)
	if err != nil {
		t.Fatalf("Failed to load confounds: %v", err)
	}
	return table
}

func allColumns() []string {
	return []string{
		"framewise_displacement", "std_dvars",
		"a_comp_cor_00", "a_comp_cor_01", "a_comp_cor_02", "a_comp_cor_03", "a_comp_cor_04",
	}
}

func TestBuildSampleMaskProperties(t *testing.T) {
	table := writeConfounds(t, 120, 0, allColumns()...)

	// A typical run: 120 volumes, 4 dropped, outliers {5, 6, 40}.
	result, err := Build(table, []int{5, 6, 40}, []string{"FD", "DVARS", "aCompCor"}, true, 4)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	rows, cols := result.Matrix.Dims()
	if rows != 116 || cols != 7 {
		t.Fatalf("Expected 116x7 matrix, got %dx%d", rows, cols)
	}
	if len(result.SampleMask) != 113 {
		t.Fatalf("Expected 113 retained volumes, got %d", len(result.SampleMask))
	}

	// Strictly increasing subset of [0, 116) excluding the outliers.
	prev := -1
	for _, idx := range result.SampleMask {
		if idx <= prev {
			t.Fatalf("Sample mask not strictly increasing at %d", idx)
		}
		if idx < 0 || idx >= 116 {
			t.Fatalf("Sample mask index %d out of range", idx)
		}
		if idx == 5 || idx == 6 || idx == 40 {
			t.Fatalf("Outlier index %d should have been scrubbed", idx)
		}
		prev = idx
	}
}

func TestBuildNoOutliers(t *testing.T) {
	table := writeConfounds(t, 20, 0, allColumns()...)

	result, err := Build(table, nil, []string{"FD"}, true, 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(result.SampleMask) != 20 {
		t.Fatalf("Expected full mask of 20, got %d", len(result.SampleMask))
	}
	for i, idx := range result.SampleMask {
		if idx != i {
			t.Fatalf("Expected identity mask, got %d at position %d", idx, i)
		}
	}
}

func TestBuildScrubDisabled(t *testing.T) {
	table := writeConfounds(t, 20, 0, allColumns()...)

	result, err := Build(table, []int{3, 7}, []string{"FD"}, false, 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(result.SampleMask) != 20 {
		t.Fatalf("Scrubbing disabled: mask must ignore outliers, got %d entries", len(result.SampleMask))
	}
}

func TestBuildFillPolicy(t *testing.T) {
	// First row of every column is n/a; FD and DVARS fill to zero,
	// aCompCor treats missing values as fatal.
	table := writeConfounds(t, 10, 1, allColumns()...)

	result, err := Build(table, nil, []string{"FD", "DVARS"}, false, 0)
	if err != nil {
		t.Fatalf("Build failed for fillable kinds: %v", err)
	}
	if got := result.Matrix.At(0, 0); got != 0 {
		t.Errorf("Expected leading FD value filled with 0, got %g", got)
	}
	if got := result.Matrix.At(0, 1); got != 0 {
		t.Errorf("Expected leading DVARS value filled with 0, got %g", got)
	}

	if _, err := Build(table, nil, []string{"aCompCor"}, false, 0); err == nil {
		t.Fatal("Expected an error for a missing value in a non-fill kind")
	}

	// Dropping the leading row removes the missing values, so the
	// same request succeeds.
	if _, err := Build(table, nil, []string{"aCompCor"}, false, 1); err != nil {
		t.Fatalf("Build failed after dropping the missing row: %v", err)
	}
}

func TestBuildErrors(t *testing.T) {
	table := writeConfounds(t, 10, 0, allColumns()...)

	t.Run("UnknownKind", func(t *testing.T) {
		if _, err := Build(table, nil, []string{"GSR"}, false, 0); err == nil {
			t.Fatal("Expected an error for an unrecognized regressor kind")
		}
	})

	t.Run("OutlierOutOfRange", func(t *testing.T) {
		if _, err := Build(table, []int{9}, []string{"FD"}, true, 2); err == nil {
			t.Fatal("Expected an error for an outlier index beyond the post-drop range")
		}
	})

	t.Run("DropTooMany", func(t *testing.T) {
		if _, err := Build(table, nil, []string{"FD"}, false, 10); err == nil {
			t.Fatal("Expected an error when dropvols consumes the whole series")
		}
	})

	t.Run("NegativeDrop", func(t *testing.T) {
		if _, err := Build(table, nil, []string{"FD"}, false, -1); err == nil {
			t.Fatal("Expected an error for negative dropvols")
		}
	})
}

func TestWriteIsReproducible(t *testing.T) {
	table := writeConfounds(t, 30, 0, allColumns()...)
	result, err := Build(table, []int{2, 11}, []string{"FD", "aCompCor"}, true, 2)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	dir := t.TempDir()
	if err := result.Write(dir, "042", 3); err != nil {
		t.Fatalf("First write failed: %v", err)
	}

	confoundFile := filepath.Join(dir, "sub-042_run-03_confounds.txt")
	maskFile := filepath.Join(dir, "sub-042_run-03_retained_volumes.txt")
	first, err := os.ReadFile(confoundFile)
	if err != nil {
		t.Fatalf("Failed to read regressor matrix: %v", err)
	}
	firstMask, err := os.ReadFile(maskFile)
	if err != nil {
		t.Fatalf("Failed to read retained volumes: %v", err)
	}

	if err := result.Write(dir, "042", 3); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}
	second, _ := os.ReadFile(confoundFile)
	secondMask, _ := os.ReadFile(maskFile)

	if string(first) != string(second) {
		t.Error("Regressor matrix files differ between identical runs")
	}
	if string(firstMask) != string(secondMask) {
		t.Error("Retained-volume files differ between identical runs")
	}

	if len(strings.Split(strings.TrimSpace(string(first)), "\n")) != 28 {
		t.Error("Regressor matrix should have one row per post-drop volume")
	}
}

func TestLookup(t *testing.T) {
	kind, ok := Lookup("aCompCor")
	if !ok {
		t.Fatal("aCompCor should be a known kind")
	}
	if len(kind.Columns) != 5 {
		t.Errorf("aCompCor should expand to 5 columns, got %d", len(kind.Columns))
	}
	if kind.Fill {
		t.Error("aCompCor must not fill missing values")
	}

	if _, ok := Lookup("art"); ok {
		t.Error("art is a scrub switch, not a column kind")
	}
}

package bids

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fixtureLayout lays out a minimal raw dataset and derivatives tree
// for one subject with three rest runs, the second of which is flagged
// for excessive motion.
func fixtureLayout(t *testing.T) *Layout {
	t.Helper()
	root := t.TempDir()
	bidsDir := filepath.Join(root, "bids")
	derivDir := filepath.Join(root, "derivatives")

	rawFunc := filepath.Join(bidsDir, "sub-001", "func")
	if err := os.MkdirAll(rawFunc, 0755); err != nil {
		t.Fatal(err)
	}
	sidecar := filepath.Join(rawFunc, "sub-001_task-rest_run-01_bold.json")
	if err := os.WriteFile(sidecar, []byte(`{"RepetitionTime": 2.0, "TaskName": "rest"}`), 0644); err != nil {
		t.Fatal(err)
	}

	derivFunc := filepath.Join(derivDir, "sub-001", "func")
	if err := os.MkdirAll(derivFunc, 0755); err != nil {
		t.Fatal(err)
	}
	scans := strings.Join([]string{
		"filename\tacq_time\tMotionExclusion",
		"func/sub-001_task-rest_run-01_bold.nii.gz\t2024-01-01T10:00:00\tFalse",
		"func/sub-001_task-rest_run-02_bold.nii.gz\t2024-01-01T10:10:00\tTrue",
		"func/sub-001_task-rest_run-03_bold.nii.gz\t2024-01-01T10:20:00\tFalse",
		"func/sub-001_task-nback_run-01_bold.nii.gz\t2024-01-01T10:30:00\tFalse",
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(derivFunc, "sub-001_scans.tsv"), []byte(scans), 0644); err != nil {
		t.Fatal(err)
	}

	return &Layout{BidsDir: bidsDir, DerivDir: derivDir}
}

func TestEligibleRuns(t *testing.T) {
	layout := fixtureLayout(t)

	runs, err := layout.EligibleRuns("001", "", "rest", []int{1, 2, 3})
	if err != nil {
		t.Fatalf("EligibleRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0] != 1 || runs[1] != 3 {
		t.Fatalf("Expected runs [1 3], got %v", runs)
	}
}

func TestEligibleRunsRespectsRequestList(t *testing.T) {
	layout := fixtureLayout(t)

	runs, err := layout.EligibleRuns("001", "", "rest", []int{3})
	if err != nil {
		t.Fatalf("EligibleRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0] != 3 {
		t.Fatalf("Expected runs [3], got %v", runs)
	}
}

func TestEligibleRunsNoneLeft(t *testing.T) {
	layout := fixtureLayout(t)

	// Run 2 is motion-excluded; asking only for it leaves nothing.
	_, err := layout.EligibleRuns("001", "", "rest", []int{2})
	if !errors.Is(err, ErrNoEligibleRuns) {
		t.Fatalf("Expected ErrNoEligibleRuns, got %v", err)
	}

	// A different task has no runs either.
	_, err = layout.EligibleRuns("001", "", "stories", []int{1, 2, 3})
	if !errors.Is(err, ErrNoEligibleRuns) {
		t.Fatalf("Expected ErrNoEligibleRuns for an unknown task, got %v", err)
	}
}

func TestEligibleRunsMissingScansFile(t *testing.T) {
	layout := fixtureLayout(t)

	// A subject without a scans file is a discovery failure, not a
	// no-eligible-data condition.
	_, err := layout.EligibleRuns("999", "", "rest", []int{1})
	if err == nil {
		t.Fatal("Expected an error for a missing scans file")
	}
	if errors.Is(err, ErrNoEligibleRuns) {
		t.Fatal("A missing scans file must not be conflated with no eligible runs")
	}
}

func TestRepetitionTime(t *testing.T) {
	layout := fixtureLayout(t)

	tr, err := layout.RepetitionTime("001", "", "rest")
	if err != nil {
		t.Fatalf("RepetitionTime failed: %v", err)
	}
	if tr != 2.0 {
		t.Fatalf("Expected TR 2.0, got %g", tr)
	}

	if _, err := layout.RepetitionTime("001", "", "stories"); err == nil {
		t.Fatal("Expected an error for a task without sidecars")
	}
}

func TestRunPathsNaming(t *testing.T) {
	layout := &Layout{DerivDir: "/deriv"}

	paths := layout.RunPaths("001", "", "rest", 3)
	if want := filepath.Join("/deriv", "sub-001", "func", "sub-001_task-rest_run-03_desc-confounds_timeseries.tsv"); paths.Confounds != want {
		t.Errorf("Confounds path: expected %s, got %s", want, paths.Confounds)
	}
	if !strings.Contains(paths.Outliers, filepath.Join("art", "rest03")) {
		t.Errorf("Outlier path should live under the art/rest03 directory, got %s", paths.Outliers)
	}
	if !strings.HasSuffix(paths.Bold, "sub-001_task-rest_run-03_space-MNI152NLin2009cAsym_res-2_desc-preproc_bold.nii.gz") {
		t.Errorf("Unexpected bold path %s", paths.Bold)
	}
	if !strings.HasSuffix(paths.Mask, "sub-001_space-MNI152NLin2009cAsym_res-2_desc-brain_mask_allruns-BOLDmask.nii.gz") {
		t.Errorf("Unexpected mask path %s", paths.Mask)
	}

	withSes := layout.RunPaths("001", "02", "rest", 1)
	if !strings.Contains(withSes.Confounds, filepath.Join("sub-001", "ses-02", "func")) {
		t.Errorf("Session path should include the session directory, got %s", withSes.Confounds)
	}
	if !strings.Contains(withSes.Confounds, "sub-001_ses-02_task-rest_run-01") {
		t.Errorf("Session prefix missing from %s", withSes.Confounds)
	}
}

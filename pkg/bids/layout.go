// Package bids resolves per-run input paths, repetition times and
// motion-exclusion decisions from a BIDS dataset and its derivatives
// tree. It is the discovery collaborator of the conditioning core.
package bids

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNoEligibleRuns reports that every run of a subject/task was
// excluded (or absent). It is a distinct condition from a missing
// file: batch processing of other subjects should continue.
var ErrNoEligibleRuns = errors.New("no eligible runs")

// Layout locates files in a BIDS dataset and its derivatives.
type Layout struct {
	// BidsDir is the raw dataset root, where bold JSON sidecars with
	// acquisition metadata live.
	BidsDir string

	// DerivDir is the derivatives root holding preprocessed bold
	// series, masks, confound tables and artifact outputs.
	DerivDir string
}

// RunPaths bundles the discovered input files for one run.
type RunPaths struct {
	Confounds string
	Outliers  string
	Bold      string
	Mask      string
}

// funcDir returns the subject's functional derivatives directory,
// descending into the session folder when a session label is set.
func (l *Layout) funcDir(sub, ses string) string {
	if ses != "" {
		return filepath.Join(l.DerivDir, "sub-"+sub, "ses-"+ses, "func")
	}
	return filepath.Join(l.DerivDir, "sub-"+sub, "func")
}

// RunPaths resolves the confound table, outlier file, preprocessed
// bold series and brain mask for one run.
func (l *Layout) RunPaths(sub, ses, task string, run int) RunPaths {
	dir := l.funcDir(sub, ses)

	var prefix, maskPrefix string
	if ses != "" {
		prefix = fmt.Sprintf("sub-%s_ses-%s_task-%s_run-%02d", sub, ses, task, run)
		maskPrefix = fmt.Sprintf("sub-%s_ses-%s", sub, ses)
	} else {
		prefix = fmt.Sprintf("sub-%s_task-%s_run-%02d", sub, task, run)
		maskPrefix = fmt.Sprintf("sub-%s", sub)
	}

	return RunPaths{
		Confounds: filepath.Join(dir, prefix+"_desc-confounds_timeseries.tsv"),
		Outliers: filepath.Join(dir, "art", fmt.Sprintf("%s%02d", task, run),
			fmt.Sprintf("art.%s_space-MNI152NLin2009cAsym_res-2_desc-preproc_bold_outliers.txt", prefix)),
		Bold: filepath.Join(dir, prefix+"_space-MNI152NLin2009cAsym_res-2_desc-preproc_bold.nii.gz"),
		Mask: filepath.Join(dir, maskPrefix+"_space-MNI152NLin2009cAsym_res-2_desc-brain_mask_allruns-BOLDmask.nii.gz"),
	}
}

// RepetitionTime reads the RepetitionTime field from the first bold
// JSON sidecar matching the subject and task in the raw dataset. The
// TR is assumed constant across a task's runs.
func (l *Layout) RepetitionTime(sub, ses, task string) (float64, error) {
	dir := filepath.Join(l.BidsDir, "sub-"+sub)
	if ses != "" {
		dir = filepath.Join(dir, "ses-"+ses)
	}
	pattern := filepath.Join(dir, "func", fmt.Sprintf("sub-%s*task-%s*_bold.json", sub, task))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0, fmt.Errorf("bad sidecar pattern: %w", err)
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("no bold sidecar found for sub-%s task-%s under %s", sub, task, dir)
	}
	sort.Strings(matches)

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return 0, fmt.Errorf("failed to read bold sidecar: %w", err)
	}
	var sidecar struct {
		RepetitionTime float64 `json:"RepetitionTime"`
	}
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return 0, fmt.Errorf("failed to parse bold sidecar %s: %w", matches[0], err)
	}
	if sidecar.RepetitionTime <= 0 {
		return 0, fmt.Errorf("bold sidecar %s has no positive RepetitionTime", matches[0])
	}
	return sidecar.RepetitionTime, nil
}

// EligibleRuns reads the subject's derivatives scans table and returns
// the requested runs that match the task and are not flagged for
// excessive motion, in ascending order. Zero surviving runs yields
// ErrNoEligibleRuns.
func (l *Layout) EligibleRuns(sub, ses, task string, requested []int) ([]int, error) {
	pattern := filepath.Join(l.funcDir(sub, ses), "*_scans.tsv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad scans pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("scans file not found for sub-%s (looked for %s)", sub, pattern)
	}
	sort.Strings(matches)

	f, err := os.Open(matches[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open scans file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse scans file %s: %w", matches[0], err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("scans file %s is empty", matches[0])
	}

	fileCol, exclCol := -1, -1
	for i, name := range records[0] {
		switch name {
		case "filename":
			fileCol = i
		case "MotionExclusion":
			exclCol = i
		}
	}
	if fileCol < 0 || exclCol < 0 {
		return nil, fmt.Errorf("scans file %s is missing the filename or MotionExclusion column", matches[0])
	}

	wanted := make(map[int]bool, len(requested))
	for _, run := range requested {
		wanted[run] = true
	}

	var eligible []int
	for _, record := range records[1:] {
		if len(record) <= fileCol || len(record) <= exclCol {
			continue
		}
		scanTask, run, ok := parseScanName(filepath.Base(record[fileCol]))
		if !ok || scanTask != task {
			continue
		}
		if isExcluded(record[exclCol]) {
			continue
		}
		if wanted[run] {
			eligible = append(eligible, run)
		}
	}
	sort.Ints(eligible)

	if len(eligible) == 0 {
		return nil, fmt.Errorf("sub-%s task-%s: %w", sub, task, ErrNoEligibleRuns)
	}
	return eligible, nil
}

// parseScanName extracts the task and run entities from a BIDS bold
// filename such as sub-01_task-rest_run-02_bold.nii.gz.
func parseScanName(name string) (task string, run int, ok bool) {
	task = entity(name, "task-")
	runStr := entity(name, "run-")
	if task == "" || runStr == "" {
		return "", 0, false
	}
	run, err := strconv.Atoi(runStr)
	if err != nil {
		return "", 0, false
	}
	return task, run, true
}

// entity returns the value of one BIDS key-value entity in a filename.
func entity(name, key string) string {
	i := strings.Index(name, key)
	if i < 0 {
		return ""
	}
	rest := name[i+len(key):]
	if j := strings.IndexAny(rest, "_."); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// isExcluded interprets the MotionExclusion cell; the upstream table
// writes Python booleans.
func isExcluded(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "true", "1":
		return true
	}
	return false
}

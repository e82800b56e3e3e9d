package models

import (
	"fmt"
)

// FilterMode selects the temporal filter applied during denoising.
// The three modes are mutually exclusive.
type FilterMode int

const (
	// FilterNone applies no temporal filter.
	FilterNone FilterMode = iota

	// FilterCosine removes slow drift by regressing out a discrete
	// cosine basis alongside the nuisance regressors.
	FilterCosine

	// FilterButterworth applies a zero-phase Butterworth high-pass
	// filter to the signal and the nuisance regressors.
	FilterButterworth
)

// ParseFilterMode maps a configuration string to a FilterMode.
func ParseFilterMode(s string) (FilterMode, error) {
	switch s {
	case "none", "":
		return FilterNone, nil
	case "cosine":
		return FilterCosine, nil
	case "butterworth":
		return FilterButterworth, nil
	}
	return FilterNone, fmt.Errorf("unrecognized filter mode %q (expected none, cosine or butterworth)", s)
}

func (m FilterMode) String() string {
	switch m {
	case FilterNone:
		return "none"
	case FilterCosine:
		return "cosine"
	case FilterButterworth:
		return "butterworth"
	}
	return fmt.Sprintf("FilterMode(%d)", int(m))
}

// StandardizeMode selects the per-voxel normalization applied after
// confound regression and filtering.
type StandardizeMode int

const (
	// StandardizeOff leaves voxel time series in their input units.
	StandardizeOff StandardizeMode = iota

	// StandardizeZScore centers each voxel and scales to unit variance.
	StandardizeZScore

	// StandardizePSC rescales each voxel to percent signal change
	// around its temporal mean.
	StandardizePSC
)

// ParseStandardizeMode maps a configuration string to a StandardizeMode.
func ParseStandardizeMode(s string) (StandardizeMode, error) {
	switch s {
	case "no", "off", "":
		return StandardizeOff, nil
	case "zscore":
		return StandardizeZScore, nil
	case "psc":
		return StandardizePSC, nil
	}
	return StandardizeOff, fmt.Errorf("unrecognized standardize mode %q (expected no, zscore or psc)", s)
}

func (m StandardizeMode) String() string {
	switch m {
	case StandardizeOff:
		return "no"
	case StandardizeZScore:
		return "zscore"
	case StandardizePSC:
		return "psc"
	}
	return fmt.Sprintf("StandardizeMode(%d)", int(m))
}

// RunContext bundles everything one run's conditioning pipeline needs.
// It is assembled once per run by the orchestrator and never mutated
// afterwards; stages receive it by value.
type RunContext struct {
	// Subject is the BIDS subject label, without the "sub-" prefix.
	Subject string

	// Task is the BIDS task label.
	Task string

	// Session is the BIDS session label, or empty when the dataset
	// has no session level.
	Session string

	// Run is the one-based run number.
	Run int

	// TR is the repetition time in seconds, resolved from the study
	// metadata for this task.
	TR float64

	// DropVols is the number of leading volumes removed from the
	// series and from every confound column before any other step.
	DropVols int

	// HighPassSec is the high-pass cutoff period in seconds. It is
	// converted to a cutoff frequency (1/period) at the point of use
	// and ignored when Filter is FilterNone.
	HighPassSec float64

	// Filter selects the temporal filter.
	Filter FilterMode

	// Detrend enables linear detrending of each voxel time series.
	Detrend bool

	// Standardize selects the output normalization.
	Standardize StandardizeMode

	// SmoothingFWHM is the spatial smoothing kernel in mm; zero
	// disables smoothing.
	SmoothingFWHM float64

	// Scrub enables removal of flagged outlier timepoints from the
	// retained sample set.
	Scrub bool

	// Regressors lists the requested nuisance regressor kinds by
	// alias, in the order their columns enter the design matrix.
	Regressors []string
}

// Prefix returns the BIDS-style file prefix for this run, with the
// session entity included only when a session label is present.
func (rc RunContext) Prefix() string {
	if rc.Session != "" {
		return fmt.Sprintf("sub-%s_ses-%s_task-%s_run-%02d", rc.Subject, rc.Session, rc.Task, rc.Run)
	}
	return fmt.Sprintf("sub-%s_task-%s_run-%02d", rc.Subject, rc.Task, rc.Run)
}

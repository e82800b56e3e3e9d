// Package pipeline orchestrates per-run conditioning: it discovers a
// subject's eligible runs, builds each run's stage graph, and executes
// independent runs on a bounded worker pool with per-run fault
// isolation.
package pipeline

import (
	"fmt"

	"fmriclean/internal/models"
	"fmriclean/pkg/bids"
)

// Params holds the orchestrator configuration. It is handed to New
// once and never mutated afterwards; there is no process-global
// execution state.
type Params struct {
	// BidsDir is the raw BIDS dataset root.
	BidsDir string

	// DerivDir is the preprocessing derivatives root.
	DerivDir string

	// OutDir is the output tree root; per-subject directories are
	// created beneath it.
	OutDir string

	// Workers bounds how many runs are conditioned concurrently.
	Workers int

	// Task is the BIDS task label to process.
	Task string

	// Session is the BIDS session label, empty for sessionless
	// datasets.
	Session string

	// DropVols, HighPassSec, Filter, Detrend, Standardize,
	// SmoothingFWHM, Scrub and Regressors parameterize every run;
	// see models.RunContext for their meaning.
	DropVols      int
	HighPassSec   float64
	Filter        models.FilterMode
	Detrend       bool
	Standardize   models.StandardizeMode
	SmoothingFWHM float64
	Scrub         bool
	Regressors    []string
}

// RunResult reports the outcome of one run's pipeline.
type RunResult struct {
	Subject string
	Run     int
	Err     error
}

// Orchestrator drives the conditioning pipeline for subjects and runs.
type Orchestrator struct {
	params *Params
	layout *bids.Layout

	// runFn executes one run's stage graph; indirected for tests.
	runFn func(models.RunContext) error
}

// New creates an orchestrator with the provided parameters.
func New(params *Params) *Orchestrator {
	o := &Orchestrator{
		params: params,
		layout: &bids.Layout{BidsDir: params.BidsDir, DerivDir: params.DerivDir},
	}
	o.runFn = o.runPipeline
	return o
}

// ProcessSubject resolves the subject's eligible runs, then conditions
// each of them. A run's failure is captured in its RunResult and does
// not affect sibling runs. The error return is reserved for
// subject-level conditions: discovery failures and
// bids.ErrNoEligibleRuns.
func (o *Orchestrator) ProcessSubject(subject string, requestedRuns []int) ([]RunResult, error) {
	tr, err := o.layout.RepetitionTime(subject, o.params.Session, o.params.Task)
	if err != nil {
		return nil, fmt.Errorf("sub-%s: %w", subject, err)
	}

	runs, err := o.layout.EligibleRuns(subject, o.params.Session, o.params.Task, requestedRuns)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Processing %d run(s) for sub-%s task-%s (TR=%gs)\n", len(runs), subject, o.params.Task, tr)

	contexts := make([]models.RunContext, len(runs))
	for i, run := range runs {
		contexts[i] = models.RunContext{
			Subject:       subject,
			Task:          o.params.Task,
			Session:       o.params.Session,
			Run:           run,
			TR:            tr,
			DropVols:      o.params.DropVols,
			HighPassSec:   o.params.HighPassSec,
			Filter:        o.params.Filter,
			Detrend:       o.params.Detrend,
			Standardize:   o.params.Standardize,
			SmoothingFWHM: o.params.SmoothingFWHM,
			Scrub:         o.params.Scrub,
			Regressors:    o.params.Regressors,
		}
	}

	return o.executeRuns(contexts), nil
}

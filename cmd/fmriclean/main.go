package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"fmriclean/pkg/bids"
	"fmriclean/pkg/config"
	"fmriclean/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	subjectsFlag := flag.String("subjects", "", "Comma-separated subject labels to process")
	runsFlag := flag.String("runs", "", "Run numbers per subject, e.g. \"1,2;1\" (one ';'-separated group per subject; a single group applies to all)")
	flag.Parse()

	if *subjectsFlag == "" || *runsFlag == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Paths.BidsDir == "" || cfg.Paths.DerivDir == "" || cfg.Paths.OutDir == "" {
		log.Fatalf("Configuration must set paths.bidsDir, paths.derivDir and paths.outDir")
	}

	subjects := splitList(*subjectsFlag)
	runGroups, err := parseRunGroups(*runsFlag, len(subjects))
	if err != nil {
		log.Fatalf("Invalid -runs value: %v", err)
	}

	if cfg.Execution.Overwrite {
		if _, err := os.Stat(cfg.Paths.OutDir); err == nil {
			fmt.Println("Overwriting existing outputs.")
			if err := os.RemoveAll(cfg.Paths.OutDir); err != nil {
				log.Fatalf("Failed to remove previous outputs: %v", err)
			}
		}
	}
	if err := os.MkdirAll(cfg.Paths.OutDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("FMRICLEAN: PER-RUN BOLD SIGNAL CONDITIONING")
	fmt.Println("================================")

	kinds, scrub := cfg.Kinds()
	orchestrator := pipeline.New(&pipeline.Params{
		BidsDir:       cfg.Paths.BidsDir,
		DerivDir:      cfg.Paths.DerivDir,
		OutDir:        cfg.Paths.OutDir,
		Workers:       cfg.Execution.Workers,
		Task:          cfg.Pipeline.Task,
		Session:       cfg.Pipeline.Session,
		DropVols:      cfg.Pipeline.DropVols,
		HighPassSec:   cfg.Pipeline.HighPassSec,
		Filter:        cfg.FilterMode(),
		Detrend:       cfg.Pipeline.Detrend,
		Standardize:   cfg.StandardizeMode(),
		SmoothingFWHM: cfg.Pipeline.SmoothingFWHM,
		Scrub:         scrub,
		Regressors:    kinds,
	})

	startTime := time.Now()
	var allResults []pipeline.RunResult
	skipped := 0

	for i, subject := range subjects {
		results, err := orchestrator.ProcessSubject(subject, runGroups[i])
		if err != nil {
			if errors.Is(err, bids.ErrNoEligibleRuns) {
				fmt.Printf("Skipping sub-%s: no eligible %s runs after motion exclusion\n", subject, cfg.Pipeline.Task)
				skipped++
				continue
			}
			// Subject-level discovery failures are isolated the same
			// way run failures are: report and move on.
			fmt.Printf("Failed sub-%s: %v\n", subject, err)
			allResults = append(allResults, pipeline.RunResult{Subject: subject, Err: err})
			continue
		}
		allResults = append(allResults, results...)
	}

	failed := pipeline.Failed(allResults)
	fmt.Printf("\nFinished in %.1f seconds: %d run(s) succeeded, %d failed, %d subject(s) skipped\n",
		time.Since(startTime).Seconds(), len(allResults)-len(failed), len(failed), skipped)
	for _, r := range failed {
		if r.Run > 0 {
			fmt.Printf("  FAILED sub-%s run-%02d: %v\n", r.Subject, r.Run, r.Err)
		} else {
			fmt.Printf("  FAILED sub-%s: %v\n", r.Subject, r.Err)
		}
	}

	if len(failed) > 0 {
		os.Exit(1)
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseRunGroups parses the -runs flag: one comma-separated group of
// run numbers per subject, groups separated by ';'. A single group is
// reused for every subject.
func parseRunGroups(s string, nSubjects int) ([][]int, error) {
	groups := strings.Split(s, ";")
	if len(groups) != 1 && len(groups) != nSubjects {
		return nil, fmt.Errorf("got %d run group(s) for %d subject(s)", len(groups), nSubjects)
	}

	parsed := make([][]int, 0, len(groups))
	for _, group := range groups {
		var runs []int
		for _, item := range strings.Split(group, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			run, err := strconv.Atoi(item)
			if err != nil || run < 1 {
				return nil, fmt.Errorf("invalid run number %q", item)
			}
			runs = append(runs, run)
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("empty run group")
		}
		parsed = append(parsed, runs)
	}

	if len(parsed) == 1 && nSubjects > 1 {
		for len(parsed) < nSubjects {
			parsed = append(parsed, parsed[0])
		}
	}
	return parsed, nil
}

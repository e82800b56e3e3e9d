package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KyungWonPark/nifti"

	"fmriclean/internal/dag"
	"fmriclean/internal/models"
	"fmriclean/pkg/bids"
	"fmriclean/pkg/confounds"
	"fmriclean/pkg/export"
	"fmriclean/pkg/regressors"
	"fmriclean/pkg/signal"
	"fmriclean/pkg/smoothing"
	"fmriclean/pkg/volume"
)

// runState carries one run's artifacts between stages. Stages execute
// strictly sequentially within a run, so no locking is needed.
type runState struct {
	paths    bids.RunPaths
	table    *confounds.Table
	outliers []int
	series   *volume.Series
	ref      *nifti.Nifti1Image
	mask     *volume.Mask
	reg      *regressors.Result
	denoised *volume.Series
}

// runPipeline builds and executes the stage graph for one run. The
// graph shape is static: optional stages (smoothing, volume dropping)
// are identity pass-throughs when disabled.
func (o *Orchestrator) runPipeline(ctx models.RunContext) error {
	subOut := filepath.Join(o.params.OutDir, "sub-"+ctx.Subject)
	regDir := filepath.Join(subOut, "regressors")
	denoiseDir := filepath.Join(subOut, "denoised", fmt.Sprintf("run%d", ctx.Run))

	st := &runState{}
	g := dag.New()

	addNode := func(id string, run func() error) {
		// Ids are unique literals below; AddNode cannot fail here.
		_ = g.AddNode(id, run)
	}
	addEdge := func(from, to string) {
		_ = g.AddEdge(from, to)
	}

	addNode("inputs", func() error {
		st.paths = o.layout.RunPaths(ctx.Subject, ctx.Session, ctx.Task, ctx.Run)

		var err error
		if st.table, err = confounds.LoadTable(st.paths.Confounds); err != nil {
			return err
		}
		if st.outliers, err = confounds.LoadOutliers(st.paths.Outliers); err != nil {
			return err
		}
		if st.series, st.ref, err = volume.LoadSeries(st.paths.Bold); err != nil {
			return err
		}
		if st.mask, err = volume.LoadMask(st.paths.Mask); err != nil {
			return err
		}
		return nil
	})

	addNode("smooth", func() error {
		if ctx.SmoothingFWHM > 0 {
			fmt.Printf("  [%s] smoothing with a %gmm kernel\n", ctx.Prefix(), ctx.SmoothingFWHM)
		}
		smoothed, err := smoothing.Smooth(st.series, st.mask, ctx.SmoothingFWHM, 0)
		if err != nil {
			return err
		}
		st.series = smoothed
		return nil
	})

	addNode("dropvols", func() error {
		dropped, err := st.series.DropLeading(ctx.DropVols)
		if err != nil {
			return err
		}
		st.series = dropped
		return nil
	})

	addNode("regressors", func() error {
		reg, err := regressors.Build(st.table, st.outliers, ctx.Regressors, ctx.Scrub, ctx.DropVols)
		if err != nil {
			return err
		}
		if ctx.Scrub && len(st.outliers) > 0 {
			fmt.Printf("  [%s] scrubbing %d outlier volume(s)\n", ctx.Prefix(), len(st.outliers))
		}
		st.reg = reg
		return reg.Write(regDir, ctx.Subject, ctx.Run)
	})

	addNode("clean", func() error {
		fmt.Printf("  [%s] applying %s filtering with a %gs high-pass period\n",
			ctx.Prefix(), ctx.Filter, ctx.HighPassSec)
		denoised, err := signal.Clean(st.series, st.mask, st.reg.Matrix, st.reg.SampleMask, signal.CleanOptions{
			TR:          ctx.TR,
			HighPassSec: ctx.HighPassSec,
			Filter:      ctx.Filter,
			Detrend:     ctx.Detrend,
			Standardize: ctx.Standardize,
		})
		if err != nil {
			return err
		}
		st.denoised = denoised

		if err := os.MkdirAll(denoiseDir, 0755); err != nil {
			return fmt.Errorf("failed to create denoise directory: %w", err)
		}
		file := filepath.Join(denoiseDir, fmt.Sprintf("sub-%s_run-%02d_denoised_bold.nii", ctx.Subject, ctx.Run))
		return volume.SaveSeries(file, denoised, st.ref)
	})

	addNode("pad", func() error {
		padded, err := signal.Pad(st.denoised, st.reg.SampleMask, st.series.NT)
		if err != nil {
			return err
		}
		file := filepath.Join(denoiseDir, fmt.Sprintf("sub-%s_run-%02d_denoised_padded_bold.nii", ctx.Subject, ctx.Run))
		return volume.SaveSeries(file, padded, st.ref)
	})

	addNode("export", func() error {
		file := filepath.Join(denoiseDir, fmt.Sprintf("sub-%s_run-%02d_denoised_timecourses.npy", ctx.Subject, ctx.Run))
		return export.WriteMaskedMatrix(file, st.denoised, st.mask)
	})

	addEdge("inputs", "smooth")
	addEdge("smooth", "dropvols")
	addEdge("inputs", "regressors")
	addEdge("dropvols", "clean")
	addEdge("regressors", "clean")
	addEdge("clean", "pad")
	addEdge("clean", "export")

	if err := g.Run(); err != nil {
		return fmt.Errorf("%s: %w", ctx.Prefix(), err)
	}
	return nil
}

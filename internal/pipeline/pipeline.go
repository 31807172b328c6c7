// Package pipeline implements Component G: fanning page rendering out
// across a worker pool, then grafting results back into the base document
// in ascending page order from a single driver goroutine, mirroring
// _pipelines/ocr.py's exec_concurrent/update_page split.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/model"
	"golang.org/x/sync/errgroup"

	"github.com/ocrchestra/ocrchestra-core/internal/config"
	"github.com/ocrchestra/ocrchestra-core/internal/font"
	"github.com/ocrchestra/ocrchestra-core/internal/graft"
	"github.com/ocrchestra/ocrchestra-core/internal/ocrtree"
	"github.com/ocrchestra/ocrchestra-core/internal/progress"
	"github.com/ocrchestra/ocrchestra-core/internal/render"
	"github.com/ocrchestra/ocrchestra-core/internal/werrors"
)

// PageResult is the in-process record a worker hands back to the driver
// for one page, in place of the original's pickled per-page dataclass. It
// carries no version field and holds a *model.PdfPage and an error, so it
// is not a serialized wire format.
type PageResult struct {
	PageNumber      int
	TextLayer       *model.PdfPage
	ContentRotation int
	Autorotate      int
	Skipped         bool
	Err             error
}

// IsOCRRequired decides whether page needs a text layer grafted at all,
// mirroring _common.py's is_ocr_required: a page that already carries
// recognizable text is skipped unless the caller asked to redo or force OCR.
func IsOCRRequired(hasExistingText bool, opts config.Options) bool {
	if !hasExistingText {
		return true
	}
	return opts.RedoOCR || opts.Force
}

// Job is one page of work: its OCR tree (already parsed) plus the
// page-level rotation facts the grafter needs.
type Job struct {
	PageNumber      int
	Page            *ocrtree.Element
	HasExistingText bool
	ContentRotation int
	Autorotate      int
}

// Runner drives the whole multi-page run.
type Runner struct {
	Options  config.Options
	Fonts    *font.MultiManager
	Log      *logrus.Logger
	Progress progress.ProgressBar
}

// New constructs a Runner.
func New(opts config.Options, fonts *font.MultiManager, log *logrus.Logger, bar progress.ProgressBar) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if bar == nil {
		bar = progress.NullBar{}
	}
	return &Runner{Options: opts, Fonts: fonts, Log: log, Progress: bar}
}

// Run renders every job's text layer concurrently, then grafts all results
// into g in ascending page order, returning the finished document. A
// per-page render failure becomes a SoftRenderError and is logged and
// skipped rather than aborting the run; context cancellation aborts the
// whole run and returns a CancelledError.
func (r *Runner) Run(ctx context.Context, g *graft.Grafter, jobs []Job) ([]byte, error) {
	results := make([]PageResult, len(jobs))
	jobCount := len(jobs)
	limit := r.Options.Jobs
	if limit <= 0 {
		limit = defaultConcurrency()
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	renderer := render.New(r.Fonts, r.Options, r.Log)

	dispatch := func(i int) {
		group.Go(func() error {
			select {
			case <-gctx.Done():
				return &werrors.CancelledError{}
			default:
			}
			job := jobs[i]
			results[i] = r.renderOne(renderer, job)
			r.Progress.Add(1)
			return nil
		})
	}

	// Workers are always launched in ascending page order; SetLimit bounds
	// how many run at once. Results are always sorted by page number before
	// grafting below; Options.DeterministicOutput is not read here.
	for i := 0; i < jobCount; i++ {
		dispatch(i)
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].PageNumber < results[j].PageNumber })

	for _, res := range results {
		if res.Err != nil {
			r.Log.WithField("page", res.PageNumber).WithError(res.Err).Warn("skipping page: soft render failure")
			continue
		}
		if res.Skipped {
			continue
		}
		spec := graft.PageSpec{
			PageNumber:           res.PageNumber,
			TextLayer:            res.TextLayer,
			ContentRotation:      res.ContentRotation,
			AutorotateCorrection: res.Autorotate,
			StripOldText:         r.Options.RedoOCR,
		}
		if err := g.GraftPage(spec); err != nil {
			return nil, fmt.Errorf("pipeline: graft page %d: %w", res.PageNumber, err)
		}
	}

	r.Progress.Close()
	return g.Finalize()
}

func (r *Runner) renderOne(renderer *render.Renderer, job Job) PageResult {
	res := PageResult{
		PageNumber:      job.PageNumber,
		ContentRotation: job.ContentRotation,
		Autorotate:      job.Autorotate,
	}
	if !IsOCRRequired(job.HasExistingText, r.Options) {
		res.Skipped = true
		return res
	}
	page, err := renderer.RenderPage(job.Page)
	if err != nil {
		res.Err = &werrors.SoftRenderError{Page: job.PageNumber, Reason: err.Error()}
		return res
	}
	res.TextLayer = page
	return res
}

func defaultConcurrency() int {
	return runtime.NumCPU()
}

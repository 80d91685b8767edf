// Package pipeline runs the extraction fallback chain and the background
// workers that serve it. The controller tries each stage in priority
// order, keeps the full attempt trail, and stamps the winning stage into
// the document's extraction outcome.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// Extraction method names, in fallback priority order.
const (
	MethodRemoteStructured = "remote_structured"
	MethodRemoteGeneric    = "remote_generic"
	MethodLocalHeuristic   = "local_heuristic"
	MethodRawText          = "raw_text"
)

// Stage is one rung of the fallback chain. Run returns the built
// aggregate plus soft warnings; a non-nil error, or an aggregate that
// fails its validity check, escalates to the next stage.
type Stage struct {
	Method string
	Run    func(ctx context.Context) (*docmodel.StructuredDocument, []string, error)
}

// Controller executes the fallback chain.
type Controller struct {
	stages []Stage
	log    *slog.Logger
}

// NewController builds a controller over the given stages.
func NewController(stages []Stage, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Controller{stages: stages, log: log}
}

// Extract runs the stages in order and returns the first valid result
// with its outcome stamped. Context cancellation aborts the whole chain;
// any other stage error is recorded and the chain moves on. When every
// stage fails the error is an *AllMethodsFailedError carrying the
// complete attempt trail.
func (c *Controller) Extract(ctx context.Context) (*docmodel.StructuredDocument, error) {
	start := time.Now()
	var attempts []docmodel.Attempt

	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stageStart := time.Now()
		doc, warnings, err := stage.Run(ctx)
		elapsed := time.Since(stageStart)

		if err == nil && !doc.Valid() {
			err = errEmptyResult
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("extraction stage failed",
				"method", stage.Method, "elapsed", elapsed, "error", err)
			attempts = append(attempts, docmodel.Attempt{
				Method:  stage.Method,
				Error:   err.Error(),
				Elapsed: elapsed,
			})
			continue
		}

		attempts = append(attempts, docmodel.Attempt{
			Method:  stage.Method,
			Elapsed: elapsed,
		})
		doc.Outcome = docmodel.ExtractionOutcome{
			Method:   stage.Method,
			Attempts: attempts,
			Warnings: warnings,
			Status:   docmodel.StatusCompleted,
			Elapsed:  time.Since(start),
		}
		c.log.Info("extraction succeeded",
			"method", stage.Method,
			"attempts", len(attempts),
			"warnings", len(warnings),
			"elapsed", doc.Outcome.Elapsed)
		return doc, nil
	}

	return nil, &AllMethodsFailedError{Attempts: attempts}
}

type staticError string

func (e staticError) Error() string { return string(e) }

// errEmptyResult marks a stage that returned without error but produced
// an aggregate with no title and no sections.
const errEmptyResult = staticError("extraction produced an empty document")

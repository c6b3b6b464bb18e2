package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/depviz/pkg/observability"
)

// Stage names one step of an analysis.
type Stage string

const (
	StageBuild     Stage = "build"
	StageClosure   Stage = "closure"
	StageSummarize Stage = "summarize"
)

// StageError is the failure of one stage.
type StageError struct {
	Op  Stage
	Err error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

// Unwrap returns the stage's underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// Stage returns the name of the failed stage.
func (e *StageError) Stage() string { return string(e.Op) }

// runStage runs fn with hooks, turning errors and panics into a
// *StageError. It returns how long fn took.
func runStage(ctx context.Context, stage Stage, nodeCount int, fn func() error) (d time.Duration, err error) {
	observability.Analysis().OnStageStart(ctx, string(stage), nodeCount)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		d = time.Since(start)
		if err != nil {
			err = &StageError{Op: stage, Err: err}
		}
		observability.Analysis().OnStageComplete(ctx, string(stage), d, err)
	}()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 0, fn()
}

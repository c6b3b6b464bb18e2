package pipeline

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/errors"
)

// Options configures one analysis.
type Options struct {
	// Filter selects the edge kinds the closures follow.
	Filter closure.Filter

	// LogFilesToCompile logs each file's cause-recompile set at debug level.
	LogFilesToCompile bool

	// Refresh skips the closure cache lookup. Fresh results are still stored.
	Refresh bool

	// Logger overrides the runner's logger for this analysis.
	Logger *log.Logger
}

// ValidateAndSetDefaults rejects unknown filters and fills in the logger.
func (o *Options) ValidateAndSetDefaults(fallback *log.Logger) error {
	switch o.Filter {
	case closure.AllKinds, closure.PropagatingOnly:
	default:
		return errors.New(errors.ErrCodeInvalidFilter, "unknown filter %d", int(o.Filter))
	}
	if o.Logger == nil {
		o.Logger = fallback
	}
	return nil
}

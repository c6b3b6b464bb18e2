package worker

import (
	stderrors "errors"
	"fmt"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
	"github.com/matzehuels/depviz/pkg/impact"
)

// RequestTypeInit is the only request type: build and analyze a graph.
const RequestTypeInit = "init"

// Request asks the worker to analyze one graph.
type Request struct {
	Type          string                                `json:"type"`
	ID            string                                `json:"id,omitempty"`
	NodeData      []depgraph.Node                       `json:"nodeData"`
	TargetObjects map[depgraph.NodeID][]depgraph.Target `json:"targetObjects"`
	Filter        closure.Filter                        `json:"filter,omitempty"`
}

// Validate checks the request envelope. Graph-level problems (duplicate
// nodes, dangling edges) are reported by the analysis itself.
func (r Request) Validate() error {
	if r.Type != "" && r.Type != RequestTypeInit {
		return errors.New(errors.ErrCodeInvalidInput, "unknown request type %q", r.Type)
	}
	return nil
}

// Reply is the single answer to a [Request]. The three result maps are
// always present on the wire for a successful reply, even when empty; they
// are null in a failure reply.
type Reply struct {
	ID                string                   `json:"id,omitempty"`
	DependenciesMap   closure.Map              `json:"dependenciesMap"`
	CauseRecompileMap closure.Map              `json:"causeRecompileMap"`
	GetsRecompiledMap impact.GetsRecompiledMap `json:"getsRecompiledMap"`
	SkippedEdges      int                      `json:"skippedEdges,omitempty"`
	Error             *Failure                 `json:"error,omitempty"`
}

// OK reports whether the reply carries results.
func (r Reply) OK() bool { return r.Error == nil }

// Err returns the failure as an error, or nil.
func (r Reply) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// Failure describes why a request produced no results.
type Failure struct {
	Stage   string      `json:"stage,omitempty"`
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	if f.Stage != "" {
		return fmt.Sprintf("%s: %s stage: %s", f.Code, f.Stage, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// ErrorCode lets errors.CodeOf classify a failure by its code.
func (f *Failure) ErrorCode() errors.Code { return f.Code }

// Staged is implemented by errors that know which analysis stage failed.
type Staged interface {
	error
	Stage() string
}

// failureFrom converts an analysis error into a Failure. Errors without a
// more specific code are reported as WORKER_FAILURE. For staged errors the
// message is the wrapped cause; the stage is carried in its own field.
func failureFrom(err error) *Failure {
	f := &Failure{Code: errors.CodeOf(err), Message: errors.UserMessage(err)}
	if f.Code == errors.ErrCodeInternal {
		f.Code = errors.ErrCodeWorkerFailure
	}
	var st Staged
	if stderrors.As(err, &st) {
		f.Stage = st.Stage()
		if inner := stderrors.Unwrap(st); inner != nil {
			f.Message = errors.UserMessage(inner)
		}
	}
	return f
}

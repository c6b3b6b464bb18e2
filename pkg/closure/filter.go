package closure

import (
	"fmt"

	"github.com/matzehuels/depviz/pkg/depgraph"
)

// Filter selects which edge kinds a closure follows.
type Filter int

const (
	// AllKinds follows every edge regardless of kind.
	AllKinds Filter = iota
	// PropagatingOnly follows compile and export edges only.
	PropagatingOnly
)

// Allows reports whether edges of kind k are followed.
func (f Filter) Allows(k depgraph.Kind) bool {
	if f == PropagatingOnly {
		return k.Propagates()
	}
	return true
}

// String returns "all" or "compile".
func (f Filter) String() string {
	if f == PropagatingOnly {
		return "compile"
	}
	return "all"
}

// ParseFilter accepts "all" (or empty) and "compile" (alias "propagating").
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "all":
		return AllKinds, nil
	case "compile", "propagating":
		return PropagatingOnly, nil
	default:
		return AllKinds, fmt.Errorf("invalid filter: %q (must be 'all' or 'compile')", s)
	}
}

// MarshalText encodes the filter by name.
func (f Filter) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText decodes a filter name.
func (f *Filter) UnmarshalText(b []byte) error {
	v, err := ParseFilter(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

package depgraph

import "fmt"

// Kind classifies a dependency edge.
type Kind int

const (
	// KindRuntime is a runtime-only dependency. It is the zero value so that
	// unknown labels fall back to it.
	KindRuntime Kind = iota
	// KindCompile is a compile-time dependency.
	KindCompile
	// KindExport is a dependency on the target's exported interface.
	KindExport
)

// Raw labels emitted by `mix xref graph`.
const (
	LabelCompile = "(compile)"
	LabelExport  = "(export)"
)

var kindNames = [...]string{
	KindRuntime: "runtime",
	KindCompile: "compile",
	KindExport:  "export",
}

// KindFromLabel maps a raw edge label to its kind. The mapping is total:
// any label other than "(compile)" or "(export)" is a runtime edge.
func KindFromLabel(label string) Kind {
	switch label {
	case LabelCompile:
		return KindCompile
	case LabelExport:
		return KindExport
	default:
		return KindRuntime
	}
}

// ParseKind parses a kind name as produced by [Kind.String].
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindRuntime, fmt.Errorf("unknown edge kind %q", s)
}

// String returns "compile", "export" or "runtime".
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Label returns the raw label for k, the inverse of [KindFromLabel].
// Runtime edges have an empty label.
func (k Kind) Label() string {
	switch k {
	case KindCompile:
		return LabelCompile
	case KindExport:
		return LabelExport
	default:
		return ""
	}
}

// Propagates reports whether a change to the target of an edge of this kind
// forces the source to recompile. Only compile and export edges do.
func (k Kind) Propagates() bool { return k == KindCompile || k == KindExport }

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

package io

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
)

// Row types of the tagged input format.
const (
	RowTypeNode = "node"
	RowTypeEdge = "edge"
)

// Rows is the typed form of an input dump.
type Rows struct {
	Nodes []depgraph.Node
	Edges []depgraph.RawEdge
}

// row is the union of all row fields as they appear on the wire.
type row struct {
	Type   string `json:"type,omitempty"`
	ID     string `json:"id,omitempty"`
	Label  string `json:"label,omitempty"`
	Group  string `json:"group,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

type objectForm struct {
	Nodes []row `json:"nodes"`
	Edges []row `json:"edges"`
}

// ReadRows decodes a row dump from r. ReadRows does not close r.
func ReadRows(r io.Reader) (Rows, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return Rows{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read input")
	}

	dec := json.NewDecoder(br)
	switch first {
	case '[':
		var rows []row
		if err := dec.Decode(&rows); err != nil {
			return Rows{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode rows")
		}
		return resolve(rows)
	case '{':
		var obj objectForm
		if err := dec.Decode(&obj); err != nil {
			return Rows{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode graph object")
		}
		tagged := make([]row, 0, len(obj.Nodes)+len(obj.Edges))
		for _, n := range obj.Nodes {
			n.Type = RowTypeNode
			tagged = append(tagged, n)
		}
		for _, e := range obj.Edges {
			e.Type = RowTypeEdge
			tagged = append(tagged, e)
		}
		return resolve(tagged)
	default:
		return Rows{}, errors.New(errors.ErrCodeInvalidFormat, "input must be a JSON array of rows or an object, got %q", first)
	}
}

// ImportRows reads a row dump from path, or from standard input when path
// is "-".
func ImportRows(path string) (Rows, error) {
	if path == "-" {
		return ReadRows(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Rows{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return Rows{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return Rows{}, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func resolve(rows []row) (Rows, error) {
	var out Rows
	for i, r := range rows {
		switch r.Type {
		case RowTypeNode:
			if err := errors.ValidateNodeID(r.ID); err != nil {
				return Rows{}, rowError(i, "", err)
			}
			out.Nodes = append(out.Nodes, depgraph.Node{
				ID:    depgraph.NodeID(r.ID),
				Label: r.Label,
				Group: r.Group,
			})
		case RowTypeEdge:
			if err := errors.ValidateNodeID(r.Source); err != nil {
				return Rows{}, rowError(i, "source ", err)
			}
			if err := errors.ValidateNodeID(r.Target); err != nil {
				return Rows{}, rowError(i, "target ", err)
			}
			out.Edges = append(out.Edges, depgraph.RawEdge{
				Source: depgraph.NodeID(r.Source),
				Target: depgraph.NodeID(r.Target),
				Label:  r.Label,
			})
		default:
			return Rows{}, errors.New(errors.ErrCodeInvalidInput, "row %d: unknown row type %q", i, r.Type)
		}
	}
	return out, nil
}

func rowError(i int, field string, err error) error {
	return errors.New(errors.CodeOf(err), "row %d: %s%s", i, field, errors.UserMessage(err))
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, fmt.Errorf("empty input")
			}
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

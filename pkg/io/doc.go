// Package io reads dependency dumps and writes analysis results as JSON.
//
// # Input Format
//
// The input is a JSON array of tagged rows. Node rows declare files and edge
// rows declare dependencies between them:
//
//	[
//	  {"type": "node", "id": "lib/demo/a.ex", "label": "a.ex", "group": "lib/demo"},
//	  {"type": "node", "id": "lib/demo/b.ex"},
//	  {"type": "edge", "source": "lib/demo/a.ex", "target": "lib/demo/b.ex", "label": "(compile)"}
//	]
//
// The object form with separate arrays is accepted as well:
//
//	{
//	  "nodes": [{"id": "lib/demo/a.ex"}, {"id": "lib/demo/b.ex"}],
//	  "edges": [{"source": "lib/demo/a.ex", "target": "lib/demo/b.ex", "label": "(export)"}]
//	}
//
// Edge labels "(compile)" and "(export)" select those kinds; any other label,
// including none, is a runtime dependency.
//
// # Rows
//
// [ReadRows] resolves the tagged union once, at parse time, into [Rows]. A
// row with an unknown type, or a node or edge with an invalid id, fails the
// whole read with an INVALID_INPUT or INVALID_NODE_ID error naming the row.
// Edges referencing undeclared nodes are not an error here; the graph model
// drops and reports them.
//
// [ToRequest] groups edges by source into the forward adjacency carried by
// worker requests.
//
// # Output
//
// [WriteRows] writes a graph back in the tagged row format. [WriteReply]
// writes an analysis reply as indented JSON. The Export* variants write to a
// file path, with "-" meaning standard output; Import* reads "-" from
// standard input.
package io

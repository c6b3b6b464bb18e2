// Package nodelink renders the neighbourhood of one file as a node-link
// diagram.
//
// # Usage
//
// Pick a focus file and one of its closures, convert the induced subgraph
// to DOT, then render it:
//
//	deps := closures.Dependencies[focus]
//	dot := nodelink.ToDOT(g, focus, deps, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Styling
//
// Edges are coloured by kind: compile edges red-orange, export edges amber
// and runtime edges blue, with compile edges drawn thickest. The focus file
// is filled. When the subgraph has more than [Options.MaxLabels] nodes only
// the focus keeps a visible label; the others show their id as a tooltip.
//
// # Dependencies
//
// Rendering uses [github.com/goccy/go-graphviz], which embeds Graphviz
// compiled to WebAssembly, so no system installation is needed. Layout is
// entirely delegated to Graphviz.
package nodelink

package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/depgraph"
	"github.com/matzehuels/depviz/pkg/errors"
)

// Edge colours and pen widths per kind.
const (
	CompileColor = "#e4572e"
	ExportColor  = "#f3a712"
	RuntimeColor = "#669bbc"

	compileStroke = 3.0
	exportStroke  = 2.0
	runtimeStroke = 1.0

	focusFill = "#ffe8a3"
)

// DefaultMaxLabels is the number of nodes up to which every node is labelled.
const DefaultMaxLabels = 10

// Options configures DOT generation.
type Options struct {
	// Filter drops edges of kinds it does not allow.
	Filter closure.Filter

	// MaxLabels limits labelled nodes; zero uses DefaultMaxLabels, negative
	// labels every node.
	MaxLabels int

	// Title is drawn above the diagram when set.
	Title string
}

// ToDOT writes the subgraph induced by ids and focus as a DOT digraph. Nodes
// appear in graph order; ids not in g are ignored.
func ToDOT(g *depgraph.Graph, focus depgraph.NodeID, ids closure.Set, opts Options) string {
	include := make(map[depgraph.NodeID]bool, len(ids)+1)
	for _, id := range ids {
		if g.Has(id) {
			include[id] = true
		}
	}
	if g.Has(focus) {
		include[focus] = true
	}

	maxLabels := opts.MaxLabels
	if maxLabels == 0 {
		maxLabels = DefaultMaxLabels
	}
	labelAll := maxLabels < 0 || len(include) <= maxLabels

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  edge [arrowsize=0.6];\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", opts.Title)
	}
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		if !include[n.ID] {
			continue
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, n.ID == focus, labelAll), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if !include[e.Source] || !include[e.Target] || !opts.Filter.Allows(e.Kind) {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(edgeAttrs(e.Kind), ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n depgraph.Node, focus, labelAll bool) []string {
	label := n.DisplayLabel()
	tooltip := string(n.ID)
	if g := n.DefaultGroup(); g != "." {
		tooltip += " (" + g + ")"
	}
	attrs := []string{fmt.Sprintf("tooltip=%q", tooltip)}
	switch {
	case focus:
		attrs = append(attrs, fmt.Sprintf("label=%q", label), fmt.Sprintf("fillcolor=%q", focusFill), "penwidth=2")
	case labelAll:
		attrs = append(attrs, fmt.Sprintf("label=%q", label))
	default:
		attrs = append(attrs, "label=\"\"", "shape=circle", "width=0.2")
	}
	return attrs
}

func edgeAttrs(k depgraph.Kind) []string {
	color, width := RuntimeColor, runtimeStroke
	switch k {
	case depgraph.KindCompile:
		color, width = CompileColor, compileStroke
	case depgraph.KindExport:
		color, width = ExportColor, exportStroke
	}
	return []string{
		fmt.Sprintf("color=%q", color),
		"penwidth=" + strconv.FormatFloat(width, 'f', 1, 64),
		fmt.Sprintf("tooltip=%q", k.String()),
	}
}

// Format is an output format supported by [Render].
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatSVG, FormatPNG:
		return f, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (must be dot, svg or png)", s)
	}
}

// Render converts DOT source into the requested format. FormatDOT returns
// the source unchanged.
func Render(ctx context.Context, dot string, f Format) ([]byte, error) {
	switch f {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, dot)
	case FormatPNG:
		return render(ctx, dot, graphviz.PNG)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q", f)
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	out, err := render(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-based root element with one whose
// width and height match the viewBox, so the SVG scales in a browser.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

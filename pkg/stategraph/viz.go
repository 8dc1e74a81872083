package stategraph

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// node shapes by kind, Graphviz names.
func shapeOf(k Kind) string {
	switch k {
	case KindRouter:
		return "diamond"
	case KindParallel:
		return "box3d"
	case KindTerminal:
		return "doublecircle"
	default:
		return "box"
	}
}

// DOT renders the compiled graph in Graphviz DOT format: nodes shaped by
// kind, conditional edges labeled, error edges dashed, router-declared
// targets dotted. Pipe the output through `dot -Tsvg` to draw it.
func (cg *CompiledGraph) DOT() (string, error) {
	const graphName = "stategraph"
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return "", fmt.Errorf("render graph: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("render graph: %w", err)
	}

	needEnd := false
	for _, from := range cg.order {
		for _, e := range cg.edges[from] {
			if e.to == END {
				needEnd = true
			}
		}
		if rd, ok := cg.nodes[from].(routeDeclarer); ok {
			for _, target := range rd.Targets() {
				if target == END {
					needEnd = true
				}
			}
		}
	}

	for _, name := range cg.order {
		attrs := map[string]string{
			"shape": shapeOf(cg.nodes[name].Kind()),
			"label": strconv.Quote(name),
		}
		if name == cg.entry {
			attrs["penwidth"] = "2"
		}
		if err := g.AddNode(graphName, strconv.Quote(name), attrs); err != nil {
			return "", fmt.Errorf("render node %s: %w", name, err)
		}
	}
	if needEnd {
		attrs := map[string]string{"shape": "doublecircle", "label": strconv.Quote("end")}
		if err := g.AddNode(graphName, strconv.Quote(END), attrs); err != nil {
			return "", fmt.Errorf("render node %s: %w", END, err)
		}
	}

	for _, from := range cg.order {
		for _, e := range cg.edges[from] {
			attrs := map[string]string{}
			switch {
			case e.onError:
				attrs["style"] = "dashed"
				attrs["label"] = strconv.Quote("on error")
			case e.when != nil:
				attrs["label"] = strconv.Quote("cond")
			}
			if err := g.AddEdge(strconv.Quote(from), strconv.Quote(e.to), true, attrs); err != nil {
				return "", fmt.Errorf("render edge %s -> %s: %w", from, e.to, err)
			}
		}
		rd, ok := cg.nodes[from].(routeDeclarer)
		if !ok {
			continue
		}
		seen := make(map[string]struct{})
		for _, target := range rd.Targets() {
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			attrs := map[string]string{"style": "dotted", "label": strconv.Quote("route")}
			if err := g.AddEdge(strconv.Quote(from), strconv.Quote(target), true, attrs); err != nil {
				return "", fmt.Errorf("render route %s -> %s: %w", from, target, err)
			}
		}
	}

	return g.String(), nil
}

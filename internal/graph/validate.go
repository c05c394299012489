// v0
// validate.go
package graph

import "fmt"

// Validate checks a nodeset against the rules required before execution
// (spec §4.7): exactly one Start, at least one terminal, every edge
// endpoint names a known node, and any ActiveCommand node's is_defined
// output must be consumed by at least one edge. Errors are returned as a
// list of human-readable strings rather than a single failure, so an
// author can fix every problem in one pass.
func Validate(ns *Nodeset) []string {
	var errs []string

	starts := 0
	terminals := 0
	activeCommandNodes := map[string]bool{}
	for _, n := range ns.Nodes {
		switch n.NodeType {
		case NodeStart:
			starts++
		case NodeExecuteAction, NodeDoNothing:
			terminals++
		case NodeActiveCommand:
			activeCommandNodes[n.ID] = true
		}
	}
	if starts == 0 {
		errs = append(errs, "missing Start node")
	} else if starts > 1 {
		errs = append(errs, fmt.Sprintf("multiple Start nodes (%d found)", starts))
	}
	if terminals == 0 {
		errs = append(errs, "no terminal node (ExecuteAction or DoNothing) present")
	}

	for _, e := range ns.Edges {
		if _, ok := ns.node(e.SourceNode); !ok {
			errs = append(errs, fmt.Sprintf("edge references unknown source node %q", e.SourceNode))
		}
		if _, ok := ns.node(e.TargetNode); !ok {
			errs = append(errs, fmt.Sprintf("edge references unknown target node %q", e.TargetNode))
		}
	}

	for id := range activeCommandNodes {
		consumed := false
		for _, e := range ns.Edges {
			if e.SourceNode == id && e.SourcePin == "is_defined" {
				consumed = true
				break
			}
		}
		if !consumed {
			errs = append(errs, fmt.Sprintf("ActiveCommand node %q: is_defined output must be consumed (forces authors to handle the no-prior-command case)", id))
		}
	}

	return errs
}

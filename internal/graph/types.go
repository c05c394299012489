// v0
// types.go
package graph

import "encoding/json"

// Node type discriminators, matched against the `node_type` string carried
// in each node's JSON payload (spec §4.7, §9 "dispatched by the string
// node_type payload; prefer a closed sum type over open inheritance").
const (
	NodeStart                = "Start"
	NodeExecuteAction        = "ExecuteAction"
	NodeDoNothing            = "DoNothing"
	NodeIf                   = "If"
	NodeSequence             = "Sequence"
	NodeResetActiveCommand   = "ResetActiveCommand"
	NodeAnd                  = "And"
	NodeOr                   = "Or"
	NodeNand                 = "Nand"
	NodeNot                  = "Not"
	NodeEquals               = "Equals"
	NodeEvaluateNumber       = "EvaluateNumber"
	NodeBranch               = "Branch"
	NodeAdd                  = "Add"
	NodeSubtract             = "Subtract"
	NodeMultiply             = "Multiply"
	NodeDivide               = "Divide"
	NodeFloat                = "Float"
	NodeInteger              = "Integer"
	NodeBoolean              = "Boolean"
	NodeDevice               = "Device"
	NodeIntensity            = "Intensity"
	NodeCauseReason          = "CauseReason"
	NodeRequestMode          = "RequestMode"
	NodeFanSpeed             = "FanSpeed"
	NodePirDetection         = "PirDetection"
	NodeActiveCommand        = "ActiveCommand"
)

// rawNode is the on-disk JSON shape of one node: `data.definition.node_type`
// carries the dispatch string, `data.payload` carries any node-local
// literal (Float/Integer/Boolean/enum value, EvaluateNumber's operator,
// Sequence's branch count, Start's evaluate_every_minutes, ...).
type rawNode struct {
	ID   string `json:"id"`
	Data struct {
		Definition struct {
			NodeType string `json:"node_type"`
		} `json:"definition"`
		Payload json.RawMessage `json:"payload"`
	} `json:"data"`
}

// rawEdge is the on-disk JSON shape of one edge.
type rawEdge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// rawNodeset is the {nodes, edges} blob stored by the persistent store
// under `node_configuration` (spec §6).
type rawNodeset struct {
	Nodes []rawNode `json:"nodes"`
	Edges []rawEdge `json:"edges"`
}

// Node is the parsed, runtime-usable form of rawNode.
type Node struct {
	ID       string
	NodeType string
	Payload  json.RawMessage
}

// Edge is the parsed, runtime-usable form of rawEdge.
type Edge struct {
	SourceNode string
	SourcePin  string
	TargetNode string
	TargetPin  string
}

// Nodeset is a parsed {nodes, edges} graph, ready for validation and
// execution.
type Nodeset struct {
	Nodes []Node
	Edges []Edge

	byID          map[string]Node
	execEdgesFrom map[string][]Edge // keyed by (sourceNode) for exec-typed edges
	dataEdgesTo   map[string]Edge   // keyed by "targetNode|targetPin" -> unique source
}

// Parse decodes raw {nodes, edges} JSON into a Nodeset ready for Validate
// and Execute.
func Parse(raw []byte) (*Nodeset, error) {
	var rn rawNodeset
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, &Error{Kind: ErrOther, Message: "malformed nodeset JSON: " + err.Error()}
	}
	ns := &Nodeset{
		byID:          make(map[string]Node, len(rn.Nodes)),
		execEdgesFrom: make(map[string][]Edge),
		dataEdgesTo:   make(map[string]Edge),
	}
	for _, n := range rn.Nodes {
		node := Node{ID: n.ID, NodeType: n.Data.Definition.NodeType, Payload: n.Data.Payload}
		ns.Nodes = append(ns.Nodes, node)
		ns.byID[node.ID] = node
	}
	for _, e := range rn.Edges {
		edge := Edge{SourceNode: e.Source, SourcePin: e.SourceHandle, TargetNode: e.Target, TargetPin: e.TargetHandle}
		ns.Edges = append(ns.Edges, edge)
		if isExecPin(edge.SourcePin) {
			ns.execEdgesFrom[edge.SourceNode] = append(ns.execEdgesFrom[edge.SourceNode], edge)
		} else {
			ns.dataEdgesTo[edge.TargetNode+"|"+edge.TargetPin] = edge
		}
	}
	return ns, nil
}

// isExecPin reports whether a pin name follows the execution-pin naming
// convention used by this nodeset format: "exec", "exec_out", "then_N",
// "true"/"false". Data pins carry the value's semantic name instead
// ("temperature", "condition", "a", "b", ...). The distinction is purely by
// convention on pin name since the wire format does not carry a pin-kind
// tag separately; node constructors below only ever follow edges out of
// pins they know to be execution pins, so this is only used to bucket
// edges at parse time for O(1) lookup.
func isExecPin(pin string) bool {
	switch pin {
	case "exec", "exec_out", "exec_in", "true", "false":
		return true
	}
	if len(pin) > 5 && pin[:5] == "then_" {
		return true
	}
	return false
}

func (ns *Nodeset) node(id string) (Node, bool) {
	n, ok := ns.byID[id]
	return n, ok
}

// execTarget follows the unique outgoing execution edge from (node, pin),
// returning the target node id and whether one was connected.
func (ns *Nodeset) execTarget(node, pin string) (string, bool) {
	for _, e := range ns.execEdgesFrom[node] {
		if e.SourcePin == pin {
			return e.TargetNode, true
		}
	}
	return "", false
}

// dataSource returns the unique edge feeding (node, pin) as a data input.
func (ns *Nodeset) dataSource(node, pin string) (Edge, bool) {
	e, ok := ns.dataEdgesTo[node+"|"+pin]
	return e, ok
}

// v0
// engine.go
package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"nrgchamp/ctrlcore/internal/domain"
)

const equalsTolerance = 1e-4

// evalContext carries the per-execution memoization table, cycle-detection
// set, and the engine-level ResetActiveCommand side flag (spec §4.7,
// §9 "no record stores a back-pointer to another live record" — the
// context itself is the only mutable state threaded through evaluation).
type evalContext struct {
	ns                          *Nodeset
	snapshot                    domain.InputSnapshot
	memo                        map[string]domain.RuntimeValue
	inProgress                  map[string]bool
	resetActiveCommandRequested bool
}

// Execute runs a validated nodeset against snapshot and returns the
// terminal result reached. The engine never performs a side effect; it is
// a pure function of (graph, snapshot) (spec §4.7).
func Execute(ns *Nodeset, snapshot domain.InputSnapshot) (domain.TerminalResult, error) {
	var startID string
	found := false
	for _, n := range ns.Nodes {
		if n.NodeType == NodeStart {
			startID = n.ID
			found = true
			break
		}
	}
	if !found {
		return domain.TerminalResult{}, &Error{Kind: ErrMissingStartNode}
	}

	ctx := &evalContext{
		ns:         ns,
		snapshot:   snapshot,
		memo:       make(map[string]domain.RuntimeValue),
		inProgress: make(map[string]bool),
	}

	target, ok := ns.execTarget(startID, "exec")
	if !ok {
		return domain.TerminalResult{}, &Error{Kind: ErrOther, Message: "execution flow from Start is not connected"}
	}
	result, err := followExecutionFlow(ctx, target)
	if err != nil {
		return domain.TerminalResult{}, err
	}
	result.ResetActiveCommandRequested = ctx.resetActiveCommandRequested
	return result, nil
}

// followExecutionFlow walks execution edges starting at nodeID until a
// terminal is reached.
func followExecutionFlow(ctx *evalContext, nodeID string) (domain.TerminalResult, error) {
	node, ok := ctx.ns.node(nodeID)
	if !ok {
		return domain.TerminalResult{}, &Error{Kind: ErrNodeNotFound, Node: nodeID}
	}

	switch node.NodeType {
	case NodeExecuteAction:
		return evaluateExecuteActionNode(ctx, node)
	case NodeDoNothing:
		return evaluateDoNothingNode(ctx, node)

	case NodeIf:
		cond, err := getInputValue(ctx, node.ID, "condition")
		if err != nil {
			return domain.TerminalResult{}, err
		}
		if cond.Kind != domain.KindBoolean {
			return domain.TerminalResult{}, &Error{Kind: ErrTypeMismatch, Expected: "Boolean", Got: kindName(cond.Kind)}
		}
		branch := "false"
		if cond.Boolean {
			branch = "true"
		}
		target, ok := ctx.ns.execTarget(node.ID, branch)
		if !ok {
			return domain.TerminalResult{}, &Error{Kind: ErrOther, Message: fmt.Sprintf("execution flow from If %q (%s) is not connected", node.ID, branch)}
		}
		return followExecutionFlow(ctx, target)

	case NodeSequence:
		n, err := sequenceBranchCount(node)
		if err != nil {
			return domain.TerminalResult{}, err
		}
		var lastErr error
		attempted := false
		for i := 0; i < n; i++ {
			target, ok := ctx.ns.execTarget(node.ID, fmt.Sprintf("then_%d", i))
			if !ok {
				continue
			}
			attempted = true
			result, err := followExecutionFlow(ctx, target)
			if err == nil {
				return result, nil
			}
			lastErr = err
		}
		if !attempted {
			return domain.TerminalResult{}, &Error{Kind: ErrOther, Message: fmt.Sprintf("Sequence %q has no connected outputs", node.ID)}
		}
		return domain.TerminalResult{}, lastErr

	case NodeResetActiveCommand:
		ctx.resetActiveCommandRequested = true
		target, ok := ctx.ns.execTarget(node.ID, "exec_out")
		if !ok {
			return domain.TerminalResult{}, &Error{Kind: ErrOther, Message: fmt.Sprintf("execution flow from ResetActiveCommand %q is not connected", node.ID)}
		}
		return followExecutionFlow(ctx, target)

	default:
		return domain.TerminalResult{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: fmt.Sprintf("node type %q cannot appear on an execution edge", node.NodeType)}
	}
}

func sequenceBranchCount(node Node) (int, error) {
	var p struct {
		Branches int `json:"branches"`
	}
	if len(node.Payload) > 0 {
		if err := json.Unmarshal(node.Payload, &p); err != nil {
			return 0, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: "malformed Sequence payload"}
		}
	}
	if p.Branches < 2 {
		p.Branches = 2
	}
	return p.Branches, nil
}

// evaluateExecuteActionNode and evaluateDoNothingNode evaluate the
// terminal's data inputs lazily. Device is not an input: it comes from the
// engine's input snapshot (spec §4.7 "Device is not an input").

func evaluateExecuteActionNode(ctx *evalContext, node Node) (domain.TerminalResult, error) {
	temp, err := getFloatInput(ctx, node.ID, "temperature")
	if err != nil {
		return domain.TerminalResult{}, err
	}
	modeStr, err := getStringInput(ctx, node.ID, "mode")
	if err != nil {
		return domain.TerminalResult{}, err
	}
	mode, err := parseActionMode(modeStr)
	if err != nil {
		return domain.TerminalResult{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: err.Error()}
	}
	fanStr, err := getStringInput(ctx, node.ID, "fan_speed")
	if err != nil {
		return domain.TerminalResult{}, err
	}
	fan, err := parseActionFanSpeed(fanStr)
	if err != nil {
		return domain.TerminalResult{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: err.Error()}
	}
	powerful, err := getBoolInput(ctx, node.ID, "is_powerful")
	if err != nil {
		return domain.TerminalResult{}, err
	}
	cause, err := getIntInput(ctx, node.ID, "cause_reason")
	if err != nil {
		return domain.TerminalResult{}, err
	}

	return domain.TerminalResult{
		ExecuteAction: &domain.ExecuteAction{
			Device:      ctx.snapshot.DeviceName,
			Temperature: temp,
			Mode:        mode,
			FanSpeed:    fan,
			IsPowerful:  powerful,
			CauseReason: cause,
		},
	}, nil
}

func evaluateDoNothingNode(ctx *evalContext, node Node) (domain.TerminalResult, error) {
	cause, err := getIntInput(ctx, node.ID, "cause_reason")
	if err != nil {
		return domain.TerminalResult{}, err
	}
	return domain.TerminalResult{
		DoNothing: &domain.DoNothing{Device: ctx.snapshot.DeviceName, CauseReason: cause},
	}, nil
}

func parseActionMode(s string) (domain.ActionMode, error) {
	switch s {
	case "Heat":
		return domain.ActionModeHeat, nil
	case "Cool":
		return domain.ActionModeCool, nil
	case "Off":
		return domain.ActionModeOff, nil
	default:
		return 0, fmt.Errorf("unknown mode literal %q", s)
	}
}

func parseActionFanSpeed(s string) (domain.ActionFanSpeed, error) {
	switch s {
	case "Auto":
		return domain.ActionFanAuto, nil
	case "High":
		return domain.ActionFanHigh, nil
	case "Medium":
		return domain.ActionFanMedium, nil
	case "Low":
		return domain.ActionFanLow, nil
	case "Quiet":
		return domain.ActionFanQuiet, nil
	default:
		return 0, fmt.Errorf("unknown fan speed literal %q", s)
	}
}

// getInputValue resolves the unique data edge feeding (nodeID, pin) and
// evaluates its source.
func getInputValue(ctx *evalContext, nodeID, pin string) (domain.RuntimeValue, error) {
	edge, ok := ctx.ns.dataSource(nodeID, pin)
	if !ok {
		return domain.RuntimeValue{}, &Error{Kind: ErrMissingInput, Node: nodeID, Pin: pin}
	}
	return evaluateOutput(ctx, edge.SourceNode, edge.SourcePin)
}

func getFloatInput(ctx *evalContext, nodeID, pin string) (float64, error) {
	v, err := getInputValue(ctx, nodeID, pin)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, &Error{Kind: ErrTypeMismatch, Expected: "Float", Got: kindName(v.Kind)}
	}
	return f, nil
}

func getIntInput(ctx *evalContext, nodeID, pin string) (int, error) {
	v, err := getInputValue(ctx, nodeID, pin)
	if err != nil {
		return 0, err
	}
	if v.Kind != domain.KindInteger {
		return 0, &Error{Kind: ErrTypeMismatch, Expected: "Integer", Got: kindName(v.Kind)}
	}
	return int(v.Integer), nil
}

func getBoolInput(ctx *evalContext, nodeID, pin string) (bool, error) {
	v, err := getInputValue(ctx, nodeID, pin)
	if err != nil {
		return false, err
	}
	if v.Kind != domain.KindBoolean {
		return false, &Error{Kind: ErrTypeMismatch, Expected: "Boolean", Got: kindName(v.Kind)}
	}
	return v.Boolean, nil
}

func getStringInput(ctx *evalContext, nodeID, pin string) (string, error) {
	v, err := getInputValue(ctx, nodeID, pin)
	if err != nil {
		return "", err
	}
	if v.Kind != domain.KindString {
		return "", &Error{Kind: ErrTypeMismatch, Expected: "String", Got: kindName(v.Kind)}
	}
	return v.String, nil
}

func kindName(k domain.RuntimeValueKind) string {
	switch k {
	case domain.KindFloat:
		return "Float"
	case domain.KindInteger:
		return "Integer"
	case domain.KindBoolean:
		return "Boolean"
	case domain.KindString:
		return "String"
	case domain.KindActiveCommand:
		return "ActiveCommand"
	default:
		return "Unknown"
	}
}

// evaluateOutput computes (node_id, output_pin), memoizing per cycle and
// detecting cycles via an in-progress set (spec §4.7).
func evaluateOutput(ctx *evalContext, nodeID, pin string) (domain.RuntimeValue, error) {
	key := nodeID + "|" + pin
	if v, ok := ctx.memo[key]; ok {
		return v, nil
	}
	if ctx.inProgress[key] {
		return domain.RuntimeValue{}, &Error{Kind: ErrCycleDetected}
	}
	ctx.inProgress[key] = true
	defer delete(ctx.inProgress, key)

	node, ok := ctx.ns.node(nodeID)
	if !ok {
		return domain.RuntimeValue{}, &Error{Kind: ErrNodeNotFound, Node: nodeID}
	}

	v, err := evaluateNodeOutput(ctx, node, pin)
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	ctx.memo[key] = v
	return v, nil
}

// evaluateNodeOutput dispatches on node type to produce the value at pin.
func evaluateNodeOutput(ctx *evalContext, node Node, pin string) (domain.RuntimeValue, error) {
	switch node.NodeType {
	case NodeStart:
		return evaluateStartOutput(ctx, pin)

	case NodeFloat:
		return evaluateLiteralFloat(node)
	case NodeInteger:
		return evaluateLiteralInteger(node)
	case NodeBoolean:
		return evaluateLiteralBoolean(node)
	case NodeDevice, NodeIntensity, NodeRequestMode, NodeFanSpeed:
		return evaluateLiteralString(node)
	case NodeCauseReason:
		return evaluateLiteralInteger(node)

	case NodeNot:
		v, err := getBoolInput(ctx, node.ID, "value")
		if err != nil {
			return domain.RuntimeValue{}, err
		}
		return domain.BooleanValue(!v), nil

	case NodeAnd, NodeOr, NodeNand:
		return evaluateLogicFanIn(ctx, node)

	case NodeEquals:
		return evaluateEquals(ctx, node)

	case NodeEvaluateNumber:
		return evaluateNumberComparison(ctx, node)

	case NodeBranch:
		return evaluateBranch(ctx, node)

	case NodeAdd:
		return evaluateArithmetic(ctx, node, func(a, b float64) float64 { return a + b })
	case NodeSubtract:
		return evaluateArithmetic(ctx, node, func(a, b float64) float64 { return a - b })
	case NodeMultiply:
		return evaluateFloatArithmetic(ctx, node, func(a, b float64) float64 { return a * b })
	case NodeDivide:
		return evaluateFloatArithmetic(ctx, node, func(a, b float64) float64 {
			if b == 0 {
				return 0
			}
			return a / b
		})

	case NodePirDetection:
		return evaluatePirDetection(ctx, node, pin)

	case NodeActiveCommand:
		return evaluateActiveCommand(ctx, node, pin)

	default:
		return domain.RuntimeValue{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: fmt.Sprintf("node type %q has no data output", node.NodeType)}
	}
}

func evaluateStartOutput(ctx *evalContext, pin string) (domain.RuntimeValue, error) {
	s := ctx.snapshot
	switch pin {
	case "device_name":
		return domain.StringValue(s.DeviceName), nil
	case "indoor_temp":
		return domain.FloatValue(s.IndoorTemp), nil
	case "is_auto_mode":
		return domain.BooleanValue(s.IsAutoMode), nil
	case "minutes_since_last_action":
		return domain.IntegerValue(int64(s.MinutesSinceLastAction)), nil
	case "outdoor_temp":
		return domain.FloatValue(s.OutdoorTemp), nil
	case "is_user_home":
		return domain.BooleanValue(s.IsUserHome), nil
	case "net_power_watt":
		return domain.FloatValue(s.NetPowerWatt), nil
	case "raw_solar_watt":
		return domain.FloatValue(s.RawSolarWatt), nil
	case "avg_next_24h_outdoor_temp":
		return domain.FloatValue(s.AvgNext24hOutdoorTemp), nil
	case "pir_recently_triggered":
		return domain.BooleanValue(s.PirState.RecentlyTriggered), nil
	case "pir_minutes_ago":
		return domain.IntegerValue(int64(s.PirState.MinutesAgo)), nil
	case "active_command":
		return domain.ActiveCommandRuntimeValue(domain.ActiveCommandValue{
			Command:   s.ActiveCommand,
			IsDefined: s.ActiveCommandDefined,
		}), nil
	default:
		return domain.RuntimeValue{}, &Error{Kind: ErrMissingInput, Node: "Start", Pin: pin}
	}
}

func evaluateLiteralFloat(node Node) (domain.RuntimeValue, error) {
	var p struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(node.Payload, &p); err != nil {
		return domain.RuntimeValue{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: "malformed Float payload"}
	}
	return domain.FloatValue(p.Value), nil
}

func evaluateLiteralInteger(node Node) (domain.RuntimeValue, error) {
	var p struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(node.Payload, &p); err != nil {
		return domain.RuntimeValue{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: "malformed Integer payload"}
	}
	return domain.IntegerValue(p.Value), nil
}

func evaluateLiteralBoolean(node Node) (domain.RuntimeValue, error) {
	var p struct {
		Value bool `json:"value"`
	}
	if err := json.Unmarshal(node.Payload, &p); err != nil {
		return domain.RuntimeValue{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: "malformed Boolean payload"}
	}
	return domain.BooleanValue(p.Value), nil
}

func evaluateLiteralString(node Node) (domain.RuntimeValue, error) {
	var p struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(node.Payload, &p); err != nil {
		return domain.RuntimeValue{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: "malformed enum payload"}
	}
	return domain.StringValue(p.Value), nil
}

// evaluateLogicFanIn implements And/Or/Nand's dynamic arity boolean fan-in:
// every data edge targeting this node on a pin named "in_N" is evaluated,
// in ascending N order.
func evaluateLogicFanIn(ctx *evalContext, node Node) (domain.RuntimeValue, error) {
	pins := fanInPins(ctx.ns, node.ID)
	if len(pins) == 0 {
		return domain.RuntimeValue{}, &Error{Kind: ErrMissingInput, Node: node.ID, Pin: "in_0"}
	}
	results := make([]bool, 0, len(pins))
	for _, pin := range pins {
		v, err := getBoolInput(ctx, node.ID, pin)
		if err != nil {
			return domain.RuntimeValue{}, err
		}
		results = append(results, v)
	}
	switch node.NodeType {
	case NodeAnd:
		for _, r := range results {
			if !r {
				return domain.BooleanValue(false), nil
			}
		}
		return domain.BooleanValue(true), nil
	case NodeOr:
		for _, r := range results {
			if r {
				return domain.BooleanValue(true), nil
			}
		}
		return domain.BooleanValue(false), nil
	default: // NodeNand
		for _, r := range results {
			if !r {
				return domain.BooleanValue(true), nil
			}
		}
		return domain.BooleanValue(false), nil
	}
}

func fanInPins(ns *Nodeset, nodeID string) []string {
	var pins []string
	for key := range ns.dataEdgesTo {
		prefix := nodeID + "|in_"
		if strings.HasPrefix(key, prefix) {
			pins = append(pins, strings.TrimPrefix(key, nodeID+"|"))
		}
	}
	sort.Slice(pins, func(i, j int) bool {
		ni, _ := strconv.Atoi(strings.TrimPrefix(pins[i], "in_"))
		nj, _ := strconv.Atoi(strings.TrimPrefix(pins[j], "in_"))
		return ni < nj
	})
	return pins
}

// evaluateEquals implements polymorphic equality: mixed numeric forms are
// compared with a small absolute tolerance; other kinds require an exact
// Kind and value match.
func evaluateEquals(ctx *evalContext, node Node) (domain.RuntimeValue, error) {
	a, err := getInputValue(ctx, node.ID, "a")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	b, err := getInputValue(ctx, node.ID, "b")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	if af, aok := a.AsFloat(); aok {
		if bf, bok := b.AsFloat(); bok {
			return domain.BooleanValue(math.Abs(af-bf) <= equalsTolerance), nil
		}
	}
	if a.Kind != b.Kind {
		return domain.BooleanValue(false), nil
	}
	switch a.Kind {
	case domain.KindBoolean:
		return domain.BooleanValue(a.Boolean == b.Boolean), nil
	case domain.KindString:
		return domain.BooleanValue(a.String == b.String), nil
	default:
		return domain.BooleanValue(false), nil
	}
}

// evaluateNumberComparison implements EvaluateNumber: the relational
// operator is built into the node payload, and Integer is coerced to Float.
func evaluateNumberComparison(ctx *evalContext, node Node) (domain.RuntimeValue, error) {
	var p struct {
		Operator string `json:"operator"`
	}
	if err := json.Unmarshal(node.Payload, &p); err != nil {
		return domain.RuntimeValue{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: "malformed EvaluateNumber payload"}
	}
	a, err := getFloatInput(ctx, node.ID, "a")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	b, err := getFloatInput(ctx, node.ID, "b")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	var result bool
	switch p.Operator {
	case ">":
		result = a > b
	case ">=":
		result = a >= b
	case "==":
		result = math.Abs(a-b) <= equalsTolerance
	case "<=":
		result = a <= b
	case "<":
		result = a < b
	default:
		return domain.RuntimeValue{}, &Error{Kind: ErrInvalidNode, Node: node.ID, Reason: fmt.Sprintf("unknown operator %q", p.Operator)}
	}
	return domain.BooleanValue(result), nil
}

// evaluateBranch implements the data-valued conditional: a boolean
// condition selects between two same-typed data inputs.
func evaluateBranch(ctx *evalContext, node Node) (domain.RuntimeValue, error) {
	cond, err := getBoolInput(ctx, node.ID, "condition")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	if cond {
		return getInputValue(ctx, node.ID, "if_true")
	}
	return getInputValue(ctx, node.ID, "if_false")
}

// evaluateArithmetic implements Add/Subtract: Integer is preserved iff both
// operands are Integer, otherwise the result is Float.
func evaluateArithmetic(ctx *evalContext, node Node, op func(a, b float64) float64) (domain.RuntimeValue, error) {
	a, err := getInputValue(ctx, node.ID, "a")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	b, err := getInputValue(ctx, node.ID, "b")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if !aok || !bok {
		return domain.RuntimeValue{}, &Error{Kind: ErrTypeMismatch, Expected: "Float or Integer", Got: kindName(a.Kind)}
	}
	result := op(af, bf)
	if a.Kind == domain.KindInteger && b.Kind == domain.KindInteger {
		return domain.IntegerValue(int64(result)), nil
	}
	return domain.FloatValue(result), nil
}

// evaluateFloatArithmetic implements Multiply/Divide, which always operate
// on floats.
func evaluateFloatArithmetic(ctx *evalContext, node Node, op func(a, b float64) float64) (domain.RuntimeValue, error) {
	a, err := getFloatInput(ctx, node.ID, "a")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	b, err := getFloatInput(ctx, node.ID, "b")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	return domain.FloatValue(op(a, b)), nil
}

// evaluatePirDetection recomputes recency against an author-supplied
// timeout; the device input is required for type discipline but the
// engine only ever evaluates one device's snapshot per run.
func evaluatePirDetection(ctx *evalContext, node Node, pin string) (domain.RuntimeValue, error) {
	if _, err := getStringInput(ctx, node.ID, "device"); err != nil {
		return domain.RuntimeValue{}, err
	}
	timeout, err := getIntInput(ctx, node.ID, "timeout_minutes")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	minutesAgo := ctx.snapshot.PirState.MinutesAgo
	recently := minutesAgo != domain.PirNeverTriggeredSentinel && minutesAgo <= timeout
	switch pin {
	case "recently_triggered":
		return domain.BooleanValue(recently), nil
	case "minutes_ago":
		return domain.IntegerValue(int64(minutesAgo)), nil
	default:
		return domain.RuntimeValue{}, &Error{Kind: ErrMissingInput, Node: node.ID, Pin: pin}
	}
}

// evaluateActiveCommand extracts typed fields from an ActiveCommand data
// input.
func evaluateActiveCommand(ctx *evalContext, node Node, pin string) (domain.RuntimeValue, error) {
	v, err := getInputValue(ctx, node.ID, "active_command")
	if err != nil {
		return domain.RuntimeValue{}, err
	}
	if v.Kind != domain.KindActiveCommand {
		return domain.RuntimeValue{}, &Error{Kind: ErrTypeMismatch, Expected: "ActiveCommand", Got: kindName(v.Kind)}
	}
	ac := v.ActiveCommand
	switch pin {
	case "is_defined":
		return domain.BooleanValue(ac.IsDefined), nil
	case "is_on":
		return domain.BooleanValue(ac.Command.IsOn), nil
	case "mode":
		return domain.IntegerValue(int64(ac.Command.Mode)), nil
	case "fan_speed":
		return domain.IntegerValue(int64(ac.Command.FanSpeed)), nil
	case "setpoint_celsius":
		return domain.FloatValue(ac.Command.SetpointCelsius), nil
	case "swing":
		return domain.IntegerValue(int64(ac.Command.Swing)), nil
	case "powerful":
		return domain.BooleanValue(ac.Command.Powerful), nil
	default:
		return domain.RuntimeValue{}, &Error{Kind: ErrMissingInput, Node: node.ID, Pin: pin}
	}
}

package nodes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/workflow"
)

// TypeCondition is the registered type tag for condition nodes.
const TypeCondition = "condition"

// Branch indices emitted by condition nodes. Connections carrying the
// matching branchIndex are activated, the other side is gated off.
const (
	BranchTrue  = 0
	BranchFalse = 1
)

// ConditionNode compares two settings values and routes the run down the
// true or false branch. Left and right are usually expression strings, so
// they arrive here already rewritten to concrete values.
//
// Settings:
//   - left: any, required
//   - operator: eq|neq|gt|gte|lt|lte|contains|empty|notEmpty (default eq)
//   - right: any (unused by empty/notEmpty)
type ConditionNode struct {
	workflow.BaseNode
}

// NewConditionNode creates a condition node.
func NewConditionNode(id string, settings map[string]any, logger *zap.Logger) *ConditionNode {
	return &ConditionNode{
		BaseNode: workflow.NewBaseNode(id, stringSetting(settings, "name", id), TypeCondition, settings, logger),
	}
}

func (n *ConditionNode) Execute(_ context.Context, _ map[string]any, _ *workflow.ExecutionContext) workflow.ExecutionResult {
	settings := n.ResolvedSettings()
	if settings == nil {
		settings = n.RawSettings()
	}

	operator := stringSetting(settings, "operator", "eq")
	left := settings["left"]
	right := settings["right"]

	result, err := evaluate(left, operator, right)
	if err != nil {
		return workflow.NewErrorResult(fmt.Errorf("condition node %s: %w", n.ID(), err))
	}

	branch := BranchFalse
	if result {
		branch = BranchTrue
	}
	n.Logger().Debug("condition evaluated",
		zap.String("node_id", n.ID()),
		zap.String("operator", operator),
		zap.Bool("result", result))

	return workflow.NewResult(map[string]any{
		"branch": float64(branch),
		"result": result,
		"left":   left,
		"right":  right,
	})
}

func evaluate(left any, operator string, right any) (bool, error) {
	switch operator {
	case "eq":
		return compareEqual(left, right), nil
	case "neq":
		return !compareEqual(left, right), nil
	case "gt", "gte", "lt", "lte":
		l, lok := toNumber(left)
		r, rok := toNumber(right)
		if !lok || !rok {
			return false, fmt.Errorf("operator %s needs numeric operands, got %T and %T", operator, left, right)
		}
		switch operator {
		case "gt":
			return l > r, nil
		case "gte":
			return l >= r, nil
		case "lt":
			return l < r, nil
		default:
			return l <= r, nil
		}
	case "contains":
		return strings.Contains(toString(left), toString(right)), nil
	case "empty":
		return isEmpty(left), nil
	case "notEmpty":
		return !isEmpty(left), nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

// compareEqual matches numerically when both sides parse as numbers, so a
// resolved "1" equals the literal 1.
func compareEqual(left, right any) bool {
	if l, lok := toNumber(left); lok {
		if r, rok := toNumber(right); rok {
			return l == r
		}
	}
	return toString(left) == toString(right)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}

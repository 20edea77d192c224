package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/itchyny/gojq"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
)

const ConditionActionName = "ConditionAction"

var ErrConditionFalse = errors.New("condition evaluated to false")

// ConditionAction evaluates a jq expression against the payload. A truthy
// result continues on the success flow; a falsy one fails the node so the
// error flow acts as the else branch.
type ConditionAction struct {
	condition string
	code      *gojq.Code
}

func NewConditionAction(p map[string]any) (protocol.Node, error) {
	condition, err := params.RequiredString(p, "condition")
	if err != nil {
		return nil, err
	}

	query, err := gojq.Parse(condition)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", condition, err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile condition %q: %w", condition, err)
	}

	return &ConditionAction{condition: condition, code: code}, nil
}

func (a *ConditionAction) Name() string { return ConditionActionName }

func (a *ConditionAction) Description() string {
	return "Continues on the success flow when the condition holds, on the error flow otherwise"
}

func (a *ConditionAction) Execute(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		msg = models.NewMessage(nil, nil)
	}

	input, err := normalize(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}

	iter := a.code.RunWithContext(ctx, input)

	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("%w: %s produced no value", ErrConditionFalse, a.condition)
	}

	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("condition %q: %w", a.condition, err)
	}

	if !truthy(v) {
		return nil, fmt.Errorf("%w: %s", ErrConditionFalse, a.condition)
	}

	out := msg.Clone()
	out.Payload["conditionResult"] = true

	return out, nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}

		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}

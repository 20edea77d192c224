package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
)

const TransformActionName = "TransformAction"

// TransformAction applies a jq expression to the payload. With a target key
// the result is stored under it; otherwise an object result replaces the
// payload and any other result is stored under "result".
type TransformAction struct {
	expression string
	target     string
	code       *gojq.Code
}

func NewTransformAction(p map[string]any) (protocol.Node, error) {
	expression, err := params.RequiredString(p, "expression")
	if err != nil {
		return nil, err
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expression, err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression %q: %w", expression, err)
	}

	return &TransformAction{
		expression: expression,
		target:     params.String(p, "target", ""),
		code:       code,
	}, nil
}

func (a *TransformAction) Name() string { return TransformActionName }

func (a *TransformAction) Description() string {
	return "Reshapes the payload with a jq expression"
}

func (a *TransformAction) Execute(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		msg = models.NewMessage(nil, nil)
	}

	input, err := normalize(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}

	var results []any

	iter := a.code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}

		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq expression %q: %w", a.expression, err)
		}

		results = append(results, v)
	}

	var result any

	switch len(results) {
	case 0:
	case 1:
		result = results[0]
	default:
		result = results
	}

	out := msg.Clone()

	if a.target != "" {
		out.Payload[a.target] = result

		return out, nil
	}

	if obj, ok := result.(map[string]any); ok {
		out.Payload = obj

		return out, nil
	}

	out.Payload["result"] = result

	return out, nil
}

// normalize round-trips v through JSON so gojq only sees the types it supports.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}

	return out, nil
}

package registry

import (
	"fmt"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

// Instance is a constructed node tagged with the category it was registered
// under. Exactly one of Trigger, Action or Logger is non-nil.
type Instance struct {
	Identifier string
	Category   models.CategoryType

	node    protocol.Node
	trigger protocol.TriggerNode
	action  protocol.ActionNode
	logger  protocol.LoggerNode
}

func newInstance(identifier string, category models.CategoryType, node protocol.Node) (*Instance, error) {
	inst := &Instance{Identifier: identifier, Category: category, node: node}

	var ok bool

	switch category {
	case models.CategoryTypeTrigger:
		inst.trigger, ok = node.(protocol.TriggerNode)
	case models.CategoryTypeAction:
		inst.action, ok = node.(protocol.ActionNode)
	case models.CategoryTypeLogger:
		inst.logger, ok = node.(protocol.LoggerNode)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %q registered as %q", ErrCategoryMismatch, identifier, category)
	}

	return inst, nil
}

func (i *Instance) Node() protocol.Node { return i.node }

func (i *Instance) Name() string { return i.node.Name() }

func (i *Instance) Trigger() protocol.TriggerNode { return i.trigger }

func (i *Instance) Action() protocol.ActionNode { return i.action }

func (i *Instance) Logger() protocol.LoggerNode { return i.logger }

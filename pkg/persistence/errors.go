package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrNodeNotFound indicates a flow node was not found by the given identifier.
	ErrNodeNotFound = errors.New("node not found")

	// ErrPredefinedNodeNotFound indicates a catalog entry was not found.
	ErrPredefinedNodeNotFound = errors.New("predefined node not found")

	// ErrTriggerConfigNotFound indicates no config is stored for a trigger ID.
	ErrTriggerConfigNotFound = errors.New("trigger config not found")
)

// NodeError wraps node-related errors with additional context.
type NodeError struct {
	Op     string // Operation being performed
	FlowID string
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s operation failed for node %s in flow %s: %v", e.Op, e.NodeID, e.FlowID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func (e *NodeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewNodeError(op, flowID, nodeID string, err error) *NodeError {
	return &NodeError{Op: op, FlowID: flowID, NodeID: nodeID, Err: err}
}

func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

func IsPredefinedNodeNotFound(err error) bool {
	return errors.Is(err, ErrPredefinedNodeNotFound)
}

func IsTriggerConfigNotFound(err error) bool {
	return errors.Is(err, ErrTriggerConfigNotFound)
}

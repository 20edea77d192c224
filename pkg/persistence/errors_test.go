package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/deflow/deflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestNodeError(t *testing.T) {
	t.Parallel()

	err := persistence.NewNodeError("Delete", "flow-1", "node-1", persistence.ErrNodeNotFound)

	assert.Equal(t, "Delete operation failed for node node-1 in flow flow-1: node not found", err.Error())
	assert.True(t, persistence.IsNodeNotFound(err))
	assert.True(t, persistence.IsNodeNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, persistence.IsFlowNotFound(err))
	assert.Equal(t, persistence.ErrNodeNotFound, errors.Unwrap(err))
}

func TestIsHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, persistence.IsFlowNotFound(persistence.ErrFlowNotFound))
	assert.True(t, persistence.IsPredefinedNodeNotFound(fmt.Errorf("x: %w", persistence.ErrPredefinedNodeNotFound)))
	assert.True(t, persistence.IsTriggerConfigNotFound(persistence.ErrTriggerConfigNotFound))
	assert.False(t, persistence.IsTriggerConfigNotFound(errors.New("other")))
}

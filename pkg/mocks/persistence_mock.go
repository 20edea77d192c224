package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock
}

//nolint:ireturn
func (m *MockPersistence) FlowRepository() persistence.FlowRepository {
	args := m.Called()

	return args.Get(0).(persistence.FlowRepository)
}

//nolint:ireturn
func (m *MockPersistence) FlowNodeRepository() persistence.FlowNodeRepository {
	args := m.Called()

	return args.Get(0).(persistence.FlowNodeRepository)
}

//nolint:ireturn
func (m *MockPersistence) PredefinedNodeRepository() persistence.PredefinedNodeRepository {
	args := m.Called()

	return args.Get(0).(persistence.PredefinedNodeRepository)
}

//nolint:ireturn
func (m *MockPersistence) TriggerConfigRepository() persistence.TriggerConfigRepository {
	args := m.Called()

	return args.Get(0).(persistence.TriggerConfigRepository)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockFlowNodeRepository is a mock implementation of persistence.FlowNodeRepository.
type MockFlowNodeRepository struct {
	mock.Mock
}

func (m *MockFlowNodeRepository) Save(ctx context.Context, node *models.FlowNode) error {
	args := m.Called(ctx, node)

	return args.Error(0)
}

func (m *MockFlowNodeRepository) GetByID(ctx context.Context, id string) (*models.FlowNode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.FlowNode), args.Error(1)
}

func (m *MockFlowNodeRepository) GetByFlow(ctx context.Context, flowID string) ([]*models.FlowNode, error) {
	args := m.Called(ctx, flowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.FlowNode), args.Error(1)
}

func (m *MockFlowNodeRepository) GetByFlowAndCategory(
	ctx context.Context,
	flowID string,
	category models.CategoryType,
) ([]*models.FlowNode, error) {
	args := m.Called(ctx, flowID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.FlowNode), args.Error(1)
}

func (m *MockFlowNodeRepository) Delete(ctx context.Context, flowID, nodeID string) error {
	args := m.Called(ctx, flowID, nodeID)

	return args.Error(0)
}

// MockTriggerConfigRepository is a mock implementation of persistence.TriggerConfigRepository.
type MockTriggerConfigRepository struct {
	mock.Mock
}

func (m *MockTriggerConfigRepository) Save(ctx context.Context, config *models.TriggerConfig) error {
	args := m.Called(ctx, config)

	return args.Error(0)
}

func (m *MockTriggerConfigRepository) GetByTriggerID(ctx context.Context, triggerID string) (*models.TriggerConfig, error) {
	args := m.Called(ctx, triggerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.TriggerConfig), args.Error(1)
}

func (m *MockTriggerConfigRepository) GetAll(ctx context.Context) ([]*models.TriggerConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TriggerConfig), args.Error(1)
}

var (
	_ persistence.Persistence             = (*MockPersistence)(nil)
	_ persistence.FlowNodeRepository      = (*MockFlowNodeRepository)(nil)
	_ persistence.TriggerConfigRepository = (*MockTriggerConfigRepository)(nil)
)

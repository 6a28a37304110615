package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/retainer-prof/pkg/model"
)

// MockCensusRepository is a mock implementation of the CensusRepository interface.
type MockCensusRepository struct {
	mock.Mock
}

// SavePass mocks the SavePass method.
func (m *MockCensusRepository) SavePass(ctx context.Context, rep *model.Report) error {
	args := m.Called(ctx, rep)
	return args.Error(0)
}

// GetPassByUUID mocks the GetPassByUUID method.
func (m *MockCensusRepository) GetPassByUUID(ctx context.Context, taskUUID string) (*model.Report, error) {
	args := m.Called(ctx, taskUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

// ListCensus mocks the ListCensus method.
func (m *MockCensusRepository) ListCensus(ctx context.Context, taskUUID string, limit int) ([]model.SetUsage, error) {
	args := m.Called(ctx, taskUUID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SetUsage), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method.
func (m *MockCensusRepository) UpdateStatus(ctx context.Context, taskUUID string, status model.TaskStatus, info string) error {
	args := m.Called(ctx, taskUUID, status, info)
	return args.Error(0)
}

// ExpectSavePass sets up an expectation for SavePass.
func (m *MockCensusRepository) ExpectSavePass(err error) *mock.Call {
	return m.On("SavePass", mock.Anything, mock.AnythingOfType("*model.Report")).Return(err)
}

package mocks

import (
	"context"

	"imitate-server/session-service/internal/session"
	"imitate-server/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockOracle is a mock type for the Oracle type
type MockOracle struct {
	mock.Mock
}

// RandomPatient provides a mock function with given fields: ctx, bearer
func (_m *MockOracle) RandomPatient(ctx context.Context, bearer string) (*models.Patient, error) {
	ret := _m.Called(ctx, bearer)

	var r0 *models.Patient
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.Patient); ok {
		r0 = rf(ctx, bearer)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*models.Patient)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, bearer)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Chat provides a mock function with given fields: ctx, prompt
func (_m *MockOracle) Chat(ctx context.Context, prompt string) (string, error) {
	ret := _m.Called(ctx, prompt)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string) string); ok {
		r0 = rf(ctx, prompt)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, prompt)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Evaluate provides a mock function with given fields: ctx, req
func (_m *MockOracle) Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.EvaluationResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *models.EvaluationResult
	if rf, ok := ret.Get(0).(func(context.Context, models.EvaluationRequest) *models.EvaluationResult); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*models.EvaluationResult)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, models.EvaluationRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockOracle creates a new instance of MockOracle. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockOracle(t interface {
	mock.TestingT
	Helper()
}) *MockOracle {
	m := &MockOracle{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ session.Oracle = (*MockOracle)(nil)

package mocks

import (
	"context"

	"imitate-server/session-service/internal/session"
	"imitate-server/shared/models"

	"github.com/stretchr/testify/mock"
)

// MockRecordStore is a mock type for the RecordStore type
type MockRecordStore struct {
	mock.Mock
}

// AddScore provides a mock function with given fields: ctx, bearer, score
func (_m *MockRecordStore) AddScore(ctx context.Context, bearer string, score int) error {
	ret := _m.Called(ctx, bearer, score)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, int) error); ok {
		r0 = rf(ctx, bearer, score)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// AddMatch provides a mock function with given fields: ctx, bearer, record
func (_m *MockRecordStore) AddMatch(ctx context.Context, bearer string, record models.MatchRecord) error {
	ret := _m.Called(ctx, bearer, record)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, models.MatchRecord) error); ok {
		r0 = rf(ctx, bearer, record)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockRecordStore creates a new instance of MockRecordStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockRecordStore(t interface {
	mock.TestingT
	Helper()
}) *MockRecordStore {
	m := &MockRecordStore{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ session.RecordStore = (*MockRecordStore)(nil)

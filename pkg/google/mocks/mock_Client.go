// Package mocks provides test doubles for the google client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	google "github.com/sells-group/place-import/pkg/google"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// TextSearch provides a mock function with given fields: ctx, req
func (_m *MockClient) TextSearch(ctx context.Context, req google.TextSearchRequest) (*google.TextSearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for TextSearch")
	}

	var r0 *google.TextSearchResponse
	if rf, ok := ret.Get(0).(func(context.Context, google.TextSearchRequest) (*google.TextSearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.TextSearchResponse)
	}
	return r0, ret.Error(1)
}

// GetPlace provides a mock function with given fields: ctx, placeID
func (_m *MockClient) GetPlace(ctx context.Context, placeID string) (*google.Place, error) {
	ret := _m.Called(ctx, placeID)

	if len(ret) == 0 {
		panic("no return value specified for GetPlace")
	}

	var r0 *google.Place
	if rf, ok := ret.Get(0).(func(context.Context, string) (*google.Place, error)); ok {
		return rf(ctx, placeID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.Place)
	}
	return r0, ret.Error(1)
}

// PhotoMedia provides a mock function with given fields: ctx, photoName, maxWidthPx
func (_m *MockClient) PhotoMedia(ctx context.Context, photoName string, maxWidthPx int) (*google.Media, error) {
	ret := _m.Called(ctx, photoName, maxWidthPx)

	if len(ret) == 0 {
		panic("no return value specified for PhotoMedia")
	}

	var r0 *google.Media
	if rf, ok := ret.Get(0).(func(context.Context, string, int) (*google.Media, error)); ok {
		return rf(ctx, photoName, maxWidthPx)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.Media)
	}
	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

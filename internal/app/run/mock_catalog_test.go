package run

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/John-Robertt/trendsync/internal/catalog"
	"github.com/John-Robertt/trendsync/internal/domain"
)

// MockCatalog is a mock of Catalog interface.
type MockCatalog struct {
	ctrl     *gomock.Controller
	recorder *MockCatalogMockRecorder
}

// MockCatalogMockRecorder is the mock recorder for MockCatalog.
type MockCatalogMockRecorder struct {
	mock *MockCatalog
}

// NewMockCatalog creates a new mock instance.
func NewMockCatalog(ctrl *gomock.Controller) *MockCatalog {
	mock := &MockCatalog{ctrl: ctrl}
	mock.recorder = &MockCatalogMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCatalog) EXPECT() *MockCatalogMockRecorder {
	return m.recorder
}

// Configured mocks base method.
func (m *MockCatalog) Configured() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Configured")
	ret0, _ := ret[0].(bool)
	return ret0
}

// Configured indicates an expected call of Configured.
func (mr *MockCatalogMockRecorder) Configured() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Configured", reflect.TypeOf((*MockCatalog)(nil).Configured))
}

// Trending mocks base method.
func (m *MockCatalog) Trending(ctx context.Context, kind domain.Kind, window catalog.Window) ([]catalog.RawItem, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Trending", ctx, kind, window)
	ret0, _ := ret[0].([]catalog.RawItem)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Trending indicates an expected call of Trending.
func (mr *MockCatalogMockRecorder) Trending(ctx, kind, window any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Trending", reflect.TypeOf((*MockCatalog)(nil).Trending), ctx, kind, window)
}

// PopularMovies mocks base method.
func (m *MockCatalog) PopularMovies(ctx context.Context) ([]catalog.RawItem, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PopularMovies", ctx)
	ret0, _ := ret[0].([]catalog.RawItem)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// PopularMovies indicates an expected call of PopularMovies.
func (mr *MockCatalogMockRecorder) PopularMovies(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PopularMovies", reflect.TypeOf((*MockCatalog)(nil).PopularMovies), ctx)
}

// Details mocks base method.
func (m *MockCatalog) Details(ctx context.Context, kind domain.Kind, id int) (catalog.Detail, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Details", ctx, kind, id)
	ret0, _ := ret[0].(catalog.Detail)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Details indicates an expected call of Details.
func (mr *MockCatalogMockRecorder) Details(ctx, kind, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Details", reflect.TypeOf((*MockCatalog)(nil).Details), ctx, kind, id)
}

// Images mocks base method.
func (m *MockCatalog) Images(ctx context.Context, kind domain.Kind, id int) (catalog.ImageSet, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Images", ctx, kind, id)
	ret0, _ := ret[0].(catalog.ImageSet)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Images indicates an expected call of Images.
func (mr *MockCatalogMockRecorder) Images(ctx, kind, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Images", reflect.TypeOf((*MockCatalog)(nil).Images), ctx, kind, id)
}

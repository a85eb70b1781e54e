package app

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dtools/pkg/runtime"
)

// MockLauncher is a mock implementation of the Launcher interface
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Run(ctx context.Context, cmd runtime.Command) (int, error) {
	args := m.Called(ctx, cmd)
	return args.Int(0), args.Error(1)
}

func (m *MockLauncher) Exec(cmd runtime.Command) error {
	args := m.Called(cmd)
	return args.Error(0)
}

// MockInspector is a mock implementation of the ImageInspector interface
type MockInspector struct {
	mock.Mock
}

func (m *MockInspector) ImageExists(ctx context.Context, ref string) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

// MockFactory hands out the mocks above.
type MockFactory struct {
	launcher     *MockLauncher
	inspector    *MockInspector
	inspectorErr error
}

func newMockFactory() *MockFactory {
	return &MockFactory{launcher: &MockLauncher{}, inspector: &MockInspector{}}
}

func (f *MockFactory) Launcher() runtime.Launcher {
	return f.launcher
}

func (f *MockFactory) Inspector(ctx context.Context) (runtime.ImageInspector, error) {
	if f.inspectorErr != nil {
		return nil, f.inspectorErr
	}
	return f.inspector, nil
}

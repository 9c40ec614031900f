package mocks

import (
	"io"

	"github.com/brettbedarf/tecnicofs"
	"github.com/stretchr/testify/mock"
)

// MockTree implements the engine's Tree for testing across packages
type MockTree struct {
	mock.Mock
}

func (m *MockTree) Lookup(path string) (int, error) {
	args := m.Called(path)
	return args.Int(0), args.Error(1)
}

func (m *MockTree) Create(path string, kind tecnicofs.Kind) (int, error) {
	args := m.Called(path, kind)

	// Handle function return types (for blocking or counting tests)
	if fn, ok := args.Get(0).(func(string, tecnicofs.Kind) int); ok {
		return fn(path, kind), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockTree) Delete(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockTree) Dump(w io.Writer) error {
	args := m.Called(w)
	return args.Error(0)
}

func (m *MockTree) DumpFile(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

func (m *MockTree) Len() int {
	args := m.Called()
	return args.Int(0)
}

package store

import "github.com/stretchr/testify/mock"

// Mock implements Store with testify/mock, the way the host stack's
// storage.StoreMock does for its own Store interface.
type Mock struct {
	mock.Mock
}

var _ Store = (*Mock)(nil)

func (m *Mock) Add(data []byte) (string, error) {
	args := m.Called(data)
	return args.String(0), args.Error(1)
}

func (m *Mock) Cat(hash string) ([]byte, error) {
	args := m.Called(hash)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *Mock) Stats() (Stats, error) {
	args := m.Called()
	s, _ := args.Get(0).(Stats)
	return s, args.Error(1)
}

// NameServiceMock implements NameService with testify/mock.
type NameServiceMock struct {
	mock.Mock
}

var _ NameService = (*NameServiceMock)(nil)

func (m *NameServiceMock) Resolve(name string, recursive, nocache bool) (string, error) {
	args := m.Called(name, recursive, nocache)
	return args.String(0), args.Error(1)
}

func (m *NameServiceMock) Publish(hash string) (string, error) {
	args := m.Called(hash)
	return args.String(0), args.Error(1)
}

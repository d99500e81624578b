package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// These exercise Mock and NameServiceMock the way
// nicolagi-muscle/storage/martino_test.go exercises StoreMock: inject a
// canned error and assert it surfaces through the call unchanged.

func TestStoreMockPropagatesAddError(t *testing.T) {
	injected := errors.New("backend unavailable")
	m := new(Mock)
	m.On("Add", mock.Anything).Return("", injected)

	_, err := m.Add([]byte("payload"))
	require.ErrorIs(t, err, injected)
	m.AssertExpectations(t)
}

func TestStoreMockReturnsCatBytes(t *testing.T) {
	m := new(Mock)
	m.On("Cat", "QmHash").Return([]byte("content"), nil)

	got, err := m.Cat("QmHash")
	require.NoError(t, err)
	require.Equal(t, []byte("content"), got)
}

func TestStoreMockReturnsStats(t *testing.T) {
	m := new(Mock)
	m.On("Stats").Return(Stats{"RepoSize": float64(42)}, nil)

	stats, err := m.Stats()
	require.NoError(t, err)
	require.Equal(t, float64(42), stats["RepoSize"])
}

func TestNameServiceMockPropagatesResolveError(t *testing.T) {
	injected := errors.New("name not found")
	m := new(NameServiceMock)
	m.On("Resolve", "alice", true, false).Return("", injected)

	_, err := m.Resolve("alice", true, false)
	require.ErrorIs(t, err, injected)
}

func TestNameServiceMockPublishReturnsPath(t *testing.T) {
	m := new(NameServiceMock)
	m.On("Publish", "QmHash").Return("/nip/alice", nil)

	path, err := m.Publish("QmHash")
	require.NoError(t, err)
	require.Equal(t, "/nip/alice", path)
}

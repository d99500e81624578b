package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nip-go/git-remote-nip/internal/address"
	"github.com/nip-go/git-remote-nip/internal/nameservice"
	"github.com/nip-go/git-remote-nip/internal/store"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	idx := New()
	idx.Refs.Set("refs/heads/main", "abc123")
	idx.Objects.Set("abc123", "QmWrapperHash")
	idx.PrevIdxHash = "QmPrevHash"

	raw, err := idx.encode()
	require.NoError(t, err)

	got, err := decode(raw)
	require.NoError(t, err)
	require.True(t, idx.Equal(got))

	if diff := cmp.Diff(idx.Refs.toPairs(), got.Refs.toPairs()); diff != "" {
		t.Errorf("refs order changed across the CBOR round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(idx.Objects.toPairs(), got.Objects.toPairs()); diff != "" {
		t.Errorf("objects order changed across the CBOR round trip (-want +got):\n%s", diff)
	}
}

func TestLoadNewAddressesYieldEmptyIndex(t *testing.T) {
	s := store.NewInMemory()
	idx, hash, err := Load(address.Address{Kind: address.NewImmutable}, s, nil)
	require.NoError(t, err)
	require.Empty(t, hash)
	require.Equal(t, 0, idx.Refs.Len())
	require.Equal(t, 0, idx.Objects.Len())
}

func TestUploadThenLoadExistingImmutable(t *testing.T) {
	s := store.NewInMemory()
	idx := New()
	idx.Refs.Set("refs/heads/main", "abc123")

	remote, err := idx.Upload(s, nil, "", false, "")
	require.NoError(t, err)
	require.Equal(t, address.ExistingImmutable, remote.Address.Kind)

	loaded, loadedHash, err := Load(remote.Address, s, nil)
	require.NoError(t, err)
	require.Equal(t, remote.Address.Hash, loadedHash)
	require.True(t, idx.Equal(loaded))
}

func TestUploadAndLoadExistingMutable(t *testing.T) {
	s := store.NewInMemory()
	kv := nameservice.NewMemoryKV()
	ns := nameservice.NewStoreBacked(kv, "alice")

	idx := New()
	idx.Refs.Set("refs/heads/main", "abc123")
	remote, err := idx.Upload(s, ns, "", true, "alice")
	require.NoError(t, err)
	require.Equal(t, address.ExistingMutable, remote.Address.Kind)
	require.Equal(t, "alice", remote.Address.Hash)

	loaded, loadedHash, err := Load(remote.Address, s, ns)
	require.NoError(t, err)
	require.NotEmpty(t, loadedHash)
	require.True(t, idx.Equal(loaded))
}

func TestHistoryChainWalksBackToRoot(t *testing.T) {
	s := store.NewInMemory()

	root := New()
	root.Refs.Set("refs/heads/main", "sha1")
	remote1, err := root.Upload(s, nil, "", false, "")
	require.NoError(t, err)

	second := New()
	second.Refs.Set("refs/heads/main", "sha2")
	remote2, err := second.Upload(s, nil, remote1.Address.Hash, false, "")
	require.NoError(t, err)
	require.Equal(t, remote1.Address.Hash, second.PrevIdxHash)

	loaded, _, err := Load(remote2.Address, s, nil)
	require.NoError(t, err)

	chain, err := loaded.History(0, s)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, "", chain[len(chain)-1].PrevIdxHash)
}

func TestIndexEqualIgnoresNothingRelevant(t *testing.T) {
	a := New()
	a.Refs.Set("refs/heads/main", "sha1")
	b := a.Clone()
	require.True(t, a.Equal(b))
	b.Refs.Set("refs/heads/other", "sha2")
	require.False(t, a.Equal(b))
}

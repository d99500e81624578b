package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nip-go/git-remote-nip/internal/frame"
	"github.com/nip-go/git-remote-nip/internal/gitrepo"
	"github.com/nip-go/git-remote-nip/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal in-memory gitrepo.Repo double, grounded on the
// host stack's preference for hand-rolled in-memory fakes over a
// mocking library when a handful of methods is enough
// (storage/inmemory.go).
type fakeRepo struct {
	raw     map[string][]byte
	kind    map[string]gitrepo.Kind
	parents map[string][]string
	tree    map[string]string
	entries map[string][]string
	target  map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		raw:     make(map[string][]byte),
		kind:    make(map[string]gitrepo.Kind),
		parents: make(map[string][]string),
		tree:    make(map[string]string),
		entries: make(map[string][]string),
		target:  make(map[string]string),
	}
}

func (f *fakeRepo) ResolveRef(name string) (string, error)              { return "", nil }
func (f *fakeRepo) Peel(sha string) (string, gitrepo.Kind, error)       { return sha, f.kind[sha], nil }
func (f *fakeRepo) Type(sha string) (gitrepo.Kind, error)               { return f.kind[sha], nil }
func (f *fakeRepo) IsAncestor(a, d string) (bool, error)                { return false, nil }
func (f *fakeRepo) SetRef(name, sha, message string) error              { return nil }
func (f *fakeRepo) RemoteURL(name string) (string, error)               { return "", nil }
func (f *fakeRepo) SetRemoteURL(name, newURL string) error              { return nil }

func (f *fakeRepo) ReadRaw(sha string) ([]byte, gitrepo.Kind, error) {
	return f.raw[sha], f.kind[sha], nil
}

func (f *fakeRepo) CommitParents(sha string) ([]string, error) { return f.parents[sha], nil }
func (f *fakeRepo) CommitTree(sha string) (string, error)       { return f.tree[sha], nil }
func (f *fakeRepo) TreeEntries(sha string) ([]string, error)    { return f.entries[sha], nil }
func (f *fakeRepo) TagTarget(sha string) (string, error)        { return f.target[sha], nil }

func (f *fakeRepo) WriteRaw(kind gitrepo.Kind, data []byte) (string, error) {
	sha := "written-" + string(data)
	f.raw[sha] = data
	f.kind[sha] = kind
	return sha, nil
}

var _ gitrepo.Repo = (*fakeRepo)(nil)

func TestFromBlobAndRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	repo.raw["blobsha"] = []byte("blob content")
	repo.kind["blobsha"] = gitrepo.KindBlob

	s := store.NewInMemory()

	to, err := From("blobsha", repo, s)
	require.NoError(t, err)
	require.Equal(t, KindBlob, to.Metadata.Kind)
	require.Empty(t, to.Children())

	wrapperHash, err := to.UploadWrapper(s)
	require.NoError(t, err)

	got, err := Get(wrapperHash, s)
	require.NoError(t, err)
	if diff := cmp.Diff(to, got); diff != "" {
		t.Errorf("translated object changed across the CBOR round trip (-want +got):\n%s", diff)
	}
}

func TestFromCommitCarriesParentsAndTree(t *testing.T) {
	repo := newFakeRepo()
	repo.raw["commitsha"] = []byte("commit content")
	repo.kind["commitsha"] = gitrepo.KindCommit
	repo.parents["commitsha"] = []string{"parent1", "parent2"}
	repo.tree["commitsha"] = "treesha"

	s := store.NewInMemory()
	to, err := From("commitsha", repo, s)
	require.NoError(t, err)
	require.Equal(t, []string{"parent1", "parent2"}, to.Metadata.ParentGitHashes)
	require.Equal(t, "treesha", to.Metadata.TreeGitHash)
	require.ElementsMatch(t, []string{"treesha", "parent1", "parent2"}, to.Children())
}

func TestFromTreeCarriesEntries(t *testing.T) {
	repo := newFakeRepo()
	repo.raw["treesha"] = []byte("tree content")
	repo.kind["treesha"] = gitrepo.KindTree
	repo.entries["treesha"] = []string{"blob1", "blob2"}

	s := store.NewInMemory()
	to, err := From("treesha", repo, s)
	require.NoError(t, err)
	require.Equal(t, []string{"blob1", "blob2"}, to.Children())
}

func TestFromTagCarriesTarget(t *testing.T) {
	repo := newFakeRepo()
	repo.raw["tagsha"] = []byte("tag content")
	repo.kind["tagsha"] = gitrepo.KindTag
	repo.target["tagsha"] = "commitsha"

	s := store.NewInMemory()
	to, err := From("tagsha", repo, s)
	require.NoError(t, err)
	require.Equal(t, []string{"commitsha"}, to.Children())
}

func TestWriteRawDetectsTreeInconsistency(t *testing.T) {
	repo := newFakeRepo()
	repo.raw["blobsha"] = []byte("blob content")
	repo.kind["blobsha"] = gitrepo.KindBlob

	s := store.NewInMemory()
	to, err := From("blobsha", repo, s)
	require.NoError(t, err)

	_, err = to.WriteRaw("not-the-actual-sha", "wrapperhash", repo, s)
	require.Error(t, err)
	var inconsistency ErrTreeInconsistency
	require.ErrorAs(t, err, &inconsistency)
}

func TestWriteRawSucceedsWhenSHAMatches(t *testing.T) {
	repo := newFakeRepo()
	repo.raw["blobsha"] = []byte("blob content")
	repo.kind["blobsha"] = gitrepo.KindBlob

	s := store.NewInMemory()
	to, err := From("blobsha", repo, s)
	require.NoError(t, err)

	expected := "written-" + "blob content"
	got, err := to.WriteRaw(expected, "wrapperhash", repo, s)
	require.NoError(t, err)
	require.Equal(t, expected, got)
}

func TestGetRejectsNewerVersion(t *testing.T) {
	s := store.NewInMemory()
	newer := uint16(9999)
	payload := append(frame.Generate(&newer), 0)
	hash, err := s.Add(payload)
	require.NoError(t, err)

	_, err = Get(hash, s)
	require.Error(t, err)
}

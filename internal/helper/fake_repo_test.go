package helper

import (
	"fmt"

	"github.com/nip-go/git-remote-nip/internal/gitrepo"
)

// fakeRepo is a tiny in-memory gitrepo.Repo double for driving the
// protocol state machine end to end without a real git repository.
type fakeRepo struct {
	raw     map[string][]byte
	kind    map[string]gitrepo.Kind
	parents map[string][]string
	tree    map[string]string
	entries map[string][]string
	target  map[string]string
	refs    map[string]string
	remotes map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		raw:     make(map[string][]byte),
		kind:    make(map[string]gitrepo.Kind),
		parents: make(map[string][]string),
		tree:    make(map[string]string),
		entries: make(map[string][]string),
		target:  make(map[string]string),
		refs:    make(map[string]string),
		remotes: make(map[string]string),
	}
}

var _ gitrepo.Repo = (*fakeRepo)(nil)

func (f *fakeRepo) ResolveRef(name string) (string, error) {
	sha, ok := f.refs[name]
	if !ok {
		return "", gitrepo.ErrRefNotFound{Name: name}
	}
	return sha, nil
}

func (f *fakeRepo) Peel(sha string) (string, gitrepo.Kind, error) {
	kind, err := f.Type(sha)
	if err != nil {
		return "", 0, err
	}
	if kind != gitrepo.KindTag {
		return sha, kind, nil
	}
	return f.Peel(f.target[sha])
}

func (f *fakeRepo) Type(sha string) (gitrepo.Kind, error) {
	kind, ok := f.kind[sha]
	if !ok {
		return 0, fmt.Errorf("fakeRepo: unknown object %s", sha)
	}
	return kind, nil
}

func (f *fakeRepo) ReadRaw(sha string) ([]byte, gitrepo.Kind, error) {
	kind, err := f.Type(sha)
	if err != nil {
		return nil, 0, err
	}
	return f.raw[sha], kind, nil
}

func (f *fakeRepo) CommitParents(sha string) ([]string, error) { return f.parents[sha], nil }
func (f *fakeRepo) CommitTree(sha string) (string, error)      { return f.tree[sha], nil }
func (f *fakeRepo) TreeEntries(sha string) ([]string, error)   { return f.entries[sha], nil }
func (f *fakeRepo) TagTarget(sha string) (string, error)       { return f.target[sha], nil }

func (f *fakeRepo) WriteRaw(kind gitrepo.Kind, data []byte) (string, error) {
	sha := shaOf(data)
	f.raw[sha] = data
	f.kind[sha] = kind
	return sha, nil
}

// shaOf is every add* helper's and WriteRaw's shared content-addressing
// function: a sha is always a function of an object's raw bytes alone.
func shaOf(data []byte) string {
	return fmt.Sprintf("sha-%x", hashBytes(data))
}

func hashBytes(data []byte) uint64 {
	var h uint64 = 14695981039346656037
	for _, b := range data {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}

func (f *fakeRepo) IsAncestor(ancestor, descendant string) (bool, error) {
	visited := map[string]bool{}
	stack := []string{descendant}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == ancestor {
			return true, nil
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, f.parents[id]...)
	}
	return false, nil
}

func (f *fakeRepo) SetRef(name, sha, message string) error {
	f.refs[name] = sha
	return nil
}

func (f *fakeRepo) RemoteURL(name string) (string, error) {
	url, ok := f.remotes[name]
	if !ok {
		return "", fmt.Errorf("fakeRepo: remote %q not configured", name)
	}
	return url, nil
}

func (f *fakeRepo) SetRemoteURL(name, newURL string) error {
	f.remotes[name] = newURL
	return nil
}

func (f *fakeRepo) addBlob(content string) string {
	raw := []byte(content)
	sha := shaOf(raw)
	f.raw[sha] = raw
	f.kind[sha] = gitrepo.KindBlob
	return sha
}

func (f *fakeRepo) addTree(name string, entries ...string) string {
	raw := []byte("tree:" + name)
	sha := shaOf(raw)
	f.raw[sha] = raw
	f.kind[sha] = gitrepo.KindTree
	f.entries[sha] = entries
	return sha
}

func (f *fakeRepo) addCommit(name, treeSHA string, parents ...string) string {
	raw := []byte("commit:" + name)
	sha := shaOf(raw)
	f.raw[sha] = raw
	f.kind[sha] = gitrepo.KindCommit
	f.tree[sha] = treeSHA
	f.parents[sha] = parents
	return sha
}

// addTag registers an annotated tag pointing at targetSHA and returns
// its sha.
func (f *fakeRepo) addTag(name, targetSHA string) string {
	raw := []byte("tag:" + name)
	sha := shaOf(raw)
	f.raw[sha] = raw
	f.kind[sha] = gitrepo.KindTag
	f.target[sha] = targetSHA
	return sha
}

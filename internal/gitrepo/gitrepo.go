// Package gitrepo is the boundary between the core and the host git
// object database and ref store (§6.3). The core never imports
// go-git directly; it talks to this narrow capability instead, the
// same separation the host stack draws between tree.Tree and its
// storage.Store.
package gitrepo

import "fmt"

// Kind is one of the four VCS object types the core ever deals with.
type Kind int

const (
	KindCommit Kind = iota
	KindTree
	KindTag
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindTree:
		return "tree"
	case KindTag:
		return "tag"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrUnsupportedType is returned when an object's kind cannot be
// determined, or is something other than the four known kinds.
type ErrUnsupportedType struct {
	SHA string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("gitrepo: unsupported object type for %s", e.SHA)
}

// ErrRefNotFound is returned by ResolveRef for an unknown ref.
type ErrRefNotFound struct {
	Name string
}

func (e ErrRefNotFound) Error() string {
	return fmt.Sprintf("gitrepo: ref not found: %s", e.Name)
}

// Repo is the capability the core requires of the host VCS's object
// database and reference store. All hashes are lowercase hex SHA-1,
// exactly as git prints them; the core never manipulates git's binary
// encoding directly, only through this interface.
type Repo interface {
	// ResolveRef resolves a ref name (e.g. "refs/heads/main") to the
	// git hash it currently points at.
	ResolveRef(name string) (sha string, err error)

	// Peel follows an annotated tag to the object it targets,
	// returning the same sha and its own kind if it is not a tag.
	// PushRef uses this to peel both the new tip and the ref's current
	// tip before its ancestry check (§4.D step 1).
	Peel(sha string) (peeledSHA string, kind Kind, err error)

	// Type reports a sha's object kind without reading its payload.
	Type(sha string) (Kind, error)

	// ReadRaw returns the exact, uncompressed object payload git
	// hashes (i.e. the object's content, not including git's
	// "<type> <size>\0" framing), plus its kind.
	ReadRaw(sha string) (data []byte, kind Kind, err error)

	// CommitParents returns a commit's parent hashes, in order.
	CommitParents(sha string) ([]string, error)
	// CommitTree returns a commit's tree hash.
	CommitTree(sha string) (string, error)
	// TreeEntries returns the immediate child hashes of a tree
	// (blobs and subtrees alike; the caller distinguishes via Type).
	TreeEntries(sha string) ([]string, error)
	// TagTarget returns an annotated tag's target hash.
	TagTarget(sha string) (string, error)

	// WriteRaw inserts data into the local object DB under kind and
	// returns the sha1 git computes for it.
	WriteRaw(kind Kind, data []byte) (sha string, err error)

	// IsAncestor reports whether ancestor is a (possibly indirect)
	// parent of descendant, both naming commits.
	IsAncestor(ancestor, descendant string) (bool, error)

	// SetRef creates or updates a ref to point at sha, writing a
	// reflog entry with message. message may be ignored by
	// implementations that do not maintain a reflog.
	SetRef(name, sha, message string) error

	// RemoteURL returns the URL configured for the named remote.
	RemoteURL(remoteName string) (string, error)
	// SetRemoteURL rewrites the URL configured for the named remote.
	SetRemoteURL(remoteName, newURL string) error
}

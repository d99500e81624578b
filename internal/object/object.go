// Package object implements the translated-object mapping layer
// (§4.C): the recursive, deduplicating translation between one VCS
// object and its content-addressed representation in the store. Each
// translated object is a small typed wrapper recording where the raw
// bytes live in the store plus enough structural metadata for the
// index to walk the DAG without re-downloading and re-parsing raw
// bytes (§3 "Translated object").
package object

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/nip-go/git-remote-nip/internal/frame"
	"github.com/nip-go/git-remote-nip/internal/gitrepo"
	"github.com/nip-go/git-remote-nip/internal/store"
	"github.com/pkg/errors"
)

// Metadata carries the structural pointers of one translated object,
// tagged by Kind. Only the fields relevant to Kind are populated; CBOR
// omits the rest via "omitempty", matching the tagged-union payload
// in §6.5.
type Metadata struct {
	Kind Kind `cbor:"kind"`

	// Commit
	ParentGitHashes []string `cbor:"parent_git_hashes,omitempty"`
	TreeGitHash     string   `cbor:"tree_git_hash,omitempty"`

	// Tag
	TargetGitHash string `cbor:"target_git_hash,omitempty"`

	// Tree
	EntryGitHashes []string `cbor:"entry_git_hashes,omitempty"`
}

// Kind mirrors gitrepo.Kind but is the wire-level tag recorded in a
// translated object's metadata; kept distinct so the CBOR payload
// format is stable even if gitrepo's internal enum is renumbered.
type Kind string

const (
	KindCommit Kind = "commit"
	KindTree   Kind = "tree"
	KindTag    Kind = "tag"
	KindBlob   Kind = "blob"
)

func kindOf(k gitrepo.Kind) (Kind, error) {
	switch k {
	case gitrepo.KindCommit:
		return KindCommit, nil
	case gitrepo.KindTree:
		return KindTree, nil
	case gitrepo.KindTag:
		return KindTag, nil
	case gitrepo.KindBlob:
		return KindBlob, nil
	default:
		return "", gitrepo.ErrUnsupportedType{}
	}
}

func (k Kind) gitrepoKind() (gitrepo.Kind, error) {
	switch k {
	case KindCommit:
		return gitrepo.KindCommit, nil
	case KindTree:
		return gitrepo.KindTree, nil
	case KindTag:
		return gitrepo.KindTag, nil
	case KindBlob:
		return gitrepo.KindBlob, nil
	default:
		return 0, fmt.Errorf("object: unsupported metadata kind %q", k)
	}
}

// TranslatedObject is the payload described in §6.5: the store hash
// of the object's raw, unmodified bytes, plus its metadata.
type TranslatedObject struct {
	RawDataHash string   `cbor:"raw_data_ipfs_hash"`
	Metadata    Metadata `cbor:"metadata"`
}

// ErrTreeInconsistency is raised by WriteRaw when the sha1 git
// computes for freshly-written bytes does not match what the index
// expected — store corruption, per §7.
type ErrTreeInconsistency struct {
	Expected    string
	Got         string
	WrapperHash string
}

func (e ErrTreeInconsistency) Error() string {
	return fmt.Sprintf("object: tree inconsistency: expected sha %s, got %s (wrapper %s)", e.Expected, e.Got, e.WrapperHash)
}

// From builds the translated object for sha by reading its raw bytes
// from repo, uploading those bytes to the store, and populating
// Metadata according to its kind (§4.C from_blob/from_commit/
// from_tree/from_tag, unified into one exhaustive switch rather than
// four near-identical functions).
func From(sha string, repo gitrepo.Repo, s store.Store) (TranslatedObject, error) {
	data, gkind, err := repo.ReadRaw(sha)
	if err != nil {
		return TranslatedObject{}, errors.Wrapf(err, "object: reading raw %s", sha)
	}
	kind, err := kindOf(gkind)
	if err != nil {
		return TranslatedObject{}, err
	}
	rawHash, err := s.Add(data)
	if err != nil {
		return TranslatedObject{}, errors.Wrapf(err, "object: uploading raw bytes for %s", sha)
	}

	md := Metadata{Kind: kind}
	switch kind {
	case KindCommit:
		parents, err := repo.CommitParents(sha)
		if err != nil {
			return TranslatedObject{}, err
		}
		tree, err := repo.CommitTree(sha)
		if err != nil {
			return TranslatedObject{}, err
		}
		md.ParentGitHashes = parents
		md.TreeGitHash = tree
	case KindTree:
		entries, err := repo.TreeEntries(sha)
		if err != nil {
			return TranslatedObject{}, err
		}
		md.EntryGitHashes = entries
	case KindTag:
		target, err := repo.TagTarget(sha)
		if err != nil {
			return TranslatedObject{}, err
		}
		md.TargetGitHash = target
	case KindBlob:
		// no metadata
	default:
		return TranslatedObject{}, gitrepo.ErrUnsupportedType{SHA: sha}
	}

	return TranslatedObject{RawDataHash: rawHash, Metadata: md}, nil
}

// UploadWrapper serializes to header+CBOR and uploads it, returning
// the wrapper's own store hash — the hash the index records for sha.
func (t TranslatedObject) UploadWrapper(s store.Store) (string, error) {
	payload, err := t.encode()
	if err != nil {
		return "", err
	}
	hash, err := s.Add(payload)
	if err != nil {
		return "", errors.Wrap(err, "object: uploading wrapper")
	}
	return hash, nil
}

func (t TranslatedObject) encode() ([]byte, error) {
	body, err := cbor.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "object: encoding wrapper")
	}
	return append(frame.Generate(nil), body...), nil
}

// Get downloads and decodes the translated object stored under
// wrapperHash (§4.C ipfs_get). A version mismatch between the stored
// header and the current protocol version is a fast, non-migrating
// rejection: translated objects are immutable once uploaded, so there
// is nothing to migrate forward except by re-deriving from raw bytes,
// which is out of scope here.
func Get(wrapperHash string, s store.Store) (TranslatedObject, error) {
	raw, err := s.Cat(wrapperHash)
	if err != nil {
		return TranslatedObject{}, errors.Wrapf(err, "object: fetching wrapper %s", wrapperHash)
	}
	if len(raw) < frame.Len {
		return TranslatedObject{}, frame.ErrShortHeader{Got: len(raw)}
	}
	version, err := frame.Check(raw[:frame.Len])
	if err != nil {
		return TranslatedObject{}, err
	}
	if version != frame.CurrentVersion {
		return TranslatedObject{}, fmt.Errorf("object: wrapper %s has version %d, want %d", wrapperHash, version, frame.CurrentVersion)
	}
	var t TranslatedObject
	if err := cbor.Unmarshal(raw[frame.Len:], &t); err != nil {
		return TranslatedObject{}, errors.Wrapf(err, "object: decoding wrapper %s", wrapperHash)
	}
	return t, nil
}

// WriteRaw downloads the object's raw bytes from the store and
// inserts them into repo's local object DB under the type declared in
// t.Metadata. The caller supplies the sha the caller expects, per the
// index's obligation to fail loudly on any mismatch (§4.C, §7
// TreeInconsistency); wrapperHash is carried only for the error
// message.
func (t TranslatedObject) WriteRaw(expectedSHA, wrapperHash string, repo gitrepo.Repo, s store.Store) (string, error) {
	data, err := s.Cat(t.RawDataHash)
	if err != nil {
		return "", errors.Wrapf(err, "object: fetching raw bytes %s", t.RawDataHash)
	}
	gkind, err := t.Metadata.Kind.gitrepoKind()
	if err != nil {
		return "", err
	}
	got, err := repo.WriteRaw(gkind, data)
	if err != nil {
		return "", errors.Wrap(err, "object: writing raw bytes to local object db")
	}
	if got != expectedSHA {
		return "", ErrTreeInconsistency{Expected: expectedSHA, Got: got, WrapperHash: wrapperHash}
	}
	return got, nil
}

// Children returns the git hashes t's metadata points at — the
// structural pointers EnumerateForFetch recurses into, without needing
// to re-parse raw bytes.
func (t TranslatedObject) Children() []string {
	switch t.Metadata.Kind {
	case KindCommit:
		children := make([]string, 0, len(t.Metadata.ParentGitHashes)+1)
		children = append(children, t.Metadata.TreeGitHash)
		children = append(children, t.Metadata.ParentGitHashes...)
		return children
	case KindTree:
		return t.Metadata.EntryGitHashes
	case KindTag:
		return []string{t.Metadata.TargetGitHash}
	default:
		return nil
	}
}

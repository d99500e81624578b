package gitrepo

import (
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
)

// GoGit implements Repo on top of an open go-git repository, mirroring
// the host stack's thin-wrapper-around-a-concrete-client pattern
// (storage/s3.go wrapping aws-sdk-go) rather than reimplementing
// object parsing.
type GoGit struct {
	repo *git.Repository
}

var _ Repo = (*GoGit)(nil)

// Open opens the git repository rooted at path (the working tree's
// root, same argument PlainOpen takes).
func Open(path string) (*GoGit, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "gitrepo: opening %s", path)
	}
	return &GoGit{repo: r}, nil
}

func toKind(t plumbing.ObjectType) (Kind, error) {
	switch t {
	case plumbing.CommitObject:
		return KindCommit, nil
	case plumbing.TreeObject:
		return KindTree, nil
	case plumbing.TagObject:
		return KindTag, nil
	case plumbing.BlobObject:
		return KindBlob, nil
	default:
		return 0, fmt.Errorf("gitrepo: unrecognized object type %v", t)
	}
}

func toObjectType(k Kind) plumbing.ObjectType {
	switch k {
	case KindCommit:
		return plumbing.CommitObject
	case KindTree:
		return plumbing.TreeObject
	case KindTag:
		return plumbing.TagObject
	case KindBlob:
		return plumbing.BlobObject
	default:
		return plumbing.InvalidObject
	}
}

func (g *GoGit) ResolveRef(name string) (string, error) {
	ref, err := g.repo.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", ErrRefNotFound{Name: name}
		}
		return "", errors.Wrapf(err, "gitrepo: resolving %s", name)
	}
	return ref.Hash().String(), nil
}

func (g *GoGit) Type(sha string) (Kind, error) {
	obj, err := g.repo.Storer.EncodedObject(plumbing.AnyObject, plumbing.NewHash(sha))
	if err != nil {
		return 0, errors.Wrapf(err, "gitrepo: type of %s", sha)
	}
	return toKind(obj.Type())
}

func (g *GoGit) Peel(sha string) (string, Kind, error) {
	kind, err := g.Type(sha)
	if err != nil {
		return "", 0, err
	}
	if kind != KindTag {
		return sha, kind, nil
	}
	tag, err := g.repo.TagObject(plumbing.NewHash(sha))
	if err != nil {
		return "", 0, errors.Wrapf(err, "gitrepo: loading tag %s", sha)
	}
	targetKind, err := toKind(tag.TargetType)
	if err != nil {
		return "", 0, err
	}
	return tag.Target.String(), targetKind, nil
}

func (g *GoGit) ReadRaw(sha string) ([]byte, Kind, error) {
	obj, err := g.repo.Storer.EncodedObject(plumbing.AnyObject, plumbing.NewHash(sha))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "gitrepo: reading %s", sha)
	}
	kind, err := toKind(obj.Type())
	if err != nil {
		return nil, 0, err
	}
	reader, err := obj.Reader()
	if err != nil {
		return nil, 0, errors.Wrapf(err, "gitrepo: opening reader for %s", sha)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "gitrepo: reading payload of %s", sha)
	}
	return data, kind, nil
}

func (g *GoGit) CommitParents(sha string) ([]string, error) {
	c, err := g.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, errors.Wrapf(err, "gitrepo: loading commit %s", sha)
	}
	parents := make([]string, len(c.ParentHashes))
	for i, h := range c.ParentHashes {
		parents[i] = h.String()
	}
	return parents, nil
}

func (g *GoGit) CommitTree(sha string) (string, error) {
	c, err := g.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return "", errors.Wrapf(err, "gitrepo: loading commit %s", sha)
	}
	return c.TreeHash.String(), nil
}

func (g *GoGit) TreeEntries(sha string) ([]string, error) {
	t, err := g.repo.TreeObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, errors.Wrapf(err, "gitrepo: loading tree %s", sha)
	}
	entries := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = e.Hash.String()
	}
	return entries, nil
}

func (g *GoGit) TagTarget(sha string) (string, error) {
	t, err := g.repo.TagObject(plumbing.NewHash(sha))
	if err != nil {
		return "", errors.Wrapf(err, "gitrepo: loading tag %s", sha)
	}
	return t.Target.String(), nil
}

func (g *GoGit) WriteRaw(kind Kind, data []byte) (string, error) {
	obj := g.repo.Storer.NewEncodedObject()
	obj.SetType(toObjectType(kind))
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return "", errors.Wrap(err, "gitrepo: opening object writer")
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "gitrepo: writing object payload")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "gitrepo: closing object writer")
	}
	hash, err := g.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", errors.Wrap(err, "gitrepo: storing object")
	}
	return hash.String(), nil
}

func (g *GoGit) IsAncestor(ancestor, descendant string) (bool, error) {
	a, err := g.repo.CommitObject(plumbing.NewHash(ancestor))
	if err != nil {
		return false, errors.Wrapf(err, "gitrepo: loading commit %s", ancestor)
	}
	d, err := g.repo.CommitObject(plumbing.NewHash(descendant))
	if err != nil {
		return false, errors.Wrapf(err, "gitrepo: loading commit %s", descendant)
	}
	return a.IsAncestor(d)
}

// SetRef creates or updates a ref. message documents the intended
// reflog entry ("helper fetch") for parity with the host git CLI;
// go-git's ReferenceStorer does not expose reflog writing on its
// public interface, so the message is accepted but not persisted.
func (g *GoGit) SetRef(name, sha, message string) error {
	_ = message
	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), plumbing.NewHash(sha))
	if err := g.repo.Storer.SetReference(ref); err != nil {
		return errors.Wrapf(err, "gitrepo: setting ref %s", name)
	}
	return nil
}

func (g *GoGit) RemoteURL(remoteName string) (string, error) {
	cfg, err := g.repo.Config()
	if err != nil {
		return "", errors.Wrap(err, "gitrepo: reading config")
	}
	rc, ok := cfg.Remotes[remoteName]
	if !ok || len(rc.URLs) == 0 {
		return "", fmt.Errorf("gitrepo: remote %q has no URL", remoteName)
	}
	return rc.URLs[0], nil
}

func (g *GoGit) SetRemoteURL(remoteName, newURL string) error {
	cfg, err := g.repo.Config()
	if err != nil {
		return errors.Wrap(err, "gitrepo: reading config")
	}
	rc, ok := cfg.Remotes[remoteName]
	if !ok {
		rc = &config.RemoteConfig{Name: remoteName}
		cfg.Remotes[remoteName] = rc
	}
	rc.URLs = []string{newURL}
	if err := g.repo.Storer.SetConfig(cfg); err != nil {
		return errors.Wrap(err, "gitrepo: writing config")
	}
	return nil
}


package index

import (
	"context"

	"github.com/nip-go/git-remote-nip/internal/gitrepo"
	"github.com/nip-go/git-remote-nip/internal/object"
	"github.com/nip-go/git-remote-nip/internal/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// transferConcurrency bounds how many objects are uploaded or
// downloaded at once during a single push/fetch's transfer phase,
// mirroring the host stack's fixed-size semaphore channel in
// tree.Tree.grow.
const transferConcurrency = 32

// EnumerateForPush returns the set of git hashes reachable from sha
// that are not yet recorded in idx.Objects (§4.D "Enumerate for
// push"), using an explicit work stack rather than recursion so deep
// histories don't blow the machine stack (§9 Design Notes).
func EnumerateForPush(sha string, idx *Index, repo gitrepo.Repo) ([]string, error) {
	seen := make(map[string]bool)
	var order []string
	stack := []string{sha}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		if idx.Objects.Has(id) {
			continue
		}
		seen[id] = true
		order = append(order, id)

		kind, err := repo.Type(id)
		if err != nil {
			return nil, errors.Wrapf(err, "index: typing %s", id)
		}
		switch kind {
		case gitrepo.KindCommit:
			tree, err := repo.CommitTree(id)
			if err != nil {
				return nil, err
			}
			stack = append(stack, tree)
			parents, err := repo.CommitParents(id)
			if err != nil {
				return nil, err
			}
			stack = append(stack, parents...)
		case gitrepo.KindTree:
			entries, err := repo.TreeEntries(id)
			if err != nil {
				return nil, err
			}
			stack = append(stack, entries...)
		case gitrepo.KindTag:
			target, err := repo.TagTarget(id)
			if err != nil {
				return nil, err
			}
			stack = append(stack, target)
		case gitrepo.KindBlob:
			// terminal
		default:
			return nil, gitrepo.ErrUnsupportedType{SHA: id}
		}
	}
	return order, nil
}

// uploadMissing translates and uploads every sha in shas, then records
// sha1→wrapper-hash into idx.Objects in shas order, keeping the
// resulting serialization reproducible run-to-run regardless of which
// transfer happens to finish first (§3: Objects is insertion-ordered).
// Transfers themselves run with bounded parallelism.
func uploadMissing(shas []string, idx *Index, repo gitrepo.Repo, s store.Store) error {
	wrapperHashes := make([]string, len(shas))
	sem := make(chan struct{}, transferConcurrency)
	g, _ := errgroup.WithContext(context.Background())
	for i, sha := range shas {
		i, sha := i, sha
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if idx.Objects.Has(sha) {
				log.WithField("sha", sha).Warn("index: object already mapped, skipping translation")
				return nil
			}

			translated, err := object.From(sha, repo, s)
			if err != nil {
				return errors.Wrapf(err, "index: translating %s", sha)
			}
			wrapperHash, err := translated.UploadWrapper(s)
			if err != nil {
				return errors.Wrapf(err, "index: uploading wrapper for %s", sha)
			}
			wrapperHashes[i] = wrapperHash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, sha := range shas {
		if wrapperHashes[i] == "" {
			continue
		}
		idx.Objects.Set(sha, wrapperHashes[i])
	}
	return nil
}

// PushRef pushes srcRefName's current tip to dstRefName within idx
// (§4.D "Push a ref"). The tip is recorded and enumerated as-is: an
// annotated tag tip is stored and transferred as a tag object (its
// translated metadata carries the target sha, so fetch can
// reconstitute it), not silently replaced by its target commit. Only
// the non-fast-forward ancestry check peels to a commit, since
// IsAncestor compares commits. A non-fast-forward update is refused
// unless force is set.
func PushRef(srcRefName, dstRefName string, force bool, idx *Index, repo gitrepo.Repo, s store.Store) error {
	tipSHA, err := repo.ResolveRef(srcRefName)
	if err != nil {
		return errors.Wrapf(err, "index: resolving %s", srcRefName)
	}
	tipKind, err := repo.Type(tipSHA)
	if err != nil {
		return errors.Wrapf(err, "index: typing %s", tipSHA)
	}
	tipCommit := tipSHA
	if tipKind == gitrepo.KindTag {
		tipCommit, _, err = repo.Peel(tipSHA)
		if err != nil {
			return errors.Wrapf(err, "index: peeling %s", tipSHA)
		}
	}

	if !force {
		if currentTip, ok := idx.Refs.Get(dstRefName); ok && currentTip != tipSHA {
			currentCommit, _, err := repo.Peel(currentTip)
			if err != nil {
				return errors.Wrapf(err, "index: peeling %s", currentTip)
			}
			isDescendant, err := repo.IsAncestor(currentCommit, tipCommit)
			if err != nil {
				return errors.Wrapf(err, "index: checking ancestry %s -> %s", currentCommit, tipCommit)
			}
			if !isDescendant {
				return NonFastForward{RefName: dstRefName}
			}
		}
	}

	missing, err := EnumerateForPush(tipSHA, idx, repo)
	if err != nil {
		return err
	}
	if err := uploadMissing(missing, idx, repo, s); err != nil {
		return err
	}

	idx.Refs.Set(dstRefName, tipSHA)
	return nil
}

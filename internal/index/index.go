// Package index implements the traversal engine (§4.D): the
// repository's manifest (ordered refs, ordered sha1→wrapper-hash
// object map, optional back-pointer to the prior index) plus the
// two-phase enumerate-then-transfer DAG walks that drive push and
// fetch.
package index

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/nip-go/git-remote-nip/internal/address"
	"github.com/nip-go/git-remote-nip/internal/frame"
	"github.com/nip-go/git-remote-nip/internal/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// migrations has no registered steps yet: protocol version 1 is the
// only version this binary has ever written. The next breaking change
// to the wire shape adds an entry here keyed by the version being
// upgraded from, per the backward-compatibility requirement in §6.5.
var migrations = frame.Chain{}

// Index is the repository's rooted manifest (§3).
type Index struct {
	Refs        *OrderedMap
	Objects     *OrderedMap
	PrevIdxHash string // empty means "no prior index"
}

// New returns an empty index, used for New-Immutable/New-Mutable
// remote addresses.
func New() *Index {
	return &Index{Refs: NewOrderedMap(), Objects: NewOrderedMap()}
}

// Clone returns a deep copy, used by the driver to compare
// index-before and index-after across a push batch (§4.D idempotence).
func (idx *Index) Clone() *Index {
	return &Index{
		Refs:        idx.Refs.Clone(),
		Objects:     idx.Objects.Clone(),
		PrevIdxHash: idx.PrevIdxHash,
	}
}

// Equal reports whether idx and other have identical refs, objects,
// and back-pointer.
func (idx *Index) Equal(other *Index) bool {
	if other == nil {
		return false
	}
	return idx.Refs.Equal(other.Refs) && idx.Objects.Equal(other.Objects) && idx.PrevIdxHash == other.PrevIdxHash
}

type wireIndex struct {
	Refs        []pair `cbor:"refs"`
	Objects     []pair `cbor:"objects"`
	PrevIdxHash string `cbor:"prev_idx_hash,omitempty"`
}

// MarshalCBOR implements cbor.Marshaler so an *Index can be passed
// directly to cbor.Marshal, per §6.5's "header + CBOR of {refs,
// objects, prev_idx_hash}".
func (idx Index) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(wireIndex{
		Refs:        idx.Refs.toPairs(),
		Objects:     idx.Objects.toPairs(),
		PrevIdxHash: idx.PrevIdxHash,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (idx *Index) UnmarshalCBOR(data []byte) error {
	var w wireIndex
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	idx.Refs = orderedMapFromPairs(w.Refs)
	idx.Objects = orderedMapFromPairs(w.Objects)
	idx.PrevIdxHash = w.PrevIdxHash
	return nil
}

func (idx *Index) encode() ([]byte, error) {
	body, err := cbor.Marshal(idx)
	if err != nil {
		return nil, errors.Wrap(err, "index: encoding")
	}
	return append(frame.Generate(nil), body...), nil
}

func decode(raw []byte) (*Index, error) {
	if len(raw) < frame.Len {
		return nil, frame.ErrShortHeader{Got: len(raw)}
	}
	version, err := frame.Parse(raw[:frame.Len])
	if err != nil {
		return nil, err
	}
	body := raw[frame.Len:]
	switch {
	case version > frame.CurrentVersion:
		return nil, frame.ErrTooNew{Version: version}
	case version < frame.CurrentVersion:
		log.WithFields(log.Fields{"from": version, "to": frame.CurrentVersion}).Info("index: migrating payload forward")
		body, err = migrations.Migrate(body, version)
		if err != nil {
			return nil, err
		}
	}
	var idx Index
	if err := cbor.Unmarshal(body, &idx); err != nil {
		return nil, errors.Wrap(err, "index: decoding")
	}
	return &idx, nil
}

// Load resolves addr to an index and the immutable content hash it
// was loaded from (empty for New-* addresses), per §4.D "from_remote".
// The returned hash, not addr itself, is what Upload later records as
// the new index's prev_idx_hash, per Design Notes §9(2).
func Load(addr address.Address, s store.Store, ns store.NameService) (*Index, string, error) {
	switch addr.Kind {
	case address.NewImmutable, address.NewMutable:
		return New(), "", nil
	case address.ExistingImmutable:
		idx, err := loadFromHash(addr.Hash, s)
		if err != nil {
			return nil, "", err
		}
		return idx, addr.Hash, nil
	case address.ExistingMutable:
		resolved, err := ns.Resolve(addr.Hash, true, false)
		if err != nil {
			return nil, "", errors.Wrapf(err, "index: resolving mutable name %q", addr.Hash)
		}
		inner, err := address.Parse(resolved)
		if err != nil {
			return nil, "", errors.Wrapf(err, "index: parsing resolved path %q", resolved)
		}
		idx, err := loadFromHash(inner.Hash, s)
		if err != nil {
			return nil, "", err
		}
		return idx, inner.Hash, nil
	default:
		return nil, "", fmt.Errorf("index: unknown address kind %v", addr.Kind)
	}
}

func loadFromHash(hash string, s storeCat) (*Index, error) {
	raw, err := s.Cat(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "index: fetching %s", hash)
	}
	idx, err := decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "index: decoding %s", hash)
	}
	return idx, nil
}

// Remote is the repository identity Upload hands back to the driver,
// suitable for reporting to the user and for rewriting the remote URL.
type Remote struct {
	Address address.Address
}

// Upload serializes idx and uploads it. If originalWasMutable is set,
// it publishes the new hash through ns, under whatever name ns
// publishes for, and returns an ExistingMutable address carrying
// mutableName; the name returned by ns.Publish is not used, and the
// name the index was loaded from is not consulted. Otherwise it
// returns an ExistingImmutable address for the new hash.
// originalHash is the hash Load returned (possibly empty); it becomes
// the new index's prev_idx_hash, set before serialization so the
// uploaded bytes carry the back-pointer (§4.D "Commit the index").
func (idx *Index) Upload(s store.Store, ns store.NameService, originalHash string, originalWasMutable bool, mutableName string) (Remote, error) {
	idx.PrevIdxHash = originalHash
	payload, err := idx.encode()
	if err != nil {
		return Remote{}, err
	}
	hash, err := s.Add(payload)
	if err != nil {
		return Remote{}, errors.Wrap(err, "index: uploading")
	}
	if originalWasMutable {
		if _, err := ns.Publish(hash); err != nil {
			return Remote{}, errors.Wrapf(err, "index: publishing under %q", mutableName)
		}
		return Remote{Address: address.Address{Kind: address.ExistingMutable, Hash: mutableName}}, nil
	}
	return Remote{Address: address.Address{Kind: address.ExistingImmutable, Hash: hash}}, nil
}

// NonFastForward is returned by PushRef when force=false and the new
// tip is not a descendant of the ref's current tip.
type NonFastForward struct {
	RefName string
}

func (e NonFastForward) Error() string {
	return fmt.Sprintf("index: non-fast-forward update of %s", e.RefName)
}

// MissingInIndex is returned by FetchToRef when the requested sha is
// not recorded in Objects.
type MissingInIndex struct {
	SHA string
}

func (e MissingInIndex) Error() string {
	return fmt.Sprintf("index: %s is not present in this index", e.SHA)
}

// Package nameservice resolves and publishes the mutable names a
// remote address of kind ExistingMutable/NewMutable refers to (§4.F,
// §6.2). A mutable name always resolves, at any instant, to exactly
// one immutable content hash.
package nameservice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nip-go/git-remote-nip/internal/store"
	"github.com/pkg/errors"
)

// KeyPrefix namespaces mutable-name keys when they are stored
// directly in a plain key-value space rather than a dedicated
// name-service daemon — the same convention the host stack uses for
// RemoteRootKeyPrefix ("remote.root.") to keep per-instance pointers
// out of the way of content-addressed blobs sharing the same store.
const KeyPrefix = "name."

// KV is a generic, arbitrary-key get/put capability, distinct from
// the content-addressed store.Store (whose key is always the hash of
// its value). This is exactly the host stack's storage.Store
// interface: a mutable name is, at bottom, one key whose value is
// repeatedly overwritten, which a content-addressed store cannot
// represent.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// ErrNotFound is returned by KV.Get for an unpublished name.
var ErrNotFound = store.ErrNotFound

// MemoryKV implements KV for tests, modeled on the host stack's
// storage.InMemory.
type MemoryKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string][]byte)}
}

func (kv *MemoryKV) Get(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (kv *MemoryKV) Put(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	kv.m[key] = cp
	return nil
}

// StoreBacked implements store.NameService directly on top of a KV,
// the way the host stack's set-remote-revision command and
// RemoteRootKeyPrefix convention do: "publish" is just "Put under a
// well-known, prefixed key". Useful for local mutable names and for
// tests; a real IPNS-like name-service is reached instead via
// HTTPNameService.
type StoreBacked struct {
	kv   KV
	name string // the local mutable name this instance publishes under
}

var _ store.NameService = (*StoreBacked)(nil)

func NewStoreBacked(kv KV, name string) *StoreBacked {
	return &StoreBacked{kv: kv, name: name}
}

func namedKey(name string) string { return KeyPrefix + name }

// Resolve returns the "/ipfs/<hash>" path currently published under
// name. recursive and nocache are accepted for interface parity with
// a real IPNS resolver but have no effect on this backend: there is
// only one, always-fresh level of indirection when the name service
// is a plain key-value store.
func (n *StoreBacked) Resolve(name string, recursive, nocache bool) (string, error) {
	raw, err := n.kv.Get(namedKey(name))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Publish points this instance's local mutable name at hash.
func (n *StoreBacked) Publish(hash string) (string, error) {
	if err := n.kv.Put(namedKey(n.name), []byte("/ipfs/"+hash)); err != nil {
		return "", err
	}
	return n.name, nil
}

// Fork publishes a brand new mutable name ("target") pointing at
// whatever "source" currently resolves to, letting the target inherit
// source's current content without a push. This generalizes the host
// stack's tree.Store.Fork (branching a new instance from an existing
// one's head revision) to plain name-to-name forking, and the
// original Rust tool's per-instance remote-root keys, to a first-class
// operation — neither the original nor spec.md exposes it directly.
// Fork refuses to overwrite an existing target name.
func Fork(kv KV, ns store.NameService, source, target string) error {
	if _, err := kv.Get(namedKey(target)); err == nil {
		return fmt.Errorf("nameservice: target %q already exists", target)
	} else if err != ErrNotFound {
		return err
	}
	path, err := ns.Resolve(source, true, false)
	if err != nil {
		return errors.Wrapf(err, "nameservice: resolving fork source %q", source)
	}
	return kv.Put(namedKey(target), []byte(path))
}

// HTTPNameService talks to a real name-service daemon's HTTP API
// (resolve/publish), the same thin net/http client shape as
// store.HTTPStore, grounded on the same lack of a pack-provided
// client for this bespoke API.
type HTTPNameService struct {
	baseURL string
	client  *http.Client
}

var _ store.NameService = (*HTTPNameService)(nil)

func NewHTTPNameService(baseURL string) *HTTPNameService {
	return &HTTPNameService{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (n *HTTPNameService) Resolve(name string, recursive, nocache bool) (string, error) {
	url := fmt.Sprintf("%s/api/v0/name/resolve?arg=%s&recursive=%t&nocache=%t", n.baseURL, name, recursive, nocache)
	resp, err := n.client.Get(url)
	if err != nil {
		return "", errors.Wrap(err, "nameservice: resolve request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nameservice: resolve: unexpected status %s", resp.Status)
	}
	var reply struct {
		Path string `json:"Path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", errors.Wrap(err, "nameservice: decoding resolve response")
	}
	return reply.Path, nil
}

func (n *HTTPNameService) Publish(hash string) (string, error) {
	resp, err := n.client.Get(fmt.Sprintf("%s/api/v0/name/publish?arg=/ipfs/%s", n.baseURL, hash))
	if err != nil {
		return "", errors.Wrap(err, "nameservice: publish request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("nameservice: publish: unexpected status %s: %s", resp.Status, body)
	}
	var reply struct {
		Name string `json:"Name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", errors.Wrap(err, "nameservice: decoding publish response")
	}
	return reply.Name, nil
}

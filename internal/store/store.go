// Package store defines the content-addressed store capability the
// core consumes (§6.1) and the name-service capability it resolves
// mutable names through (§6.2). Neither the wire protocol of a real
// store nor its garbage collection is this package's concern: it is
// the boundary the core is written against, plus a couple of
// concrete, swappable backends.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Cat when the hash is unknown to the store.
var ErrNotFound = errors.New("store: not found")

// Stats is opaque connectivity/usage information, used only to verify
// the store is reachable before the helper does anything else.
type Stats map[string]interface{}

// Store is the content-addressed store capability: add bytes, get a
// hash back; hand back a hash, get the bytes back.
type Store interface {
	// Add uploads bytes and returns their content hash.
	Add(data []byte) (hash string, err error)
	// Cat downloads the bytes previously added under hash.
	Cat(hash string) (data []byte, err error)
	// Stats is used only to verify connectivity at start.
	Stats() (Stats, error)
}

// NameService is the mutable-name capability: a name resolves, at any
// point in time, to the content hash most recently published under it.
type NameService interface {
	// Resolve returns the current target of name, in "/ipfs/<hash>" form.
	Resolve(name string, recursive, nocache bool) (path string, err error)
	// Publish points name at hash and returns the (possibly
	// service-assigned) name it was published under.
	Publish(hash string) (name string, err error)
}

// Backend selects which concrete Store implementation NewStore
// constructs.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendHTTP   Backend = "http"
	BackendS3     Backend = "s3"
)

// Config carries the dial information for every backend; only the
// fields relevant to the selected Backend are read.
type Config struct {
	Backend Backend

	// BackendHTTP
	HTTPBaseURL string

	// BackendS3
	S3Profile string
	S3Region  string
	S3Bucket  string

	// Name of the local mutable identity. NewStore does not read it.
	LocalName string
}

// NewStore constructs the Store backend selected by c.Backend.
func NewStore(c Config) (Store, error) {
	switch c.Backend {
	case BackendMemory, "":
		return NewInMemory(), nil
	case BackendHTTP:
		return NewHTTPStore(c.HTTPBaseURL), nil
	case BackendS3:
		return NewS3Store(c.S3Profile, c.S3Region, c.S3Bucket), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", c.Backend)
	}
}

// Package address parses and formats the textual remote-address forms
// git hands the helper: new-ipfs, new-ipns, /ipfs/<hash>, /ipns/<hash>.
package address

import (
	"fmt"
	"strings"
)

// HashLen is the fixed length of a store hash in its textual form.
const HashLen = 46

// Kind discriminates the four remote-address variants.
type Kind int

const (
	// NewImmutable requests a fresh repository under a freshly minted
	// immutable content hash.
	NewImmutable Kind = iota
	// NewMutable requests a fresh repository published under the
	// caller's local mutable name.
	NewMutable
	// ExistingImmutable addresses a repository by the content hash of
	// its index.
	ExistingImmutable
	// ExistingMutable addresses a repository by a mutable name that
	// resolves to the content hash of its index.
	ExistingMutable
)

// Address is the repository's identity as handed to, or produced by,
// the helper: either an immutable content hash or a mutable name,
// each possibly still to be created.
type Address struct {
	Kind Kind
	Hash string // set for ExistingImmutable and ExistingMutable
}

const (
	textNewImmutable = "new-ipfs"
	textNewMutable   = "new-ipns"
	prefixImmutable  = "/ipfs/"
	prefixMutable    = "/ipns/"
)

// InvalidHashLength is returned when a /ipfs/ or /ipns/ path component
// is not exactly HashLen characters long.
type InvalidHashLength struct {
	Got, Want int
}

func (e InvalidHashLength) Error() string {
	return fmt.Sprintf("address: got a hash %d chars long, want %d", e.Got, e.Want)
}

// InvalidLinkFormat is returned when the string matches none of the
// four known textual forms.
type InvalidLinkFormat struct {
	Text string
}

func (e InvalidLinkFormat) Error() string {
	return fmt.Sprintf("address: invalid link format: %q", e.Text)
}

// Other wraps any other address-parsing failure.
type Other struct {
	Message string
}

func (e Other) Error() string { return "address: " + e.Message }

// Parse parses one of the four textual remote-address forms.
func Parse(s string) (Address, error) {
	switch {
	case s == textNewImmutable:
		return Address{Kind: NewImmutable}, nil
	case s == textNewMutable:
		return Address{Kind: NewMutable}, nil
	case strings.HasPrefix(s, prefixImmutable):
		hash, err := splitHash(s)
		if err != nil {
			return Address{}, err
		}
		return Address{Kind: ExistingImmutable, Hash: hash}, nil
	case strings.HasPrefix(s, prefixMutable):
		hash, err := splitHash(s)
		if err != nil {
			return Address{}, err
		}
		return Address{Kind: ExistingMutable, Hash: hash}, nil
	default:
		return Address{}, InvalidLinkFormat{Text: s}
	}
}

func splitHash(s string) (string, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return "", Other{Message: fmt.Sprintf("invalid hash format: %q", s)}
	}
	hash := parts[2]
	if len(hash) != HashLen {
		return "", InvalidHashLength{Got: len(hash), Want: HashLen}
	}
	return hash, nil
}

// Format is the inverse of Parse.
func Format(a Address) string {
	switch a.Kind {
	case NewImmutable:
		return textNewImmutable
	case NewMutable:
		return textNewMutable
	case ExistingImmutable:
		return prefixImmutable + a.Hash
	case ExistingMutable:
		return prefixMutable + a.Hash
	default:
		return ""
	}
}

// HashOf returns the inner hash for both Existing-* variants, and ""
// for the New-* variants (which have none yet).
func HashOf(a Address) string {
	switch a.Kind {
	case ExistingImmutable, ExistingMutable:
		return a.Hash
	default:
		return ""
	}
}

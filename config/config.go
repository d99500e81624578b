// Package config loads git-remote-nip's configuration: which store
// backend to dial, where the name service lives, and where to find
// the per-remote config file when the helper is invoked bare.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nip-go/git-remote-nip/internal/store"
)

var (
	// DefaultBaseDirectoryPath is where git-remote-nip looks for its
	// config file. It is $NIP_BASE if set, otherwise $HOME/lib/nip.
	DefaultBaseDirectoryPath string
)

func init() {
	if base := os.Getenv("NIP_BASE"); base != "" {
		DefaultBaseDirectoryPath = base
	} else {
		DefaultBaseDirectoryPath = os.ExpandEnv("$HOME/lib/nip")
	}
}

// C is the loaded configuration.
type C struct {
	// StoreBackend is one of "memory", "http", "s3".
	StoreBackend store.Backend

	// Used when StoreBackend is "http".
	StoreHTTPBaseURL string

	// Used when StoreBackend is "s3".
	S3Profile string
	S3Region  string
	S3Bucket  string

	// NameServiceURL, if set, selects an HTTPNameService; otherwise a
	// StoreBacked name service over a process-local in-memory key-value
	// space is used. Names published there do not outlive the process,
	// and StoreBackend is not used for them.
	NameServiceURL string

	// LocalName is the mutable name this installation publishes under.
	LocalName string

	base string
}

// Load loads the configuration from the file called "config" in base,
// then applies environment overrides (NIP_STORE_BACKEND, NIP_STORE_URL,
// NIP_NAMESERVICE_URL).
func Load(base string) (*C, error) {
	filename := filepath.Join(base, "config")
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	c, err := load(f)
	if err != nil {
		return nil, err
	}
	c.base = base
	c.applyEnv()
	return c, nil
}

func load(f io.Reader) (*C, error) {
	c := C{StoreBackend: store.BackendMemory}
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		i := strings.IndexAny(line, " \t")
		if i == -1 {
			return nil, fmt.Errorf("config: no separator in %q", line)
		}
		switch key, val := line[:i], strings.TrimSpace(line[i:]); key {
		case "store-backend":
			c.StoreBackend = store.Backend(val)
		case "store-url":
			c.StoreHTTPBaseURL = val
		case "s3-bucket":
			c.S3Bucket = val
		case "s3-profile":
			c.S3Profile = val
		case "s3-region":
			c.S3Region = val
		case "nameservice-url":
			c.NameServiceURL = val
		case "local-name":
			c.LocalName = val
		default:
			return nil, fmt.Errorf("config: unknown key %q", key)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &c, nil
}

func (c *C) applyEnv() {
	if v := os.Getenv("NIP_STORE_BACKEND"); v != "" {
		c.StoreBackend = store.Backend(v)
	}
	if v := os.Getenv("NIP_STORE_URL"); v != "" {
		c.StoreHTTPBaseURL = v
	}
	if v := os.Getenv("NIP_NAMESERVICE_URL"); v != "" {
		c.NameServiceURL = v
	}
}

// StoreConfig projects C onto the store.Config NewStore expects.
func (c *C) StoreConfig() store.Config {
	return store.Config{
		Backend:     c.StoreBackend,
		HTTPBaseURL: c.StoreHTTPBaseURL,
		S3Profile:   c.S3Profile,
		S3Region:    c.S3Region,
		S3Bucket:    c.S3Bucket,
		LocalName:   c.LocalName,
	}
}

// Initialize generates an initial configuration file at baseDir.
func Initialize(baseDir string) error {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return fmt.Errorf("%q: could not mkdir: %w", baseDir, err)
	}
	path := filepath.Join(baseDir, "config")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%q: already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%q: could not determine if it exists: %w", path, err)
	}
	contents := "store-backend memory\n"
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		return fmt.Errorf("config.Initialize %q: %w", path, err)
	}
	return nil
}

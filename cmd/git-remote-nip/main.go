// Command git-remote-nip is the git remote helper for nip:: and
// nipdev:: remotes (§0, §6.7). Git invokes it as
//
//	git-remote-nip <remote-name> <url>
//
// and speaks the capabilities/list/fetch/push protocol over its
// stdin/stdout; everything this process logs goes to stderr.
package main

import (
	"fmt"
	"os"

	"github.com/nip-go/git-remote-nip/config"
	"github.com/nip-go/git-remote-nip/internal/address"
	"github.com/nip-go/git-remote-nip/internal/gitrepo"
	"github.com/nip-go/git-remote-nip/internal/helper"
	"github.com/nip-go/git-remote-nip/internal/index"
	"github.com/nip-go/git-remote-nip/internal/nameservice"
	"github.com/nip-go/git-remote-nip/internal/store"
	log "github.com/sirupsen/logrus"
)

// To set this at build time: go build -ldflags '-X main.version=something'.
var version = "unknown"

func main() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.JSONFormatter{})
	if lvl := os.Getenv("NIP_LOG_LEVEL"); lvl != "" {
		if ll, err := log.ParseLevel(lvl); err == nil {
			log.SetLevel(ll)
		}
	}

	args := os.Args[1:]
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h") {
		printUsage()
		os.Exit(0)
	}
	if len(args) == 1 && args[0] == "--version" {
		fmt.Println(version)
		os.Exit(0)
	}
	if len(args) != 2 {
		printUsage()
		os.Exit(1)
	}
	remoteName, url := args[0], args[1]

	if err := run(remoteName, url); err != nil {
		if err == helper.ErrEarlyExit {
			os.Exit(0)
		}
		log.WithError(err).Fatal("git-remote-nip: fatal")
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: git-remote-nip <remote-name> <url>

This binary is a git remote helper; git invokes it automatically for
remotes whose URL starts with "nip::" or "nipdev::" (e.g. "nip::new-ipfs",
"nip::/ipfs/<hash>", "nip::new-ipns", "nip::/ipns/<hash>"). It is not
meant to be run by hand.

Environment:

	NIP_BASE             base directory for the config file (default %s)
	NIP_STORE_BACKEND    memory, http, or s3
	NIP_STORE_URL        base URL when NIP_STORE_BACKEND=http
	NIP_NAMESERVICE_URL  base URL of a name-service daemon, if any
	NIP_LOG_LEVEL        logrus level name (default info)
`, config.DefaultBaseDirectoryPath)
}

func run(remoteName, url string) error {
	cfg, err := config.Load(config.DefaultBaseDirectoryPath)
	if err != nil {
		log.WithError(err).Warn("git-remote-nip: no usable config file, using defaults")
		cfg = &config.C{StoreBackend: store.BackendMemory}
	}

	s, err := store.NewStore(cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("git-remote-nip: constructing store: %w", err)
	}
	if stats, err := s.Stats(); err != nil {
		return fmt.Errorf("git-remote-nip: store unreachable, is the daemon running? %w", err)
	} else {
		log.WithField("stats", stats).Debug("git-remote-nip: store reachable")
	}

	var ns store.NameService
	if cfg.NameServiceURL != "" {
		ns = nameservice.NewHTTPNameService(cfg.NameServiceURL)
	} else {
		ns = nameservice.NewStoreBacked(nameservice.NewMemoryKV(), cfg.LocalName)
	}

	// git invokes a remote helper with the bare mode-or-hash as its
	// second argument (no scheme prefix: that prefix only lives on the
	// remote.<name>.url value git stripped to find this binary). The
	// scheme is re-derived from repo.RemoteURL in handleCommit, when the
	// helper needs it to rewrite that URL.
	addr, err := address.Parse(url)
	if err != nil {
		return fmt.Errorf("git-remote-nip: parsing address %q: %w", url, err)
	}

	repo, err := gitrepo.Open(".")
	if err != nil {
		return fmt.Errorf("git-remote-nip: opening git repository: %w", err)
	}

	idx, loadedHash, err := index.Load(addr, s, ns)
	if err != nil {
		return fmt.Errorf("git-remote-nip: loading index for %q: %w", url, err)
	}

	d := helper.New(os.Stdin, os.Stdout, repo, s, ns, remoteName, cfg.LocalName, addr, idx, loadedHash)
	return d.Run()
}

// Package helper implements the remote-helper protocol driver (§4.E):
// a line-oriented state machine that speaks the host VCS's
// remote-helper dialect on stdin/stdout, threads fetch/push lines
// into the index engine, and commits a new index hash at the end of
// a batch by rewriting the remote URL.
package helper

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nip-go/git-remote-nip/internal/address"
	"github.com/nip-go/git-remote-nip/internal/gitrepo"
	"github.com/nip-go/git-remote-nip/internal/index"
	"github.com/nip-go/git-remote-nip/internal/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Capabilities is the fixed set this helper advertises, in the order
// git expects to read them.
var Capabilities = []string{"fetch", "push"}

// ErrEarlyExit signals that the host VCS closed its side of the
// protocol before issuing any work (S2): the driver must stop
// immediately without emitting anything further, and the caller
// should exit 0.
var ErrEarlyExit = errors.New("helper: git finished early")

// ProtocolError is returned for any line the state machine did not
// expect in its current state.
type ProtocolError struct {
	State string
	Got   string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("helper: protocol error in state %s: got %q", e.State, e.Got)
}

// UnknownRemoteScheme is returned when the remote URL being rewritten
// does not carry a recognized helper scheme prefix.
type UnknownRemoteScheme struct {
	URL string
}

func (e UnknownRemoteScheme) Error() string {
	return fmt.Sprintf("helper: remote URL %q has an unknown scheme prefix", e.URL)
}

const (
	schemeNip    = "nip::"
	schemeNipDev = "nipdev::"
)

// Driver runs one invocation of the protocol against a preloaded
// index. Exactly one mutable handle to idx exists for the lifetime of
// a Run call (§9 Design Notes "Ownership of the index").
type Driver struct {
	in  *bufio.Reader
	out io.Writer

	repo   gitrepo.Repo
	store  store.Store
	ns     store.NameService
	logger *log.Entry

	remoteName  string
	addr        address.Address
	mutableName string // the local mutable name to republish under, if addr is mutable

	idx         *index.Index
	originalIdx *index.Index // snapshot taken before the ops loop, for the idempotence check
	loadedHash  string       // hash Load returned; becomes the new index's prev_idx_hash
	loadedIsMut bool
}

// New constructs a Driver. idx and loadedHash are the results of
// index.Load for addr; whether the remote is mutable is derived from
// addr's kind.
func New(in io.Reader, out io.Writer, repo gitrepo.Repo, s store.Store, ns store.NameService, remoteName, mutableName string, addr address.Address, idx *index.Index, loadedHash string) *Driver {
	loadedIsMut := addr.Kind == address.ExistingMutable || addr.Kind == address.NewMutable
	return &Driver{
		in:          bufio.NewReader(in),
		out:         out,
		repo:        repo,
		store:       s,
		ns:          ns,
		logger:      log.WithField("component", "helper"),
		remoteName:  remoteName,
		addr:        addr,
		mutableName: mutableName,
		idx:         idx,
		loadedHash:  loadedHash,
		loadedIsMut: loadedIsMut,
	}
}

// Run drives the full Capabilities -> List -> Ops -> Commit sequence.
// It returns ErrEarlyExit when the host VCS closes its input before
// any work is requested; callers should treat that as a clean exit.
func (d *Driver) Run() error {
	if err := d.handleCapabilities(); err != nil {
		return err
	}
	if err := d.handleList(); err != nil {
		return err
	}
	d.originalIdx = d.idx.Clone()
	if err := d.handleOps(); err != nil {
		return err
	}
	return d.handleCommit()
}

func (d *Driver) readLine() (string, error) {
	line, err := d.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "helper: reading from git")
	}
	return line, nil
}

func (d *Driver) handleCapabilities() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	if line != "capabilities\n" {
		return ProtocolError{State: "Capabilities", Got: line}
	}
	d.logger.Trace("consumed capabilities command")
	response := strings.Join(Capabilities, "\n") + "\n\n"
	_, err = io.WriteString(d.out, response)
	return err
}

func (d *Driver) handleList() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	switch {
	case line == "\n" || line == "":
		d.logger.Debug("git finished early, exiting")
		return ErrEarlyExit
	case strings.HasPrefix(line, "list"):
		d.logger.Trace("consumed list command")
	default:
		return ProtocolError{State: "List", Got: line}
	}

	if d.addr.Kind == address.NewImmutable || d.addr.Kind == address.NewMutable {
		_, err = io.WriteString(d.out, "\n")
		return err
	}
	var b strings.Builder
	for _, name := range d.idx.Refs.Keys() {
		sha, _ := d.idx.Refs.Get(name)
		fmt.Fprintf(&b, "%s %s\n", sha, name)
	}
	b.WriteString("\n")
	_, err = io.WriteString(d.out, b.String())
	return err
}

func (d *Driver) handleOps() error {
	for {
		line, err := d.readLine()
		if err != nil {
			return err
		}
		trimmed := strings.TrimSuffix(line, "\n")
		switch {
		case trimmed == "":
			d.logger.Trace("consumed all fetch/push commands")
			return nil
		case strings.HasPrefix(trimmed, "fetch"):
			if err := d.handleFetch(trimmed); err != nil {
				return err
			}
		case strings.HasPrefix(trimmed, "push"):
			if err := d.handlePush(trimmed); err != nil {
				return err
			}
		default:
			return ProtocolError{State: "Ops", Got: line}
		}
	}
}

func (d *Driver) handleFetch(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return ProtocolError{State: "Ops(fetch)", Got: line}
	}
	sha, refName := fields[1], fields[2]
	d.logger.WithFields(log.Fields{"sha": sha, "ref": refName}).Debug("fetch")
	if err := index.FetchToRef(sha, refName, d.idx, d.repo, d.store); err != nil {
		return errors.Wrapf(err, "helper: fetch %s %s", sha, refName)
	}
	return nil
}

func (d *Driver) handlePush(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return ProtocolError{State: "Ops(push)", Got: line}
	}
	src, dst, force, err := ParseRefspec(fields[1])
	if err != nil {
		return errors.Wrapf(err, "helper: parsing refspec %q", fields[1])
	}
	d.logger.WithFields(log.Fields{"src": src, "dst": dst, "force": force}).Debug("push")

	if err := index.PushRef(src, dst, force, d.idx, d.repo, d.store); err != nil {
		_, writeErr := fmt.Fprintf(d.out, "error %s %q\n", dst, err.Error())
		return writeErr
	}
	_, err = fmt.Fprintf(d.out, "ok %s\n", dst)
	return err
}

// ParseRefspec parses the "[+]src:dst" grammar (§4.E). A leading '+'
// on src sets force; an empty src (delete) is not supported.
func ParseRefspec(refspec string) (src, dst string, force bool, err error) {
	parts := strings.SplitN(refspec, ":", 2)
	if len(parts) != 2 {
		return "", "", false, fmt.Errorf("helper: malformed refspec %q", refspec)
	}
	first, dst := parts[0], parts[1]
	if strings.HasPrefix(first, "+") {
		force = true
		first = first[1:]
	}
	if first == "" {
		return "", "", false, fmt.Errorf("helper: refspec %q deletes a ref, which is not supported", refspec)
	}
	return first, dst, force, nil
}

func (d *Driver) handleCommit() error {
	defer func() {
		_, _ = io.WriteString(d.out, "\n")
	}()

	currentURL, err := d.repo.RemoteURL(d.remoteName)
	if err != nil {
		return errors.Wrapf(err, "helper: reading URL for remote %s", d.remoteName)
	}

	if d.idx.Equal(d.originalIdx) {
		d.logger.WithField("url", currentURL).Info("index unchanged, skipping upload and URL rewrite")
		return nil
	}

	remote, err := d.idx.Upload(d.store, d.ns, d.loadedHash, d.loadedIsMut, d.mutableName)
	if err != nil {
		return errors.Wrap(err, "helper: uploading index")
	}

	var prefix string
	switch {
	case strings.HasPrefix(currentURL, schemeNipDev):
		prefix = schemeNipDev
	case strings.HasPrefix(currentURL, schemeNip):
		prefix = schemeNip
	default:
		return UnknownRemoteScheme{URL: currentURL}
	}
	newURL := prefix + address.Format(remote.Address)
	if newURL == currentURL {
		d.logger.WithField("url", currentURL).Info("current URL unchanged")
		return nil
	}
	if err := d.repo.SetRemoteURL(d.remoteName, newURL); err != nil {
		return errors.Wrapf(err, "helper: rewriting URL for remote %s", d.remoteName)
	}
	d.logger.WithField("url", newURL).Info("URL changed")
	return nil
}

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPStore talks to a content-addressed store daemon over its HTTP
// API (add/cat/stats), the way a local IPFS daemon exposes one. There
// is no pack library for this bespoke wire format (unlike S3, see
// DESIGN.md), so this is a thin net/http client, the same shape as
// the host stack's s3Store: a base URL, one http.Client, one method
// per capability operation.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

var _ Store = (*HTTPStore)(nil)

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *HTTPStore) Add(data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "object")
	if err != nil {
		return "", errors.Wrap(err, "store: creating multipart body")
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.Wrap(err, "store: writing multipart body")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "store: closing multipart body")
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/api/v0/add", &body)
	if err != nil {
		return "", errors.Wrap(err, "store: building add request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "store: add request")
	}
	defer closeQuietly(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("store: add: unexpected status %s", resp.Status)
	}

	var reply struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", errors.Wrap(err, "store: decoding add response")
	}
	return reply.Hash, nil
}

func (s *HTTPStore) Cat(hash string) ([]byte, error) {
	resp, err := s.client.Get(s.baseURL + "/api/v0/cat?arg=" + hash)
	if err != nil {
		return nil, errors.Wrap(err, "store: cat request")
	}
	defer closeQuietly(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store: cat: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (s *HTTPStore) Stats() (Stats, error) {
	resp, err := s.client.Get(s.baseURL + "/api/v0/stats/repo")
	if err != nil {
		return nil, errors.Wrap(err, "store: stats request")
	}
	defer closeQuietly(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store: stats: unexpected status %s", resp.Status)
	}
	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, errors.Wrap(err, "store: decoding stats response")
	}
	return stats, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

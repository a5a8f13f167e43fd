package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// HTTPSource is a read-only source store for mirrors that publish an index
// file listing one object key per line.
type HTTPSource struct {
	client    *http.Client
	baseURL   string
	indexFile string
	username  string
	password  string

	mu    sync.Mutex
	index []string
}

// HTTPConfig holds HTTP source configuration.
type HTTPConfig struct {
	BaseURL   string
	IndexFile string // default: index.txt
	Timeout   time.Duration
	Username  string
	Password  string
}

// NewHTTPSource creates a new HTTP source adapter.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.IndexFile == "" {
		cfg.IndexFile = "index.txt"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &HTTPSource{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		indexFile: cfg.IndexFile,
		username:  cfg.Username,
		password:  cfg.Password,
	}
}

// List returns the index entries under prefix. The index is fetched on
// first use and reused for later prefixes until Refresh.
func (s *HTTPSource) List(ctx context.Context, prefix string) ([]output.StorageObject, error) {
	index, err := s.loadIndex(ctx)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
	}

	var objects []output.StorageObject
	for _, key := range index {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, output.StorageObject{Key: key})
		}
	}
	return objects, nil
}

// Refresh drops the cached index. Discovery calls it once per run.
func (s *HTTPSource) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
}

func (s *HTTPSource) loadIndex(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index, nil
	}

	resp, err := s.get(ctx, s.indexFile)
	if err != nil {
		return nil, fmt.Errorf("fetching index file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	index := make([]string, 0)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		index = append(index, strings.TrimPrefix(line, "/"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}

	s.index = index
	return index, nil
}

// Open streams an object from the mirror.
func (s *HTTPSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.get(ctx, key)
	if err != nil {
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: err}
	}
	return resp.Body, nil
}

// get issues a GET for key and returns the response on 200.
func (s *HTTPSource) get(ctx context.Context, key string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(key), nil)
	if err != nil {
		return nil, err
	}
	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, domain.ErrObjectNotFound
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, key)
	}
}

func (s *HTTPSource) objectURL(key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

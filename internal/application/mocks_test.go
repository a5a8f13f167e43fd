package application

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockLoader implements output.CatalogLoader for testing.
type mockLoader struct {
	ids []string
	err error
}

func (m *mockLoader) Load(_ context.Context) (*domain.Catalog, error) {
	if m.err != nil {
		return nil, &domain.CatalogLoadError{Source: "mock.csv", Err: m.err}
	}
	return domain.NewCatalog(m.ids), nil
}

// mockSource implements output.SourceStore for testing. Objects are keyed
// by full key; List returns those with the prefix in insertion order.
type mockSource struct {
	mu       sync.Mutex
	keys     []string
	bodies   map[string]string
	listErr  map[string]error // prefix -> error
	listed   map[string]int   // prefix -> calls
	listWait time.Duration
}

func newMockSource(keys ...string) *mockSource {
	m := &mockSource{
		bodies:  make(map[string]string),
		listErr: make(map[string]error),
		listed:  make(map[string]int),
	}
	for _, k := range keys {
		m.keys = append(m.keys, k)
		m.bodies[k] = "data:" + k
	}
	return m
}

func (m *mockSource) List(ctx context.Context, prefix string) ([]output.StorageObject, error) {
	if m.listWait > 0 {
		select {
		case <-time.After(m.listWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed[prefix]++
	if err := m.listErr[prefix]; err != nil {
		return nil, err
	}
	var out []output.StorageObject
	for _, k := range m.keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, output.StorageObject{Key: k, Size: int64(len(m.bodies[k]))})
		}
	}
	return out, nil
}

func (m *mockSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.bodies[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *mockSource) listCalls(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listed[prefix]
}

func (m *mockSource) totalListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.listed {
		n += c
	}
	return n
}

// mockTarget implements output.TargetStore for testing.
type mockTarget struct {
	mu        sync.Mutex
	objects   map[string]string
	existsErr map[string]error
	copyErr   map[string]error
	copies    []string
	checks    int
}

func newMockTarget() *mockTarget {
	return &mockTarget{
		objects:   make(map[string]string),
		existsErr: make(map[string]error),
		copyErr:   make(map[string]error),
	}
}

func (m *mockTarget) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
	if err := m.existsErr[key]; err != nil {
		return false, err
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *mockTarget) Copy(ctx context.Context, src output.SourceStore, srcKey, key string) error {
	m.mu.Lock()
	err := m.copyErr[key]
	m.mu.Unlock()
	if err != nil {
		return err
	}

	r, err := src.Open(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(data)
	m.copies = append(m.copies, key)
	return nil
}

func (m *mockTarget) List(_ context.Context, prefix string) ([]output.StorageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []output.StorageObject
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, output.StorageObject{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *mockTarget) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *mockTarget) copyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.copies)
}

func (m *mockTarget) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// mockMetrics implements output.MetricsCollector for testing.
type mockMetrics struct {
	mu       sync.Mutex
	tasks    map[string]int
	listings map[bool]int
	lastRun  time.Time
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{tasks: make(map[string]int), listings: make(map[bool]int)}
}

func (m *mockMetrics) IncTasks(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[outcome]++
}

func (m *mockMetrics) ObserveTransferDuration(_ time.Duration) {}

func (m *mockMetrics) IncListings(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[success]++
}

func (m *mockMetrics) IncStorageOperations(_ string, _ bool) {}

func (m *mockMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}

func (m *mockMetrics) SetLastRun(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRun = t
}

// mockBoundsReader implements output.BoundsReader for testing. It derives
// bounds from the file content so tests can tell tiles apart.
type mockBoundsReader struct {
	fail map[string]bool // file content -> error
}

func (m *mockBoundsReader) ReadBounds(path string) (domain.Bounds, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Bounds{}, 0, err
	}
	if m.fail[string(data)] {
		return domain.Bounds{}, 0, domain.ErrNotGeoTIFF
	}
	n := float64(len(data))
	return domain.Bounds{MinX: 0, MinY: 0, MaxX: n, MaxY: n}, 26913, nil
}

// mockFootprintWriter implements output.FootprintWriter for testing.
type mockFootprintWriter struct {
	written []domain.Footprint
	err     error
}

func (m *mockFootprintWriter) Write(_ context.Context, footprints []domain.Footprint) error {
	if m.err != nil {
		return m.err
	}
	m.written = footprints
	return nil
}

// mockRunner implements SyncRunner for testing.
type mockRunner struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	started chan struct{}
	err     error
}

func (m *mockRunner) Run(ctx context.Context, _ RunOptions) (*domain.Report, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Report{RunID: "run-" + strconv.Itoa(n), FinishedAt: time.Now()}, nil
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

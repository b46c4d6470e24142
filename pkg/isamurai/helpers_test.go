package isamurai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "isk_test_123"

// newFakeAPI starts a server whose routes live under /api, like the real
// service, and returns the base URL to configure the client with.
func newFakeAPI(t *testing.T, register func(r *mux.Router)) string {
	t.Helper()

	root := mux.NewRouter()
	api := root.PathPrefix("/api").Subrouter()
	register(api)

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func newTestClient(t *testing.T, baseURL string, mutate ...func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		APIKey:       testAPIKey,
		BaseURL:      baseURL,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		PollInterval: 10 * time.Millisecond,
		WaitTimeout:  2 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

type fetchResult struct {
	status *JobStatus
	err    error
	delay  time.Duration
}

// scriptedFetcher replays results in order and repeats the last one once
// the script runs out.
type scriptedFetcher struct {
	mu      sync.Mutex
	script  []fetchResult
	calls   int
	multi   []bool
	callsAt []time.Time
}

func (f *scriptedFetcher) GetJobStatus(ctx context.Context, id JobID, opts ...StatusOption) (*JobStatus, error) {
	var q statusQuery
	for _, opt := range opts {
		opt(&q)
	}

	f.mu.Lock()
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	res := f.script[idx]
	f.calls++
	f.multi = append(f.multi, q.multi)
	f.callsAt = append(f.callsAt, time.Now())
	f.mu.Unlock()

	if res.delay > 0 {
		time.Sleep(res.delay)
	}
	if res.status != nil {
		cp := *res.status
		cp.ID = id
		return &cp, res.err
	}
	return nil, res.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func states(ss ...State) []fetchResult {
	out := make([]fetchResult, len(ss))
	for i, s := range ss {
		out[i] = fetchResult{status: &JobStatus{Status: s}}
	}
	return out
}

package acquire

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// zipOf builds an in-memory archive from name/content pairs
func zipOf(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// source is a fake release server that records request order
type source struct {
	mu       sync.Mutex
	events   []string
	archives map[string][]byte
	// failures maps an archive to the number of 500 replies before success
	failures map[string]int
	hits     map[string]int
	delay    map[string]time.Duration
	listing  string
	snapshot string
}

func newSource(snapshot string) *source {
	return &source{
		archives: make(map[string][]byte),
		failures: make(map[string]int),
		hits:     make(map[string]int),
		delay:    make(map[string]time.Duration),
		snapshot: snapshot,
	}
}

func (s *source) record(e string) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *source) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *source) Hits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

func (s *source) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + s.snapshot + "/"
	switch {
	case r.URL.Path == "/":
		w.Write([]byte(`<html><body><a href="2023-12/">2023-12/</a><a href="` + s.snapshot + `/">x</a></body></html>`))
	case r.URL.Path == prefix:
		w.Write([]byte(s.listing))
	case strings.HasPrefix(r.URL.Path, prefix):
		name := strings.TrimPrefix(r.URL.Path, prefix)
		s.record("start:" + name)
		defer s.record("end:" + name)

		s.mu.Lock()
		s.hits[name]++
		fail := s.failures[name] > 0
		if fail {
			s.failures[name]--
		}
		body, ok := s.archives[name]
		d := s.delay[name]
		s.mu.Unlock()

		time.Sleep(d)
		if !ok {
			http.NotFound(w, r)
			return
		}
		if fail {
			http.Error(w, "try later", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(body)
	default:
		http.NotFound(w, r)
	}
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.LoadDefaultConfig()
	cfg.Source.BaseURL = baseURL
	cfg.Download.TempDir = t.TempDir()
	cfg.Download.RetryDelay = time.Millisecond
	cfg.Download.ConnectTimeout = 2 * time.Second
	cfg.Download.ReadTimeout = 5 * time.Second
	return cfg
}

func startSource(t *testing.T, s *source) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

package acquire

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedURL string

func (u fixedURL) ArchiveURL(schema.Snapshot, string) string { return string(u) }

func TestIdleTimeoutAbortsStalledBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1024")
		w.Write([]byte("PK"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f, _ := newTestFetcher(t, newSource("2024-05"), func(f *Fetcher) {
		f.readTimeout = 100 * time.Millisecond
		f.retryAttempts = 1
		f.resolver = fixedURL(srv.URL)
	})

	start := time.Now()
	_, err := f.downloadOnce(t.Context(), srv.URL, filepath.Join(t.TempDir(), "x.part"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrIdleTimeout))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIdleTimeoutReaderPassesData(t *testing.T) {
	_, cancel := context.WithCancel(t.Context())
	defer cancel()

	r := newIdleTimeoutReader(bytes.NewReader([]byte("hello")), time.Second, cancel)
	defer r.Stop()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRetryingClientConstantDelay(t *testing.T) {
	rc := newRetryingClient(http.DefaultClient, 4, 2*time.Second, testLogger())
	assert.Equal(t, 3, rc.RetryMax)
	assert.Equal(t, 2*time.Second, rc.Backoff(rc.RetryWaitMin, rc.RetryWaitMax, 3, nil))
}

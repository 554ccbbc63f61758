package acquire

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientListSnapshots(t *testing.T) {
	src := newSource("2024-05")
	srv := startSource(t, src)
	c := NewClient(testConfig(t, srv.URL), zerolog.Nop())

	snaps, err := c.ListSnapshots(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []schema.Snapshot{"2023-12", "2024-05"}, snaps)

	latest, err := c.LatestSnapshot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, schema.Snapshot("2024-05"), latest)
}

func TestClientListSnapshotsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="readme.txt">readme</a></body></html>`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(t, srv.URL), zerolog.Nop()).ListSnapshots(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrDiscovery))
}

func TestClientListingRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Download.RetryAttempts = 3

	_, err := NewClient(cfg, zerolog.Nop()).ListSnapshots(t.Context())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrDiscovery))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientListingRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`<a href="2024-01/">2024-01/</a>`))
	}))
	defer srv.Close()

	snaps, err := NewClient(testConfig(t, srv.URL), zerolog.Nop()).ListSnapshots(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []schema.Snapshot{"2024-01"}, snaps)
}

func TestClientListMembers(t *testing.T) {
	src := newSource("2024-05")
	src.listing = `<html><body>
<a href="Cnaes.zip">Cnaes.zip</a>
<a href="Empresas0.ZIP">Empresas0.ZIP</a>
<a href="Cnaes.zip">Cnaes.zip</a>
<a href="LAYOUT.pdf">LAYOUT.pdf</a>
</body></html>`
	srv := startSource(t, src)
	c := NewClient(testConfig(t, srv.URL), zerolog.Nop())

	members, err := c.ListMembers(t.Context(), "2024-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cnaes.zip", "Empresas0.ZIP"}, members)
	assert.Equal(t, srv.URL+"/2024-05/Cnaes.zip", c.ArchiveURL("2024-05", "Cnaes.zip"))
}

func TestClientWebDAVMode(t *testing.T) {
	var method, depth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		depth = r.Header.Get("Depth")
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(webdavReply))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Source.Listing = ListingWebDAV

	members, err := NewClient(cfg, zerolog.Nop()).ListMembers(t.Context(), "2024-05")
	require.NoError(t, err)
	assert.Equal(t, "PROPFIND", method)
	assert.Equal(t, "1", depth)
	assert.Equal(t, []string{"Cnaes.zip", "Empresas 0.zip"}, members)
}

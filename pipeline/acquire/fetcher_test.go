package acquire

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gear6io/cnpj-pipeline/pipeline/paths"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, src *source, mutate func(*Fetcher)) (*Fetcher, *paths.Manager) {
	t.Helper()
	srv := startSource(t, src)
	cfg := testConfig(t, srv.URL)
	pm := paths.NewManager(cfg.GetTempDir())
	f := NewFetcher(cfg, NewClient(cfg, zerolog.Nop()), pm, nil, zerolog.Nop())
	if mutate != nil {
		mutate(f)
	}
	return f, pm
}

func TestFetchReferenceCompletesBeforeData(t *testing.T) {
	src := newSource("2024-05")
	src.archives["Cnaes.zip"] = zipOf(t, map[string]string{"F.K03200$Z.D40511.CNAECSV": `"1";"a"`})
	src.archives["Paises.zip"] = zipOf(t, map[string]string{"F.K03200$Z.D40511.PAISCSV": `"1";"b"`})
	src.archives["Empresas0.zip"] = zipOf(t, map[string]string{"K3241.K03200Y0.D40511.EMPRECSV": `"1"`})
	src.archives["Socios0.zip"] = zipOf(t, map[string]string{"K3241.K03200Y0.D40511.SOCIOCSV": `"1"`})
	// slow reference downloads would let data fetches overtake them if
	// they were scheduled concurrently
	src.delay["Cnaes.zip"] = 50 * time.Millisecond
	src.delay["Paises.zip"] = 50 * time.Millisecond

	f, _ := newTestFetcher(t, src, nil)

	names := []string{"Empresas0.zip", "Cnaes.zip", "Socios0.zip", "Paises.zip"}
	var got []Extracted
	for e := range f.Fetch(t.Context(), "2024-05", names) {
		got = append(got, e)
	}
	require.Len(t, got, 4)
	assert.Equal(t, "Cnaes.zip", got[0].Archive)
	assert.Equal(t, "Paises.zip", got[1].Archive)

	events := src.Events()
	lastRefEnd, firstDataStart := -1, len(events)
	for i, e := range events {
		if e == "end:Cnaes.zip" || e == "end:Paises.zip" {
			lastRefEnd = max(lastRefEnd, i)
		}
		if strings.HasPrefix(e, "start:Empresas") || strings.HasPrefix(e, "start:Socios") {
			firstDataStart = min(firstDataStart, i)
		}
	}
	assert.Less(t, lastRefEnd, firstDataStart, "events: %v", events)
	assert.Equal(t, []string{"start:Cnaes.zip", "end:Cnaes.zip", "start:Paises.zip", "end:Paises.zip"}, events[:4])
}

func TestFetchExtractsOnlyContentMembers(t *testing.T) {
	src := newSource("2024-05")
	src.archives["Estabelecimentos0.zip"] = zipOf(t, map[string]string{
		"K3241.K03200Y0.D40511.ESTABELE":        "a",
		"nested/K3241.K03200Y1.D40511.ESTABELE": "b",
		"LEIAME.txt":                            "ignored",
	})
	f, pm := newTestFetcher(t, src, nil)

	var got []string
	for e := range f.Fetch(t.Context(), "2024-05", []string{"Estabelecimentos0.zip"}) {
		assert.Equal(t, "Estabelecimentos0.zip", e.Archive)
		got = append(got, filepath.Base(e.Path))
		assert.Equal(t, pm.GetExtractedPath("2024-05"), filepath.Dir(e.Path))
	}
	assert.ElementsMatch(t, []string{"K3241.K03200Y0.D40511.ESTABELE", "K3241.K03200Y1.D40511.ESTABELE"}, got)

	_, err := os.Stat(pm.GetArchivePath("2024-05", "Estabelecimentos0.zip"))
	assert.True(t, os.IsNotExist(err), "zip should be removed after extraction")
}

func TestFetchSkipsFailingMembers(t *testing.T) {
	src := newSource("2024-05")
	src.archives["Empresas0.zip"] = zipOf(t, map[string]string{"X.EMPRECSV": "a"})
	src.archives["Empresas1.zip"] = []byte("this is not a zip")
	src.archives["Socios0.zip"] = zipOf(t, map[string]string{"X.SOCIOCSV": "a"})
	src.failures["Socios0.zip"] = 10

	f, _ := newTestFetcher(t, src, nil)

	var archives []string
	for e := range f.Fetch(t.Context(), "2024-05", []string{"Empresas0.zip", "Empresas1.zip", "Missing.zip", "Socios0.zip"}) {
		archives = append(archives, e.Archive)
	}
	assert.Equal(t, []string{"Empresas0.zip"}, archives)
	// 404 is not retried; 500 is retried up to the attempt budget
	assert.Equal(t, 1, src.Hits("Missing.zip"))
	assert.Equal(t, 3, src.Hits("Socios0.zip"))
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	src := newSource("2024-05")
	src.archives["Simples.zip"] = zipOf(t, map[string]string{"F.K03200$W.SIMPLES.CSV.D40511": "a"})
	src.failures["Simples.zip"] = 2

	f, _ := newTestFetcher(t, src, nil)

	var got []Extracted
	for e := range f.Fetch(t.Context(), "2024-05", []string{"Simples.zip"}) {
		got = append(got, e)
	}
	require.Len(t, got, 1)
	assert.Equal(t, 3, src.Hits("Simples.zip"))
}

func TestFetchKeepFilesReusesArchive(t *testing.T) {
	src := newSource("2024-05")
	src.archives["Cnaes.zip"] = zipOf(t, map[string]string{"F.CNAECSV": "a"})
	f, pm := newTestFetcher(t, src, func(f *Fetcher) { f.keepFiles = true })

	for range f.Fetch(t.Context(), "2024-05", []string{"Cnaes.zip"}) {
	}
	_, err := os.Stat(pm.GetArchivePath("2024-05", "Cnaes.zip"))
	require.NoError(t, err)

	var got int
	for range f.Fetch(t.Context(), "2024-05", []string{"Cnaes.zip"}) {
		got++
	}
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, src.Hits("Cnaes.zip"))

	require.NoError(t, f.Shutdown(t.Context()))
	_, err = os.Stat(pm.GetArchivePath("2024-05", "Cnaes.zip"))
	assert.NoError(t, err, "kept files survive shutdown")
}

func TestFetchEarlyBreakStopsPool(t *testing.T) {
	src := newSource("2024-05")
	var names []string
	for i := 0; i < 12; i++ {
		name := "Empresas" + string(rune('a'+i)) + ".zip"
		names = append(names, name)
		src.archives[name] = zipOf(t, map[string]string{"X" + name + ".EMPRECSV": "a"})
		src.delay[name] = 20 * time.Millisecond
	}
	f, pm := newTestFetcher(t, src, nil)

	for range f.Fetch(t.Context(), "2024-05", names) {
		break
	}

	total := 0
	for _, n := range names {
		total += src.Hits(n)
	}
	assert.Less(t, total, len(names))

	require.NoError(t, f.Shutdown(t.Context()))
	_, err := os.Stat(pm.GetExtractedPath("2024-05"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchCancelledContext(t *testing.T) {
	src := newSource("2024-05")
	src.archives["Cnaes.zip"] = zipOf(t, map[string]string{"F.CNAECSV": "a"})
	f, _ := newTestFetcher(t, src, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var got int
	for range f.Fetch(ctx, "2024-05", []string{"Cnaes.zip", "Empresas0.zip"}) {
		got++
	}
	assert.Zero(t, got)
}

func TestPrepare(t *testing.T) {
	t.Run("creates the staging layout once", func(t *testing.T) {
		f, pm := newTestFetcher(t, newSource("2024-05"), nil)
		require.NoError(t, f.Prepare("2024-05"))
		require.NoError(t, f.Prepare("2024-05"))
		assert.DirExists(t, pm.GetArchivesPath("2024-05"))
		assert.DirExists(t, pm.GetExtractedPath("2024-05"))
		assert.Len(t, f.staged, 1)
	})

	t.Run("temp dir that is a file", func(t *testing.T) {
		notADir := filepath.Join(t.TempDir(), "temp")
		require.NoError(t, os.WriteFile(notADir, []byte("x"), 0644))
		f, _ := newTestFetcher(t, newSource("2024-05"), func(f *Fetcher) {
			f.paths = paths.NewManager(notADir)
		})

		err := f.Prepare("2024-05")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, ErrStagingFailed))
		assert.Empty(t, f.staged)
	})
}

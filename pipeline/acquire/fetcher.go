package acquire

import (
	"archive/zip"
	"context"
	"io"
	"iter"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/gear6io/cnpj-pipeline/pipeline/paths"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ComponentType defines the fetcher component type identifier
const ComponentType = "acquire"

// Extracted is one content file pulled out of an archive
type Extracted struct {
	Path    string
	Archive string
}

// URLResolver maps an archive to its download URL
type URLResolver interface {
	ArchiveURL(snapshot schema.Snapshot, name string) string
}

// Fetcher downloads archives and extracts their content files
type Fetcher struct {
	resolver      URLResolver
	http          *http.Client
	paths         *paths.Manager
	mirror        Mirror
	workers       int
	retryAttempts int
	retryDelay    time.Duration
	readTimeout   time.Duration
	keepFiles     bool
	logger        zerolog.Logger

	staged []schema.Snapshot
}

// NewFetcher creates a fetcher. mirror may be nil.
func NewFetcher(cfg *config.Config, resolver URLResolver, pm *paths.Manager, mirror Mirror, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		resolver:      resolver,
		http:          newHTTPClient(cfg.Download.ConnectTimeout, cfg.Download.ReadTimeout),
		paths:         pm,
		mirror:        mirror,
		workers:       max(cfg.Download.Workers, 1),
		retryAttempts: max(cfg.Download.RetryAttempts, 1),
		retryDelay:    cfg.Download.RetryDelay,
		readTimeout:   cfg.Download.ReadTimeout,
		keepFiles:     cfg.Download.KeepFiles,
		logger:        logger.With().Str("component", "acquire.fetcher").Logger(),
	}
}

type memberResult struct {
	name  string
	files []string
	err   error
}

// Fetch yields every content file of the named archives. Reference
// archives are fetched one at a time in the given order and fully yielded
// before any data archive download starts; data archives are fetched by a
// bounded pool and yielded in completion order. Files of one archive are
// always yielded contiguously. A failing archive is logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, snapshot schema.Snapshot, names []string) iter.Seq[Extracted] {
	return func(yield func(Extracted) bool) {
		if err := f.Prepare(snapshot); err != nil {
			f.logger.Error().Err(err).Msg("Failed to prepare staging directory")
			return
		}

		var reference, data []string
		for _, name := range names {
			if schema.IsReferenceArchive(name) {
				reference = append(reference, name)
			} else {
				data = append(data, name)
			}
		}

		for _, name := range reference {
			if ctx.Err() != nil {
				return
			}
			files, err := f.fetchMember(ctx, snapshot, name)
			if err != nil {
				f.logFailure(name, err)
				continue
			}
			for _, p := range files {
				if !yield(Extracted{Path: p, Archive: name}) {
					return
				}
			}
		}

		if len(data) == 0 || ctx.Err() != nil {
			return
		}

		poolCtx, cancel := context.WithCancel(ctx)
		results := make(chan memberResult)
		go func() {
			defer close(results)
			var g errgroup.Group
			g.SetLimit(f.workers)
			for _, name := range data {
				if poolCtx.Err() != nil {
					break
				}
				g.Go(func() error {
					files, err := f.fetchMember(poolCtx, snapshot, name)
					select {
					case results <- memberResult{name: name, files: files, err: err}:
					case <-poolCtx.Done():
					}
					return nil
				})
			}
			g.Wait()
		}()

		// on early exit stop the pool and wait for workers so nothing keeps
		// writing into the staging directory
		defer func() {
			cancel()
			for range results {
			}
		}()

		for r := range results {
			if r.err != nil {
				f.logFailure(r.name, r.err)
				continue
			}
			for _, p := range r.files {
				if !yield(Extracted{Path: p, Archive: r.name}) {
					return
				}
			}
		}
	}
}

func (f *Fetcher) logFailure(name string, err error) {
	f.logger.Error().
		Err(err).
		Str("archive", name).
		Str("code", errors.GetCode(err)).
		Msg("Archive fetch failed, skipping")
}

// fetchMember makes the archive available locally, extracts it and removes
// the zip unless files are kept
func (f *Fetcher) fetchMember(ctx context.Context, snapshot schema.Snapshot, name string) ([]string, error) {
	zipPath := f.paths.GetArchivePath(snapshot.String(), name)

	if f.keepFiles && isValidZip(zipPath) {
		f.logger.Debug().Str("archive", name).Msg("Using cached archive")
	} else if !f.fromMirror(ctx, snapshot, name, zipPath) {
		if err := f.download(ctx, snapshot, name, zipPath); err != nil {
			return nil, err
		}
		if f.mirror != nil {
			if err := f.mirror.Put(ctx, snapshot.String(), name, zipPath); err != nil {
				f.logger.Warn().Err(err).Str("archive", name).Msg("Failed to mirror archive")
			}
		}
	}

	files, err := f.extract(snapshot, name, zipPath)
	if !f.keepFiles {
		os.Remove(zipPath)
	}
	return files, err
}

func (f *Fetcher) fromMirror(ctx context.Context, snapshot schema.Snapshot, name, dst string) bool {
	if f.mirror == nil {
		return false
	}
	ok, err := f.mirror.Get(ctx, snapshot.String(), name, dst)
	if err != nil {
		f.logger.Warn().Err(err).Str("archive", name).Msg("Mirror lookup failed, using upstream")
		return false
	}
	return ok
}

// download streams the archive into a .part file and renames it into place.
// Attempts are separated by a constant delay.
func (f *Fetcher) download(ctx context.Context, snapshot schema.Snapshot, name, dst string) error {
	url := f.resolver.ArchiveURL(snapshot, name)
	part := f.paths.GetPartialPath(snapshot.String(), name)
	defer os.Remove(part)

	attempt := 0
	var size int64
	op := func() error {
		attempt++
		n, err := f.downloadOnce(ctx, url, part)
		if err != nil {
			f.logger.Warn().
				Err(err).
				Str("archive", name).
				Int("attempt", attempt).
				Int("max_attempts", f.retryAttempts).
				Msg("Download attempt failed")
			return err
		}
		size = n
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryDelay), uint64(f.retryAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return errors.New(ErrDownloadFailed, "failed to download archive", err).
			AddContext("archive", name).
			AddContext("url", url).
			AddContext("attempts", strconv.Itoa(attempt))
	}

	if err := os.Rename(part, dst); err != nil {
		return errors.New(ErrDownloadFailed, "failed to move downloaded archive into place", err).
			AddContext("archive", name)
	}

	f.logger.Info().
		Str("archive", name).
		Str("size", humanize.Bytes(uint64(size))).
		Int("attempts", attempt).
		Msg("Downloaded archive")
	return nil
}

func (f *Fetcher) downloadOnce(ctx context.Context, url, part string) (int64, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := errors.New(ErrUnexpectedReply, "archive download returned unexpected status", nil).
			AddContext("status", strconv.Itoa(resp.StatusCode))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}

	out, err := os.Create(part)
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	body := newIdleTimeoutReader(resp.Body, f.readTimeout, cancel)
	n, copyErr := io.Copy(out, body)
	body.Stop()
	closeErr := out.Close()

	if copyErr != nil {
		return n, copyErr
	}
	if closeErr != nil {
		return n, closeErr
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, errors.New(ErrDownloadFailed, "archive body truncated", io.ErrUnexpectedEOF).
			AddContext("expected", strconv.FormatInt(resp.ContentLength, 10)).
			AddContext("received", strconv.FormatInt(n, 10))
	}
	return n, nil
}

// extract writes every content member of the archive into the snapshot's
// extraction directory, flattening member paths
func (f *Fetcher) extract(snapshot schema.Snapshot, name, zipPath string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errors.New(ErrExtractFailed, "failed to open archive", err).
			AddContext("archive", name)
	}
	defer zr.Close()

	var files []string
	for _, member := range zr.File {
		if member.FileInfo().IsDir() || !schema.IsContentMember(member.Name) {
			continue
		}

		dst := f.paths.GetMemberPath(snapshot.String(), member.Name)
		if err := extractMember(member, dst); err != nil {
			for _, p := range files {
				os.Remove(p)
			}
			return nil, errors.New(ErrExtractFailed, "failed to extract archive member", err).
				AddContext("archive", name).
				AddContext("member", member.Name)
		}
		files = append(files, dst)
		f.logger.Debug().Str("archive", name).Str("member", member.Name).Msg("Extracted")
	}
	return files, nil
}

func extractMember(member *zip.File, dst string) error {
	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func isValidZip(path string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	zr.Close()
	return true
}

// Prepare creates the staging directories of a snapshot. Callers that
// must fail fast on an unusable temp dir call it before Fetch.
func (f *Fetcher) Prepare(snapshot schema.Snapshot) error {
	if err := f.paths.EnsureDirectoryStructure(snapshot.String()); err != nil {
		return errors.New(ErrStagingFailed, "failed to prepare staging directory", err).
			AddContext("snapshot", snapshot.String())
	}
	if !slices.Contains(f.staged, snapshot) {
		f.staged = append(f.staged, snapshot)
	}
	return nil
}

// GetType returns the component type identifier
func (f *Fetcher) GetType() string {
	return ComponentType
}

// Shutdown removes the staged files of every snapshot this fetcher touched,
// unless downloaded files are kept
func (f *Fetcher) Shutdown(ctx context.Context) error {
	if f.keepFiles {
		return nil
	}
	for _, s := range f.staged {
		if err := f.paths.Cleanup(s.String()); err != nil {
			return err
		}
	}
	f.staged = nil
	return nil
}

package acquire

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// maxListingBytes bounds how much of a listing page is read
const maxListingBytes = 16 << 20

// Client enumerates snapshots and archive members of the remote source
type Client struct {
	baseURL string
	mode    string
	http    *retryablehttp.Client
	logger  zerolog.Logger
}

// NewClient creates a listing client from the source and download settings
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	logger = logger.With().Str("component", "acquire.client").Logger()
	return &Client{
		baseURL: strings.TrimRight(cfg.Source.BaseURL, "/"),
		mode:    cfg.Source.Listing,
		http:    NewRetryingClient(cfg, logger),
		logger:  logger,
	}
}

// ListSnapshots returns every published snapshot, oldest first
func (c *Client) ListSnapshots(ctx context.Context) ([]schema.Snapshot, error) {
	segments, err := c.list(ctx, c.baseURL+"/")
	if err != nil {
		return nil, errors.New(ErrDiscovery, "failed to list snapshots", err).
			AddContext("url", c.baseURL)
	}

	seen := make(map[string]struct{})
	var snapshots []schema.Snapshot
	for _, s := range segments {
		if !schema.IsSnapshot(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		snapshots = append(snapshots, schema.Snapshot(s))
	}

	if len(snapshots) == 0 {
		return nil, errors.New(ErrDiscovery, "no snapshots found in listing", nil).
			AddContext("url", c.baseURL)
	}

	schema.SortSnapshots(snapshots)
	c.logger.Debug().Int("count", len(snapshots)).Msg("Listed snapshots")
	return snapshots, nil
}

// LatestSnapshot returns the newest snapshot
func (c *Client) LatestSnapshot(ctx context.Context) (schema.Snapshot, error) {
	snapshots, err := c.ListSnapshots(ctx)
	if err != nil {
		return "", err
	}
	return snapshots[len(snapshots)-1], nil
}

// ListMembers returns the .zip archives of a snapshot in listing order
func (c *Client) ListMembers(ctx context.Context, snapshot schema.Snapshot) ([]string, error) {
	dir := c.SnapshotURL(snapshot)
	segments, err := c.list(ctx, dir)
	if err != nil {
		return nil, errors.New(ErrListingFailed, "failed to list snapshot archives", err).
			AddContext("snapshot", snapshot.String())
	}

	seen := make(map[string]struct{})
	var members []string
	for _, s := range segments {
		if !strings.HasSuffix(strings.ToLower(s), ".zip") {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		members = append(members, s)
	}

	c.logger.Debug().
		Str("snapshot", snapshot.String()).
		Int("count", len(members)).
		Msg("Listed archives")
	return members, nil
}

// SnapshotURL returns the directory URL of a snapshot
func (c *Client) SnapshotURL(snapshot schema.Snapshot) string {
	return c.baseURL + "/" + url.PathEscape(snapshot.String()) + "/"
}

// ArchiveURL returns the download URL of an archive
func (c *Client) ArchiveURL(snapshot schema.Snapshot, name string) string {
	return c.SnapshotURL(snapshot) + url.PathEscape(name)
}

func (c *Client) list(ctx context.Context, target string) ([]string, error) {
	method := http.MethodGet
	if c.mode == ListingWebDAV {
		method = "PROPFIND"
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	if method == "PROPFIND" {
		req.Header.Set("Depth", "1")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		return nil, errors.New(ErrUnexpectedReply, "listing returned unexpected status", nil).
			AddContext("status", strconv.Itoa(resp.StatusCode)).
			AddContext("url", target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, err
	}
	return parseListing(c.mode, body)
}

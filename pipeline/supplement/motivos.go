// Package supplement fills reference codes the official release omits
// from secondary sources.
package supplement

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gear6io/cnpj-pipeline/pipeline/acquire"
	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/gear6io/cnpj-pipeline/pipeline/paths"
	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	cacheFileName      = "serpro_motivos.csv"
	missingDescription = "DESCRICAO INDISPONIVEL"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Target receives the missing codes
type Target interface {
	BulkUpsert(ctx context.Context, batch schema.Batch) error
	ExistingCodes(ctx context.Context, relation string) (map[string]struct{}, error)
}

// Entry is one code and its description
type Entry struct {
	Code        string
	Description string
}

// Motivos adds SERPRO's registration status reasons that are absent from
// the motivos table
type Motivos struct {
	url       string
	cachePath string
	ttl       time.Duration
	http      *retryablehttp.Client
	target    Target
	logger    zerolog.Logger
}

// NewMotivos creates the supplement. The download is cached under the
// staging directory's reference cache.
func NewMotivos(cfg *config.Config, target Target, pm *paths.Manager, logger zerolog.Logger) *Motivos {
	logger = logger.With().Str("component", "supplement.motivos").Logger()
	return &Motivos{
		url:       cfg.Supplement.URL,
		cachePath: filepath.Join(pm.GetReferenceCachePath(), cacheFileName),
		ttl:       cfg.Supplement.CacheTTL,
		http:      acquire.NewRetryingClient(cfg, logger),
		target:    target,
		logger:    logger,
	}
}

// Run upserts the missing codes and returns how many were added
func (m *Motivos) Run(ctx context.Context) (int, error) {
	path, err := m.fetch(ctx)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.New(ErrParseFailed, "failed to open motivos file", err)
	}
	defer f.Close()

	entries, err := ParseMotivos(f)
	if err != nil {
		return 0, err
	}

	relation := schema.Motivos.Relation()
	existing, err := m.target.ExistingCodes(ctx, relation)
	if err != nil {
		return 0, errors.New(ErrLoadFailed, "failed to read existing motivos", err)
	}

	missing := Missing(entries, existing)
	if len(missing) == 0 {
		m.logger.Debug().Msg("No missing motivos")
		return 0, nil
	}

	batch := schema.NewBatch(schema.Motivos, len(missing))
	for _, e := range missing {
		batch.Rows = append(batch.Rows, []string{e.Code, e.Description})
	}
	if err := m.target.BulkUpsert(ctx, batch); err != nil {
		return 0, errors.New(ErrLoadFailed, "failed to load missing motivos", err)
	}

	m.logger.Info().Int("codes", len(missing)).Msg("Added missing motivos")
	return len(missing), nil
}

// fetch returns the path of a usable copy: a fresh cache, a new download,
// or a stale cache when the download fails
func (m *Motivos) fetch(ctx context.Context) (string, error) {
	info, statErr := os.Stat(m.cachePath)
	if statErr == nil {
		age := time.Since(info.ModTime())
		if age < m.ttl {
			m.logger.Info().Dur("age", age).Msg("Using cached motivos")
			return m.cachePath, nil
		}
	}

	err := m.download(ctx)
	if err == nil {
		return m.cachePath, nil
	}
	if statErr == nil {
		m.logger.Warn().Err(err).Msg("Motivos download failed, using stale cache")
		return m.cachePath, nil
	}
	return "", err
}

func (m *Motivos) download(ctx context.Context) error {
	m.logger.Info().Str("url", m.url).Msg("Downloading motivos")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return errors.New(ErrDownloadFailed, "failed to build request", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return errors.New(ErrDownloadFailed, "failed to download motivos", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(ErrDownloadFailed, "unexpected status", nil).
			AddContext("status", fmt.Sprint(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(ErrDownloadFailed, "failed to read motivos", err)
	}
	body = bytes.TrimPrefix(body, utf8BOM)

	if err := os.MkdirAll(filepath.Dir(m.cachePath), 0755); err != nil {
		return errors.New(ErrDownloadFailed, "failed to create cache directory", err)
	}
	tmp := m.cachePath + ".part"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return errors.New(ErrDownloadFailed, "failed to write cache", err)
	}
	if err := os.Rename(tmp, m.cachePath); err != nil {
		os.Remove(tmp)
		return errors.New(ErrDownloadFailed, "failed to write cache", err)
	}
	return nil
}

// ParseMotivos reads the semicolon separated file with a "Código;Descrição"
// header. Codes are trimmed and single digits padded; descriptions are
// upper-cased and stripped of accents.
func ParseMotivos(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.New(ErrParseFailed, "failed to read motivos header", err)
	}
	codeIdx, descIdx := -1, -1
	for i, h := range header {
		switch Fold(strings.TrimPrefix(h, "\ufeff")) {
		case "CODIGO":
			codeIdx = i
		case "DESCRICAO":
			descIdx = i
		}
	}
	if codeIdx < 0 {
		return nil, errors.New(ErrParseFailed, "motivos file has no code column", nil).
			AddContext("header", strings.Join(header, ";"))
	}

	var entries []Entry
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(ErrParseFailed, "failed to read motivos row", err)
		}
		if codeIdx >= len(record) {
			continue
		}

		e := Entry{Code: padCode(strings.TrimSpace(record[codeIdx])), Description: missingDescription}
		if descIdx >= 0 && descIdx < len(record) {
			e.Description = Fold(record[descIdx])
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func padCode(code string) string {
	if len(code) == 1 && code[0] >= '0' && code[0] <= '9' {
		return "0" + code
	}
	return code
}

func nonASCII(r rune) bool {
	return r > unicode.MaxASCII
}

// Fold upper-cases s, trims it and drops accents and other non-ASCII runes
func Fold(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(nonASCII)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Missing drops empty codes, keeps the first entry per code and removes
// codes present in existing
func Missing(entries []Entry, existing map[string]struct{}) []Entry {
	seen := make(map[string]struct{}, len(entries))
	var out []Entry
	for _, e := range entries {
		if e.Code == "" {
			continue
		}
		if _, dup := seen[e.Code]; dup {
			continue
		}
		seen[e.Code] = struct{}{}
		if _, ok := existing[e.Code]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

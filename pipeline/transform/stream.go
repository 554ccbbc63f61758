package transform

import (
	"encoding/csv"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DefaultBatchSize matches the loader's default
const DefaultBatchSize = 500000

// NewDecoder wraps r with ISO-8859-1 to UTF-8 conversion and strips NUL
// bytes, which the upstream files occasionally contain.
func NewDecoder(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		charmap.ISO8859_1.NewDecoder(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == 0 })),
	))
}

// StreamFile classifies path by name and yields normalized batches of at
// most batchSize rows. Unknown files yield nothing. A failure is yielded
// once and ends the sequence.
func StreamFile(path string, batchSize int) iter.Seq2[schema.Batch, error] {
	t := schema.ClassifyFile(filepath.Base(path))
	return func(yield func(schema.Batch, error) bool) {
		if t == schema.Unknown {
			return
		}

		f, err := os.Open(path)
		if err != nil {
			yield(schema.Batch{}, errors.New(ErrOpenFailed, "failed to open content file", err).
				AddContext("file", path))
			return
		}
		defer f.Close()

		for b, err := range Stream(f, t, batchSize) {
			if err != nil {
				if e, ok := err.(*errors.Error); ok {
					e.AddContext("file", path)
				}
			}
			if !yield(b, err) {
				return
			}
		}
	}
}

// Stream decodes rows of type t from r
func Stream(r io.Reader, t schema.Type, batchSize int) iter.Seq2[schema.Batch, error] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return func(yield func(schema.Batch, error) bool) {
		if t == schema.Unknown {
			return
		}

		cr := csv.NewReader(NewDecoder(r))
		cr.Comma = ';'
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = true

		norm := newNormalizer(t)
		// capacity is capped so tiny files do not allocate a full batch
		batch := schema.NewBatch(t, min(batchSize, 4096))

		for {
			record, err := cr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				line := 0
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					line = pe.Line
				}
				yield(schema.Batch{}, errors.New(ErrDecodeFailed, "failed to parse row", err).
					AddContext("relation", t.Relation()).
					AddContext("line", strconv.Itoa(line)))
				return
			}

			batch.Rows = append(batch.Rows, norm.row(record))
			if len(batch.Rows) >= batchSize {
				if !yield(batch, nil) {
					return
				}
				batch = schema.NewBatch(t, min(batchSize, 4096))
			}
		}

		if !batch.Empty() {
			yield(batch, nil)
		}
	}
}

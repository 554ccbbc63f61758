package store

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/jackc/pgx/v5"
)

// UpdatedAtColumn is refreshed whenever an upsert overwrites a row
const UpdatedAtColumn = "data_atualizacao"

// session is the slice of a database transaction the upsert needs
type session interface {
	Exec(ctx context.Context, sql string) error
	CopyFrom(ctx context.Context, sql string, r io.Reader) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// pgxSession runs a session on a pgx transaction
type pgxSession struct {
	tx pgx.Tx
}

func (s pgxSession) Exec(ctx context.Context, sql string) error {
	_, err := s.tx.Exec(ctx, sql)
	return err
}

func (s pgxSession) CopyFrom(ctx context.Context, sql string, r io.Reader) (int64, error) {
	tag, err := s.tx.Conn().PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s pgxSession) Commit(ctx context.Context) error {
	return s.tx.Commit(ctx)
}

func (s pgxSession) Rollback(ctx context.Context) error {
	return s.tx.Rollback(ctx)
}

// upsertPlan holds the statements of one staging-swap upsert
type upsertPlan struct {
	relation string
	staging  string
	create   string
	copy     string
	merge    string
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// newUpsertPlan builds the statements for loading columns of relation
// through a staging table named with suffix
func newUpsertPlan(relation string, columns, keys []string, suffix string) upsertPlan {
	staging := "stg_" + relation + "_" + suffix
	rel := quoteIdent(relation)
	stg := quoteIdent(staging)
	cols := quoteList(columns)

	create := "CREATE TEMP TABLE " + stg + " (LIKE " + rel +
		" INCLUDING DEFAULTS INCLUDING STORAGE) ON COMMIT DROP"
	copyStmt := "COPY " + stg + " (" + cols + ") FROM STDIN WITH (FORMAT csv)"

	var merge string
	if len(keys) == 0 {
		merge = "INSERT INTO " + rel + " (" + cols + ") SELECT " + cols + " FROM " + stg +
			" ON CONFLICT DO NOTHING"
	} else {
		pk := quoteList(keys)
		merge = "INSERT INTO " + rel + " (" + cols + ") SELECT DISTINCT ON (" + pk + ") " + cols +
			" FROM " + stg + " ORDER BY " + pk + " ON CONFLICT (" + pk + ") "

		isKey := make(map[string]bool, len(keys))
		for _, k := range keys {
			isKey[k] = true
		}
		var sets []string
		for _, c := range columns {
			if !isKey[c] {
				q := quoteIdent(c)
				sets = append(sets, q+" = EXCLUDED."+q)
			}
		}
		if len(sets) == 0 {
			merge += "DO NOTHING"
		} else {
			sets = append(sets, quoteIdent(UpdatedAtColumn)+" = CURRENT_TIMESTAMP")
			merge += "DO UPDATE SET " + strings.Join(sets, ", ")
		}
	}

	return upsertPlan{
		relation: relation,
		staging:  staging,
		create:   create,
		copy:     copyStmt,
		merge:    merge,
	}
}

// writeCSV renders rows for COPY ... (FORMAT csv). Empty fields are written
// unquoted, which COPY reads as NULL.
func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// runUpsert executes plan in sess. Any failure rolls the whole batch back.
func runUpsert(ctx context.Context, sess session, plan upsertPlan, batch schema.Batch) (err error) {
	step := "create_staging"
	defer func() {
		if err == nil {
			return
		}
		// rollback must run even when ctx is already cancelled
		sess.Rollback(context.WithoutCancel(ctx))
		err = errors.New(ErrUpsertFailed, "bulk upsert failed", err).
			AddContext("relation", plan.relation).
			AddContext("step", step)
	}()

	if err = sess.Exec(ctx, plan.create); err != nil {
		return err
	}

	step = "copy"
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeCSV(pw, batch.Rows))
	}()
	_, err = sess.CopyFrom(ctx, plan.copy, pr)
	// unblocks the writer if COPY stopped reading early
	pr.Close()
	if err != nil {
		return err
	}

	step = "merge"
	if err = sess.Exec(ctx, plan.merge); err != nil {
		return err
	}

	step = "commit"
	return sess.Commit(ctx)
}

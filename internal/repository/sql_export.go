package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/retainer-prof/pkg/errors"
	"github.com/retainer-prof/pkg/model"
)

// SQLCensusExporter writes census rows with plain database/sql, for
// databases shared with tools that do not go through GORM.
type SQLCensusExporter struct {
	db     *sql.DB
	dbType DBType
}

// NewSQLCensusExporter creates an exporter; dbType selects the placeholder style.
func NewSQLCensusExporter(db *sql.DB, dbType DBType) *SQLCensusExporter {
	return &SQLCensusExporter{db: db, dbType: dbType}
}

const (
	deleteCensusSQL = `DELETE FROM census_rows WHERE tid = ?`
	insertCensusSQL = `INSERT INTO census_rows (tid, set_rank, set_id, retainers, objects, words, percent) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// Export replaces the census rows of rep.TaskUUID in one transaction.
func (e *SQLCensusExporter) Export(ctx context.Context, rep *model.Report) (err error) {
	rows, err := NewCensusRows(rep)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to encode census rows", err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, e.rebind(deleteCensusSQL), rep.TaskUUID); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to clear census rows", err)
	}

	stmt, err := tx.PrepareContext(ctx, e.rebind(insertCensusSQL))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to prepare census insert", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx, r.TID, r.Rank, r.SetID, string(r.Retainers), r.Objects, r.Words, r.Percent); err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError,
				fmt.Sprintf("failed to insert census row %d", r.Rank), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to commit census rows", err)
	}
	return nil
}

// rebind rewrites '?' placeholders to $n for postgres.
func (e *SQLCensusExporter) rebind(query string) string {
	if e.dbType != DBTypePostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

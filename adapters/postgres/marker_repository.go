// Package postgres persists finished marker results for batch sweeps.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gomarker/domain/core"
	"gomarker/domain/marker"
	"gomarker/ports"
)

// MarkerRepositoryImpl implements ports.MarkerRepository for PostgreSQL.
type MarkerRepositoryImpl struct {
	db *sqlx.DB
}

// NewMarkerRepository creates a new PostgreSQL marker repository.
func NewMarkerRepository(db *sqlx.DB) ports.MarkerRepository {
	return &MarkerRepositoryImpl{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the marker_results table when missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS marker_results (
			id                UUID PRIMARY KEY,
			norm_method       TEXT NOT NULL,
			diff_method       TEXT NOT NULL,
			fell_back         BOOLEAN NOT NULL,
			total_features    INT NOT NULL,
			significant_count INT NOT NULL,
			fingerprint       TEXT NOT NULL,
			table_payload     JSONB NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL
		)`)
	return err
}

type markerResultRow struct {
	ID               uuid.UUID `db:"id"`
	NormMethod       string    `db:"norm_method"`
	DiffMethod       string    `db:"diff_method"`
	FellBack         bool      `db:"fell_back"`
	TotalFeatures    int       `db:"total_features"`
	SignificantCount int       `db:"significant_count"`
	Fingerprint      string    `db:"fingerprint"`
	TablePayload     []byte    `db:"table_payload"`
}

// Save upserts a result keyed by its analysis ID.
func (r *MarkerRepositoryImpl) Save(ctx context.Context, result *marker.Result) error {
	id, err := uuid.Parse(result.AnalysisID.String())
	if err != nil {
		return core.NewValidationError("analysis_id", err.Error())
	}
	payload, err := json.Marshal(result.Table)
	if err != nil {
		return fmt.Errorf("marshal marker table: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO marker_results (
			id, norm_method, diff_method, fell_back,
			total_features, significant_count, fingerprint,
			table_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			norm_method       = EXCLUDED.norm_method,
			diff_method       = EXCLUDED.diff_method,
			fell_back         = EXCLUDED.fell_back,
			total_features    = EXCLUDED.total_features,
			significant_count = EXCLUDED.significant_count,
			fingerprint       = EXCLUDED.fingerprint,
			table_payload     = EXCLUDED.table_payload`,
		id, result.NormMethod, result.DiffMethod, result.FellBack,
		result.TotalFeatures, result.SignificantCount, result.Fingerprint.String(),
		payload, result.CreatedAt.Time())
	return err
}

// GetByID fetches one stored result.
func (r *MarkerRepositoryImpl) GetByID(ctx context.Context, id core.AnalysisID) (*marker.Result, error) {
	uid, err := uuid.Parse(id.String())
	if err != nil {
		return nil, core.NewValidationError("analysis_id", err.Error())
	}

	var row markerResultRow
	err = r.db.GetContext(ctx, &row, `
		SELECT id, norm_method, diff_method, fell_back,
		       total_features, significant_count, fingerprint, table_payload
		FROM marker_results WHERE id = $1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrResultNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rowToResult(&row)
}

// ListRecent returns the most recently stored results.
func (r *MarkerRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*marker.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []markerResultRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, norm_method, diff_method, fell_back,
		       total_features, significant_count, fingerprint, table_payload
		FROM marker_results ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*marker.Result, 0, len(rows))
	for i := range rows {
		res, err := rowToResult(&rows[i])
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Delete removes one stored result.
func (r *MarkerRepositoryImpl) Delete(ctx context.Context, id core.AnalysisID) error {
	uid, err := uuid.Parse(id.String())
	if err != nil {
		return core.NewValidationError("analysis_id", err.Error())
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM marker_results WHERE id = $1`, uid)
	return err
}

func rowToResult(row *markerResultRow) (*marker.Result, error) {
	var table marker.Table
	if err := json.Unmarshal(row.TablePayload, &table); err != nil {
		return nil, fmt.Errorf("unmarshal marker table: %w", err)
	}
	return &marker.Result{
		AnalysisID:       core.AnalysisID(row.ID.String()),
		Table:            table,
		NormMethod:       row.NormMethod,
		DiffMethod:       row.DiffMethod,
		FellBack:         row.FellBack,
		TotalFeatures:    row.TotalFeatures,
		SignificantCount: row.SignificantCount,
		Fingerprint:      core.Hash(row.Fingerprint),
	}, nil
}

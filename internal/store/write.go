package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
)

// WriteSeries stores a series, its observations and its truth in one
// transaction. A missing observation is stored with a NULL value.
func (s *Store) WriteSeries(ctx context.Context, rec SeriesRecord) error {
	if rec.Timestamps != nil && len(rec.Timestamps) != rec.Series.Len() {
		return fmt.Errorf("write series: %d timestamps for %d observations", len(rec.Timestamps), rec.Series.Len())
	}
	hash, err := ir.SeriesHash(rec.Series)
	if err != nil {
		return fmt.Errorf("write series: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write series: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series (id, name, source, length, content_hash)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, string(rec.Source), rec.Series.Len(), hash)
	if err != nil {
		return fmt.Errorf("write series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (series_id, t, timestamp, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write series: prepare observations: %w", err)
	}
	defer stmt.Close()
	for t := 0; t < rec.Series.Len(); t++ {
		obs := rec.Series.At(t)
		var ts sql.NullString
		if rec.Timestamps != nil {
			ts = sql.NullString{String: rec.Timestamps[t], Valid: true}
		}
		value := sql.NullFloat64{Float64: obs.Value, Valid: obs.Present}
		if _, err := stmt.ExecContext(ctx, rec.ID, t, ts, value); err != nil {
			return fmt.Errorf("write series: observation %d: %w", t, err)
		}
	}

	for name, v := range rec.Truth {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO truths (series_id, param, value) VALUES (?, ?, ?)
		`, rec.ID, name, v)
		if err != nil {
			return fmt.Errorf("write series: truth %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write series: commit: %w", err)
	}
	return nil
}

// WriteFit stores a fit with its layout and ordered draw table in one
// transaction. Incomplete fits are stored too, flagged as such.
func (s *Store) WriteFit(ctx context.Context, fit *ir.Fit) error {
	modelJSON, err := json.Marshal(fit.Model)
	if err != nil {
		return fmt.Errorf("write fit: marshal model: %w", err)
	}
	modelHash, err := ir.ModelHash(fit.Model)
	if err != nil {
		return fmt.Errorf("write fit: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write fit: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fits (id, series_id, model, model_hash, chains, warmup, seed, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		fit.ID,
		fit.SeriesID,
		string(modelJSON),
		modelHash,
		len(fit.Chains),
		fit.Warmup,
		int64(fit.Seed), // SQLite integers are signed; the bits round-trip
		boolToInt(fit.Complete),
	)
	if err != nil {
		return fmt.Errorf("write fit: %w", err)
	}

	names := fit.Layout.Names()
	for i, p := range fit.Layout.Params() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO params (fit_id, idx, name, support) VALUES (?, ?, ?, ?)
		`, fit.ID, i, p.Name, string(p.Support))
		if err != nil {
			return fmt.Errorf("write fit: param %s: %w", p.Name, err)
		}
	}

	drawStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO draws (fit_id, chain, draw, divergent, imputed) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write fit: prepare draws: %w", err)
	}
	defer drawStmt.Close()
	valueStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO draw_values (fit_id, chain, draw, param, value) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write fit: prepare values: %w", err)
	}
	defer valueStmt.Close()

	for _, c := range fit.Chains {
		for _, d := range c.Draws {
			if len(d.Values) != len(names) {
				return fmt.Errorf("write fit: chain %d draw %d has %d values, layout has %d", c.ID, d.Index, len(d.Values), len(names))
			}
			if _, err := drawStmt.ExecContext(ctx, fit.ID, c.ID, d.Index, boolToInt(d.Divergent), d.Imputed); err != nil {
				return fmt.Errorf("write fit: chain %d draw %d: %w", c.ID, d.Index, err)
			}
			for i, v := range d.Values {
				if _, err := valueStmt.ExecContext(ctx, fit.ID, c.ID, d.Index, names[i], v); err != nil {
					return fmt.Errorf("write fit: chain %d draw %d %s: %w", c.ID, d.Index, names[i], err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write fit: commit: %w", err)
	}
	return nil
}

// WriteDiagnostics stores the convergence report of a fit, replacing any
// earlier report for the same fit.
func (s *Store) WriteDiagnostics(ctx context.Context, report *diagnostics.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("write diagnostics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (fit_id, report) VALUES (?, ?)
		ON CONFLICT(fit_id) DO UPDATE SET report = excluded.report
	`, report.FitID, string(data))
	if err != nil {
		return fmt.Errorf("write diagnostics: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

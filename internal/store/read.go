package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
)

// ReadSeries retrieves a series with its observations and truth.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadSeries(ctx context.Context, id string) (SeriesRecord, error) {
	rec := SeriesRecord{ID: id}
	var source, hash string
	var length int
	err := s.db.QueryRowContext(ctx, `
		SELECT name, source, length, content_hash FROM series WHERE id = ?
	`, id).Scan(&rec.Name, &source, &length, &hash)
	if err != nil {
		return SeriesRecord{}, fmt.Errorf("read series %s: %w", id, err)
	}
	rec.Source = Source(source)

	rows, err := s.db.QueryContext(ctx, `
		SELECT t, timestamp, value FROM observations
		WHERE series_id = ?
		ORDER BY t ASC
	`, id)
	if err != nil {
		return SeriesRecord{}, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	obs := make([]ir.Observation, 0, length)
	timestamps := make([]string, 0, length)
	hasTimestamps := false
	for rows.Next() {
		var t int
		var ts sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&t, &ts, &value); err != nil {
			return SeriesRecord{}, fmt.Errorf("scan observation: %w", err)
		}
		if t != len(obs) {
			return SeriesRecord{}, fmt.Errorf("series %s: observation %d out of sequence", id, t)
		}
		if value.Valid {
			obs = append(obs, ir.Observed(value.Float64))
		} else {
			obs = append(obs, ir.Absent())
		}
		timestamps = append(timestamps, ts.String)
		hasTimestamps = hasTimestamps || ts.Valid
	}
	if err := rows.Err(); err != nil {
		return SeriesRecord{}, fmt.Errorf("iterate observations: %w", err)
	}
	if len(obs) != length {
		return SeriesRecord{}, fmt.Errorf("series %s: %d observations stored, want %d", id, len(obs), length)
	}
	rec.Series = ir.NewTimeSeries(obs)
	got, err := ir.SeriesHash(rec.Series)
	if err != nil {
		return SeriesRecord{}, fmt.Errorf("read series %s: %w", id, err)
	}
	if got != hash {
		return SeriesRecord{}, fmt.Errorf("read series %s: %w", id, ErrHashMismatch)
	}
	if hasTimestamps {
		rec.Timestamps = timestamps
	}

	truth, err := s.readTruth(ctx, id)
	if err != nil {
		return SeriesRecord{}, err
	}
	rec.Truth = truth
	return rec, nil
}

func (s *Store) readTruth(ctx context.Context, seriesID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT param, value FROM truths WHERE series_id = ? ORDER BY param ASC
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query truths: %w", err)
	}
	defer rows.Close()

	truth := map[string]float64{}
	for rows.Next() {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, fmt.Errorf("scan truth: %w", err)
		}
		truth[name] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate truths: %w", err)
	}
	return truth, nil
}

// ListSeries returns every stored series ordered by ID.
// UUIDv7 IDs make that creation order.
//
// Returns an empty slice (not nil) if no series exist.
func (s *Store) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.source, s.length,
		       (SELECT COUNT(*) FROM observations o WHERE o.series_id = s.id AND o.value IS NULL)
		FROM series s
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	out := []SeriesInfo{}
	for rows.Next() {
		var info SeriesInfo
		var source string
		if err := rows.Scan(&info.ID, &info.Name, &source, &info.Length, &info.Missing); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		info.Source = Source(source)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return out, nil
}

// LatestSeriesID returns the most recently created series ID.
// Returns an error wrapping sql.ErrNoRows if the store holds no series.
func (s *Store) LatestSeriesID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM series ORDER BY id COLLATE BINARY DESC LIMIT 1
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("latest series: %w", err)
	}
	return id, nil
}

// ReadFit retrieves a fit with its layout and draws in chain and draw order.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadFit(ctx context.Context, id string) (*ir.Fit, error) {
	fit := &ir.Fit{ID: id}
	var modelJSON, modelHash string
	var chains int
	var seed int64
	var complete int
	err := s.db.QueryRowContext(ctx, `
		SELECT series_id, model, model_hash, chains, warmup, seed, complete FROM fits WHERE id = ?
	`, id).Scan(&fit.SeriesID, &modelJSON, &modelHash, &chains, &fit.Warmup, &seed, &complete)
	if err != nil {
		return nil, fmt.Errorf("read fit %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(modelJSON), &fit.Model); err != nil {
		return nil, fmt.Errorf("read fit %s: model: %w", id, err)
	}
	got, err := ir.ModelHash(fit.Model)
	if err != nil {
		return nil, fmt.Errorf("read fit %s: %w", id, err)
	}
	if got != modelHash {
		return nil, fmt.Errorf("read fit %s: model: %w", id, ErrHashMismatch)
	}
	fit.Seed = uint64(seed)
	fit.Complete = complete == 1

	layout, err := s.readLayout(ctx, id)
	if err != nil {
		return nil, err
	}
	fit.Layout = layout

	fit.Chains = make([]ir.Chain, chains)
	for c := range fit.Chains {
		fit.Chains[c] = ir.Chain{ID: c, Draws: []ir.Draw{}}
	}
	if err := s.readDraws(ctx, fit); err != nil {
		return nil, err
	}
	return fit, nil
}

func (s *Store) readLayout(ctx context.Context, fitID string) (ir.Layout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, support FROM params WHERE fit_id = ? ORDER BY idx ASC
	`, fitID)
	if err != nil {
		return ir.Layout{}, fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()

	var params []ir.Param
	for rows.Next() {
		var p ir.Param
		var support string
		if err := rows.Scan(&p.Name, &support); err != nil {
			return ir.Layout{}, fmt.Errorf("scan param: %w", err)
		}
		p.Support = ir.Support(support)
		params = append(params, p)
	}
	if err := rows.Err(); err != nil {
		return ir.Layout{}, fmt.Errorf("iterate params: %w", err)
	}
	layout, err := ir.NewLayout(params)
	if err != nil {
		return ir.Layout{}, fmt.Errorf("fit %s: %w", fitID, err)
	}
	return layout, nil
}

// readDraws fills fit.Chains from the draw tables. Values are placed by
// layout index, so the order of params within a draw does not matter.
func (s *Store) readDraws(ctx context.Context, fit *ir.Fit) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.chain, d.draw, d.divergent, d.imputed, v.param, v.value
		FROM draws d
		JOIN draw_values v ON v.fit_id = d.fit_id AND v.chain = d.chain AND v.draw = d.draw
		WHERE d.fit_id = ?
		ORDER BY d.chain ASC, d.draw ASC
	`, fit.ID)
	if err != nil {
		return fmt.Errorf("query draws: %w", err)
	}
	defer rows.Close()

	width := fit.Layout.Len()
	for rows.Next() {
		var chain, index, divergent, imputed int
		var name string
		var v float64
		if err := rows.Scan(&chain, &index, &divergent, &imputed, &name, &v); err != nil {
			return fmt.Errorf("scan draw: %w", err)
		}
		if chain < 0 || chain >= len(fit.Chains) {
			return fmt.Errorf("fit %s: draw references chain %d", fit.ID, chain)
		}
		p, ok := fit.Layout.Index(name)
		if !ok {
			return fmt.Errorf("fit %s: draw value for unknown param %q", fit.ID, name)
		}

		c := &fit.Chains[chain]
		if n := len(c.Draws); n == 0 || c.Draws[n-1].Index != index {
			if index != n {
				return fmt.Errorf("fit %s: chain %d draw %d out of sequence", fit.ID, chain, index)
			}
			c.Draws = append(c.Draws, ir.Draw{
				Index:     index,
				Values:    make([]float64, width),
				Divergent: divergent == 1,
				Imputed:   imputed,
			})
		}
		c.Draws[len(c.Draws)-1].Values[p] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate draws: %w", err)
	}
	return nil
}

// ListFits returns the fits of a series ordered by ID. An empty seriesID
// lists every fit.
//
// Returns an empty slice (not nil) if no fits exist.
func (s *Store) ListFits(ctx context.Context, seriesID string) ([]FitInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.series_id, f.model, f.chains, f.complete,
		       EXISTS (SELECT 1 FROM diagnostics d WHERE d.fit_id = f.id)
		FROM fits f
		WHERE ? = '' OR f.series_id = ?
		ORDER BY f.id COLLATE BINARY ASC
	`, seriesID, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query fits: %w", err)
	}
	defer rows.Close()

	out := []FitInfo{}
	for rows.Next() {
		var info FitInfo
		var modelJSON string
		var complete, diagnosed int
		if err := rows.Scan(&info.ID, &info.SeriesID, &modelJSON, &info.Chains, &complete, &diagnosed); err != nil {
			return nil, fmt.Errorf("scan fit: %w", err)
		}
		var decl ir.ModelDecl
		if err := json.Unmarshal([]byte(modelJSON), &decl); err != nil {
			return nil, fmt.Errorf("fit %s: model: %w", info.ID, err)
		}
		info.Model = decl.Name
		info.Complete = complete == 1
		info.Diagnosed = diagnosed == 1
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fits: %w", err)
	}
	return out, nil
}

// LatestFitID returns the most recently created fit ID.
// Returns an error wrapping sql.ErrNoRows if the store holds no fits.
func (s *Store) LatestFitID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM fits ORDER BY id COLLATE BINARY DESC LIMIT 1
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("latest fit: %w", err)
	}
	return id, nil
}

// ReadDiagnostics retrieves the convergence report of a fit.
// Returns an error wrapping sql.ErrNoRows if the fit was never diagnosed.
func (s *Store) ReadDiagnostics(ctx context.Context, fitID string) (*diagnostics.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT report FROM diagnostics WHERE fit_id = ?
	`, fitID).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("read diagnostics %s: %w", fitID, err)
	}
	var report diagnostics.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("read diagnostics %s: %w", fitID, err)
	}
	return &report, nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/store"
)

// Each stage reads its input from the store. A missing or unusable input
// is a command error (exit 2) naming the stage that has to run first.

// loadSeries reads the series with the given ID, or the latest one.
func (e *env) loadSeries(ctx context.Context, id string) (store.SeriesRecord, error) {
	if id == "" {
		latest, err := e.store.LatestSeriesID(ctx)
		if store.IsNotFound(err) {
			return store.SeriesRecord{}, NewExitError(ExitCommandError, "no series stored; run simulate or import first")
		}
		if err != nil {
			return store.SeriesRecord{}, WrapExitError(ExitCommandError, "failed to read series", err)
		}
		id = latest
	}
	rec, err := e.store.ReadSeries(ctx, id)
	if store.IsNotFound(err) {
		return rec, NewExitError(ExitCommandError, fmt.Sprintf("series %s not found; run simulate or import first", id))
	}
	if err != nil {
		return rec, WrapExitError(ExitCommandError, "failed to read series", err)
	}
	return rec, nil
}

// loadFit reads the fit with the given ID, or the latest one, and rejects
// incomplete fits.
func (e *env) loadFit(ctx context.Context, id string) (*ir.Fit, error) {
	if id == "" {
		latest, err := e.store.LatestFitID(ctx)
		if store.IsNotFound(err) {
			return nil, NewExitError(ExitCommandError, "no fit stored; run fit first")
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read fit", err)
		}
		id = latest
	}
	fit, err := e.store.ReadFit(ctx, id)
	if store.IsNotFound(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("fit %s not found; run fit first", id))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read fit", err)
	}
	if !fit.Complete {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("fit %s is incomplete; run fit again", id))
	}
	return fit, nil
}

// loadReport reads the stored diagnostics of a fit.
func (e *env) loadReport(ctx context.Context, fitID string) (*diagnostics.Report, error) {
	report, err := e.store.ReadDiagnostics(ctx, fitID)
	if store.IsNotFound(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("fit %s has no diagnostics; run diagnose first", fitID))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read diagnostics", err)
	}
	return report, nil
}

// findingStrings renders gate findings for output.
func findingStrings(findings []diagnostics.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.String()
	}
	return out
}

package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/arflow/internal/diagnostics"
	"github.com/roach88/arflow/internal/ir"
)

func TestSeriesRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestSeries(t, s, "series-1")

	got, err := s.ReadSeries(ctx, "series-1")
	require.NoError(t, err)

	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, SourceSimulated, got.Source)
	assert.Equal(t, want.Series.Observations(), got.Series.Observations())
	assert.Equal(t, []int{2}, got.Series.Missing())
	assert.Equal(t, want.Truth, got.Truth)
	assert.Nil(t, got.Timestamps)
}

func TestSeriesMissingStoredAsNull(t *testing.T) {
	s := createTestStore(t)
	createTestSeries(t, s, "series-1")

	var nulls int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM observations WHERE value IS NULL`).Scan(&nulls)
	require.NoError(t, err)
	assert.Equal(t, 1, nulls)
}

func TestSeriesTimestamps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := SeriesRecord{
		ID:         "series-ts",
		Name:       "flu",
		Source:     SourceImported,
		Series:     ir.NewTimeSeries([]ir.Observation{ir.Observed(1), ir.Absent()}),
		Timestamps: []string{"2024-01-01", "2024-01-08"},
	}
	require.NoError(t, s.WriteSeries(ctx, rec))

	got, err := s.ReadSeries(ctx, "series-ts")
	require.NoError(t, err)
	assert.Equal(t, rec.Timestamps, got.Timestamps)
	assert.Empty(t, got.Truth)

	rec.ID = "bad"
	rec.Timestamps = []string{"only-one"}
	assert.Error(t, s.WriteSeries(ctx, rec))
}

func TestReadSeriesNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadSeries(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestListSeriesAndLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	list, err := s.ListSeries(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = s.LatestSeriesID(ctx)
	assert.True(t, IsNotFound(err))

	createTestSeries(t, s, "0001")
	createTestSeries(t, s, "0002")

	list, err = s.ListSeries(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, SeriesInfo{ID: "0001", Name: "test", Source: SourceSimulated, Length: 5, Missing: 1}, list[0])

	latest, err := s.LatestSeriesID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0002", latest)
}

func TestFitRoundTripPreservesOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSeries(t, s, "series-1")
	want := createTestFit(t, "fit-1", "series-1")
	require.NoError(t, s.WriteFit(ctx, want))

	got, err := s.ReadFit(ctx, "fit-1")
	require.NoError(t, err)

	assert.Equal(t, want.SeriesID, got.SeriesID)
	assert.Equal(t, want.Model, got.Model)
	assert.Equal(t, want.Warmup, got.Warmup)
	assert.Equal(t, want.Seed, got.Seed)
	assert.True(t, got.Complete)
	assert.Equal(t, want.Layout.Params(), got.Layout.Params())
	assert.Equal(t, want.Chains, got.Chains)
}

func TestReadSeriesDetectsTampering(t *testing.T) {
	s := createTestStore(t)
	createTestSeries(t, s, "series-1")

	_, err := s.db.Exec(`UPDATE observations SET value = 9 WHERE series_id = 'series-1' AND t = 0`)
	require.NoError(t, err)

	_, err = s.ReadSeries(context.Background(), "series-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestSeriesNegativeZeroRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := SeriesRecord{
		ID:     "series-z",
		Name:   "zero",
		Source: SourceImported,
		Series: ir.NewTimeSeries([]ir.Observation{ir.Observed(math.Copysign(0, -1)), ir.Observed(2)}),
	}
	require.NoError(t, s.WriteSeries(ctx, rec))

	got, err := s.ReadSeries(ctx, "series-z")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Series.At(1).Value)
}

func TestReadFitDetectsModelTampering(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSeries(t, s, "series-1")
	require.NoError(t, s.WriteFit(ctx, createTestFit(t, "fit-1", "series-1")))

	_, err := s.db.Exec(`UPDATE fits SET model = json_set(model, '$.global_scale', 0.25) WHERE id = 'fit-1'`)
	require.NoError(t, err)

	_, err = s.ReadFit(ctx, "fit-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestFitIncompleteFlagPersists(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSeries(t, s, "series-1")
	fit := createTestFit(t, "fit-1", "series-1")
	fit.Complete = false
	fit.Chains[1].Draws = fit.Chains[1].Draws[:1]
	require.NoError(t, s.WriteFit(ctx, fit))

	got, err := s.ReadFit(ctx, "fit-1")
	require.NoError(t, err)
	assert.False(t, got.Complete)
	assert.Len(t, got.Chains[0].Draws, 3)
	assert.Len(t, got.Chains[1].Draws, 1)
}

func TestWriteFitRequiresSeries(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteFit(context.Background(), createTestFit(t, "fit-1", "no-such-series"))
	assert.Error(t, err)
}

func TestWriteFitRollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSeries(t, s, "series-1")
	fit := createTestFit(t, "fit-1", "series-1")
	fit.Chains[1].Draws[1].Values = []float64{1}
	require.Error(t, s.WriteFit(ctx, fit))

	_, err := s.ReadFit(ctx, "fit-1")
	assert.True(t, IsNotFound(err), "partial fit must not be visible")
}

func TestListFitsAndLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSeries(t, s, "series-1")
	createTestSeries(t, s, "series-2")
	require.NoError(t, s.WriteFit(ctx, createTestFit(t, "fit-a", "series-1")))
	require.NoError(t, s.WriteFit(ctx, createTestFit(t, "fit-b", "series-2")))

	all, err := s.ListFits(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := s.ListFits(ctx, "series-2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, FitInfo{ID: "fit-b", SeriesID: "series-2", Model: "ar", Chains: 2, Complete: true}, one[0])

	latest, err := s.LatestFitID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fit-b", latest)
}

func TestDiagnosticsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSeries(t, s, "series-1")
	require.NoError(t, s.WriteFit(ctx, createTestFit(t, "fit-1", "series-1")))

	_, err := s.ReadDiagnostics(ctx, "fit-1")
	assert.True(t, IsNotFound(err))

	report := &diagnostics.Report{
		FitID:            "fit-1",
		Chains:           2,
		TotalDraws:       6,
		Params:           []diagnostics.ParamSummary{{Name: "alpha", Mean: 1, SD: 0.5, Rhat: math.Inf(1), ESS: 6}},
		Divergences:      1,
		ChainDivergences: []int{0, 1},
	}
	require.NoError(t, s.WriteDiagnostics(ctx, report))
	report.Divergences = 2
	require.NoError(t, s.WriteDiagnostics(ctx, report), "rewriting replaces the report")

	got, err := s.ReadDiagnostics(ctx, "fit-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Divergences)
	assert.True(t, math.IsNaN(got.Params[0].Rhat), "non-finite statistics are stored as null")
	assert.Equal(t, 6.0, got.Params[0].ESS)

	fits, err := s.ListFits(ctx, "series-1")
	require.NoError(t, err)
	assert.True(t, fits[0].Diagnosed)
}

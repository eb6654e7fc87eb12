package store

import "github.com/roach88/arflow/internal/ir"

// Source records where a series came from.
type Source string

const (
	SourceSimulated Source = "simulated"
	SourceImported  Source = "imported"
)

// SeriesRecord is a persisted series.
type SeriesRecord struct {
	ID     string
	Name   string
	Source Source
	Series ir.TimeSeries

	// Timestamps are the source labels of each index, if any.
	Timestamps []string

	// Truth holds the known parameter values of a simulated series,
	// including y[t] for masked positions. Empty for imported series.
	Truth map[string]float64
}

// SeriesInfo is the listing view of a series.
type SeriesInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Source  Source `json:"source"`
	Length  int    `json:"length"`
	Missing int    `json:"missing"`
}

// FitInfo is the listing view of a fit.
type FitInfo struct {
	ID        string `json:"id"`
	SeriesID  string `json:"series_id"`
	Model     string `json:"model"`
	Chains    int    `json:"chains"`
	Complete  bool   `json:"complete"`
	Diagnosed bool   `json:"diagnosed"`
}

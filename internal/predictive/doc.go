// Package predictive turns a fit into statements about the series: the
// per-draw reconstruction of the full series, per-index quantile summaries,
// parameter-recovery checks against simulation truth and forecasts beyond
// the observed range.
//
// Every function reads the fit and never mutates it. An incomplete fit is
// rejected with *sampler.IncompleteFitError. A fit that failed convergence
// checks is still usable; Flag marks the summary unreliable instead.
package predictive

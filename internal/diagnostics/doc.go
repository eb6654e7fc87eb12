// Package diagnostics assesses whether a multi-chain fit converged.
//
// For each parameter it reports the split R-hat, the effective sample size
// and the pooled mean and standard deviation, plus divergence counts per
// chain. Both statistics work on split chains: each chain is cut into two
// halves so within-chain drift shows up as between-chain disagreement.
//
// Convergence problems are data, not errors. Diagnose fails only when the
// fit cannot be assessed at all (fewer than two chains, an incomplete fit,
// chains too short to split). Report.Check compares a report with a Gate and
// returns the failed conditions as Findings.
package diagnostics

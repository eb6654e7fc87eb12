// Package store provides SQLite-backed persistence for arflow pipeline
// stages.
//
// Each CLI stage reads the validated output of the previous stage from the
// store and writes its own:
//   - Series: observations (NULL value for a missing observation) plus the
//     simulation truth when the series was simulated
//   - Fits: model declaration, parameter layout and the ordered draw table
//     (fit, chain, draw, param) -> value with per-draw divergence flags
//   - Diagnostics: the convergence report of a fit
//
// Draws are stored so diagnostics and forecasts can be reproduced without
// re-running the sampler. Reads return chains and draws in their original
// order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Lookups of a missing row return an error wrapping sql.ErrNoRows; use
// IsNotFound to test for it.
package store

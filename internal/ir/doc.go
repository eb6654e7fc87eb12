// Package ir provides the core data model shared by every arflow stage.
//
// This package contains type definitions and small pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps ir the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Missingness is an explicit tag on Observation, never an in-band value
//   - TimeSeries length is fixed at construction and the series is immutable
//   - Draws, Chains and Fits are read-only once a sampler has produced them
//   - All JSON tags use snake_case
package ir

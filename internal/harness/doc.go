// Package harness runs parameter-recovery studies for the AR(P) workflow.
//
// A study repeatedly simulates a series from known parameters, fits it,
// diagnoses the fit, and checks whether each known value falls inside its
// central posterior interval. Coverage is aggregated over trials and
// checked against the study's assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: sparse_ar6
//	description: "Horseshoe shrinks the zero lags of an AR(6)"
//	model:
//	  lags: 6
//	truth:
//	  alpha: 0
//	  beta: [0.3, 0, 0, 0, 0, 0.6]
//	  sigma: 1
//	length: 500
//	missing_fraction: 0.05
//	trials: 50
//	seed: 1
//	width: 0.5
//	sampler:
//	  chains: 4
//	  warmup: 1000
//	  draws: 1000
//	assertions:
//	  - type: min_coverage
//	    param: beta[1]
//	    min: 0.3
//	  - type: max_abs_median
//	    param: beta[3]
//	    max: 0.1
//
// Trial k uses seed+k for both simulation and sampling, so a study is
// reproducible for a deterministic backend.
//
// # Golden Files
//
// RunWithGolden compares the aggregated result against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness

// Package sampler is the adapter between a model and an external Markov-chain
// sampling capability.
//
// The capability is consumed through two small interfaces:
//   - Target is the model-description contract: declared parameters with
//     their supports, a log-prior evaluator, a log-likelihood evaluator over
//     the reconstructed series, and an initial-state generator.
//   - Backend runs one chain for a Target and returns its ordered draws with
//     a divergence flag per draw.
//
// The adapter owns chain dispatch. Chains are independent units of work that
// share only the read-only Target; they run concurrently on at most Workers
// goroutines. Within a chain draws are strictly sequential. Fit blocks until
// every chain completes or one fails; it never streams partial results and
// never retries a failed chain.
//
// # Cancellation
//
// Cancelling the context stops in-flight chains early. Fit then returns the
// draws collected so far in a Fit whose Complete field is false, together with
// an IncompleteFitError. Callers must not diagnose or forecast from it.
package sampler

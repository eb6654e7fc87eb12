package sampler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/arflow/internal/ir"
	"github.com/roach88/arflow/internal/metrics"
	"github.com/roach88/arflow/internal/model"
)

// Request configures one fit.
type Request struct {
	Chains int
	Draws  int
	Warmup int
	Seed   uint64

	// Workers bounds the number of chains in flight. It is passed
	// explicitly from configuration; there is no implicit default.
	Workers int
}

// Validate checks that the request is runnable.
func (r Request) Validate() error {
	switch {
	case r.Chains < 1:
		return fmt.Errorf("chains must be at least 1, got %d", r.Chains)
	case r.Draws < 1:
		return fmt.Errorf("draws must be at least 1, got %d", r.Draws)
	case r.Warmup < 0:
		return fmt.Errorf("warmup must not be negative, got %d", r.Warmup)
	case r.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", r.Workers)
	}
	return nil
}

// Sampler runs chains on a Backend and assembles them into a Fit.
//
// Thread-safety: a Sampler holds no per-fit state; Fit may be called from
// multiple goroutines.
type Sampler struct {
	backend Backend
	logger  zerolog.Logger
	metrics *metrics.Sampler
	ids     ir.IDGenerator
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger used for per-chain events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sampler) {
		s.logger = logger
	}
}

// WithMetrics sets the collectors updated per chain.
func WithMetrics(m *metrics.Sampler) Option {
	return func(s *Sampler) {
		s.metrics = m
	}
}

// WithIDGenerator sets the fit ID source.
// Default: UUIDv7Generator. Tests use ir.NewFixedGenerator.
func WithIDGenerator(ids ir.IDGenerator) Option {
	return func(s *Sampler) {
		s.ids = ids
	}
}

// New creates a Sampler that dispatches chains to backend.
func New(backend Backend, opts ...Option) *Sampler {
	s := &Sampler{
		backend: backend,
		logger:  zerolog.Nop(),
		ids:     ir.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit samples the posterior of spec.
//
// Every chain gets the same model and settings and its own random stream
// derived from (req.Seed, chain). At most req.Workers chains run at once.
//
// Returns:
//   - a complete Fit when every chain finished
//   - a partial Fit (Complete=false) and *IncompleteFitError when ctx was
//     cancelled; the partial fit holds the draws collected so far
//   - nil and *SamplerFailureError when any chain failed; the remaining
//     chains are cancelled and nothing is retried
func (s *Sampler) Fit(ctx context.Context, spec *model.Spec, seriesID string, req Request) (*ir.Fit, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampler request: %w", err)
	}

	fit := &ir.Fit{
		ID:       s.ids.Generate(),
		SeriesID: seriesID,
		Model:    spec.Decl(),
		Layout:   spec.Layout(),
		Chains:   make([]ir.Chain, req.Chains),
		Warmup:   req.Warmup,
		Seed:     req.Seed,
	}
	logger := s.logger.With().Str("fit_id", fit.ID).Logger()
	logger.Info().
		Int("chains", req.Chains).
		Int("draws", req.Draws).
		Int("warmup", req.Warmup).
		Int("workers", req.Workers).
		Int("params", fit.Layout.Len()).
		Msg("fit started")

	imputed := len(spec.MissingPositions())
	width := fit.Layout.Len()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Workers)
	for c := 0; c < req.Chains; c++ {
		chain := c
		g.Go(func() error {
			// Each goroutine writes only its own slot.
			draws, err := s.runChain(gctx, logger, spec, ChainRequest{
				Chain:  chain,
				Seed:   req.Seed,
				Warmup: req.Warmup,
				Draws:  req.Draws,
			}, width, imputed)
			fit.Chains[chain] = ir.Chain{ID: chain, Draws: draws}
			return err
		})
	}
	err := g.Wait()

	switch {
	case err == nil:
		fit.Complete = true
		logger.Info().Int("total_draws", fit.TotalDraws()).Msg("fit complete")
		return fit, nil

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		counts := make([]int, len(fit.Chains))
		for i, c := range fit.Chains {
			counts[i] = len(c.Draws)
		}
		s.metrics.ObserveCancellation()
		logger.Warn().Ints("draws_per_chain", counts).Msg("fit cancelled")
		return fit, &IncompleteFitError{FitID: fit.ID, Draws: counts, Err: ctx.Err()}

	default:
		return nil, err
	}
}

// runChain runs one chain and checks the backend honoured the request.
func (s *Sampler) runChain(ctx context.Context, logger zerolog.Logger, target Target, req ChainRequest, width, imputed int) (draws []ir.Draw, err error) {
	logger = logger.With().Int("chain", req.Chain).Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("backend panicked")
			err = &SamplerFailureError{Chain: req.Chain, Err: fmt.Errorf("%w: backend panic: %v", ErrNumericalFailure, r)}
		}
		if err != nil && !isCancellation(ctx, err) {
			s.metrics.ObserveFailure()
		}
	}()

	logger.Debug().Uint64("seed", req.Seed).Msg("chain started")
	res, err := s.backend.SampleChain(ctx, target, req)
	draws = res.Draws

	if cerr := checkDraws(draws, width); cerr != nil {
		logger.Error().Err(cerr).Msg("backend returned malformed draws")
		return nil, &SamplerFailureError{Chain: req.Chain, Err: cerr}
	}
	for i := range draws {
		draws[i].Imputed = imputed
	}

	if err != nil {
		if isCancellation(ctx, err) {
			logger.Debug().Int("draws", len(draws)).Msg("chain stopped early")
			return draws, ctx.Err()
		}
		logger.Error().Err(err).Int("draws", len(draws)).Msg("chain failed")
		return nil, &SamplerFailureError{Chain: req.Chain, Err: err}
	}
	if len(draws) != req.Draws {
		err := fmt.Errorf("backend returned %d draws, want %d", len(draws), req.Draws)
		logger.Error().Err(err).Msg("chain failed")
		return nil, &SamplerFailureError{Chain: req.Chain, Err: err}
	}

	divergences := ir.Chain{Draws: draws}.Divergences()
	elapsed := time.Since(start)
	s.metrics.ObserveChain(req.Chain, len(draws), divergences, elapsed)
	logger.Info().
		Int("draws", len(draws)).
		Int("divergences", divergences).
		Dur("elapsed", elapsed).
		Msg("chain complete")
	return draws, nil
}

// isCancellation reports whether err stems from ctx being done.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func checkDraws(draws []ir.Draw, width int) error {
	for i, d := range draws {
		if len(d.Values) != width {
			return fmt.Errorf("draw %d has %d values, want %d", i, len(d.Values), width)
		}
		if d.Index != i {
			return fmt.Errorf("draw %d has index %d", i, d.Index)
		}
	}
	return nil
}

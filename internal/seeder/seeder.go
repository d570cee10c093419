package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"titlecache/internal/cache"
	"titlecache/internal/config"
	"titlecache/internal/datasets"
	"titlecache/internal/logging"
	"titlecache/internal/services"
	"titlecache/internal/worker"
)

// ErrLocked is returned when another seeder holds the lock.
var ErrLocked = errors.New("another seeder is already running")

// Adder refreshes ids in the cache.
type Adder interface {
	Add(ctx context.Context, ids ...string) (cache.AddResult, error)
}

// DatasetSource keeps the dataset files current.
type DatasetSource interface {
	Ensure(ctx context.Context, files ...string) ([]bool, error)
	Dir() string
}

// Cycle summarizes one pass over the candidates.
type Cycle struct {
	RunID      string
	Reloaded   bool
	Candidates int
	Chunks     int
	Stored     int
	Fresh      int
	Failed     int
	Elapsed    time.Duration
}

// Seeder periodically refreshes every dataset candidate.
type Seeder struct {
	adder         Adder
	datasets      DatasetSource
	titleTypes    []string
	batchSize     int
	interval      time.Duration
	progressEvery int
	lockPath      string
	logger        *slog.Logger
	sleep         func(context.Context, time.Duration) error
	candidates    func(context.Context, string, []string) ([]string, error)
	now           func() time.Time

	ids []string
}

// Option configures optional Seeder behavior.
type Option func(*Seeder)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Seeder) { s.logger = logger }
}

// WithSleeper replaces the wait between cycles.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Seeder) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New builds a Seeder that feeds adder from the files kept by ds.
func New(cfg *config.Config, adder Adder, ds DatasetSource, opts ...Option) (*Seeder, error) {
	if cfg == nil || adder == nil || ds == nil {
		return nil, services.Wrap(services.ErrConfiguration, "seeder", "new", "config, cache and datasets are required", nil)
	}
	s := &Seeder{
		adder:         adder,
		datasets:      ds,
		titleTypes:    cfg.Datasets.TitleTypes,
		batchSize:     cfg.Remote.BatchSize,
		interval:      cfg.SeederInterval(),
		progressEvery: cfg.Seeder.ProgressEvery,
		lockPath:      cfg.SeederLockPath(),
		sleep:         worker.Sleep,
		candidates:    datasets.CandidateIDs,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	s.logger = logging.NewComponentLogger(s.logger, "seeder")
	return s, nil
}

// Run cycles until ctx is cancelled. Cancellation is a clean stop and
// returns nil.
func (s *Seeder) Run(ctx context.Context) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	s.logger.Info("seeder started",
		logging.String(logging.FieldEventType, "seeder_started"),
		logging.Duration("interval", s.interval),
		logging.String("lock", s.lockPath),
	)
	for {
		if _, err := s.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			logging.WarnWithContext(s.logger, "seed cycle failed", "seed_cycle_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check dataset downloads and remote availability"),
				logging.String(logging.FieldImpact, "retrying after the seeder interval"),
			)
		}
		if err := s.sleep(ctx, s.interval); err != nil {
			break
		}
	}
	s.logger.Info("seeder stopped", logging.String(logging.FieldEventType, "seeder_stopped"))
	return nil
}

// RunOnce takes the lock and runs a single cycle.
func (s *Seeder) RunOnce(ctx context.Context) (Cycle, error) {
	release, err := s.acquire()
	if err != nil {
		return Cycle{}, err
	}
	defer release()
	return s.cycle(ctx)
}

func (s *Seeder) acquire() (func(), error) {
	lock := flock.New(s.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire seeder lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, s.lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release seeder lock", logging.Error(err))
		}
	}, nil
}

func (s *Seeder) cycle(ctx context.Context) (Cycle, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, s.logger)
	start := s.now()
	result := Cycle{RunID: runID}

	downloaded, err := s.datasets.Ensure(ctx, datasets.TitleBasics, datasets.TitleRatings)
	if err != nil {
		if s.ids == nil || ctx.Err() != nil {
			return result, err
		}
		logging.WarnWithContext(logger, "dataset refresh failed", "dataset_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "seeding with the previously loaded candidates"),
		)
	}
	if s.ids == nil || anyTrue(downloaded) {
		ids, err := s.candidates(ctx, s.datasets.Dir(), s.titleTypes)
		if err != nil {
			return result, fmt.Errorf("load candidates: %w", err)
		}
		s.ids = ids
		result.Reloaded = true
		logger.Info("candidates loaded",
			logging.String(logging.FieldEventType, "seed_candidates_loaded"),
			logging.Int("candidates", len(ids)),
		)
	}
	result.Candidates = len(s.ids)

	chunks, err := cache.Chunk(s.ids, s.batchSize)
	if err != nil {
		return result, err
	}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		added, err := s.adder.Add(ctx, chunk...)
		result.Chunks++
		result.Stored += added.Stored
		result.Fresh += added.Fresh
		result.Failed += len(added.Failures)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failed++
			logging.WarnWithContext(logger, "seed chunk failed", "seed_chunk_failed",
				logging.Strings("ids", chunk),
				logging.Error(err),
				logging.String(logging.FieldImpact, "chunk skipped until the next cycle"),
			)
		}
		if s.progressEvery > 0 && (i+1)%s.progressEvery == 0 {
			logger.Info("seed progress",
				logging.String(logging.FieldEventType, "seed_progress"),
				logging.Int("chunks_done", i+1),
				logging.Int("chunks_total", len(chunks)),
				logging.Int("stored", result.Stored),
			)
		}
	}

	result.Elapsed = s.now().Sub(start)
	logger.Info("seed cycle complete",
		logging.String(logging.FieldEventType, "seed_cycle_complete"),
		logging.Int("candidates", result.Candidates),
		logging.Int("stored", result.Stored),
		logging.Int("fresh", result.Fresh),
		logging.Int("failed", result.Failed),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

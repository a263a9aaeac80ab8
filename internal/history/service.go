package history

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Lkhag/procsync/internal/log"
	"github.com/Lkhag/procsync/internal/pool"
)

const (
	cacheTTL      = 5 * time.Minute
	cacheSweep    = 10 * time.Minute
	defaultRecent = 20
)

// Service is the read-through layer over the run repository. Single
// runs are immutable once recorded, so cache hits never go stale.
type Service struct {
	repo  *RunRepository
	cache *gocache.Cache
}

// NewService wraps repo with an in-memory cache.
func NewService(repo *RunRepository) *Service {
	return &Service{
		repo:  repo,
		cache: gocache.New(cacheTTL, cacheSweep),
	}
}

// Ensure Service can stand in for the repository as the controller's
// recorder.
var _ pool.Recorder = (*Service)(nil)

// RecordRun persists the run and primes the cache.
func (s *Service) RecordRun(run pool.RunResult) error {
	if err := s.repo.RecordRun(run); err != nil {
		return err
	}
	s.cache.Set(run.RunID, run, gocache.DefaultExpiration)
	log.Debug(log.CatDB, "Run recorded", "run_id", run.RunID, "outcome", run.Outcome)
	return nil
}

// GetRun returns one run, serving from cache when possible.
func (s *Service) GetRun(guid string) (pool.RunResult, error) {
	if cached, found := s.cache.Get(guid); found {
		if run, ok := cached.(pool.RunResult); ok {
			return run, nil
		}
	}

	run, err := s.repo.FindByGUID(guid)
	if err != nil {
		return pool.RunResult{}, err
	}
	s.cache.Set(guid, run, gocache.DefaultExpiration)
	return run, nil
}

// ListRecent returns the newest runs. The list changes as runs finish,
// so it is never cached.
func (s *Service) ListRecent(limit int) ([]pool.RunResult, error) {
	if limit <= 0 {
		limit = defaultRecent
	}
	return s.repo.ListRecent(limit)
}

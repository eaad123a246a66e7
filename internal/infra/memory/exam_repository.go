package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"exam-reward-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ExamLoader fetches exam definitions from a backing store (Postgres, the in-memory Store).
type ExamLoader interface {
	LoadExam(ctx context.Context, examID string) (domain.ExamDefinition, error)
}

// ExamRepository caches exam definitions with TTL to avoid repeated DB hits.
type ExamRepository struct {
	loader ExamLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedExam
}

type cachedExam struct {
	exam      domain.ExamDefinition
	expiresAt time.Time
}

func NewExamRepository(loader ExamLoader, ttl time.Duration) *ExamRepository {
	return &ExamRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedExam),
	}
}

func (r *ExamRepository) GetExam(ctx context.Context, examID string) (domain.ExamDefinition, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[examID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.exam, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(examID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[examID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.exam, nil
		}
		r.mu.RUnlock()

		exam, err := r.loader.LoadExam(ctx, examID)
		if err != nil {
			return domain.ExamDefinition{}, err
		}

		r.mu.Lock()
		r.cache[examID] = cachedExam{
			exam:      exam,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return exam, nil
	})
	if err != nil {
		return domain.ExamDefinition{}, err
	}
	return result.(domain.ExamDefinition), nil
}

// Invalidate drops a cached definition after an edit.
func (r *ExamRepository) Invalidate(_ context.Context, examID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, examID)
	return nil
}

func (r *ExamRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"exam-reward-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ExamLoader fetches exam definitions from the system of record.
type ExamLoader interface {
	LoadExam(ctx context.Context, examID string) (domain.ExamDefinition, error)
}

// ExamRepository caches exam definitions in Redis as JSON (exam:{examID}) and falls
// back to the loader on a miss. Concurrent misses for one exam share a single load.
type ExamRepository struct {
	client *redis.Client
	loader ExamLoader
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewExamRepository(client *redis.Client, loader ExamLoader, ttl time.Duration, log *zap.Logger) *ExamRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExamRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ExamRepository) GetExam(ctx context.Context, examID string) (domain.ExamDefinition, error) {
	if exam, ok := r.cached(ctx, examID); ok {
		return exam, nil
	}

	result, err, _ := r.sf.Do(examID, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if exam, ok := r.cached(ctx, examID); ok {
			return exam, nil
		}
		exam, err := r.loader.LoadExam(ctx, examID)
		if err != nil {
			return domain.ExamDefinition{}, err
		}
		raw, err := json.Marshal(exam)
		if err == nil {
			err = r.client.Set(ctx, r.key(examID), raw, r.ttlWithJitter()).Err()
		}
		if err != nil {
			r.log.Warn("exam cache fill failed", zap.String("examId", examID), zap.Error(err))
		}
		return exam, nil
	})
	if err != nil {
		return domain.ExamDefinition{}, err
	}
	return result.(domain.ExamDefinition), nil
}

// Invalidate drops a cached definition after an edit.
func (r *ExamRepository) Invalidate(ctx context.Context, examID string) error {
	return r.client.Del(ctx, r.key(examID)).Err()
}

func (r *ExamRepository) cached(ctx context.Context, examID string) (domain.ExamDefinition, bool) {
	raw, err := r.client.Get(ctx, r.key(examID)).Bytes()
	if err != nil {
		return domain.ExamDefinition{}, false
	}
	var exam domain.ExamDefinition
	if err := json.Unmarshal(raw, &exam); err != nil {
		r.log.Warn("corrupt exam cache entry", zap.String("examId", examID), zap.Error(err))
		return domain.ExamDefinition{}, false
	}
	return exam, true
}

func (r *ExamRepository) key(examID string) string {
	return "exam:" + examID
}

func (r *ExamRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exam-reward-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestExamRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{exam: sampleExam()}
	repo := NewExamRepository(newClient(mr), loader, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetExam(context.Background(), "exam-1"); err != nil {
				t.Errorf("get exam: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := loader.calls.Load(); got != 1 {
		t.Fatalf("expected loader called once, got %d", got)
	}
	if !mr.Exists("exam:exam-1") {
		t.Fatalf("expected cached exam")
	}
	if ttl := mr.TTL("exam:exam-1"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("ttl out of jitter range: %s", ttl)
	}

	exam, err := repo.GetExam(context.Background(), "exam-1")
	if err != nil {
		t.Fatalf("get exam: %v", err)
	}
	if exam.Questions[1].CorrectIndex != 1 || exam.Difficulty != domain.DifficultyMedium {
		t.Fatalf("cached exam lost fields: %+v", exam)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", got)
	}

	if err := repo.Invalidate(context.Background(), "exam-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetExam(context.Background(), "exam-1")
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", got)
	}
}

func TestExamRepositoryMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewExamRepository(newClient(mr), &countingLoader{exam: sampleExam()}, time.Minute, nil)
	if _, err := repo.GetExam(context.Background(), "nope"); err != domain.ErrExamNotFound {
		t.Fatalf("expected ErrExamNotFound, got %v", err)
	}
	if mr.Exists("exam:nope") {
		t.Fatalf("misses must not be cached")
	}
}

type countingLoader struct {
	exam  domain.ExamDefinition
	calls atomic.Int32
}

func (l *countingLoader) LoadExam(_ context.Context, examID string) (domain.ExamDefinition, error) {
	l.calls.Add(1)
	if examID != l.exam.ID {
		return domain.ExamDefinition{}, domain.ErrExamNotFound
	}
	time.Sleep(10 * time.Millisecond)
	return l.exam, nil
}

func sampleExam() domain.ExamDefinition {
	return domain.ExamDefinition{
		ID:               "exam-1",
		Title:            "Arithmetic",
		CreatorID:        "teacher-1",
		Price:            50,
		Difficulty:       domain.DifficultyMedium,
		TimeLimitMinutes: 10,
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1},
			{Prompt: "What is 3 + 3?", Options: []string{"5", "6"}, CorrectIndex: 1},
		},
	}
}

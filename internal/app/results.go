package app

import (
	"context"
	"fmt"

	"exam-reward-service/internal/domain"
	"go.uber.org/zap"
)

// ResultStore upserts the single result of a (student, exam) pair. The first
// completion is the only path that credits reward points; retakes overwrite the
// attempt data and keep the reward of the first completion.
type ResultStore struct {
	deps Deps
}

func NewResultStore(d Deps) *ResultStore {
	return &ResultStore{deps: d.withDefaults()}
}

// Upsert stores r and reports whether it was the first completion. Insert, reward
// credit and balance write happen in one transaction, so concurrent first
// submissions for the same key serialize and only one of them credits.
func (s *ResultStore) Upsert(ctx context.Context, r domain.AttemptResult) (domain.AttemptResult, bool, error) {
	var (
		stored domain.AttemptResult
		first  bool
	)
	err := s.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		inserted, err := tx.InsertResult(ctx, r)
		if err != nil {
			return err
		}
		if inserted {
			account, err := tx.GetAccount(ctx, r.StudentID)
			if err != nil {
				return err
			}
			if err := creditAccount(&account, r.RewardPoints); err != nil {
				return err
			}
			if err := tx.SaveAccount(ctx, account); err != nil {
				return err
			}
			stored, first = r, true
			return nil
		}

		prev, err := tx.GetResult(ctx, domain.ResultKey{StudentID: r.StudentID, ExamID: r.ExamID})
		if err != nil {
			return err
		}
		prev.Score = r.Score
		prev.TotalQuestions = r.TotalQuestions
		prev.Answers = r.Answers
		prev.CompletedAt = r.CompletedAt
		if err := tx.UpdateResult(ctx, prev); err != nil {
			return err
		}
		stored = prev
		return nil
	})
	if err != nil {
		return domain.AttemptResult{}, false, fmt.Errorf("upsert result %s/%s: %w", r.StudentID, r.ExamID, err)
	}

	if first {
		s.deps.Metrics.RewardCredited(stored.RewardPoints)
		s.deps.notify(ctx, stored.StudentID, "Exam completed",
			fmt.Sprintf("You scored %d/%d and earned %d points.", stored.Score, stored.TotalQuestions, stored.RewardPoints),
			domain.NotifyExamCompleted, "/exams/"+stored.ExamID+"/result")
	}
	s.deps.Logger.Info("result stored",
		zap.String("studentId", stored.StudentID),
		zap.String("examId", stored.ExamID),
		zap.Int("score", stored.Score),
		zap.Bool("firstCompletion", first),
		zap.Int("rewardPoints", stored.RewardPoints),
	)
	return stored, first, nil
}

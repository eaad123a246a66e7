package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"exam-reward-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ExamLoader loads exam definitions from Postgres; questions live in a JSONB column.
type ExamLoader struct {
	pool *pgxpool.Pool
}

func NewExamLoader(pool *pgxpool.Pool) *ExamLoader {
	return &ExamLoader{pool: pool}
}

func (l *ExamLoader) LoadExam(ctx context.Context, examID string) (domain.ExamDefinition, error) {
	var (
		exam domain.ExamDefinition
		raw  []byte
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, creator_id, price, difficulty, time_limit_minutes, questions, sales
		FROM exams WHERE id = $1`, examID).
		Scan(&exam.ID, &exam.Title, &exam.CreatorID, &exam.Price, &exam.Difficulty, &exam.TimeLimitMinutes, &raw, &exam.Sales)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ExamDefinition{}, domain.ErrExamNotFound
	}
	if err != nil {
		return domain.ExamDefinition{}, fmt.Errorf("load exam: %w", err)
	}
	if err := json.Unmarshal(raw, &exam.Questions); err != nil {
		return domain.ExamDefinition{}, fmt.Errorf("unmarshal exam questions: %w", err)
	}
	return exam, nil
}

// SaveExam inserts or replaces an exam definition. The sales counter is preserved.
func (l *ExamLoader) SaveExam(ctx context.Context, exam domain.ExamDefinition) error {
	raw, err := json.Marshal(exam.Questions)
	if err != nil {
		return fmt.Errorf("marshal exam questions: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO exams (id, title, creator_id, price, difficulty, time_limit_minutes, questions, sales)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			creator_id = EXCLUDED.creator_id,
			price = EXCLUDED.price,
			difficulty = EXCLUDED.difficulty,
			time_limit_minutes = EXCLUDED.time_limit_minutes,
			questions = EXCLUDED.questions`,
		exam.ID, exam.Title, exam.CreatorID, exam.Price, string(exam.Difficulty), exam.TimeLimitMinutes, string(raw), exam.Sales)
	if err != nil {
		return fmt.Errorf("save exam: %w", err)
	}
	return nil
}

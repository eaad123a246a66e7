package cli

import (
	"time"

	"exam-reward-service/internal/domain"
	"exam-reward-service/internal/infra/memory"
)

// seedSampleData fills the in-memory store so the service is usable without Postgres.
func seedSampleData(store *memory.Store) {
	store.PutAccount(domain.Account{ID: "teacher-1", Name: "Ms. Rivera", Role: domain.RoleInstructor})
	store.PutAccount(domain.Account{ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin})
	store.PutAccount(domain.Account{ID: "student-1", Name: "Ana", Role: domain.RoleLearner, Grade: "7", Points: 100})
	store.PutAccount(domain.Account{ID: "student-2", Name: "Ben", Role: domain.RoleLearner, Grade: "7", Points: 100})

	store.PutExam(domain.ExamDefinition{
		ID:               "exam-1",
		Title:            "Fractions basics",
		CreatorID:        "teacher-1",
		Difficulty:       domain.DifficultyEasy,
		TimeLimitMinutes: 10,
		Questions: []domain.Question{
			{Prompt: "1/2 + 1/4 = ?", Options: []string{"3/4", "2/6", "1/8"}, CorrectIndex: 0},
			{Prompt: "Which is larger?", Options: []string{"2/3", "3/5"}, CorrectIndex: 0},
		},
	})
	store.PutExam(domain.ExamDefinition{
		ID:               "exam-2",
		Title:            "Linear equations",
		CreatorID:        "teacher-1",
		Price:            40,
		Difficulty:       domain.DifficultyMedium,
		TimeLimitMinutes: 15,
		Questions: []domain.Question{
			{Prompt: "2x + 3 = 7, x = ?", Options: []string{"1", "2", "3"}, CorrectIndex: 1},
			{Prompt: "x - 5 = -2, x = ?", Options: []string{"3", "-3", "7"}, CorrectIndex: 0},
			{Prompt: "3x = 12, x = ?", Options: []string{"3", "4", "36"}, CorrectIndex: 1},
		},
	})
	store.PutContest(domain.PrizeContest{
		ID:       "contest-" + time.Now().UTC().Format("2006-01"),
		ExamID:   "exam-2",
		Grade:    "7",
		EntryFee: 10,
		Month:    time.Now().UTC().Format("2006-01"),
		Active:   true,
	})
}

package app

import (
	"math"

	"exam-reward-service/internal/domain"
)

// pointsPerCorrect is the base reward of one correct answer before the difficulty multiplier.
const pointsPerCorrect = 10

// Score is the outcome of grading one submission.
type Score struct {
	Correct      int `json:"score"`
	Total        int `json:"totalQuestions"`
	RewardPoints int `json:"rewardPoints"`
}

// ScoreAnswers grades answers against exam. Blank (-1) and out-of-range entries never match.
func ScoreAnswers(exam domain.ExamDefinition, answers []int) Score {
	correct := 0
	for i, q := range exam.Questions {
		if i >= len(answers) {
			break
		}
		if answers[i] != domain.BlankAnswer && answers[i] == q.CorrectIndex {
			correct++
		}
	}
	return Score{
		Correct:      correct,
		Total:        len(exam.Questions),
		RewardPoints: RewardPoints(correct, exam.Difficulty),
	}
}

// RewardPoints is round(score * 10 * multiplier).
func RewardPoints(score int, difficulty domain.Difficulty) int {
	return int(math.Round(float64(score) * pointsPerCorrect * difficulty.Multiplier()))
}

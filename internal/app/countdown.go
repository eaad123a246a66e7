package app

import (
	"time"

	"exam-reward-service/internal/domain"
)

// Remaining is the whole seconds left in the attempt, recomputed from the session
// start time on every call so reloads never reset it. It never goes below zero.
func Remaining(session domain.AttemptSession, exam domain.ExamDefinition, now time.Time) int64 {
	left := int64(exam.TimeLimitMinutes)*60 - elapsedSeconds(session.StartedAt, now)
	if left < 0 {
		return 0
	}
	return left
}

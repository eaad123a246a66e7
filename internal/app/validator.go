package app

import (
	"fmt"
	"time"

	"exam-reward-service/internal/domain"
)

// Rules are the timing rules enforced against the server-side session clock.
type Rules struct {
	// MinElapsed rejects scripted instant submissions on multi-question exams.
	MinElapsed time.Duration
	// Grace is how long after the deadline a submission is still accepted.
	Grace time.Duration
}

// DefaultRules mirrors the stock configuration.
func DefaultRules() Rules {
	return Rules{MinElapsed: 10 * time.Second, Grace: 30 * time.Second}
}

// Validate checks a finish request. Checks short-circuit in order: session ownership,
// completion state, answer shape, minimum elapsed time.
func (r Rules) Validate(callerID string, session *domain.AttemptSession, exam domain.ExamDefinition, answers []int, now time.Time) error {
	if session == nil || session.StudentID != callerID {
		return domain.ErrInvalidSession
	}
	if session.Status == domain.SessionCompleted {
		return domain.ErrAlreadyCompleted
	}
	if err := checkAnswers(exam, answers); err != nil {
		return err
	}
	if len(exam.Questions) > 1 && elapsedSeconds(session.StartedAt, now) < int64(r.MinElapsed/time.Second) {
		return domain.ErrSubmittedTooFast
	}
	return nil
}

// CheckDeadline rejects requests arriving after deadline + grace.
func (r Rules) CheckDeadline(session domain.AttemptSession, now time.Time) error {
	if now.After(session.Deadline.Add(r.Grace)) {
		return domain.ErrDeadlineExceeded
	}
	return nil
}

func checkAnswers(exam domain.ExamDefinition, answers []int) error {
	if len(answers) != len(exam.Questions) {
		return fmt.Errorf("%w: got %d answers for %d questions", domain.ErrMalformedSubmission, len(answers), len(exam.Questions))
	}
	for i, a := range answers {
		if a == domain.BlankAnswer {
			continue
		}
		if a < 0 || a >= len(exam.Questions[i].Options) {
			return fmt.Errorf("%w: answer %d out of range for question %d", domain.ErrMalformedSubmission, a, i)
		}
	}
	return nil
}

func elapsedSeconds(startedAt, now time.Time) int64 {
	elapsed := int64(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// padAnswers returns draft sized to the exam, blank-filling missing entries.
func padAnswers(draft []int, questions int) []int {
	answers := make([]int, questions)
	for i := range answers {
		answers[i] = domain.BlankAnswer
		if i < len(draft) {
			answers[i] = draft[i]
		}
	}
	return answers
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-reward-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExamService contains the exam attempt use cases: access, sessions, drafts,
// submission and purchase.
type ExamService struct {
	deps    Deps
	rules   Rules
	results *ResultStore
}

func NewExamService(d Deps, rules Rules) *ExamService {
	d = d.withDefaults()
	return &ExamService{deps: d, rules: rules, results: NewResultStore(d)}
}

// SessionView is a session together with its derived remaining time.
type SessionView struct {
	Session          domain.AttemptSession `json:"session"`
	RemainingSeconds int64                 `json:"remainingSeconds"`
	Resumed          bool                  `json:"resumed"`
}

// SubmitOutcome summarizes a successful finish.
type SubmitOutcome struct {
	Score           Score                `json:"score"`
	Result          domain.AttemptResult `json:"result"`
	FirstCompletion bool                 `json:"firstCompletion"`
}

// CheckAccess evaluates the access rules for studentID on examID.
func (s *ExamService) CheckAccess(ctx context.Context, studentID, examID string) (AccessDecision, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return AccessDecision{}, err
	}
	return s.checkAccess(ctx, studentID, exam)
}

func (s *ExamService) checkAccess(ctx context.Context, studentID string, exam domain.ExamDefinition) (AccessDecision, error) {
	var decision AccessDecision
	err := s.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		account, err := tx.GetAccount(ctx, studentID)
		if err != nil {
			return err
		}
		contests, err := tx.ListContests(ctx, ContestFilter{ExamID: exam.ID, ActiveOnly: true})
		if err != nil {
			return err
		}
		decision = CanStart(account, exam, contests)
		return nil
	})
	return decision, err
}

// StartSession opens an attempt or resumes the started one. Re-entering never
// resets the clock: an existing started session is returned unchanged.
func (s *ExamService) StartSession(ctx context.Context, studentID, examID string) (SessionView, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return SessionView{}, err
	}
	decision, err := s.checkAccess(ctx, studentID, exam)
	if err != nil {
		return SessionView{}, err
	}
	if !decision.Allowed {
		s.reject("start denied", studentID, examID, decision.Err())
		return SessionView{}, decision.Err()
	}

	now := s.deps.Now()
	existing, err := s.deps.Sessions.Get(ctx, studentID, examID)
	switch {
	case err == nil && existing.Status == domain.SessionStarted && !existing.Legacy:
		return s.view(existing, exam, now, true), nil
	case err != nil && !errors.Is(err, domain.ErrSessionNotFound):
		return SessionView{}, err
	}

	candidate := domain.AttemptSession{
		StudentID: studentID,
		ExamID:    examID,
		StartedAt: now,
		Deadline:  now.Add(exam.TimeLimit()),
		Status:    domain.SessionStarted,
	}
	if err == nil && existing.Legacy && existing.Status == domain.SessionStarted && existing.StudentID == studentID {
		// Migrate the legacy record to the composite key, keeping its clock.
		candidate.StartedAt = existing.StartedAt
		candidate.Deadline = existing.StartedAt.Add(exam.TimeLimit())
		candidate.Draft = existing.Draft
	}

	session, created, err := s.deps.Sessions.StartOrResume(ctx, candidate)
	if err != nil {
		return SessionView{}, fmt.Errorf("start session %s/%s: %w", studentID, examID, err)
	}
	if created {
		s.deps.Logger.Info("session started",
			zap.String("studentId", studentID),
			zap.String("examId", examID),
			zap.Time("startedAt", session.StartedAt),
			zap.Time("deadline", session.Deadline),
		)
	}
	return s.view(session, exam, now, !created), nil
}

// Session returns the caller's current session with its remaining time.
func (s *ExamService) Session(ctx context.Context, studentID, examID string) (SessionView, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return SessionView{}, err
	}
	session, err := s.lookup(ctx, studentID, exam)
	if err != nil {
		return SessionView{}, err
	}
	if session == nil || session.StudentID != studentID {
		return SessionView{}, domain.ErrInvalidSession
	}
	return s.view(*session, exam, s.deps.Now(), true), nil
}

// SaveDraft records the answers chosen so far; they are used when the attempt is
// finished automatically.
func (s *ExamService) SaveDraft(ctx context.Context, studentID, examID string, answers []int) error {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	session, err := s.lookup(ctx, studentID, exam)
	if err != nil {
		return err
	}
	if session == nil || session.StudentID != studentID {
		return domain.ErrInvalidSession
	}
	if session.Status == domain.SessionCompleted {
		return domain.ErrAlreadyCompleted
	}
	if err := s.rules.CheckDeadline(*session, s.deps.Now()); err != nil {
		return err
	}
	if err := checkAnswers(exam, answers); err != nil {
		return err
	}
	key, err := s.canonicalize(ctx, *session)
	if err != nil {
		return err
	}
	return s.deps.Sessions.SaveDraft(ctx, key, answers)
}

// Submit validates, scores and records a finish request from studentID.
func (s *ExamService) Submit(ctx context.Context, studentID, examID string, answers []int) (SubmitOutcome, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	session, err := s.lookup(ctx, studentID, exam)
	if err != nil {
		return SubmitOutcome{}, err
	}

	now := s.deps.Now()
	if err := s.rules.Validate(studentID, session, exam, answers, now); err != nil {
		s.deps.Metrics.Submission(domain.Code(err))
		s.reject("submission rejected", studentID, examID, err)
		return SubmitOutcome{}, err
	}
	if err := s.rules.CheckDeadline(*session, now); err != nil {
		s.deps.Metrics.Submission(domain.Code(err))
		s.reject("submission rejected", studentID, examID, err)
		return SubmitOutcome{}, err
	}
	return s.finish(ctx, *session, exam, answers, now)
}

// AutoFinish completes the caller's attempt with its saved draft once the countdown
// reaches zero. The minimum elapsed rule does not apply to a timed-out attempt.
func (s *ExamService) AutoFinish(ctx context.Context, studentID, examID string) (SubmitOutcome, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	session, err := s.lookup(ctx, studentID, exam)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if session == nil || session.StudentID != studentID {
		return SubmitOutcome{}, domain.ErrInvalidSession
	}
	if session.Status == domain.SessionCompleted {
		return SubmitOutcome{}, domain.ErrAlreadyCompleted
	}
	now := s.deps.Now()
	if Remaining(*session, exam, now) > 0 {
		return SubmitOutcome{}, domain.ErrTimeRemaining
	}
	answers := padAnswers(session.Draft, len(exam.Questions))
	if checkAnswers(exam, answers) != nil {
		answers = padAnswers(nil, len(exam.Questions))
	}
	return s.finish(ctx, *session, exam, answers, now)
}

// FinalizeExpired auto-finishes started sessions past deadline + grace with their
// draft answers. It returns how many sessions were finalised.
func (s *ExamService) FinalizeExpired(ctx context.Context) (int, error) {
	now := s.deps.Now()
	expired, err := s.deps.Sessions.ListExpired(ctx, now.Add(-s.rules.Grace))
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	finalized := 0
	for _, session := range expired {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		exam, err := s.deps.Exams.GetExam(ctx, session.ExamID)
		if err != nil {
			s.deps.Logger.Error("sweep: load exam", zap.String("examId", session.ExamID), zap.Error(err))
			continue
		}
		answers := padAnswers(session.Draft, len(exam.Questions))
		if checkAnswers(exam, answers) != nil {
			answers = padAnswers(nil, len(exam.Questions))
		}
		if _, err := s.finish(ctx, session, exam, answers, now); err != nil {
			if errors.Is(err, domain.ErrAlreadyCompleted) {
				continue
			}
			s.deps.Logger.Error("sweep: finish session",
				zap.String("studentId", session.StudentID),
				zap.String("examId", session.ExamID),
				zap.Error(err),
			)
			continue
		}
		finalized++
	}
	s.deps.Metrics.Swept(finalized)
	return finalized, nil
}

// Purchase buys examID for studentID. Debit, purchased-set update, sales counter
// and transaction append commit together. Buying an owned or free exam is a no-op.
func (s *ExamService) Purchase(ctx context.Context, studentID, examID string) (domain.Account, error) {
	exam, err := s.deps.Exams.GetExam(ctx, examID)
	if err != nil {
		return domain.Account{}, err
	}

	var (
		account domain.Account
		bought  bool
	)
	err = s.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		account, err = tx.GetAccount(ctx, studentID)
		if err != nil {
			return err
		}
		if exam.Price == 0 || account.HasPurchased(exam.ID) {
			return nil
		}
		if err := debitAccount(&account, exam.Price); err != nil {
			return err
		}
		account.PurchasedExamIDs = append(account.PurchasedExamIDs, exam.ID)
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.AddExamSale(ctx, exam.ID); err != nil {
			return err
		}
		bought = true
		return tx.AppendTransaction(ctx, domain.Transaction{
			ID:        uuid.NewString(),
			ExamID:    exam.ID,
			PayerID:   studentID,
			PayeeID:   exam.CreatorID,
			Amount:    exam.Price,
			CreatedAt: s.deps.Now(),
		})
	})
	s.deps.Metrics.Purchase(domain.Code(err))
	if err != nil {
		s.reject("purchase rejected", studentID, examID, err)
		return domain.Account{}, err
	}
	if bought {
		if err := s.deps.Exams.Invalidate(ctx, exam.ID); err != nil {
			s.deps.Logger.Warn("invalidate exam cache", zap.String("examId", exam.ID), zap.Error(err))
		}
		s.deps.Logger.Info("exam purchased", zap.String("studentId", studentID), zap.String("examId", examID), zap.Int("price", exam.Price))
		s.deps.notify(ctx, exam.CreatorID, "Exam sold",
			fmt.Sprintf("%q was purchased for %d points.", exam.Title, exam.Price),
			domain.NotifyExamSold, "/exams/"+exam.ID)
	}
	return account, nil
}

func (s *ExamService) finish(ctx context.Context, session domain.AttemptSession, exam domain.ExamDefinition, answers []int, now time.Time) (SubmitOutcome, error) {
	score := ScoreAnswers(exam, answers)

	key, err := s.canonicalize(ctx, session)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if _, err := s.deps.Sessions.Complete(ctx, key, now); err != nil {
		s.deps.Metrics.Submission(domain.Code(err))
		s.reject("completion rejected", session.StudentID, session.ExamID, err)
		return SubmitOutcome{}, err
	}

	result, first, err := s.results.Upsert(ctx, domain.AttemptResult{
		StudentID:      session.StudentID,
		ExamID:         session.ExamID,
		Score:          score.Correct,
		TotalQuestions: score.Total,
		Answers:        answers,
		RewardPoints:   score.RewardPoints,
		CompletedAt:    now,
	})
	if err != nil {
		s.deps.Metrics.Submission(domain.CodeInternal)
		s.deps.Logger.Error("session completed without stored result",
			zap.String("studentId", session.StudentID),
			zap.String("examId", session.ExamID),
			zap.Error(err),
		)
		return SubmitOutcome{}, err
	}
	s.deps.Metrics.Submission("")
	return SubmitOutcome{Score: score, Result: result, FirstCompletion: first}, nil
}

// canonicalize moves a legacy-keyed session to the composite key before any write.
func (s *ExamService) canonicalize(ctx context.Context, session domain.AttemptSession) (domain.SessionKey, error) {
	if !session.Legacy {
		return session.Key(), nil
	}
	session.Legacy = false
	stored, _, err := s.deps.Sessions.StartOrResume(ctx, session)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("migrate legacy session: %w", err)
	}
	return stored.Key(), nil
}

// lookup returns nil without error when no session exists. Legacy records carry no
// deadline, so it is rebuilt from the start time and the exam's time limit.
func (s *ExamService) lookup(ctx context.Context, studentID string, exam domain.ExamDefinition) (*domain.AttemptSession, error) {
	session, err := s.deps.Sessions.Get(ctx, studentID, exam.ID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if session.Legacy || session.Deadline.IsZero() {
		session.Deadline = session.StartedAt.Add(exam.TimeLimit())
	}
	return &session, nil
}

func (s *ExamService) view(session domain.AttemptSession, exam domain.ExamDefinition, now time.Time, resumed bool) SessionView {
	return SessionView{Session: session, RemainingSeconds: Remaining(session, exam, now), Resumed: resumed}
}

func (s *ExamService) reject(msg, studentID, examID string, err error) {
	s.deps.Logger.Info(msg,
		zap.String("studentId", studentID),
		zap.String("examId", examID),
		zap.String("code", domain.Code(err)),
		zap.Error(err),
	)
}

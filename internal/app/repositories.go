package app

import (
	"context"
	"time"

	"exam-reward-service/internal/domain"
)

// SessionRepository abstracts how attempt sessions are stored (in-memory, Redis).
// Every write is a compare-and-swap on the canonical key.
type SessionRepository interface {
	// StartOrResume stores candidate unless a started session already exists for its
	// key, in which case the existing one is returned unchanged with created=false.
	StartOrResume(ctx context.Context, candidate domain.AttemptSession) (session domain.AttemptSession, created bool, err error)
	// Get reads the canonical key and falls back to the legacy bare exam id key.
	Get(ctx context.Context, studentID, examID string) (domain.AttemptSession, error)
	// SaveDraft replaces the draft answers of a started session.
	SaveDraft(ctx context.Context, key domain.SessionKey, answers []int) error
	// Complete moves a started session to completed. It returns ErrAlreadyCompleted
	// when another caller won the transition.
	Complete(ctx context.Context, key domain.SessionKey, at time.Time) (domain.AttemptSession, error)
	// ListExpired returns started sessions whose deadline is before the given time.
	ListExpired(ctx context.Context, before time.Time) ([]domain.AttemptSession, error)
}

// ExamRepository loads exam definitions (from cache/backing store).
type ExamRepository interface {
	GetExam(ctx context.Context, examID string) (domain.ExamDefinition, error)
	// Invalidate drops the cached definition so the next read sees the store.
	Invalidate(ctx context.Context, examID string) error
}

// AccountRepository reads and writes accounts inside a Tx.
type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	SaveAccount(ctx context.Context, account domain.Account) error
	AddExamSale(ctx context.Context, examID string) error
}

// ResultRepository keeps one result per (student, exam).
type ResultRepository interface {
	GetResult(ctx context.Context, key domain.ResultKey) (domain.AttemptResult, error)
	// InsertResult stores r only when no result exists for its key.
	InsertResult(ctx context.Context, r domain.AttemptResult) (inserted bool, err error)
	// UpdateResult overwrites score, totals, answers and completion time. Reward is untouched.
	UpdateResult(ctx context.Context, r domain.AttemptResult) error
	ListResultsByExam(ctx context.Context, examID string) ([]domain.AttemptResult, error)
}

// LedgerRepository is the append-only money trail.
type LedgerRepository interface {
	AppendTransaction(ctx context.Context, t domain.Transaction) error
	ListTransactionsByPayee(ctx context.Context, payeeID string) ([]domain.Transaction, error)
	AppendPayout(ctx context.Context, p domain.Payout) error
	ListPayouts(ctx context.Context, teacherID string) ([]domain.Payout, error)
}

// ContestFilter narrows ListContests. Zero fields match everything.
type ContestFilter struct {
	ExamID     string
	Month      string
	ActiveOnly bool
}

// ContestRepository stores prize contests.
type ContestRepository interface {
	GetContest(ctx context.Context, id string) (domain.PrizeContest, error)
	SaveContest(ctx context.Context, c domain.PrizeContest) error
	ListContests(ctx context.Context, filter ContestFilter) ([]domain.PrizeContest, error)
}

// Tx is one atomic unit of work over the record store.
type Tx interface {
	AccountRepository
	ResultRepository
	LedgerRepository
	ContestRepository
}

// Transactor runs fn atomically: either every write made through tx commits or none does.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Notifier delivers notifications. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

package app_test

import (
	"context"
	"sync"
	"time"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
	"exam-reward-service/internal/infra/memory"
	"github.com/shopspring/decimal"
)

type fixture struct {
	store    *memory.Store
	sessions *memory.SessionStore
	examRepo *memory.ExamRepository
	notifier *recordingNotifier
	clock    *fakeClock
	exams    *app.ExamService
	ledger   *app.Ledger
	contests *app.ContestService
	results  *app.ResultStore
}

func newFixture(seed int64) *fixture {
	store := memory.NewStore()
	store.PutExam(fiveQuestionExam())
	store.PutExam(singleQuestionExam())
	store.PutExam(freeExam())
	store.PutAccount(domain.Account{ID: "teacher-1", Role: domain.RoleInstructor})
	store.PutAccount(domain.Account{ID: "admin-1", Role: domain.RoleAdmin})
	store.PutAccount(domain.Account{ID: "s1", Role: domain.RoleLearner, Points: 100, Grade: "7"})
	store.PutAccount(domain.Account{ID: "s2", Role: domain.RoleLearner, Points: 40, Grade: "7"})

	clock := &fakeClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	sessions := memory.NewSessionStore()
	examRepo := memory.NewExamRepository(store, time.Minute)
	deps := app.Deps{
		Sessions: sessions,
		Exams:    examRepo,
		Store:    store,
		Notifier: notifier,
		Now:      clock.Now,
	}
	return &fixture{
		store:    store,
		sessions: sessions,
		examRepo: examRepo,
		notifier: notifier,
		clock:    clock,
		exams:    app.NewExamService(deps, app.DefaultRules()),
		ledger: app.NewLedger(deps, app.EconomyRules{
			AdWatchReward:       5,
			ReferralReward:      50,
			PointConversionRate: decimal.RequireFromString("0.01"),
			CommissionPercent:   decimal.NewFromInt(20),
			Shop:                []domain.ShopItem{{ID: "avatar-gold", Name: "Gold avatar", Price: 30}},
		}),
		contests: app.NewContestService(deps, app.NewRandomSource(seed)),
		results:  app.NewResultStore(deps),
	}
}

func (f *fixture) account(id string) domain.Account {
	a, err := f.ledger.Account(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return a
}

func (f *fixture) result(studentID, examID string) domain.AttemptResult {
	var r domain.AttemptResult
	_ = f.store.InTx(context.Background(), func(ctx context.Context, tx app.Tx) error {
		var err error
		r, err = tx.GetResult(ctx, domain.ResultKey{StudentID: studentID, ExamID: examID})
		return err
	})
	return r
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(n.sent))
	for _, msg := range n.sent {
		out = append(out, msg.Kind)
	}
	return out
}

func question(correct int) domain.Question {
	return domain.Question{Prompt: "pick", Options: []string{"a", "b", "c", "d"}, CorrectIndex: correct}
}

// fiveQuestionExam has correct answers [0,1,2,3,0].
func fiveQuestionExam() domain.ExamDefinition {
	return domain.ExamDefinition{
		ID:               "exam-5",
		Title:            "Fractions",
		CreatorID:        "teacher-1",
		Price:            50,
		Difficulty:       domain.DifficultyMedium,
		TimeLimitMinutes: 10,
		Questions:        []domain.Question{question(0), question(1), question(2), question(3), question(0)},
	}
}

func singleQuestionExam() domain.ExamDefinition {
	return domain.ExamDefinition{
		ID:               "exam-1q",
		Title:            "Warm-up",
		CreatorID:        "teacher-1",
		Difficulty:       domain.DifficultyEasy,
		TimeLimitMinutes: 1,
		Questions:        []domain.Question{question(2)},
	}
}

func freeExam() domain.ExamDefinition {
	e := fiveQuestionExam()
	e.ID = "exam-free"
	e.Price = 0
	e.Difficulty = domain.DifficultyHard
	return e
}

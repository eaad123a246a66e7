package app_test

import (
	"context"
	"testing"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func results(scores map[string]int) []domain.AttemptResult {
	out := make([]domain.AttemptResult, 0, len(scores))
	for id, score := range scores {
		out = append(out, domain.AttemptResult{StudentID: id, ExamID: "exam-free", Score: score, TotalQuestions: 10})
	}
	return out
}

func TestPickWinnerOnlyTopScorers(t *testing.T) {
	candidates := results(map[string]int{"a": 8, "b": 10, "c": 10, "d": 7})
	rnd := app.NewRandomSource(42)

	const trials = 4000
	wins := map[string]int{}
	for i := 0; i < trials; i++ {
		winner, top, err := app.PickWinner(candidates, rnd)
		require.NoError(t, err)
		require.Equal(t, 2, top)
		wins[winner.StudentID]++
	}
	require.Zero(t, wins["a"])
	require.Zero(t, wins["d"])
	require.InDelta(t, 0.5, float64(wins["b"])/trials, 0.05)
	require.InDelta(t, 0.5, float64(wins["c"])/trials, 0.05)
}

func TestPickWinnerSeededIsReproducible(t *testing.T) {
	scores := map[string]int{"a": 9, "b": 9, "c": 9, "d": 9, "e": 3}
	first, _, err := app.PickWinner(results(scores), app.NewRandomSource(7))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, _, err := app.PickWinner(results(scores), app.NewRandomSource(7))
		require.NoError(t, err)
		require.Equal(t, first.StudentID, again.StudentID)
	}
}

func TestPickWinnerErrors(t *testing.T) {
	_, _, err := app.PickWinner(nil, app.NewRandomSource(1))
	require.ErrorIs(t, err, domain.ErrNoCandidates)

	_, _, err = app.PickWinner(results(map[string]int{"a": 1}), nil)
	require.Error(t, err)
}

func seedContest(f *fixture, grade string) {
	f.store.PutContest(domain.PrizeContest{
		ID:       "contest-oct",
		ExamID:   "exam-free",
		Grade:    grade,
		EntryFee: 20,
		Month:    "2026-10",
		Active:   true,
	})
}

func TestPayEntryFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	seedContest(f, "7")

	contest, err := f.contests.PayEntryFee(ctx, "s1", "contest-oct")
	require.NoError(t, err)
	require.Equal(t, []string{"s1"}, contest.Participants)
	require.Equal(t, 80, f.account("s1").Points)
	require.Equal(t, []string{"contest-oct"}, f.account("s1").ContestEntries)

	_, err = f.contests.PayEntryFee(ctx, "s1", "contest-oct")
	require.NoError(t, err)
	require.Equal(t, 80, f.account("s1").Points, "entering twice must not charge twice")

	f.store.PutAccount(domain.Account{ID: "s3", Points: 100, Grade: "8"})
	_, err = f.contests.PayEntryFee(ctx, "s3", "contest-oct")
	require.ErrorIs(t, err, domain.ErrAccessDenied)
	require.Equal(t, 100, f.account("s3").Points)

	f.store.PutAccount(domain.Account{ID: "s4", Points: 5, Grade: "7"})
	_, err = f.contests.PayEntryFee(ctx, "s4", "contest-oct")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.contests.PayEntryFee(ctx, "s1", "missing")
	require.ErrorIs(t, err, domain.ErrContestNotFound)
}

func TestContestEntryGrantsAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	f.store.PutContest(domain.PrizeContest{ID: "contest-paid", ExamID: "exam-5", EntryFee: 10, Month: "2026-10", Active: true})

	decision, err := f.exams.CheckAccess(ctx, "s1", "exam-5")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	_, err = f.contests.PayEntryFee(ctx, "s1", "contest-paid")
	require.NoError(t, err)
	decision, err = f.exams.CheckAccess(ctx, "s1", "exam-5")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, app.AccessContestEntry, decision.Reason)
}

func TestDrawWinnerClosesContest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(3)
	seedContest(f, "")

	_, err := f.contests.DrawWinner(ctx, "contest-oct")
	require.ErrorIs(t, err, domain.ErrNoCandidates)

	// s1 entered and scored; s2 scored higher without entering.
	_, err = f.contests.PayEntryFee(ctx, "s1", "contest-oct")
	require.NoError(t, err)
	_, _, err = f.results.Upsert(ctx, domain.AttemptResult{StudentID: "s1", ExamID: "exam-free", Score: 3, TotalQuestions: 5, Answers: []int{0, 1, 2, -1, -1}})
	require.NoError(t, err)
	_, _, err = f.results.Upsert(ctx, domain.AttemptResult{StudentID: "s2", ExamID: "exam-free", Score: 5, TotalQuestions: 5, Answers: []int{0, 1, 2, 3, 0}})
	require.NoError(t, err)

	drawn, err := f.contests.DrawWinner(ctx, "contest-oct")
	require.NoError(t, err)
	require.Equal(t, "s1", drawn.Winner.StudentID)
	require.Equal(t, 1, drawn.TopScorers)
	require.False(t, drawn.Contest.Active)
	require.True(t, drawn.Contest.Drawn())
	require.Contains(t, f.notifier.kinds(), domain.NotifyPrizeWon)

	_, err = f.contests.DrawWinner(ctx, "contest-oct")
	require.ErrorIs(t, err, domain.ErrContestClosed)
	_, err = f.contests.PayEntryFee(ctx, "s2", "contest-oct")
	require.ErrorIs(t, err, domain.ErrContestClosed)
}

func TestDrawMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(5)
	seedContest(f, "")
	f.store.PutContest(domain.PrizeContest{ID: "contest-empty", ExamID: "exam-1q", Month: "2026-10", Active: true})
	f.store.PutContest(domain.PrizeContest{ID: "contest-sep", ExamID: "exam-free", Month: "2026-09", Active: true})

	_, err := f.contests.PayEntryFee(ctx, "s2", "contest-oct")
	require.NoError(t, err)
	_, _, err = f.results.Upsert(ctx, domain.AttemptResult{StudentID: "s2", ExamID: "exam-free", Score: 4, TotalQuestions: 5, Answers: []int{0, 1, 2, 3, -1}})
	require.NoError(t, err)

	reports, err := f.contests.DrawMonth(ctx, "2026-10")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, "contest-empty", reports[0].ContestID)
	require.Equal(t, domain.CodeNoCandidates, reports[0].Code)
	require.Nil(t, reports[0].Result)
	require.Equal(t, "contest-oct", reports[1].ContestID)
	require.NotNil(t, reports[1].Result)
	require.Equal(t, "s2", reports[1].Result.Winner.StudentID)
}

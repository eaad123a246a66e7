package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"exam-reward-service/internal/domain"
	"go.uber.org/zap"
)

// ContestService handles prize contest entry and the monthly winner draw.
type ContestService struct {
	deps Deps
	rnd  RandomSource
}

func NewContestService(d Deps, rnd RandomSource) *ContestService {
	if rnd == nil {
		rnd = NewTimeSeededSource()
	}
	return &ContestService{deps: d.withDefaults(), rnd: rnd}
}

// DrawResult is a completed draw.
type DrawResult struct {
	Contest    domain.PrizeContest  `json:"contest"`
	Winner     domain.AttemptResult `json:"winner"`
	TopScorers int                  `json:"topScorers"`
}

// DrawReport is the per-contest outcome of DrawMonth.
type DrawReport struct {
	ContestID string      `json:"contestId"`
	Result    *DrawResult `json:"result,omitempty"`
	Code      string      `json:"code,omitempty"`
}

// PayEntryFee debits the entry fee and registers studentID as a participant. Paying
// twice is a no-op.
func (s *ContestService) PayEntryFee(ctx context.Context, studentID, contestID string) (domain.PrizeContest, error) {
	var (
		contest domain.PrizeContest
		paid    bool
	)
	err := s.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		contest, err = tx.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !contest.Active {
			return domain.ErrContestClosed
		}
		account, err := tx.GetAccount(ctx, studentID)
		if err != nil {
			return err
		}
		if contest.HasParticipant(studentID) {
			return nil
		}
		if contest.Grade != "" && account.Grade != contest.Grade {
			return fmt.Errorf("%w: contest is for grade %s", domain.ErrAccessDenied, contest.Grade)
		}
		if err := debitAccount(&account, contest.EntryFee); err != nil {
			return err
		}
		if !account.HasEntered(contest.ID) {
			account.ContestEntries = append(account.ContestEntries, contest.ID)
		}
		contest.Participants = append(contest.Participants, studentID)
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}
		paid = true
		return tx.SaveContest(ctx, contest)
	})
	s.deps.Metrics.ContestEntry(domain.Code(err))
	if err != nil {
		s.deps.Logger.Info("entry fee rejected",
			zap.String("studentId", studentID),
			zap.String("contestId", contestID),
			zap.String("code", domain.Code(err)),
		)
		return domain.PrizeContest{}, err
	}
	if paid {
		s.deps.Logger.Info("contest entered", zap.String("studentId", studentID), zap.String("contestId", contestID), zap.Int("fee", contest.EntryFee))
	}
	return contest, nil
}

// DrawWinner picks a winner uniformly among the top scorers of the linked exam who
// entered the contest, then closes the contest. A drawn contest is never redrawn.
func (s *ContestService) DrawWinner(ctx context.Context, contestID string) (DrawResult, error) {
	var result DrawResult
	err := s.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		contest, err := tx.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !contest.Active {
			return domain.ErrContestClosed
		}
		results, err := tx.ListResultsByExam(ctx, contest.ExamID)
		if err != nil {
			return err
		}
		candidates := make([]domain.AttemptResult, 0, len(results))
		for _, r := range results {
			if contest.HasParticipant(r.StudentID) {
				candidates = append(candidates, r)
			}
		}
		winner, top, err := PickWinner(candidates, s.rnd)
		if err != nil {
			return err
		}

		drawnAt := s.deps.Now()
		contest.Active = false
		contest.WinnerID = winner.StudentID
		contest.DrawnAt = &drawnAt
		if err := tx.SaveContest(ctx, contest); err != nil {
			return err
		}
		result = DrawResult{Contest: contest, Winner: winner, TopScorers: top}
		return nil
	})
	s.deps.Metrics.Draw(domain.Code(err))
	if err != nil {
		s.deps.Logger.Info("draw failed", zap.String("contestId", contestID), zap.String("code", domain.Code(err)))
		return DrawResult{}, err
	}

	s.deps.Logger.Info("prize drawn",
		zap.String("contestId", contestID),
		zap.String("winnerId", result.Winner.StudentID),
		zap.Int("score", result.Winner.Score),
		zap.Int("topScorers", result.TopScorers),
	)
	s.deps.notify(ctx, result.Winner.StudentID, "You won the prize draw",
		fmt.Sprintf("You won the %s contest with %d/%d.", result.Contest.Month, result.Winner.Score, result.Winner.TotalQuestions),
		domain.NotifyPrizeWon, "/contests/"+contestID)
	return result, nil
}

// DrawMonth draws every active contest of month. Contests without candidates stay active.
func (s *ContestService) DrawMonth(ctx context.Context, month string) ([]DrawReport, error) {
	var contests []domain.PrizeContest
	err := s.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		contests, err = tx.ListContests(ctx, ContestFilter{Month: month, ActiveOnly: true})
		return err
	})
	if err != nil {
		return nil, err
	}

	reports := make([]DrawReport, 0, len(contests))
	for _, c := range contests {
		result, err := s.DrawWinner(ctx, c.ID)
		report := DrawReport{ContestID: c.ID, Code: domain.Code(err)}
		if err == nil {
			report.Result = &result
		} else if domain.Code(err) == domain.CodeInternal {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// PickWinner returns a uniformly random result among those with the maximum score
// and the number of tied top scorers. Candidates are ordered by student id first so
// a seeded source yields the same winner for the same input.
func PickWinner(candidates []domain.AttemptResult, rnd RandomSource) (domain.AttemptResult, int, error) {
	if len(candidates) == 0 {
		return domain.AttemptResult{}, 0, domain.ErrNoCandidates
	}
	if rnd == nil {
		return domain.AttemptResult{}, 0, errors.New("pick winner: nil random source")
	}
	maxScore := candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	top := make([]domain.AttemptResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Score == maxScore {
			top = append(top, c)
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i].StudentID < top[j].StudentID })
	return top[rnd.Intn(len(top))], len(top), nil
}

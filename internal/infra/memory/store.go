package memory

import (
	"context"
	"sort"
	"sync"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
)

// Store is an in-process record store implementing app.Transactor. Transactions
// run one at a time under a single lock; a failed transaction replays its undo log.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]domain.Account
	exams        map[string]domain.ExamDefinition
	results      map[domain.ResultKey]domain.AttemptResult
	transactions []domain.Transaction
	payouts      []domain.Payout
	contests     map[string]domain.PrizeContest
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		exams:    make(map[string]domain.ExamDefinition),
		results:  make(map[domain.ResultKey]domain.AttemptResult),
		contests: make(map[string]domain.PrizeContest),
	}
}

// PutAccount seeds or replaces an account outside of a transaction.
func (s *Store) PutAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = cloneAccount(a)
}

func (s *Store) PutExam(e domain.ExamDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[e.ID] = e
}

func (s *Store) PutContest(c domain.PrizeContest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contests[c.ID] = cloneContest(c)
}

// LoadExam lets the store act as the exam loader behind the TTL cache.
func (s *Store) LoadExam(_ context.Context, examID string) (domain.ExamDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exam, ok := s.exams[examID]
	if !ok {
		return domain.ExamDefinition{}, domain.ErrExamNotFound
	}
	return exam, nil
}

// Transactions returns a copy of the transaction log.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.transactions...)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{s: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type storeTx struct {
	s    *Store
	undo []func()
}

func (t *storeTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *storeTx) GetAccount(_ context.Context, id string) (domain.Account, error) {
	a, ok := t.s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (t *storeTx) SaveAccount(_ context.Context, a domain.Account) error {
	prev, existed := t.s.accounts[a.ID]
	t.undo = append(t.undo, func() {
		if existed {
			t.s.accounts[a.ID] = prev
		} else {
			delete(t.s.accounts, a.ID)
		}
	})
	t.s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (t *storeTx) AddExamSale(_ context.Context, examID string) error {
	exam, ok := t.s.exams[examID]
	if !ok {
		return domain.ErrExamNotFound
	}
	t.undo = append(t.undo, func() { t.s.exams[examID] = exam })
	updated := exam
	updated.Sales++
	t.s.exams[examID] = updated
	return nil
}

func (t *storeTx) GetResult(_ context.Context, key domain.ResultKey) (domain.AttemptResult, error) {
	r, ok := t.s.results[key]
	if !ok {
		return domain.AttemptResult{}, domain.ErrResultNotFound
	}
	return cloneResult(r), nil
}

func (t *storeTx) InsertResult(_ context.Context, r domain.AttemptResult) (bool, error) {
	key := domain.ResultKey{StudentID: r.StudentID, ExamID: r.ExamID}
	if _, ok := t.s.results[key]; ok {
		return false, nil
	}
	t.undo = append(t.undo, func() { delete(t.s.results, key) })
	t.s.results[key] = cloneResult(r)
	return true, nil
}

func (t *storeTx) UpdateResult(_ context.Context, r domain.AttemptResult) error {
	key := domain.ResultKey{StudentID: r.StudentID, ExamID: r.ExamID}
	prev, ok := t.s.results[key]
	if !ok {
		return domain.ErrResultNotFound
	}
	t.undo = append(t.undo, func() { t.s.results[key] = prev })
	updated := cloneResult(r)
	updated.RewardPoints = prev.RewardPoints
	t.s.results[key] = updated
	return nil
}

func (t *storeTx) ListResultsByExam(_ context.Context, examID string) ([]domain.AttemptResult, error) {
	var out []domain.AttemptResult
	for key, r := range t.s.results {
		if key.ExamID == examID {
			out = append(out, cloneResult(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (t *storeTx) AppendTransaction(_ context.Context, tr domain.Transaction) error {
	n := len(t.s.transactions)
	t.undo = append(t.undo, func() { t.s.transactions = t.s.transactions[:n] })
	t.s.transactions = append(t.s.transactions, tr)
	return nil
}

func (t *storeTx) ListTransactionsByPayee(_ context.Context, payeeID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.s.transactions {
		if tr.PayeeID == payeeID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (t *storeTx) AppendPayout(_ context.Context, p domain.Payout) error {
	n := len(t.s.payouts)
	t.undo = append(t.undo, func() { t.s.payouts = t.s.payouts[:n] })
	t.s.payouts = append(t.s.payouts, p)
	return nil
}

func (t *storeTx) ListPayouts(_ context.Context, teacherID string) ([]domain.Payout, error) {
	var out []domain.Payout
	for _, p := range t.s.payouts {
		if p.TeacherID == teacherID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *storeTx) GetContest(_ context.Context, id string) (domain.PrizeContest, error) {
	c, ok := t.s.contests[id]
	if !ok {
		return domain.PrizeContest{}, domain.ErrContestNotFound
	}
	return cloneContest(c), nil
}

func (t *storeTx) SaveContest(_ context.Context, c domain.PrizeContest) error {
	prev, existed := t.s.contests[c.ID]
	t.undo = append(t.undo, func() {
		if existed {
			t.s.contests[c.ID] = prev
		} else {
			delete(t.s.contests, c.ID)
		}
	})
	t.s.contests[c.ID] = cloneContest(c)
	return nil
}

func (t *storeTx) ListContests(_ context.Context, filter app.ContestFilter) ([]domain.PrizeContest, error) {
	var out []domain.PrizeContest
	for _, c := range t.s.contests {
		if filter.ExamID != "" && c.ExamID != filter.ExamID {
			continue
		}
		if filter.Month != "" && c.Month != filter.Month {
			continue
		}
		if filter.ActiveOnly && !c.Active {
			continue
		}
		out = append(out, cloneContest(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneAccount(a domain.Account) domain.Account {
	a.Inventory = append([]string(nil), a.Inventory...)
	a.PurchasedExamIDs = append([]string(nil), a.PurchasedExamIDs...)
	a.ContestEntries = append([]string(nil), a.ContestEntries...)
	return a
}

func cloneResult(r domain.AttemptResult) domain.AttemptResult {
	r.Answers = append([]int(nil), r.Answers...)
	return r
}

func cloneContest(c domain.PrizeContest) domain.PrizeContest {
	c.Participants = append([]string(nil), c.Participants...)
	if c.DrawnAt != nil {
		at := *c.DrawnAt
		c.DrawnAt = &at
	}
	return c
}

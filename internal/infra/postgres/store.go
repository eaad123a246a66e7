package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the durable app.Transactor. Every InTx call is one database transaction;
// rows read for update are locked until commit so concurrent balance and contest
// writes serialize.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &storeTx{tx: tx})
	})
}

// PutAccount inserts or replaces an account outside of a use case transaction.
func (s *Store) PutAccount(ctx context.Context, a domain.Account) error {
	return s.InTx(ctx, func(ctx context.Context, tx app.Tx) error {
		return tx.SaveAccount(ctx, a)
	})
}

func (s *Store) PutContest(ctx context.Context, c domain.PrizeContest) error {
	return s.InTx(ctx, func(ctx context.Context, tx app.Tx) error {
		return tx.SaveContest(ctx, c)
	})
}

type storeTx struct {
	tx pgx.Tx
}

func (t *storeTx) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, role, grade, points, inventory, purchased_exam_ids, contest_entries
		FROM accounts WHERE id = $1 FOR UPDATE`, id).
		Scan(&a.ID, &a.Name, &a.Role, &a.Grade, &a.Points, &a.Inventory, &a.PurchasedExamIDs, &a.ContestEntries)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (t *storeTx) SaveAccount(ctx context.Context, a domain.Account) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (id, name, role, grade, points, inventory, purchased_exam_ids, contest_entries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			grade = EXCLUDED.grade,
			points = EXCLUDED.points,
			inventory = EXCLUDED.inventory,
			purchased_exam_ids = EXCLUDED.purchased_exam_ids,
			contest_entries = EXCLUDED.contest_entries`,
		a.ID, a.Name, string(a.Role), a.Grade, a.Points,
		nonNil(a.Inventory), nonNil(a.PurchasedExamIDs), nonNil(a.ContestEntries))
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (t *storeTx) AddExamSale(ctx context.Context, examID string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE exams SET sales = sales + 1 WHERE id = $1`, examID)
	if err != nil {
		return fmt.Errorf("add exam sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrExamNotFound
	}
	return nil
}

func (t *storeTx) GetResult(ctx context.Context, key domain.ResultKey) (domain.AttemptResult, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT student_id, exam_id, score, total_questions, answers, reward_points, completed_at
		FROM attempt_results WHERE student_id = $1 AND exam_id = $2 FOR UPDATE`, key.StudentID, key.ExamID)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AttemptResult{}, domain.ErrResultNotFound
	}
	return r, err
}

// InsertResult relies on the (student_id, exam_id) primary key: a concurrent insert
// for the same pair waits for the first to commit and then inserts nothing.
func (t *storeTx) InsertResult(ctx context.Context, r domain.AttemptResult) (bool, error) {
	answers, err := json.Marshal(nonNilInts(r.Answers))
	if err != nil {
		return false, err
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO attempt_results (student_id, exam_id, score, total_questions, answers, reward_points, completed_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (student_id, exam_id) DO NOTHING`,
		r.StudentID, r.ExamID, r.Score, r.TotalQuestions, string(answers), r.RewardPoints, r.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("insert result: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *storeTx) UpdateResult(ctx context.Context, r domain.AttemptResult) error {
	answers, err := json.Marshal(nonNilInts(r.Answers))
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE attempt_results
		SET score = $3, total_questions = $4, answers = $5::jsonb, completed_at = $6
		WHERE student_id = $1 AND exam_id = $2`,
		r.StudentID, r.ExamID, r.Score, r.TotalQuestions, string(answers), r.CompletedAt)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResultNotFound
	}
	return nil
}

func (t *storeTx) ListResultsByExam(ctx context.Context, examID string) ([]domain.AttemptResult, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT student_id, exam_id, score, total_questions, answers, reward_points, completed_at
		FROM attempt_results WHERE exam_id = $1 ORDER BY student_id`, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()
	var out []domain.AttemptResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *storeTx) AppendTransaction(ctx context.Context, tr domain.Transaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions (id, exam_id, payer_id, payee_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, tr.ExamID, tr.PayerID, tr.PayeeID, tr.Amount, tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (t *storeTx) ListTransactionsByPayee(ctx context.Context, payeeID string) ([]domain.Transaction, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, exam_id, payer_id, payee_id, amount, created_at
		FROM transactions WHERE payee_id = $1 ORDER BY created_at, id`, payeeID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		var tr domain.Transaction
		if err := rows.Scan(&tr.ID, &tr.ExamID, &tr.PayerID, &tr.PayeeID, &tr.Amount, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (t *storeTx) AppendPayout(ctx context.Context, p domain.Payout) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payouts (id, teacher_id, admin_id, gross_points, amount, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
		p.ID, p.TeacherID, p.AdminID, p.GrossPoints, p.Amount.String(), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("append payout: %w", err)
	}
	return nil
}

func (t *storeTx) ListPayouts(ctx context.Context, teacherID string) ([]domain.Payout, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, teacher_id, admin_id, gross_points, amount::text, created_at
		FROM payouts WHERE teacher_id = $1 ORDER BY created_at, id`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()
	var out []domain.Payout
	for rows.Next() {
		var (
			p      domain.Payout
			amount string
		)
		if err := rows.Scan(&p.ID, &p.TeacherID, &p.AdminID, &p.GrossPoints, &amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse payout amount: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const contestColumns = `id, exam_id, grade, entry_fee, month, active, participants, winner_id, drawn_at`

func (t *storeTx) GetContest(ctx context.Context, id string) (domain.PrizeContest, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+contestColumns+` FROM prize_contests WHERE id = $1 FOR UPDATE`, id)
	c, err := scanContest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PrizeContest{}, domain.ErrContestNotFound
	}
	return c, err
}

func (t *storeTx) SaveContest(ctx context.Context, c domain.PrizeContest) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO prize_contests (`+contestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			exam_id = EXCLUDED.exam_id,
			grade = EXCLUDED.grade,
			entry_fee = EXCLUDED.entry_fee,
			month = EXCLUDED.month,
			active = EXCLUDED.active,
			participants = EXCLUDED.participants,
			winner_id = EXCLUDED.winner_id,
			drawn_at = EXCLUDED.drawn_at`,
		c.ID, c.ExamID, c.Grade, c.EntryFee, c.Month, c.Active, nonNil(c.Participants), c.WinnerID, c.DrawnAt)
	if err != nil {
		return fmt.Errorf("save contest: %w", err)
	}
	return nil
}

func (t *storeTx) ListContests(ctx context.Context, filter app.ContestFilter) ([]domain.PrizeContest, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		where = append(where, fmt.Sprintf("exam_id = $%d", len(args)))
	}
	if filter.Month != "" {
		args = append(args, filter.Month)
		where = append(where, fmt.Sprintf("month = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "active")
	}
	query := `SELECT ` + contestColumns + ` FROM prize_contests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	defer rows.Close()
	var out []domain.PrizeContest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanResult(row pgx.Row) (domain.AttemptResult, error) {
	var (
		r   domain.AttemptResult
		raw []byte
	)
	if err := row.Scan(&r.StudentID, &r.ExamID, &r.Score, &r.TotalQuestions, &raw, &r.RewardPoints, &r.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AttemptResult{}, err
		}
		return domain.AttemptResult{}, fmt.Errorf("scan result: %w", err)
	}
	if err := json.Unmarshal(raw, &r.Answers); err != nil {
		return domain.AttemptResult{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	r.CompletedAt = r.CompletedAt.UTC()
	return r, nil
}

func scanContest(row pgx.Row) (domain.PrizeContest, error) {
	var (
		c       domain.PrizeContest
		drawnAt *time.Time
	)
	if err := row.Scan(&c.ID, &c.ExamID, &c.Grade, &c.EntryFee, &c.Month, &c.Active, &c.Participants, &c.WinnerID, &drawnAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PrizeContest{}, err
		}
		return domain.PrizeContest{}, fmt.Errorf("scan contest: %w", err)
	}
	c.DrawnAt = drawnAt
	return c, nil
}

// nonNil keeps NOT NULL text[] columns from receiving a SQL NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

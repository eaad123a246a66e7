package app

import (
	"context"
	"fmt"

	"exam-reward-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EconomyRules are the configured amounts and rates of the points economy.
type EconomyRules struct {
	AdWatchReward  int
	ReferralReward int
	// PointConversionRate is the currency value of one point.
	PointConversionRate decimal.Decimal
	// CommissionPercent is kept by the platform on instructor revenue.
	CommissionPercent decimal.Decimal
	Shop              []domain.ShopItem
}

// PayoutQuote is what an instructor is owed for sales not yet paid out.
type PayoutQuote struct {
	TeacherID   string          `json:"teacherId"`
	GrossPoints int             `json:"grossPoints"`
	Amount      decimal.Decimal `json:"amount"`
}

// Ledger performs every points mutation. Each operation is one atomic balance change
// that never drives a balance below zero.
type Ledger struct {
	deps  Deps
	rules EconomyRules
}

func NewLedger(d Deps, rules EconomyRules) *Ledger {
	return &Ledger{deps: d.withDefaults(), rules: rules}
}

func (l *Ledger) Credit(ctx context.Context, accountID string, amount int) (domain.Account, error) {
	if amount <= 0 {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	return l.mutate(ctx, "credit", accountID, func(a *domain.Account) error {
		return creditAccount(a, amount)
	})
}

// Debit fails with ErrInsufficientBalance without touching the balance when amount exceeds it.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount int) (domain.Account, error) {
	if amount <= 0 {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	return l.mutate(ctx, "debit", accountID, func(a *domain.Account) error {
		return debitAccount(a, amount)
	})
}

// Adjust applies an admin correction. The balance is clamped at zero.
func (l *Ledger) Adjust(ctx context.Context, adminID, accountID string, delta int) (domain.Account, error) {
	var account domain.Account
	err := l.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		var err error
		account, err = tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		account.Points += delta
		if account.Points < 0 {
			account.Points = 0
		}
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		return domain.Account{}, err
	}
	l.deps.Logger.Info("balance adjusted",
		zap.String("adminId", adminID),
		zap.String("accountId", accountID),
		zap.Int("delta", delta),
		zap.Int("balance", account.Points),
	)
	return account, nil
}

// CreditAdWatch grants the fixed ad-watch reward.
func (l *Ledger) CreditAdWatch(ctx context.Context, accountID string) (domain.Account, error) {
	return l.Credit(ctx, accountID, l.rules.AdWatchReward)
}

// CreditReferral grants the fixed referral reward to referrerID for bringing in referredID.
func (l *Ledger) CreditReferral(ctx context.Context, referrerID, referredID string) (domain.Account, error) {
	if referrerID == referredID {
		return domain.Account{}, fmt.Errorf("%w: self referral", domain.ErrAccessDenied)
	}
	var account domain.Account
	err := l.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetAccount(ctx, referredID); err != nil {
			return err
		}
		var err error
		account, err = tx.GetAccount(ctx, referrerID)
		if err != nil {
			return err
		}
		if l.rules.ReferralReward <= 0 {
			return domain.ErrInvalidAmount
		}
		if err := creditAccount(&account, l.rules.ReferralReward); err != nil {
			return err
		}
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		return domain.Account{}, err
	}
	l.deps.Logger.Info("referral credited", zap.String("referrerId", referrerID), zap.String("referredId", referredID))
	return account, nil
}

// BuyItem debits the catalog price of itemID and adds it to the inventory.
func (l *Ledger) BuyItem(ctx context.Context, accountID, itemID string) (domain.Account, error) {
	item, ok := l.item(itemID)
	if !ok {
		return domain.Account{}, domain.ErrItemNotFound
	}
	return l.mutate(ctx, "buy item", accountID, func(a *domain.Account) error {
		if err := debitAccount(a, item.Price); err != nil {
			return err
		}
		a.Inventory = append(a.Inventory, item.ID)
		return nil
	})
}

// ComputePayout converts gross points to currency: gross * rate * (1 - commission/100).
func (l *Ledger) ComputePayout(grossPoints int) decimal.Decimal {
	keep := decimal.NewFromInt(1).Sub(l.rules.CommissionPercent.Div(decimal.NewFromInt(100)))
	return decimal.NewFromInt(int64(grossPoints)).Mul(l.rules.PointConversionRate).Mul(keep).Round(2)
}

// PayoutQuote sums the instructor's sales not yet covered by a payout.
func (l *Ledger) PayoutQuote(ctx context.Context, teacherID string) (PayoutQuote, error) {
	var gross int
	err := l.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		gross, err = unpaidGross(ctx, tx, teacherID)
		return err
	})
	if err != nil {
		return PayoutQuote{}, err
	}
	return PayoutQuote{TeacherID: teacherID, GrossPoints: gross, Amount: l.ComputePayout(gross)}, nil
}

// RecordPayout appends a payout made by adminID. grossPoints may not exceed the
// instructor's unpaid sales and amount may not exceed their converted value; the
// check and the append share one transaction so the same sales are never paid twice.
func (l *Ledger) RecordPayout(ctx context.Context, adminID, teacherID string, amount decimal.Decimal, grossPoints int) (domain.Payout, error) {
	if !amount.IsPositive() || grossPoints <= 0 {
		return domain.Payout{}, domain.ErrInvalidAmount
	}
	if amount.GreaterThan(l.ComputePayout(grossPoints)) {
		return domain.Payout{}, fmt.Errorf("%w: %s exceeds the value of %d points", domain.ErrInvalidAmount, amount.StringFixed(2), grossPoints)
	}
	payout := domain.Payout{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		AdminID:     adminID,
		GrossPoints: grossPoints,
		Amount:      amount,
		CreatedAt:   l.deps.Now(),
	}
	err := l.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		// Locks the instructor row so concurrent payouts see each other.
		if _, err := tx.GetAccount(ctx, teacherID); err != nil {
			return err
		}
		unpaid, err := unpaidGross(ctx, tx, teacherID)
		if err != nil {
			return err
		}
		if grossPoints > unpaid {
			return fmt.Errorf("%w: %d points requested, %d unpaid", domain.ErrInvalidAmount, grossPoints, unpaid)
		}
		return tx.AppendPayout(ctx, payout)
	})
	if err != nil {
		l.deps.Logger.Info("payout rejected", zap.String("teacherId", teacherID), zap.String("code", domain.Code(err)))
		return domain.Payout{}, err
	}
	l.deps.Logger.Info("payout recorded",
		zap.String("teacherId", teacherID),
		zap.String("adminId", adminID),
		zap.String("amount", amount.StringFixed(2)),
	)
	l.deps.notify(ctx, teacherID, "Payout sent",
		fmt.Sprintf("A payout of %s for %d points was recorded.", amount.StringFixed(2), grossPoints),
		domain.NotifyPayout, "")
	return payout, nil
}

// RequireAdmin returns ErrAccessDenied unless accountID is an admin.
func (l *Ledger) RequireAdmin(ctx context.Context, accountID string) error {
	return l.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return requireAdmin(ctx, tx, accountID)
	})
}

func (l *Ledger) Account(ctx context.Context, accountID string) (domain.Account, error) {
	var account domain.Account
	err := l.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		account, err = tx.GetAccount(ctx, accountID)
		return err
	})
	return account, err
}

func (l *Ledger) mutate(ctx context.Context, op, accountID string, fn func(*domain.Account) error) (domain.Account, error) {
	var account domain.Account
	err := l.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		account, err = tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := fn(&account); err != nil {
			return err
		}
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		l.deps.Logger.Info("ledger operation rejected", zap.String("op", op), zap.String("accountId", accountID), zap.String("code", domain.Code(err)))
		return domain.Account{}, err
	}
	return account, nil
}

func (l *Ledger) item(id string) (domain.ShopItem, bool) {
	for _, item := range l.rules.Shop {
		if item.ID == id {
			return item, true
		}
	}
	return domain.ShopItem{}, false
}

func unpaidGross(ctx context.Context, tx Tx, teacherID string) (int, error) {
	txs, err := tx.ListTransactionsByPayee(ctx, teacherID)
	if err != nil {
		return 0, err
	}
	payouts, err := tx.ListPayouts(ctx, teacherID)
	if err != nil {
		return 0, err
	}
	gross := 0
	for _, t := range txs {
		gross += t.Amount
	}
	for _, p := range payouts {
		gross -= p.GrossPoints
	}
	if gross < 0 {
		return 0, nil
	}
	return gross, nil
}

func requireAdmin(ctx context.Context, tx Tx, accountID string) error {
	account, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", domain.ErrAccessDenied)
	}
	return nil
}

func creditAccount(a *domain.Account, amount int) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	a.Points += amount
	return nil
}

func debitAccount(a *domain.Account, amount int) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	if a.Points < amount {
		return fmt.Errorf("%w: balance %d, need %d", domain.ErrInsufficientBalance, a.Points, amount)
	}
	a.Points -= amount
	return nil
}

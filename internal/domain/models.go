package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the account role used by access and admin checks.
type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Account is a platform identity together with its wallet.
type Account struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Role             Role     `json:"role"`
	Grade            string   `json:"grade,omitempty"`
	Points           int      `json:"points"`
	Inventory        []string `json:"inventory"`
	PurchasedExamIDs []string `json:"purchasedExamIds"`
	ContestEntries   []string `json:"contestEntries"`
}

// HasPurchased reports whether examID is in the purchased set.
func (a Account) HasPurchased(examID string) bool {
	return contains(a.PurchasedExamIDs, examID)
}

// HasEntered reports whether the account paid the entry fee of contestID.
func (a Account) HasEntered(contestID string) bool {
	return contains(a.ContestEntries, contestID)
}

// Difficulty is the exam tier that scales reward points.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Multiplier returns the reward multiplier of the tier. Tier names match case
// insensitively; unknown tiers score as Easy.
func (d Difficulty) Multiplier() float64 {
	switch {
	case strings.EqualFold(string(d), string(DifficultyMedium)):
		return 1.5
	case strings.EqualFold(string(d), string(DifficultyHard)):
		return 2.0
	default:
		return 1.0
	}
}

// Question is a multiple choice question with an index-based correct answer.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// ExamDefinition is a timed exam published by an instructor.
type ExamDefinition struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	CreatorID        string     `json:"creatorId"`
	Price            int        `json:"price"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	Questions        []Question `json:"questions"`
	Sales            int        `json:"sales"`
}

// TimeLimit returns the allowed attempt duration.
func (e ExamDefinition) TimeLimit() time.Duration {
	return time.Duration(e.TimeLimitMinutes) * time.Minute
}

// BlankAnswer marks an unanswered question.
const BlankAnswer = -1

// SessionStatus enumerates attempt session states. Transitions only go started -> completed.
type SessionStatus string

const (
	SessionStarted   SessionStatus = "started"
	SessionCompleted SessionStatus = "completed"
)

// AttemptSession carries the trusted start time of one attempt.
type AttemptSession struct {
	StudentID   string        `json:"studentId"`
	ExamID      string        `json:"examId"`
	StartedAt   time.Time     `json:"startedAt"`
	Deadline    time.Time     `json:"deadline"`
	Status      SessionStatus `json:"status"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Draft       []int         `json:"draft,omitempty"`
	// Legacy is set when the session was read from a bare exam id key.
	Legacy bool `json:"-"`
}

// Key returns the canonical key of the session.
func (s AttemptSession) Key() SessionKey {
	return CanonicalKey(s.StudentID, s.ExamID)
}

// AttemptResult is the single result record of a (student, exam) pair.
type AttemptResult struct {
	StudentID      string    `json:"studentId"`
	ExamID         string    `json:"examId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Answers        []int     `json:"answers"`
	RewardPoints   int       `json:"rewardPoints"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Transaction is an immutable exam purchase entry.
type Transaction struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"examId"`
	PayerID   string    `json:"payerId"`
	PayeeID   string    `json:"payeeId"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// PrizeContest is a sponsored monthly draw over a linked exam.
type PrizeContest struct {
	ID           string     `json:"id"`
	ExamID       string     `json:"examId"`
	Grade        string     `json:"grade,omitempty"`
	EntryFee     int        `json:"entryFee"`
	Month        string     `json:"month"`
	Active       bool       `json:"active"`
	Participants []string   `json:"participants"`
	WinnerID     string     `json:"winnerId,omitempty"`
	DrawnAt      *time.Time `json:"drawnAt,omitempty"`
}

// HasParticipant reports whether studentID paid the entry fee.
func (c PrizeContest) HasParticipant(studentID string) bool {
	return contains(c.Participants, studentID)
}

// Drawn reports whether the contest reached its terminal state.
func (c PrizeContest) Drawn() bool {
	return !c.Active && c.WinnerID != ""
}

// Payout is an append-only instructor payout in currency units.
type Payout struct {
	ID          string          `json:"id"`
	TeacherID   string          `json:"teacherId"`
	AdminID     string          `json:"adminId"`
	GrossPoints int             `json:"grossPoints"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ShopItem is a catalog entry purchasable with points.
type ShopItem struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Price int    `yaml:"price" json:"price"`
}

// NotificationKind groups notifications for clients.
type NotificationKind string

const (
	NotifyExamCompleted NotificationKind = "exam_completed"
	NotifyExamSold      NotificationKind = "exam_sold"
	NotifyPrizeWon      NotificationKind = "prize_won"
	NotifyPayout        NotificationKind = "payout"
)

// Notification is a fire-and-forget message to a user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	Link      string           `json:"link,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

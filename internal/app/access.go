package app

import (
	"fmt"

	"exam-reward-service/internal/domain"
)

// AccessReason explains an access decision.
type AccessReason string

const (
	AccessFree         AccessReason = "free"
	AccessCreator      AccessReason = "creator"
	AccessAdmin        AccessReason = "admin"
	AccessPurchased    AccessReason = "purchased"
	AccessContestEntry AccessReason = "contest_entry"
	AccessPriceDue     AccessReason = "price_due"
)

// AccessDecision is the result of CanStart. Price is set when the exam must be bought.
type AccessDecision struct {
	Allowed bool         `json:"allowed"`
	Reason  AccessReason `json:"reason"`
	Price   int          `json:"price,omitempty"`
}

// Err converts a denial into ErrAccessDenied carrying the required price.
func (d AccessDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: exam costs %d points", domain.ErrAccessDenied, d.Price)
}

// CanStart decides whether student may start exam. Rules are evaluated in order;
// contests are the active contests linked to the exam.
func CanStart(student domain.Account, exam domain.ExamDefinition, contests []domain.PrizeContest) AccessDecision {
	switch {
	case exam.Price == 0:
		return AccessDecision{Allowed: true, Reason: AccessFree}
	case student.ID == exam.CreatorID:
		return AccessDecision{Allowed: true, Reason: AccessCreator}
	case student.Role == domain.RoleAdmin:
		return AccessDecision{Allowed: true, Reason: AccessAdmin}
	case student.HasPurchased(exam.ID):
		return AccessDecision{Allowed: true, Reason: AccessPurchased}
	}
	for _, c := range contests {
		if c.Active && c.ExamID == exam.ID && c.HasParticipant(student.ID) {
			return AccessDecision{Allowed: true, Reason: AccessContestEntry}
		}
	}
	return AccessDecision{Allowed: false, Reason: AccessPriceDue, Price: exam.Price}
}

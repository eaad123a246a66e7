package http

import (
	"errors"
	"net/http"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserHeader carries the authenticated caller id, set by the gateway in front of the service.
const UserHeader = "X-User-ID"

// Handler exposes the exam, economy and contest use cases as JSON endpoints.
type Handler struct {
	exams    *app.ExamService
	ledger   *app.Ledger
	contests *app.ContestService
	log      *zap.Logger
}

func NewHandler(exams *app.ExamService, ledger *app.Ledger, contests *app.ContestService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{exams: exams, ledger: ledger, contests: contests, log: log}
}

type answersRequest struct {
	Answers []int `json:"answers"`
}

type referralRequest struct {
	ReferredID string `json:"referredId"`
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

type payoutRequest struct {
	Amount      decimal.NullDecimal `json:"amount"`
	GrossPoints *int                `json:"grossPoints"`
}

func (h *Handler) access(w http.ResponseWriter, r *http.Request) {
	decision, err := h.exams.CheckAccess(r.Context(), caller(r), chi.URLParam(r, "examID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.exams.StartSession(r.Context(), caller(r), chi.URLParam(r, "examID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if view.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, view)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.exams.Session(r.Context(), caller(r), chi.URLParam(r, "examID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decode(r, &req); err != nil {
		writeCode(w, codeBadRequest, "invalid answers body")
		return
	}
	if err := h.exams.SaveDraft(r.Context(), caller(r), chi.URLParam(r, "examID"), req.Answers); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := decode(r, &req); err != nil {
		writeCode(w, codeBadRequest, "invalid answers body")
		return
	}
	out, err := h.exams.Submit(r.Context(), caller(r), chi.URLParam(r, "examID"), req.Answers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	account, err := h.exams.Purchase(r.Context(), caller(r), chi.URLParam(r, "examID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) enterContest(w http.ResponseWriter, r *http.Request) {
	contest, err := h.contests.PayEntryFee(r.Context(), caller(r), chi.URLParam(r, "contestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contest)
}

func (h *Handler) drawContest(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.RequireAdmin(r.Context(), caller(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.contests.DrawWinner(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) adWatch(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.CreditAdWatch(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) referral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := decode(r, &req); err != nil || req.ReferredID == "" {
		writeCode(w, codeBadRequest, "referredId is required")
		return
	}
	account, err := h.ledger.CreditReferral(r.Context(), caller(r), req.ReferredID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) buyItem(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.BuyItem(r.Context(), caller(r), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decode(r, &req); err != nil {
		writeCode(w, codeBadRequest, "invalid adjust body")
		return
	}
	account, err := h.ledger.Adjust(r.Context(), caller(r), chi.URLParam(r, "accountID"), req.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) payoutQuote(w http.ResponseWriter, r *http.Request) {
	teacherID := chi.URLParam(r, "teacherID")
	if id := caller(r); id != teacherID {
		if err := h.ledger.RequireAdmin(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	quote, err := h.ledger.PayoutQuote(r.Context(), teacherID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// recordPayout pays the current quote unless the body names an explicit amount.
func (h *Handler) recordPayout(w http.ResponseWriter, r *http.Request) {
	teacherID := chi.URLParam(r, "teacherID")
	var req payoutRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeCode(w, codeBadRequest, "invalid payout body")
		return
	}
	if !req.Amount.Valid || req.GrossPoints == nil {
		quote, err := h.ledger.PayoutQuote(r.Context(), teacherID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !req.Amount.Valid {
			req.Amount = decimal.NewNullDecimal(quote.Amount)
		}
		if req.GrossPoints == nil {
			req.GrossPoints = &quote.GrossPoints
		}
	}
	payout, err := h.ledger.RecordPayout(r.Context(), caller(r), teacherID, req.Amount.Decimal, *req.GrossPoints)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payout)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if code := statusFor(domain.Code(err)); code >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, err)
}

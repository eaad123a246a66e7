package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"exam-reward-service/internal/domain"
)

const (
	codeBadRequest      = "BAD_REQUEST"
	codeUnauthenticated = "UNAUTHENTICATED"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a reason code to the HTTP status returned to the caller.
func statusFor(code string) int {
	switch code {
	case domain.CodeMalformedSubmission, domain.CodeInvalidAmount, codeBadRequest:
		return http.StatusBadRequest
	case codeUnauthenticated:
		return http.StatusUnauthorized
	case domain.CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case domain.CodeAccessDenied:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidSession, domain.CodeAlreadyCompleted, domain.CodeContestClosed, domain.CodeNoCandidates,
		domain.CodeTimeRemaining:
		return http.StatusConflict
	case domain.CodeDeadlineExceeded:
		return http.StatusGone
	case domain.CodeSubmittedTooFast:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := domain.Code(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		msg = "internal error"
	}
	writeJSON(w, statusFor(code), errorBody{Code: code, Message: msg})
}

func writeCode(w http.ResponseWriter, code, msg string) {
	writeJSON(w, statusFor(code), errorBody{Code: code, Message: msg})
}

var errEmptyBody = errors.New("empty body")

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

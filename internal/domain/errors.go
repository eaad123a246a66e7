package domain

import "errors"

var (
	// ErrAccessDenied is returned when the student has no entitlement to an exam or action.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidSession is returned when the session is missing or owned by someone else.
	ErrInvalidSession = errors.New("invalid session")
	// ErrMalformedSubmission indicates the answers do not fit the exam.
	ErrMalformedSubmission = errors.New("malformed submission")
	// ErrSubmittedTooFast rejects submissions that arrive before the minimum elapsed time.
	ErrSubmittedTooFast = errors.New("submitted too fast")
	// ErrAlreadyCompleted guards against a second completion of the same session.
	ErrAlreadyCompleted = errors.New("attempt already completed")
	// ErrInsufficientBalance aborts a debit larger than the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoCandidates is returned when a prize draw has nobody to pick.
	ErrNoCandidates = errors.New("no candidates for prize draw")
	// ErrDeadlineExceeded rejects submissions after the deadline and its grace period.
	ErrDeadlineExceeded = errors.New("attempt deadline exceeded")
	// ErrContestClosed is returned for entries or draws on an inactive contest.
	ErrContestClosed = errors.New("prize contest closed")
	// ErrTimeRemaining refuses an automatic finish before the countdown reaches zero.
	ErrTimeRemaining = errors.New("attempt time remains")
	// ErrInvalidAmount rejects negative or zero ledger amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	ErrAccountNotFound = errors.New("account not found")
	ErrExamNotFound    = errors.New("exam not found")
	ErrContestNotFound = errors.New("prize contest not found")
	ErrItemNotFound    = errors.New("shop item not found")
	ErrSessionNotFound = errors.New("attempt session not found")
	ErrResultNotFound  = errors.New("attempt result not found")
)

// Reason codes surfaced to callers.
const (
	CodeAccessDenied        = "ACCESS_DENIED"
	CodeInvalidSession      = "INVALID_SESSION"
	CodeMalformedSubmission = "MALFORMED_SUBMISSION"
	CodeSubmittedTooFast    = "SUBMITTED_TOO_FAST"
	CodeAlreadyCompleted    = "ALREADY_COMPLETED"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeNoCandidates        = "NO_CANDIDATES"
	CodeDeadlineExceeded    = "DEADLINE_EXCEEDED"
	CodeContestClosed       = "CONTEST_CLOSED"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeTimeRemaining       = "TIME_REMAINING"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrAccessDenied, CodeAccessDenied},
	{ErrInvalidSession, CodeInvalidSession},
	{ErrSessionNotFound, CodeInvalidSession},
	{ErrMalformedSubmission, CodeMalformedSubmission},
	{ErrSubmittedTooFast, CodeSubmittedTooFast},
	{ErrAlreadyCompleted, CodeAlreadyCompleted},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrNoCandidates, CodeNoCandidates},
	{ErrDeadlineExceeded, CodeDeadlineExceeded},
	{ErrContestClosed, CodeContestClosed},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrTimeRemaining, CodeTimeRemaining},
	{ErrAccountNotFound, CodeNotFound},
	{ErrExamNotFound, CodeNotFound},
	{ErrContestNotFound, CodeNotFound},
	{ErrItemNotFound, CodeNotFound},
	{ErrResultNotFound, CodeNotFound},
}

// Code maps err to its reason code. Unknown errors are INTERNAL.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
	"exam-reward-service/internal/infra/memory"
	"exam-reward-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	*httptest.Server
	store *memory.Store
	clock *clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.PutExam(domain.ExamDefinition{
		ID:               "exam-1",
		Title:            "Arithmetic",
		CreatorID:        "teacher-1",
		Price:            30,
		Difficulty:       domain.DifficultyMedium,
		TimeLimitMinutes: 1,
		Questions: []domain.Question{
			{Prompt: "2 + 2", Options: []string{"3", "4"}, CorrectIndex: 1},
			{Prompt: "3 + 3", Options: []string{"6", "7"}, CorrectIndex: 0},
		},
	})
	store.PutAccount(domain.Account{ID: "teacher-1", Role: domain.RoleInstructor})
	store.PutAccount(domain.Account{ID: "admin-1", Role: domain.RoleAdmin})
	store.PutAccount(domain.Account{ID: "s1", Role: domain.RoleLearner, Points: 50})
	store.PutContest(domain.PrizeContest{ID: "contest-1", ExamID: "exam-1", EntryFee: 10, Month: "2026-10", Active: true})

	c := &clock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	deps := app.Deps{
		Sessions: memory.NewSessionStore(),
		Exams:    memory.NewExamRepository(store, time.Minute),
		Store:    store,
		Metrics:  m,
		Now:      c.Now,
	}
	exams := app.NewExamService(deps, app.DefaultRules())
	ledger := app.NewLedger(deps, app.EconomyRules{
		AdWatchReward:       5,
		ReferralReward:      50,
		PointConversionRate: decimal.RequireFromString("0.01"),
		CommissionPercent:   decimal.NewFromInt(20),
		Shop:                []domain.ShopItem{{ID: "hat", Name: "Hat", Price: 5}},
	})
	contests := app.NewContestService(deps, app.NewRandomSource(1))

	router := NewRouter(RouterConfig{
		API:      NewHandler(exams, ledger, contests, nil),
		Timer:    NewTimerHandler(exams, 20*time.Millisecond, nil),
		Metrics:  m,
		Gatherer: reg,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, clock: c}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRequiresCaller(t *testing.T) {
	srv := newTestServer(t)
	resp, body := srv.do(t, http.MethodGet, "/api/exams/exam-1/access", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, codeUnauthenticated, body["code"])
}

func TestExamFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, "/api/exams/exam-1/access", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["allowed"])

	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/session", "s1", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, domain.CodeAccessDenied, body["code"])

	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/purchase", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 20, body["points"])

	resp, _ = srv.do(t, http.MethodPost, "/api/exams/exam-1/session", "s1", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/session", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["resumed"])

	resp, _ = srv.do(t, http.MethodPut, "/api/exams/exam-1/session/answers", "s1", map[string]any{"answers": []int{1, -1}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/submit", "s1", map[string]any{"answers": []int{1, 0}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, domain.CodeSubmittedTooFast, body["code"])

	srv.clock.Advance(20 * time.Second)
	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/submit", "s1", map[string]any{"answers": []int{1}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, domain.CodeMalformedSubmission, body["code"])

	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/submit", "s1", map[string]any{"answers": []int{1, 0}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["firstCompletion"])
	result := body["result"].(map[string]any)
	require.EqualValues(t, 30, result["rewardPoints"])

	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/submit", "s1", map[string]any{"answers": []int{1, 0}})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, domain.CodeAlreadyCompleted, body["code"])
}

func TestEconomyOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodPost, "/api/rewards/ad-watch", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 55, body["points"])

	resp, _ = srv.do(t, http.MethodPost, "/api/rewards/referral", "s1", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, body = srv.do(t, http.MethodPost, "/api/rewards/referral", "s1", map[string]any{"referredId": "teacher-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 105, body["points"])

	resp, body = srv.do(t, http.MethodPost, "/api/shop/items/hat/buy", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 100, body["points"])

	resp, body = srv.do(t, http.MethodPost, "/api/admin/accounts/s1/adjust", "s1", map[string]any{"delta": 10})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, body = srv.do(t, http.MethodPost, "/api/admin/accounts/s1/adjust", "admin-1", map[string]any{"delta": -500})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, body["points"])

	resp, body = srv.do(t, http.MethodPost, "/api/exams/exam-1/purchase", "s1", nil)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	require.Equal(t, domain.CodeInsufficientBalance, body["code"])
}

func TestPayoutOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := srv.do(t, http.MethodPost, "/api/exams/exam-1/purchase", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := srv.do(t, http.MethodGet, "/api/teachers/teacher-1/payout-quote", "s1", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, "/api/teachers/teacher-1/payout-quote", "teacher-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 30, body["grossPoints"])
	require.Equal(t, "0.24", body["amount"])

	resp, body = srv.do(t, http.MethodPost, "/api/teachers/teacher-1/payouts", "admin-1", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.EqualValues(t, 30, body["grossPoints"])

	resp, body = srv.do(t, http.MethodGet, "/api/teachers/teacher-1/payout-quote", "admin-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, body["grossPoints"])

	resp, body = srv.do(t, http.MethodPost, "/api/teachers/teacher-1/payouts", "admin-1", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, domain.CodeInvalidAmount, body["code"])
}

func TestContestOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodPost, "/api/contests/contest-1/entry", "s1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{"s1"}, body["participants"])

	resp, _ = srv.do(t, http.MethodPost, "/api/contests/contest-1/draw", "s1", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, body = srv.do(t, http.MethodPost, "/api/contests/contest-1/draw", "admin-1", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, domain.CodeNoCandidates, body["code"])

	// Entry grants access to the paid exam.
	resp, _ = srv.do(t, http.MethodPost, "/api/exams/exam-1/session", "s1", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	srv.clock.Advance(15 * time.Second)
	resp, _ = srv.do(t, http.MethodPost, "/api/exams/exam-1/submit", "s1", map[string]any{"answers": []int{1, 1}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = srv.do(t, http.MethodPost, "/api/contests/contest-1/draw", "admin-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "s1", body["winner"].(map[string]any)["studentId"])

	resp, body = srv.do(t, http.MethodPost, "/api/contests/contest-1/entry", "s1", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, domain.CodeContestClosed, body["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/api/exams/exam-1/access", "s1", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	require.Contains(t, buf.String(), `route="/api/exams/{examID}/access"`)
}

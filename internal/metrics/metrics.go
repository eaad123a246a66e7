package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	submissions     *prometheus.CounterVec
	rewardPoints    prometheus.Counter
	purchases       *prometheus.CounterVec
	entries         *prometheus.CounterVec
	draws           *prometheus.CounterVec
	sweptSessions   prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Exam submissions by outcome code",
		}, []string{"outcome"}),
		rewardPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_reward_points_total",
			Help: "Reward points credited on first completions",
		}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_purchases_total",
			Help: "Exam purchases by outcome code",
		}, []string{"outcome"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prize_contest_entries_total",
			Help: "Prize contest entry fee payments by outcome code",
		}, []string{"outcome"}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prize_draws_total",
			Help: "Prize draws by outcome code",
		}, []string{"outcome"}),
		sweptSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_sessions_swept_total",
			Help: "Expired sessions finalised by the sweeper",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.submissions, m.rewardPoints, m.purchases, m.entries, m.draws, m.sweptSessions, m.requestDuration)
	return m
}

func outcome(code string) string {
	if code == "" {
		return "ok"
	}
	return code
}

func (m *Metrics) Submission(code string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome(code)).Inc()
}

func (m *Metrics) RewardCredited(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.rewardPoints.Add(float64(points))
}

func (m *Metrics) Purchase(code string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome(code)).Inc()
}

func (m *Metrics) ContestEntry(code string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(outcome(code)).Inc()
}

func (m *Metrics) Draw(code string) {
	if m == nil {
		return
	}
	m.draws.WithLabelValues(outcome(code)).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptSessions.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

package http

import (
	"context"
	"net/http"
	"time"

	"exam-reward-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey struct{}

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	API     *Handler
	Timer   *TimerHandler
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Timer != nil {
		r.With(requireUser).Get("/ws/exams/{examID}/timer", cfg.Timer.ServeWS)
	}

	h := cfg.API
	r.Route("/api", func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/exams/{examID}", func(r chi.Router) {
			r.Get("/access", h.access)
			r.Post("/session", h.startSession)
			r.Get("/session", h.getSession)
			r.Put("/session/answers", h.saveDraft)
			r.Post("/submit", h.submit)
			r.Post("/purchase", h.purchase)
		})
		r.Post("/contests/{contestID}/entry", h.enterContest)
		r.Post("/contests/{contestID}/draw", h.drawContest)
		r.Post("/rewards/ad-watch", h.adWatch)
		r.Post("/rewards/referral", h.referral)
		r.Post("/shop/items/{itemID}/buy", h.buyItem)
		r.Post("/admin/accounts/{accountID}/adjust", h.adjust)
		r.Get("/teachers/{teacherID}/payout-quote", h.payoutQuote)
		r.Post("/teachers/{teacherID}/payouts", h.recordPayout)
	})
	return r
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			writeCode(w, codeUnauthenticated, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func caller(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// instrument records request durations labelled by the matched route pattern.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}

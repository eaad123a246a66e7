package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"exam-reward-service/internal/app"
	"exam-reward-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TimerHandler streams the server-side countdown of an attempt over a websocket.
// Clients may save draft answers and finish through the same socket; when the
// countdown reaches zero the attempt is finished with the saved draft.
// Closing the socket leaves the session started.
type TimerHandler struct {
	exams    *app.ExamService
	interval time.Duration
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewTimerHandler(exams *app.ExamService, interval time.Duration, log *zap.Logger) *TimerHandler {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TimerHandler{
		exams:    exams,
		interval: interval,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type tickPayload struct {
	RemainingSeconds int64                `json:"remainingSeconds"`
	Status           domain.SessionStatus `json:"status"`
}

func (h *TimerHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	userID := caller(r)
	if examID == "" || userID == "" {
		writeCode(w, codeBadRequest, "missing exam id or caller")
		return
	}
	// Fail before upgrading so the client gets a plain JSON error.
	view, err := h.exams.Session(r.Context(), userID, examID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", zap.Error(err))
				cancel()
				return
			}
		}
	}()

	emit := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	emit(outboundMessage{Type: "tick", Payload: tickPayload{RemainingSeconds: view.RemainingSeconds, Status: view.Session.Status}})

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			view, err := h.exams.Session(ctx, userID, examID)
			if err != nil {
				emit(errorMessage(err))
				cancel()
				return
			}
			if !emit(outboundMessage{Type: "tick", Payload: tickPayload{RemainingSeconds: view.RemainingSeconds, Status: view.Session.Status}}) {
				return
			}
			if view.Session.Status == domain.SessionCompleted {
				cancel()
				return
			}
			if view.RemainingSeconds == 0 {
				out, err := h.exams.AutoFinish(ctx, userID, examID)
				if err != nil {
					emit(errorMessage(err))
				} else {
					emit(outboundMessage{Type: "result", Payload: out})
				}
				cancel()
				return
			}
		}
	}()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readLoop(ctx, conn, userID, examID, emit, cancel)
	}()

	<-ctx.Done()
	<-tickerDone
	// Unblock the reader so nothing emits after send is closed.
	_ = conn.SetReadDeadline(time.Now())
	<-readerDone
	close(send)
	<-writerDone
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func (h *TimerHandler) readLoop(ctx context.Context, conn *websocket.Conn, userID, examID string, emit func(outboundMessage) bool, cancel context.CancelFunc) {
	defer cancel()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answers", "finish":
			var payload answersRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage{Type: "error", Payload: errorBody{Code: codeBadRequest, Message: "invalid answers payload"}})
				continue
			}
			if inbound.Type == "answers" {
				if err := h.exams.SaveDraft(ctx, userID, examID, payload.Answers); err != nil {
					emit(errorMessage(err))
					continue
				}
				emit(outboundMessage{Type: "saved", Payload: payload})
				continue
			}
			out, err := h.exams.Submit(ctx, userID, examID, payload.Answers)
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage{Type: "result", Payload: out})
			return
		default:
			emit(outboundMessage{Type: "error", Payload: errorBody{Code: codeBadRequest, Message: "unsupported message type"}})
		}
	}
}

func errorMessage(err error) outboundMessage {
	code := domain.Code(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		msg = "internal error"
	}
	return outboundMessage{Type: "error", Payload: errorBody{Code: code, Message: msg}}
}

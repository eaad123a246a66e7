package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"exam-reward-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.AttemptSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.AttemptSession),
	}
}

func (s *SessionStore) StartOrResume(_ context.Context, candidate domain.AttemptSession) (domain.AttemptSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := candidate.Key().String()
	if existing, ok := s.sessions[key]; ok && existing.Status == domain.SessionStarted {
		return cloneSession(existing), false, nil
	}
	candidate.Legacy = false
	s.sessions[key] = cloneSession(candidate)
	return cloneSession(candidate), true, nil
}

func (s *SessionStore) Get(_ context.Context, studentID, examID string) (domain.AttemptSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[domain.CanonicalKey(studentID, examID).String()]; ok {
		return cloneSession(session), nil
	}
	if session, ok := s.sessions[domain.LegacyKey(examID).String()]; ok {
		session = cloneSession(session)
		session.Legacy = true
		return session, nil
	}
	return domain.AttemptSession{}, domain.ErrSessionNotFound
}

func (s *SessionStore) SaveDraft(_ context.Context, key domain.SessionKey, answers []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key.String()]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != domain.SessionStarted {
		return domain.ErrAlreadyCompleted
	}
	session.Draft = append([]int(nil), answers...)
	s.sessions[key.String()] = session
	return nil
}

func (s *SessionStore) Complete(_ context.Context, key domain.SessionKey, at time.Time) (domain.AttemptSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key.String()]
	if !ok {
		return domain.AttemptSession{}, domain.ErrSessionNotFound
	}
	if session.Status != domain.SessionStarted {
		return domain.AttemptSession{}, domain.ErrAlreadyCompleted
	}
	session.Status = domain.SessionCompleted
	session.CompletedAt = &at
	s.sessions[key.String()] = session
	return cloneSession(session), nil
}

func (s *SessionStore) ListExpired(_ context.Context, before time.Time) ([]domain.AttemptSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AttemptSession
	for key, session := range s.sessions {
		if domain.ParseSessionKey(key).Version != domain.KeyComposite {
			continue
		}
		if session.Status == domain.SessionStarted && session.Deadline.Before(before) {
			out = append(out, cloneSession(session))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

// PutLegacy stores a session under the bare exam id key, as old clients did.
func (s *SessionStore) PutLegacy(session domain.AttemptSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[domain.LegacyKey(session.ExamID).String()] = cloneSession(session)
}

func cloneSession(s domain.AttemptSession) domain.AttemptSession {
	s.Draft = append([]int(nil), s.Draft...)
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		s.CompletedAt = &at
	}
	return s
}

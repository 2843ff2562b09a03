package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/open-rails/purchasekit/entitlements"
)

// SessionLog is an in-memory entitlements.SessionLog.
type SessionLog struct {
	mu   sync.Mutex
	data map[string]entitlements.CheckoutSession
}

func NewSessionLog() *SessionLog {
	return &SessionLog{data: make(map[string]entitlements.CheckoutSession)}
}

func (l *SessionLog) Insert(ctx context.Context, s entitlements.CheckoutSession) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.data[s.ID]; ok {
		return nil
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = entitlements.SessionOpen
	}
	l.data[s.ID] = s
	return nil
}

func (l *SessionLog) Get(ctx context.Context, sessionID string) (entitlements.CheckoutSession, bool, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.data[sessionID]
	return s, ok, nil
}

func (l *SessionLog) MarkCompleted(ctx context.Context, sessionID string) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.data[sessionID]; ok && s.Status == entitlements.SessionOpen {
		s.Status = entitlements.SessionCompleted
		l.data[sessionID] = s
	}
	return nil
}

func (l *SessionLog) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, s := range l.data {
		if s.Status == entitlements.SessionOpen && s.CreatedAt.Before(cutoff) {
			s.Status = entitlements.SessionExpired
			l.data[id] = s
			n++
		}
	}
	return n, nil
}

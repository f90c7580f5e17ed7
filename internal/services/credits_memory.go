package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type creditWindow struct {
	remaining int
	resetsAt  time.Time
}

// MemoryCreditLedger mirrors the redis ledger for tests and
// redis-less development. The mutex gives the same at-most-one-
// overdraft guarantee the Lua script gives in production.
type MemoryCreditLedger struct {
	mu         sync.Mutex
	windows    map[uuid.UUID]*creditWindow
	maxCredits int
	window     time.Duration
	now        func() time.Time
}

func NewMemoryCreditLedger(maxCredits int, window time.Duration) *MemoryCreditLedger {
	return &MemoryCreditLedger{
		windows:    make(map[uuid.UUID]*creditWindow),
		maxCredits: maxCredits,
		window:     window,
		now:        time.Now,
	}
}

func (l *MemoryCreditLedger) Consume(_ context.Context, userID uuid.UUID) (ConsumeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[userID]
	if !exists || now.After(w.resetsAt) {
		l.windows[userID] = &creditWindow{
			remaining: l.maxCredits - 1,
			resetsAt:  now.Add(l.window),
		}
		return ConsumeResult{Success: true, Credits: l.maxCredits - 1}, nil
	}

	if w.remaining <= 0 {
		return ConsumeResult{
			Success: false,
			Credits: 0,
			Message: ExhaustedMessage,
		}, nil
	}

	w.remaining--
	return ConsumeResult{Success: true, Credits: w.remaining}, nil
}

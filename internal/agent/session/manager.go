package session

import (
	"context"
	"sync"
	"time"

	"github.com/tgifai/macmate/internal/pkg/logs"
)

const (
	DefaultHistoryLimit = 40
	defaultGCInterval   = 10 * time.Minute
)

type ManagerOptions struct {
	HistoryLimit int
	// TTL evicts sessions idle for longer than this. Zero keeps them forever.
	TTL time.Duration
}

// Manager owns every user's Session, keyed by user id.
type Manager struct {
	sessMap sync.Map
	limit   int
	ttl     time.Duration
}

func NewManager(opts ...ManagerOptions) *Manager {
	mgr := &Manager{limit: DefaultHistoryLimit}
	if len(opts) > 0 {
		if opts[0].HistoryLimit > 0 {
			mgr.limit = opts[0].HistoryLimit
		}
		mgr.ttl = opts[0].TTL
	}
	return mgr
}

func (m *Manager) GetOrCreate(userID string) *Session {
	if raw, ok := m.sessMap.Load(userID); ok {
		return raw.(*Session)
	}
	actual, _ := m.sessMap.LoadOrStore(userID, newSession(userID, m.limit))
	return actual.(*Session)
}

func (m *Manager) Get(userID string) (*Session, bool) {
	raw, ok := m.sessMap.Load(userID)
	if !ok {
		return nil, false
	}
	return raw.(*Session), true
}

func (m *Manager) Delete(userID string) {
	m.sessMap.Delete(userID)
}

func (m *Manager) Count() int {
	n := 0
	m.sessMap.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// GC removes sessions idle since before now-TTL and reports how many went.
func (m *Manager) GC(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-m.ttl)
	removed := 0
	m.sessMap.Range(func(key, value any) bool {
		if value.(*Session).UpdatedAt().Before(cutoff) {
			m.sessMap.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (m *Manager) StartGCLoop(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = defaultGCInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := m.GC(now); removed > 0 {
					logs.CtxInfo(ctx, "[session] GC removed %d idle session(s)", removed)
				}
			}
		}
	}()
}

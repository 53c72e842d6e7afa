package macagent

import (
	"context"
	"sync"
	"time"
)

const (
	defaultStatusTTL   = time.Minute
	defaultPingTimeout = 3 * time.Second
)

// StatusCache remembers the last ping result so hot paths such as chat
// prompts do not open a connection per message.
type StatusCache struct {
	client      *Client
	ttl         time.Duration
	pingTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	online  bool
	checked time.Time
}

func NewStatusCache(client *Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusCache{
		client:      client,
		ttl:         ttl,
		pingTimeout: defaultPingTimeout,
		now:         time.Now,
	}
}

// Online returns the cached result, pinging with a short timeout once it is
// older than ttl.
func (s *StatusCache) Online(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checked.IsZero() && s.now().Sub(s.checked) < s.ttl {
		return s.online
	}
	return s.pingLocked(ctx)
}

// Refresh pings now and stores the result.
func (s *StatusCache) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingLocked(ctx)
}

func (s *StatusCache) pingLocked(ctx context.Context) bool {
	if !s.client.Configured() {
		s.online, s.checked = false, s.now()
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	s.online, s.checked = s.client.Ping(ctx), s.now()
	return s.online
}

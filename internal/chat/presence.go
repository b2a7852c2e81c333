package chat

import "sync"

// PresenceTracker reference-counts live sessions per identity. A user with
// several devices stays online until the last connection closes; only the
// 0-to-1 and 1-to-0 transitions are reported.
type PresenceTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{counts: make(map[string]int)}
}

// Connect increments the identity's live-session count and reports whether the
// user just came online.
func (p *PresenceTracker) Connect(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	return p.counts[userID] == 1
}

// Disconnect decrements the count and reports whether the user just went
// offline.
func (p *PresenceTracker) Disconnect(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.counts[userID]
	if n <= 1 {
		delete(p.counts, userID)
		return n == 1
	}
	p.counts[userID] = n - 1
	return false
}

func (p *PresenceTracker) Sessions(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID]
}

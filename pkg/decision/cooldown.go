// pkg/decision/cooldown.go
package decision

import (
	"sync"
	"time"
)

// CooldownTracker maps action names to cooldown-expiry timestamps. It is
// read by the decision-filtering step and claimed by the dispatcher, which
// may run concurrently, so every check and set happens under one lock.
type CooldownTracker struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Active reports whether the named action is still cooling down.
func (ct *CooldownTracker) Active(action string) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	expiry, ok := ct.expires[action]
	return ok && ct.now().Before(expiry)
}

// Set writes or refreshes the cooldown expiry for an action.
func (ct *CooldownTracker) Set(action string, d time.Duration) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.expires[action] = ct.now().Add(d)
}

// Acquire checks eligibility and claims the cooldown slot as one critical
// section, so two concurrent dispatches cannot both believe the action is
// eligible. It returns false when the action is still cooling down.
func (ct *CooldownTracker) Acquire(action string, d time.Duration) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if expiry, ok := ct.expires[action]; ok && ct.now().Before(expiry) {
		return false
	}
	ct.expires[action] = ct.now().Add(d)
	return true
}

// Remaining returns how long the named action stays ineligible, or zero
// when it is eligible now.
func (ct *CooldownTracker) Remaining(action string) time.Duration {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	expiry, ok := ct.expires[action]
	if !ok {
		return 0
	}
	if remaining := expiry.Sub(ct.now()); remaining > 0 {
		return remaining
	}
	return 0
}

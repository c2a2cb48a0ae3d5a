package telegram

import (
	"sync"
	"time"
)

// UserState represents the current state of a user's conversation
type UserState struct {
	State     string
	ExpiresAt time.Time
}

// StateManager manages user states for FSM
type StateManager struct {
	mu     sync.RWMutex
	states map[int64]*UserState
	now    func() time.Time
}

// NewStateManager creates a new state manager
func NewStateManager() *StateManager {
	return &StateManager{
		states: make(map[int64]*UserState),
		now:    time.Now,
	}
}

// Set sets a user's state. A non-positive ttl never expires.
func (sm *StateManager) Set(userID int64, state string, ttl time.Duration) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s := &UserState{State: state}
	if ttl > 0 {
		s.ExpiresAt = sm.now().Add(ttl)
	}
	sm.states[userID] = s
}

// Get returns a user's current state, or nil if none is set or it expired
func (sm *StateManager) Get(userID int64) *UserState {
	sm.mu.RLock()
	s := sm.states[userID]
	sm.mu.RUnlock()

	if s == nil {
		return nil
	}
	if sm.expired(s) {
		sm.clearExpired(userID)
		return nil
	}
	return s
}

func (sm *StateManager) expired(s *UserState) bool {
	return !s.ExpiresAt.IsZero() && !sm.now().Before(s.ExpiresAt)
}

// clearExpired deletes the user's state only if it is still expired, so a
// Set that raced with the read survives.
func (sm *StateManager) clearExpired(userID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s := sm.states[userID]; s != nil && sm.expired(s) {
		delete(sm.states, userID)
	}
}

// Is reports whether the user is currently in state
func (sm *StateManager) Is(userID int64, state string) bool {
	s := sm.Get(userID)
	return s != nil && s.State == state
}

// Clear removes a user's state
func (sm *StateManager) Clear(userID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.states, userID)
}

// State constants
const (
	StateAwaitPayout = "await_payout"
)

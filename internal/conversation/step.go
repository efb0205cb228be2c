package conversation

import "sync"

// Step is the pending input a user owes the bot. The set of implementations
// is closed: Idle, AwaitingTicketBody, AwaitingReplyBody, AwaitingHelperUsername.
type Step interface {
	step()
}

type Idle struct{}

type AwaitingTicketBody struct{}

type AwaitingReplyBody struct {
	ReportID uint64
}

type AwaitingHelperUsername struct{}

func (Idle) step()                   {}
func (AwaitingTicketBody) step()     {}
func (AwaitingReplyBody) step()      {}
func (AwaitingHelperUsername) step() {}

// Sessions holds one Step per user. Missing entries are Idle. Sessions never
// time out.
type Sessions struct {
	mu    sync.Mutex
	steps map[int64]Step
}

func NewSessions() *Sessions {
	return &Sessions{steps: make(map[int64]Step)}
}

func (s *Sessions) Get(userID int64) Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.steps[userID]; ok {
		return st
	}
	return Idle{}
}

// Set replaces whatever step the user was in.
func (s *Sessions) Set(userID int64, st Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, idle := st.(Idle); idle || st == nil {
		delete(s.steps, userID)
		return
	}
	s.steps[userID] = st
}

func (s *Sessions) Reset(userID int64) {
	s.Set(userID, Idle{})
}

package assembly

import (
	"context"
	"sync"
)

// Session serialises document views the way a reader navigates: opening a
// document abandons whatever the previous view was still doing, including
// its image hydration.
type Session struct {
	assembler *Assembler

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSession creates a Session.
func NewSession(a *Assembler) *Session {
	return &Session{assembler: a}
}

// Open cancels the previous view and assembles documentID in a new one.
// The new view stays alive until the next Open or Close, or until ctx is
// done.
func (s *Session) Open(ctx context.Context, documentID string, sink Sink) (*View, error) {
	viewCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	return s.assembler.Assemble(viewCtx, documentID, sink)
}

// Close abandons the current view.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

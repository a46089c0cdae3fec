package acquire

import "sync"

// guardedState lets the lifecycle controller observe the loop's connection
// state without touching the loop's own fields.
type guardedState struct {
	mu     sync.Mutex
	state  State
	reason error
}

func (g *guardedState) set(s State, reason error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
	g.reason = reason
}

func (g *guardedState) get() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.reason
}

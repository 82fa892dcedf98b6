package fsm

import (
	"fmt"
	"sync"
)

// State describes the lifecycle of a live control connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateIdentified   State = "identified"
	StateClosed       State = "closed"
)

// transitions lists the states reachable from each state. Closed is terminal.
var transitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateClosed},
	StateConnecting:   {StateIdentified, StateDisconnected, StateClosed},
	StateIdentified:   {StateDisconnected, StateClosed},
	StateClosed:       nil,
}

// Machine is a small guarded connection state machine.
type Machine struct {
	mu       sync.RWMutex
	state    State
	onChange func(from State, to State)
}

// New creates a machine in the disconnected state.
func New() *Machine {
	return &Machine{state: StateDisconnected}
}

// OnChange registers a hook called after every successful transition.
func (m *Machine) OnChange(fn func(from State, to State)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Terminal reports whether the machine reached Closed.
func (m *Machine) Terminal() bool {
	return m.State() == StateClosed
}

// OnConnect moves from disconnected into connecting.
func (m *Machine) OnConnect() error {
	return m.Transition(StateConnecting)
}

// OnIdentified marks the handshake complete.
func (m *Machine) OnIdentified() error {
	return m.Transition(StateIdentified)
}

// OnLost marks a recoverable connection loss.
func (m *Machine) OnLost() error {
	return m.Transition(StateDisconnected)
}

// OnClose enters the terminal state from anywhere but closed itself.
func (m *Machine) OnClose() error {
	return m.Transition(StateClosed)
}

// Transition moves to state if the current state allows it.
func (m *Machine) Transition(state State) error {
	m.mu.Lock()
	from := m.state
	if !allowed(from, state) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition: %s -> %s", from, state)
	}
	m.state = state
	hook := m.onChange
	m.mu.Unlock()

	if hook != nil {
		hook(from, state)
	}
	return nil
}

func allowed(from State, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

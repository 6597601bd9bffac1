package adapter

import (
	"strings"

	"go.uber.org/zap"
)

// State is a step of the adapter lifecycle as driven by the default loop.
type State int

const (
	StateInit State = iota
	StateSearched
	StateExtracting
	StatePaginating
	StateDone
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSearched:
		return "searched"
	case StateExtracting:
		return "extracting"
	case StatePaginating:
		return "paginating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// machine records and logs state transitions for one adapter run. The
// trail is logged when the run fails.
type machine struct {
	state State
	log   *zap.Logger
	trail []State
}

func newMachine(log *zap.Logger) *machine {
	return &machine{state: StateInit, log: log, trail: []State{StateInit}}
}

func (m *machine) to(next State) {
	if m.state.Terminal() {
		return
	}
	m.log.Debug("adapter state", zap.Stringer("from", m.state), zap.Stringer("to", next))
	m.state = next
	m.trail = append(m.trail, next)
	if next == StateFailed {
		m.log.Warn("adapter run failed", zap.String("trail", m.path()))
	}
}

// path renders the trail as "init>searched>...".
func (m *machine) path() string {
	names := make([]string, len(m.trail))
	for i, s := range m.trail {
		names[i] = s.String()
	}
	return strings.Join(names, ">")
}

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Snapshotter persists the whole queue state under one key.
type Snapshotter interface {
	Save(ctx context.Context, s State) error
	Clear(ctx context.Context) error
}

// Machine serializes actions against the current state and persists the
// result after every mutation.
type Machine struct {
	mu       sync.Mutex
	state    State
	snap     Snapshotter
	now      func() time.Time
	newID    func() string
	onChange []func(Action, State)
}

// NewMachine creates a Machine seeded with initial, which may be nil for an
// empty session. snap may be nil to disable persistence.
func NewMachine(snap Snapshotter, initial *State) *Machine {
	m := &Machine{
		snap:  snap,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	if initial != nil {
		m.state = initial.Clone()
		m.state.Stats = ComputeStats(m.state.Items)
	}
	return m
}

// OnChange registers fn to run after each successful action.
func (m *Machine) OnChange(fn func(Action, State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Dispatch applies a and persists the new state. A snapshot failure is
// logged and does not undo the transition; the next mutation writes again.
func (m *Machine) Dispatch(ctx context.Context, a Action) (State, error) {
	if lb, ok := a.(LoadBatch); ok && lb.SessionID == "" {
		lb.SessionID = m.newID()
		a = lb
	}

	m.mu.Lock()
	next, err := Reduce(m.state, a, m.now())
	if err != nil {
		m.mu.Unlock()
		return m.State(), err
	}
	m.state = next
	m.persist(ctx, a)
	listeners := m.onChange
	out := next.Clone()
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(a, out)
	}
	return out, nil
}

func (m *Machine) persist(ctx context.Context, a Action) {
	if m.snap == nil {
		return
	}
	var err error
	if _, ok := a.(Reset); ok {
		err = m.snap.Clear(context.WithoutCancel(ctx))
	} else {
		err = m.snap.Save(context.WithoutCancel(ctx), m.state)
	}
	if err != nil {
		zap.L().Error("queue: snapshot write failed",
			zap.String("action", Name(a)),
			zap.Error(err),
		)
	}
}

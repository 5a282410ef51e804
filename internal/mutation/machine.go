package mutation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmcdole/folio/internal/store"
)

// Phase is the lifecycle position of one mutation.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseOptimistic
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOptimistic:
		return "optimistic"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when a Machine is driven out of order.
var ErrInvalidTransition = errors.New("invalid mutation transition")

// Machine drives one mutation: Idle -> Optimistic -> Committed | RolledBack.
// Entering Optimistic snapshots the keys it will touch; RolledBack restores
// those snapshots exactly. Mutations that write nothing up front go straight
// from Idle to Committed or RolledBack.
type Machine struct {
	store  *store.Store
	logger *slog.Logger

	phase     Phase
	snapshots []snapshot
}

type snapshot struct {
	key     store.Key
	entry   store.Entry
	existed bool
}

// NewMachine creates an idle machine over st.
func NewMachine(st *store.Store, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{store: st, logger: logger}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Begin snapshots keys and enters Optimistic.
func (m *Machine) Begin(keys ...store.Key) error {
	if m.phase != PhaseIdle {
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, m.phase)
	}
	for _, k := range keys {
		e, ok := m.store.Get(k)
		m.snapshots = append(m.snapshots, snapshot{key: k, entry: e, existed: ok})
	}
	m.phase = PhaseOptimistic
	return nil
}

// Apply performs an optimistic write to a snapshotted key. Keys that were
// not snapshotted are rejected so every optimistic write can be undone.
func (m *Machine) Apply(key store.Key, fn func(old store.Entry) (store.Entry, bool)) error {
	if m.phase != PhaseOptimistic {
		return fmt.Errorf("%w: apply in %s", ErrInvalidTransition, m.phase)
	}
	if !m.covers(key) {
		return fmt.Errorf("%w: key %s was not snapshotted", ErrInvalidTransition, key)
	}
	m.store.SetIf(key, func(old *store.Entry) (store.Entry, bool) {
		if old == nil {
			return store.Entry{}, false
		}
		next, ok := fn(*old)
		if !ok {
			return store.Entry{}, false
		}
		next.Seq = 0
		return next, true
	})
	return nil
}

func (m *Machine) covers(key store.Key) bool {
	for _, s := range m.snapshots {
		if s.key == key {
			return true
		}
	}
	return false
}

// Commit marks the mutation confirmed by the server.
func (m *Machine) Commit() error {
	if m.phase != PhaseIdle && m.phase != PhaseOptimistic {
		return fmt.Errorf("%w: commit from %s", ErrInvalidTransition, m.phase)
	}
	m.phase = PhaseCommitted
	m.snapshots = nil
	return nil
}

// Rollback restores every snapshot taken by Begin.
func (m *Machine) Rollback() error {
	if m.phase != PhaseIdle && m.phase != PhaseOptimistic {
		return fmt.Errorf("%w: rollback from %s", ErrInvalidTransition, m.phase)
	}
	for _, s := range m.snapshots {
		if !s.existed {
			m.store.Remove(s.key)
			continue
		}
		restored := s.entry
		// a request running at Begin may have settled since
		_, restored.Fetching = m.store.FlightSeq(s.key)
		m.store.Set(s.key, func(*store.Entry) store.Entry {
			// fresh Seq so responses issued before the rollback cannot land on top
			restored.Seq = 0
			return restored
		})
	}
	if len(m.snapshots) > 0 {
		m.logger.Debug("rolled back optimistic update", "keys", len(m.snapshots))
	}
	m.phase = PhaseRolledBack
	m.snapshots = nil
	return nil
}

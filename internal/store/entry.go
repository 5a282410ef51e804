package store

import "time"

// Status is the fetch state of an entry.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is the last known state of one key. Value is nil until the first
// successful fetch or seed; it survives errors and invalidation.
type Entry struct {
	Key       Key
	Value     any
	Status    Status
	Err       error
	Stale     bool
	Fetching  bool
	Seq       uint64 // issue number of the write that produced this state
	UpdatedAt time.Time
}

// HasValue reports whether the entry carries data.
func (e Entry) HasValue() bool { return e.Value != nil }

// ValueAs returns the entry value typed as T.
func ValueAs[T any](e Entry) (T, bool) {
	v, ok := e.Value.(T)
	return v, ok
}

// EventType says what happened to a key.
type EventType uint8

const (
	EventSet EventType = iota + 1
	EventInvalidate
	EventRemove
)

func (t EventType) String() string {
	switch t {
	case EventSet:
		return "set"
	case EventInvalidate:
		return "invalidate"
	case EventRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a write. Entry is the zero value
// for EventRemove.
type Event struct {
	Type  EventType
	Key   Key
	Entry Entry
}

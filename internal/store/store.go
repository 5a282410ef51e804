package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Store is the process-wide keyed cache shared by every query and mutation.
// It is created once at startup and passed to the components that need it.
//
// All writes go through the mutex; subscribers are notified synchronously
// after the write, outside the lock, in registration order.
type Store struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[Key]Entry
	seq     uint64

	subs     map[Key]map[uint64]func(Event)
	patterns map[uint64]patternSub
	nextSub  uint64

	flights map[Key]*Flight
}

type patternSub struct {
	pattern Pattern
	fn      func(Event)
}

// Flight is one in-flight request shared by every caller asking for the
// same key while it runs.
type Flight struct {
	s    *Store
	key  Key
	seq  uint64
	done chan struct{}
	val  any
	err  error
}

// Seq returns the issue number stamped when the flight was registered.
func (f *Flight) Seq() uint64 { return f.seq }

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger,
		now:      time.Now,
		entries:  make(map[Key]Entry),
		subs:     make(map[Key]map[uint64]func(Event)),
		patterns: make(map[uint64]patternSub),
		flights:  make(map[Key]*Flight),
	}
}

// Issue returns the next sequence number. Requests are stamped when issued
// so their responses can be ordered against later writes.
func (s *Store) Issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

func (s *Store) issueLocked() uint64 {
	s.seq++
	return s.seq
}

// Get returns the entry for key.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Set performs an atomic read-modify-write of key. old is nil when the key
// is absent. The updater runs under the store lock and must not call back
// into the store. Seq and UpdatedAt are stamped when left zero.
func (s *Store) Set(key Key, updater func(old *Entry) Entry) Entry {
	e, _ := s.SetIf(key, func(old *Entry) (Entry, bool) {
		return updater(old), true
	})
	return e
}

// SetIf is Set with a veto: when the updater returns false nothing is
// written and nobody is notified.
func (s *Store) SetIf(key Key, updater func(old *Entry) (Entry, bool)) (Entry, bool) {
	s.mu.Lock()
	var old *Entry
	if e, ok := s.entries[key]; ok {
		old = &e
	}
	next, ok := updater(old)
	if !ok {
		s.mu.Unlock()
		if old != nil {
			return *old, false
		}
		return Entry{}, false
	}
	next.Key = key
	if next.Seq == 0 {
		next.Seq = s.issueLocked()
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now()
	}
	s.entries[key] = next
	fns := s.subscribersLocked(key)
	s.mu.Unlock()

	notify(fns, Event{Type: EventSet, Key: key, Entry: next})
	return next, true
}

// Invalidate marks key stale without clearing its value, and detaches any
// in-flight request so the next fetch goes to the network again. Responses
// to requests issued before the invalidation are discarded.
func (s *Store) Invalidate(key Key) bool {
	s.mu.Lock()
	e, ok := s.invalidateLocked(key)
	var fns []func(Event)
	if ok {
		fns = s.subscribersLocked(key)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Debug("invalidated cache entry", "key", key.String())
		notify(fns, Event{Type: EventInvalidate, Key: key, Entry: e})
	}
	return ok
}

// InvalidateMatch invalidates every key matching p and returns how many
// entries were marked.
func (s *Store) InvalidateMatch(p Pattern) int {
	type pending struct {
		ev  Event
		fns []func(Event)
	}

	s.mu.Lock()
	var events []pending
	for _, key := range s.keysLocked(p) {
		e, ok := s.invalidateLocked(key)
		if !ok {
			continue
		}
		events = append(events, pending{
			ev:  Event{Type: EventInvalidate, Key: key, Entry: e},
			fns: s.subscribersLocked(key),
		})
	}
	s.mu.Unlock()

	for _, pe := range events {
		notify(pe.fns, pe.ev)
	}
	if len(events) > 0 {
		s.logger.Debug("invalidated cache entries", "tag", p.Tag, "kind", p.Kind.String(), "count", len(events))
	}
	return len(events)
}

func (s *Store) invalidateLocked(key Key) (Entry, bool) {
	delete(s.flights, key)
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	e.Stale = true
	e.Seq = s.issueLocked()
	s.entries[key] = e
	return e, true
}

// Remove deletes key entirely.
func (s *Store) Remove(key Key) bool {
	s.mu.Lock()
	delete(s.flights, key)
	_, ok := s.entries[key]
	delete(s.entries, key)
	var fns []func(Event)
	if ok {
		fns = s.subscribersLocked(key)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Debug("removed cache entry", "key", key.String())
		notify(fns, Event{Type: EventRemove, Key: key})
	}
	return ok
}

// Keys returns the cached keys matching p in a stable order.
func (s *Store) Keys(p Pattern) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked(p)
}

func (s *Store) keysLocked(p Pattern) []Key {
	var keys []Key
	for k := range s.entries {
		if p.Match(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Subscribe calls fn for every write affecting exactly key.
func (s *Store) Subscribe(key Key, fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]func(Event))
	}
	s.subs[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
	}
}

// SubscribeMatch calls fn for every write affecting a key matching p.
func (s *Store) SubscribeMatch(p Pattern, fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.patterns[id] = patternSub{pattern: p, fn: fn}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.patterns, id)
	}
}

// subscribersLocked snapshots the callbacks for key, exact subscribers
// first, each group in registration order.
func (s *Store) subscribersLocked(key Key) []func(Event) {
	var fns []func(Event)
	ids := make([]uint64, 0, len(s.subs[key]))
	for id := range s.subs[key] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fns = append(fns, s.subs[key][id])
	}

	ids = ids[:0]
	for id, ps := range s.patterns {
		if ps.pattern.Match(key) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fns = append(fns, s.patterns[id].fn)
	}
	return fns
}

func notify(fns []func(Event), ev Event) {
	for _, fn := range fns {
		fn(ev)
	}
}

// Begin registers a request for key and stamps its issue number. The
// check and the registration happen under one lock, so of several callers
// racing for the same key exactly one starts. When want is non-nil it sees
// the current entry (nil when absent) and can decline the request; it runs
// under the store lock and must not call back into the store.
//
// started is false when nothing was registered. f is then the flight
// already running, or nil when want declined.
func (s *Store) Begin(key Key, want func(old *Entry) bool) (f *Flight, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.flights[key]; ok {
		return live, false
	}
	if want != nil {
		var old *Entry
		if e, ok := s.entries[key]; ok {
			old = &e
		}
		if !want(old) {
			return nil, false
		}
	}
	f = &Flight{s: s, key: key, seq: s.issueLocked(), done: make(chan struct{})}
	s.flights[key] = f
	return f, true
}

// Finish records the result, clears the registry entry unless an
// invalidation already detached it, and releases waiting callers.
func (f *Flight) Finish(val any, err error) {
	f.val, f.err = val, err
	f.s.mu.Lock()
	if f.s.flights[f.key] == f {
		delete(f.s.flights, f.key)
	}
	f.s.mu.Unlock()
	close(f.done)
}

// Wait blocks until the flight finishes. ctx only bounds the wait, never
// the request itself.
func (f *Flight) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do runs fn for key unless a request for key is already in flight, in which
// case it waits for that request and returns its result with shared=true.
// fn receives the sequence number stamped at issue time.
func (s *Store) Do(ctx context.Context, key Key, fn func(seq uint64) (any, error)) (val any, err error, shared bool) {
	f, started := s.Begin(key, nil)
	if !started {
		val, err = f.Wait(ctx)
		return val, err, true
	}
	val, err = fn(f.seq)
	f.Finish(val, err)
	return val, err, false
}

// InFlight reports whether a request for key is currently registered.
func (s *Store) InFlight(key Key) bool {
	_, ok := s.FlightSeq(key)
	return ok
}

// FlightSeq returns the issue number of the request registered for key.
func (s *Store) FlightSeq(key Key) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[key]
	if !ok {
		return 0, false
	}
	return f.seq, true
}

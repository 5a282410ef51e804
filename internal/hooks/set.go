package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/mutation"
	"github.com/mmcdole/folio/internal/query"
	"github.com/mmcdole/folio/internal/store"
)

// ErrUploadUnsupported is returned by UploadPrimaryImage when the backing
// service has no image endpoint.
var ErrUploadUnsupported = errors.New("image upload not supported")

// Descriptor names the cache keys owned by one entity type.
type Descriptor struct {
	Record store.Tag // single-record keys
	List   store.Tag // paged list keys
	Parent store.Tag // record tag of the owning type, empty for top-level types

	// Derived keys invalidated by every mutation of this type.
	Derived []store.Pattern
}

// Option configures a Set.
type Option func(*options)

type options struct {
	snapshot *store.Snapshot
}

// WithSnapshot seeds list queries from a persisted snapshot when the cache
// is empty.
func WithSnapshot(s *store.Snapshot) Option {
	return func(o *options) { o.snapshot = s }
}

// Set is the query and mutation surface for one entity type. Every mutation
// keeps the shared cache consistent with the server: optimistic writes are
// rolled back on failure, and affected keys are invalidated once the server
// has answered.
type Set[T domain.Entity[T], D domain.Input[T]] struct {
	desc     Descriptor
	svc      domain.Service[T, D]
	tokens   domain.TokenSource
	client   *query.Client
	store    *store.Store
	snapshot *store.Snapshot
	logger   *slog.Logger
}

// NewSet creates a hook set for one entity type.
func NewSet[T domain.Entity[T], D domain.Input[T]](
	client *query.Client,
	svc domain.Service[T, D],
	tokens domain.TokenSource,
	desc Descriptor,
	opts ...Option,
) *Set[T, D] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Set[T, D]{
		desc:     desc,
		svc:      svc,
		tokens:   tokens,
		client:   client,
		store:    client.Store(),
		snapshot: o.snapshot,
		logger:   client.Logger().With("entity", string(desc.Record)),
	}
}

// Descriptor returns the key layout of the set.
func (s *Set[T, D]) Descriptor() Descriptor { return s.desc }

// ListKey is the cache key of one page of a scoped list.
func (s *Set[T, D]) ListKey(scope domain.Scope, page, size int) store.Key {
	return store.ListKey(s.desc.List, scope.ParentID, page, size, string(scope.Status))
}

// RecordKey is the cache key of one entity.
func (s *Set[T, D]) RecordKey(id string) store.Key {
	return store.RecordKey(s.desc.Record, id)
}

// Query observes one page of a list. A non-nil seed is stored as-is and no
// request is made while the key is empty.
func (s *Set[T, D]) Query(scope domain.Scope, page, size int, seed *domain.Page[T]) *query.Observer[domain.Page[T]] {
	key := s.ListKey(scope, page, size)
	q := query.Query[domain.Page[T]]{
		Key: key,
		Fetch: func(ctx context.Context) (domain.Page[T], error) {
			return s.svc.List(ctx, scope, page, size)
		},
		Seed: seed,
	}
	if seed == nil && s.snapshot != nil {
		var persisted domain.Page[T]
		if s.snapshot.Load(key, &persisted) {
			q.Placeholder = &persisted
		}
	}
	return query.Observe(s.client, q)
}

// ByID observes a single entity.
func (s *Set[T, D]) ByID(scope domain.Scope, id string) *query.Observer[T] {
	return query.Observe(s.client, query.Query[T]{
		Key: s.RecordKey(id),
		Fetch: func(ctx context.Context) (T, error) {
			return s.svc.Get(ctx, scope, id)
		},
	})
}

// FetchPage loads one page through the cache, blocking until it arrives.
func (s *Set[T, D]) FetchPage(ctx context.Context, scope domain.Scope, page, size int) (domain.Page[T], error) {
	return query.Ensure(ctx, s.client, s.ListKey(scope, page, size), func(ctx context.Context) (domain.Page[T], error) {
		return s.svc.List(ctx, scope, page, size)
	})
}

// FetchByID loads one entity through the cache, blocking until it arrives.
func (s *Set[T, D]) FetchByID(ctx context.Context, scope domain.Scope, id string) (T, error) {
	return query.Ensure(ctx, s.client, s.RecordKey(id), func(ctx context.Context) (T, error) {
		return s.svc.Get(ctx, scope, id)
	})
}

// Create inserts a placeholder at the head of every cached first page in
// scope, sends the create, and swaps the placeholder for the server's
// entity. On failure every touched page is restored. Lists are invalidated
// either way.
func (s *Set[T, D]) Create(ctx context.Context, scope domain.Scope, in D) (T, error) {
	var zero T
	if err := in.Validate(); err != nil {
		return zero, err
	}

	tempID := domain.PlaceholderPrefix + uuid.NewString()
	draft := in.Draft(tempID)

	var heads []store.Key
	for _, k := range mutation.ListKeys(s.store, s.desc.List, scope.ParentID) {
		if k.Page == 0 {
			heads = append(heads, k)
		}
	}

	m := mutation.NewMachine(s.store, s.logger)
	s.logStep("begin", m.Begin(heads...))
	for _, k := range heads {
		s.logStep("apply", m.Apply(k, func(old store.Entry) (store.Entry, bool) {
			p, ok := store.ValueAs[domain.Page[T]](old)
			if !ok {
				return store.Entry{}, false
			}
			old.Value = domain.Prepend(p, draft)
			return old, true
		}))
	}

	created, err := s.send(ctx, func(token string) (T, error) {
		return s.svc.Create(ctx, scope, in, token)
	})
	if err != nil {
		s.logStep("roll back", m.Rollback())
		s.propagate(scope, "")
		s.logger.Error("failed to create", "error", err, "parentID", scope.ParentID)
		return zero, err
	}

	for _, k := range heads {
		s.patchList(k, func(p domain.Page[T]) (domain.Page[T], bool) {
			return domain.Replace(p, tempID, created)
		})
	}
	s.putRecord(created)
	s.logStep("commit", m.Commit())
	s.propagate(scope, created.GetID())

	s.logger.Debug("created", "id", created.GetID())
	return created, nil
}

// Update sends the update and, on success, writes the server's entity into
// the record and every cached page holding it. Failures leave the cache
// untouched.
func (s *Set[T, D]) Update(ctx context.Context, scope domain.Scope, id string, in D) (T, error) {
	var zero T
	if err := in.Validate(); err != nil {
		return zero, err
	}

	updated, err := s.send(ctx, func(token string) (T, error) {
		return s.svc.Update(ctx, scope, id, in, token)
	})
	if err != nil {
		s.logger.Error("failed to update", "error", err, "id", id)
		return zero, err
	}

	s.commit(scope, updated)
	s.logger.Debug("updated", "id", id, "v", updated.GetVersion())
	return updated, nil
}

// Activate publishes an entity, flipping its status optimistically.
func (s *Set[T, D]) Activate(ctx context.Context, scope domain.Scope, id string) (T, error) {
	return s.setStatus(ctx, scope, id, domain.StatusActive, s.svc.Activate)
}

// Deactivate unpublishes an entity, flipping its status optimistically.
func (s *Set[T, D]) Deactivate(ctx context.Context, scope domain.Scope, id string) (T, error) {
	return s.setStatus(ctx, scope, id, domain.StatusInactive, s.svc.Deactivate)
}

func (s *Set[T, D]) setStatus(
	ctx context.Context,
	scope domain.Scope,
	id string,
	status domain.DocumentStatus,
	call func(ctx context.Context, scope domain.Scope, id, token string) (T, error),
) (T, error) {
	var zero T

	keys := s.holders(scope, id)
	m := mutation.NewMachine(s.store, s.logger)
	s.logStep("begin", m.Begin(keys...))
	for _, k := range keys {
		s.logStep("apply", m.Apply(k, func(old store.Entry) (store.Entry, bool) {
			if k.Kind == store.KindRecord {
				v, ok := store.ValueAs[T](old)
				if !ok {
					return store.Entry{}, false
				}
				old.Value = v.WithStatus(status)
				return old, true
			}
			p, ok := store.ValueAs[domain.Page[T]](old)
			if !ok {
				return store.Entry{}, false
			}
			i := domain.IndexOf(p, id)
			if i < 0 {
				return store.Entry{}, false
			}
			next, _ := domain.Replace(p, id, p.Items[i].WithStatus(status))
			old.Value = next
			return old, true
		}))
	}

	result, err := s.send(ctx, func(token string) (T, error) {
		return call(ctx, scope, id, token)
	})
	if err != nil {
		s.logStep("roll back", m.Rollback())
		s.logger.Error("failed to set status", "error", err, "id", id, "status", status)
		return zero, err
	}

	s.logStep("commit", m.Commit())
	s.commit(scope, result)
	s.logger.Debug("set status", "id", id, "status", status)
	return result, nil
}

// Delete removes an entity. On success its record is dropped, it is
// removed from every cached page, and lists and the parent are invalidated.
// Failures leave the cache untouched.
func (s *Set[T, D]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	if err := s.svc.Delete(ctx, scope, id, token); err != nil {
		s.logger.Error("failed to delete", "error", err, "id", id)
		return err
	}

	s.store.Remove(s.RecordKey(id))
	for _, k := range mutation.ListKeys(s.store, s.desc.List, scope.ParentID) {
		s.patchList(k, func(p domain.Page[T]) (domain.Page[T], bool) {
			return domain.Remove(p, id)
		})
	}
	s.propagate(scope, "")

	s.logger.Debug("deleted", "id", id)
	return nil
}

// UploadPrimaryImage attaches an image and commits the returned entity like
// an update.
func (s *Set[T, D]) UploadPrimaryImage(ctx context.Context, scope domain.Scope, id string, file domain.Upload) (T, error) {
	var zero T
	up, ok := s.svc.(domain.ImageUploader[T])
	if !ok {
		return zero, fmt.Errorf("%s: %w", s.desc.Record, ErrUploadUnsupported)
	}

	updated, err := s.send(ctx, func(token string) (T, error) {
		return up.UploadPrimaryImage(ctx, id, file, token)
	})
	if err != nil {
		s.logger.Error("failed to upload image", "error", err, "id", id)
		return zero, err
	}

	s.commit(scope, updated)
	return updated, nil
}

// Invalidate marks every cached key of this type stale and forgets the
// type's persisted pages. Pages that refetch successfully are saved again.
func (s *Set[T, D]) Invalidate() {
	if s.snapshot != nil {
		s.snapshot.DeleteTag(s.desc.List)
	}
	s.store.InvalidateMatch(store.Pattern{Tag: s.desc.List})
	s.store.InvalidateMatch(store.Pattern{Tag: s.desc.Record})
}

// logStep reports a mutation machine step that was refused. The cache is
// left as the last accepted step wrote it.
func (s *Set[T, D]) logStep(step string, err error) {
	if err != nil {
		s.logger.Error("failed to "+step+" optimistic update", "error", err, "type", s.desc.Record)
	}
}

func (s *Set[T, D]) token(ctx context.Context) (string, error) {
	if s.tokens == nil {
		return "", nil
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.logger.Error("failed to get token", "error", err)
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// send fetches a fresh token and performs call with it.
func (s *Set[T, D]) send(ctx context.Context, call func(token string) (T, error)) (T, error) {
	token, err := s.token(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return call(token)
}

// commit writes a confirmed entity into the cache and propagates.
func (s *Set[T, D]) commit(scope domain.Scope, v T) {
	id := v.GetID()
	s.putRecord(v)
	for _, k := range mutation.ListKeys(s.store, s.desc.List, scope.ParentID) {
		s.patchList(k, func(p domain.Page[T]) (domain.Page[T], bool) {
			return domain.Replace(p, id, v)
		})
	}
	s.propagate(scope, id)
}

func (s *Set[T, D]) putRecord(v T) {
	s.store.Set(s.RecordKey(v.GetID()), func(*store.Entry) store.Entry {
		return store.Entry{Value: v, Status: store.StatusSuccess}
	})
}

// patchList rewrites the cached page at k when fn reports a change.
func (s *Set[T, D]) patchList(k store.Key, fn func(domain.Page[T]) (domain.Page[T], bool)) {
	s.store.SetIf(k, func(old *store.Entry) (store.Entry, bool) {
		if old == nil {
			return store.Entry{}, false
		}
		p, ok := store.ValueAs[domain.Page[T]](*old)
		if !ok {
			return store.Entry{}, false
		}
		next, changed := fn(p)
		if !changed {
			return store.Entry{}, false
		}
		e := *old
		e.Value = next
		e.Seq = 0
		e.UpdatedAt = old.UpdatedAt
		return e, true
	})
}

// holders returns the record key and every cached page currently holding id.
func (s *Set[T, D]) holders(scope domain.Scope, id string) []store.Key {
	var keys []store.Key
	rk := s.RecordKey(id)
	if _, ok := s.store.Get(rk); ok {
		keys = append(keys, rk)
	}
	for _, k := range mutation.ListKeys(s.store, s.desc.List, scope.ParentID) {
		e, _ := s.store.Get(k)
		if p, ok := store.ValueAs[domain.Page[T]](e); ok && domain.IndexOf(p, id) >= 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Set[T, D]) propagate(scope domain.Scope, id string) {
	mutation.Propagate(s.store, mutation.Target{
		Record:   s.desc.Record,
		List:     s.desc.List,
		Parent:   s.desc.Parent,
		ID:       id,
		ParentID: scope.ParentID,
		Also:     s.desc.Derived,
	})
}

package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/logging"
	"github.com/grovetools/bnb/pkg/api"
)

const subscriberBuffer = 64

// Routes locates a collection on the backend.
type Routes struct {
	// Collection is the path listed by List and posted to by Create.
	Collection string
	// Item is a fmt pattern with one %d verb for the entity id. Defaults to
	// Collection + "/%d".
	Item string
}

func (r Routes) item(id int64) string {
	pattern := r.Item
	if pattern == "" {
		pattern = strings.TrimRight(r.Collection, "/") + "/%d"
	}
	return fmt.Sprintf(pattern, id)
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger   *logrus.Entry
	envelope string
}

func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) { o.logger = logger }
}

// WithEnvelope names the response field that wraps a single entity on
// create and update responses.
func WithEnvelope(field string) Option {
	return func(o *options) { o.envelope = field }
}

// Store caches one entity collection. All methods are safe for concurrent use.
type Store[T Entity] struct {
	client   Doer
	routes   Routes
	envelope string
	logger   *logrus.Entry
	group    singleflight.Group

	mu          sync.RWMutex
	items       []T
	inFlight    int
	lastErr     error
	phase       Phase
	generation  uint64
	subscribers map[<-chan Event[T]]chan Event[T]
}

// New creates an empty store named name (used in logs) over client.
func New[T Entity](name string, client Doer, routes Routes, opts ...Option) *Store[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("resource")
	}
	return &Store[T]{
		client:      client,
		routes:      routes,
		envelope:    o.envelope,
		logger:      o.logger.WithField("store", name),
		phase:       PhaseIdle,
		subscribers: make(map[<-chan Event[T]]chan Event[T]),
	}
}

// List fetches the collection and replaces the cached items with the result.
func (s *Store[T]) List(ctx context.Context, filter url.Values) ([]T, error) {
	return s.ListFrom(ctx, s.routes.Collection, filter)
}

// ListFrom is List against an alternate collection path, such as a per-user
// view of the same entities. Identical concurrent calls share one request.
func (s *Store[T]) ListFrom(ctx context.Context, path string, filter url.Values) ([]T, error) {
	gen := s.beginLoad()

	key := path
	if len(filter) > 0 {
		key += "?" + filter.Encode()
	}
	v, err, shared := s.group.Do(key, func() (any, error) {
		var items []T
		if err := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: path, Query: filter}, &items); err != nil {
			return nil, err
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if err != nil {
		s.logger.WithFields(logrus.Fields{"path": path, "kind": errors.KindOf(err)}).Debug("list failed")
		s.recordLocked(gen, OpList, 0, err)
		return nil, err
	}

	items := v.([]T)
	s.logger.WithFields(logrus.Fields{"path": path, "count": len(items), "shared": shared}).Debug("list")
	if s.current(gen) {
		s.items = clone(items)
		s.lastErr = nil
		s.phase = PhaseSuccess
		s.broadcastLocked(OpList, 0, nil)
	}
	return clone(items), nil
}

// Fetch retrieves one entity and stores it in place of any cached element
// with the same id, appending it otherwise.
func (s *Store[T]) Fetch(ctx context.Context, id int64) (T, error) {
	gen := s.gen()

	var out T
	err := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: s.routes.item(id)}, &out)
	if err == nil {
		err = checkID(out, http.MethodGet, s.routes.item(id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.recordLocked(gen, OpFetch, id, err)
		var zero T
		return zero, err
	}
	if s.current(gen) {
		if i := s.indexLocked(out.EntityID()); i >= 0 {
			s.items[i] = out
		} else {
			s.items = append(s.items, out)
		}
		s.succeedLocked(OpFetch, out.EntityID())
	}
	return out, nil
}

// Create posts payload and appends the server's representation.
func (s *Store[T]) Create(ctx context.Context, payload any) (T, error) {
	return s.CreateAt(ctx, s.routes.Collection, payload)
}

// CreateAt is Create against an alternate path.
func (s *Store[T]) CreateAt(ctx context.Context, path string, payload any) (T, error) {
	gen := s.gen()

	var out T
	err := s.client.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: payload, Unwrap: s.envelope}, &out)
	if err == nil {
		err = checkID(out, http.MethodPost, path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.WithFields(logrus.Fields{"path": path, "kind": errors.KindOf(err)}).Debug("create failed")
		s.recordLocked(gen, OpCreate, 0, err)
		var zero T
		return zero, err
	}
	if s.current(gen) {
		s.items = append(s.items, out)
		s.succeedLocked(OpCreate, out.EntityID())
	}
	return out, nil
}

// Update sends patch for id and replaces the cached element with the
// server's representation. The patch is never merged client-side.
func (s *Store[T]) Update(ctx context.Context, id int64, patch any) (T, error) {
	return s.UpdateAt(ctx, http.MethodPatch, s.routes.item(id), id, patch)
}

// UpdateAt is Update against an action endpoint such as a status change.
// Responses are applied in arrival order, so of two concurrent updates to the
// same id the one that completes last wins.
func (s *Store[T]) UpdateAt(ctx context.Context, method, path string, id int64, body any) (T, error) {
	gen := s.gen()

	var out T
	err := s.client.Do(ctx, api.Request{Method: method, Path: path, Body: body, Unwrap: s.envelope}, &out)
	if err == nil {
		err = checkID(out, method, path)
	}
	if err == nil && out.EntityID() != id {
		err = errors.MalformedResponse(method, path, fmt.Errorf("response is for id %d, expected %d", out.EntityID(), id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.WithFields(logrus.Fields{"id": id, "path": path, "kind": errors.KindOf(err)}).Debug("update failed")
		s.recordLocked(gen, OpUpdate, id, err)
		var zero T
		return zero, err
	}
	if s.current(gen) {
		if i := s.indexLocked(id); i >= 0 {
			s.items[i] = out
		}
		s.succeedLocked(OpUpdate, id)
	}
	return out, nil
}

// Remove deletes id on the server and drops it from the cache.
func (s *Store[T]) Remove(ctx context.Context, id int64) error {
	return s.RemoveAt(ctx, s.routes.item(id), id)
}

// RemoveAt is Remove against an alternate path.
func (s *Store[T]) RemoveAt(ctx context.Context, path string, id int64) error {
	gen := s.gen()

	err := s.client.Do(ctx, api.Request{Method: http.MethodDelete, Path: path}, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.WithFields(logrus.Fields{"id": id, "path": path, "kind": errors.KindOf(err)}).Debug("remove failed")
		s.recordLocked(gen, OpRemove, id, err)
		return err
	}
	if s.current(gen) {
		if i := s.indexLocked(id); i >= 0 {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
		}
		s.succeedLocked(OpRemove, id)
	}
	return nil
}

// Get returns the cached entity with the given id. It never calls the server.
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Select returns the cached entities for which keep returns true.
func (s *Store[T]) Select(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []T
	for _, item := range s.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Items returns a copy of the cached entities in server order.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.items)
}

// Snapshot returns a copy of the store's state.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Loading reports whether a list call is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// LastError returns the error recorded by the most recent failed call, or nil
// if the most recent call succeeded.
func (s *Store[T]) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Reset drops all cached state. Responses to calls issued before Reset are
// returned to their callers but not applied.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.items = nil
	s.lastErr = nil
	s.phase = PhaseIdle
	s.broadcastLocked(OpReset, 0, nil)
}

// Subscribe returns a channel that receives an Event for every state change.
// Slow subscribers miss events rather than stalling the store.
func (s *Store[T]) Subscribe() <-chan Event[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event[T], subscriberBuffer)
	s.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. No event is
// delivered after Unsubscribe returns.
func (s *Store[T]) Unsubscribe(ch <-chan Event[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if send, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(send)
	}
}

func (s *Store[T]) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	s.phase = PhaseLoading
	s.broadcastLocked(OpList, 0, nil)
	return s.generation
}

func (s *Store[T]) gen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store[T]) current(gen uint64) bool {
	return gen == s.generation
}

func (s *Store[T]) recordLocked(gen uint64, op Op, id int64, err error) {
	if !s.current(gen) {
		return
	}
	s.lastErr = err
	s.phase = PhaseError
	s.broadcastLocked(op, id, err)
}

func (s *Store[T]) succeedLocked(op Op, id int64) {
	s.lastErr = nil
	s.phase = PhaseSuccess
	s.broadcastLocked(op, id, nil)
}

func (s *Store[T]) indexLocked(id int64) int {
	for i, item := range s.items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

func (s *Store[T]) snapshotLocked() Snapshot[T] {
	phase := s.phase
	if s.inFlight > 0 {
		phase = PhaseLoading
	}
	return Snapshot[T]{
		Items:     clone(s.items),
		Loading:   s.inFlight > 0,
		LastError: s.lastErr,
		Phase:     phase,
	}
}

func (s *Store[T]) broadcastLocked(op Op, id int64, err error) {
	if len(s.subscribers) == 0 {
		return
	}
	ev := Event[T]{Op: op, ID: id, Err: err, Snapshot: s.snapshotLocked()}
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func checkID[T Entity](out T, method, path string) error {
	if out.EntityID() == 0 {
		return errors.MalformedResponse(method, path, fmt.Errorf("response entity has no id"))
	}
	return nil
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/api"
)

type room struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func (r room) EntityID() int64 { return r.ID }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// backend serves /rooms from a mutable slice. fail forces the next response
// to use the given status.
type backend struct {
	mu     sync.Mutex
	rooms  []room
	nextID int64
	fail   int
	lists  atomic.Int32
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail != 0 {
		status := b.fail
		b.fail = 0
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": "forced failure"})
		return
	}

	idPart := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/rooms"), "/")
	switch {
	case r.Method == http.MethodGet && idPart == "":
		b.lists.Add(1)
		out := []room{}
		for _, rm := range b.rooms {
			if q := r.URL.Query().Get("name"); q == "" || strings.Contains(rm.Name, q) {
				out = append(out, rm)
			}
		}
		json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPost && idPart == "":
		var in room
		json.NewDecoder(r.Body).Decode(&in)
		b.nextID++
		in.ID = b.nextID
		b.rooms = append(b.rooms, in)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	default:
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		for i, rm := range b.rooms {
			if rm.ID != id {
				continue
			}
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode(rm)
			case http.MethodPatch:
				var patch map[string]any
				json.NewDecoder(r.Body).Decode(&patch)
				if p, ok := patch["price"].(float64); ok {
					b.rooms[i].Price = p
				}
				json.NewEncoder(w).Encode(b.rooms[i])
			case http.MethodDelete:
				b.rooms = append(b.rooms[:i], b.rooms[i+1:]...)
				json.NewEncoder(w).Encode(map[string]string{"success": "deleted"})
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Room not found"})
	}
}

func setup(t *testing.T, rooms ...room) (*Store[room], *backend) {
	t.Helper()
	b := &backend{rooms: rooms}
	for _, r := range rooms {
		if r.ID > b.nextID {
			b.nextID = r.ID
		}
	}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	client := api.New(srv.URL, api.WithLogger(quietLogger()))
	return New[room]("rooms", client, Routes{Collection: "/rooms"}, WithLogger(quietLogger())), b
}

func TestListReplacesItems(t *testing.T) {
	s, b := setup(t, room{ID: 1, Name: "loft"}, room{ID: 2, Name: "cabin"})
	ctx := context.Background()

	items, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	b.mu.Lock()
	b.rooms = []room{{ID: 3, Name: "villa"}}
	b.mu.Unlock()

	_, err = s.List(ctx, nil)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, []room{{ID: 3, Name: "villa"}}, snap.Items)
	assert.Equal(t, PhaseSuccess, snap.Phase)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.LastError)
}

func TestListWithFilter(t *testing.T) {
	s, _ := setup(t, room{ID: 1, Name: "loft"}, room{ID: 2, Name: "cabin"})

	items, err := s.List(context.Background(), url.Values{"name": {"cab"}})
	require.NoError(t, err)
	assert.Equal(t, []room{{ID: 2, Name: "cabin"}}, items)
	assert.Equal(t, items, s.Items())
}

func TestListFailureKeepsStaleItems(t *testing.T) {
	s, b := setup(t, room{ID: 1, Name: "loft"})
	ctx := context.Background()

	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	b.mu.Lock()
	b.fail = http.StatusInternalServerError
	b.mu.Unlock()

	_, err = s.List(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindServerFault, errors.KindOf(err))

	snap := s.Snapshot()
	assert.Equal(t, []room{{ID: 1, Name: "loft"}}, snap.Items)
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, errors.KindServerFault, errors.KindOf(snap.LastError))

	// A later success clears the error.
	_, err = s.List(ctx, nil)
	require.NoError(t, err)
	assert.NoError(t, s.LastError())
}

func TestCreateThenGet(t *testing.T) {
	s, _ := setup(t, room{ID: 1, Name: "loft"})
	ctx := context.Background()

	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	created, err := s.Create(ctx, map[string]any{"name": "yurt", "price": 40})
	require.NoError(t, err)
	assert.Equal(t, room{ID: 2, Name: "yurt", Price: 40}, created)

	got, ok := s.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, created, got)

	items := s.Items()
	assert.Equal(t, created, items[len(items)-1], "created entity is appended")
}

func TestCreateFailureDoesNotMutate(t *testing.T) {
	s, b := setup(t, room{ID: 1, Name: "loft"})
	ctx := context.Background()
	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	b.mu.Lock()
	b.fail = http.StatusBadRequest
	b.mu.Unlock()

	_, err = s.Create(ctx, map[string]any{"name": "yurt"})
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	assert.Equal(t, []room{{ID: 1, Name: "loft"}}, s.Items())
}

func TestCreateRejectsEntityWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success": "Review added!"}`))
	}))
	defer srv.Close()

	s := New[room]("rooms", api.New(srv.URL, api.WithLogger(quietLogger())), Routes{Collection: "/rooms"}, WithLogger(quietLogger()))
	_, err := s.Create(context.Background(), map[string]any{})
	assert.Equal(t, errors.KindServerFault, errors.KindOf(err))
	assert.Empty(t, s.Items())
}

func TestRemoveThenGet(t *testing.T) {
	s, _ := setup(t, room{ID: 1, Name: "loft"}, room{ID: 2, Name: "cabin"}, room{ID: 3, Name: "villa"})
	ctx := context.Background()
	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, 2))

	_, ok := s.Get(2)
	assert.False(t, ok)
	assert.Equal(t, []room{{ID: 1, Name: "loft"}, {ID: 3, Name: "villa"}}, s.Items())
}

func TestRemoveFailureKeepsItem(t *testing.T) {
	s, _ := setup(t, room{ID: 1, Name: "loft"})
	ctx := context.Background()
	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	err = s.Remove(ctx, 99)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
	assert.Len(t, s.Items(), 1)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(s.LastError()))
}

func TestUpdateReplacesWithServerRepresentation(t *testing.T) {
	s, _ := setup(t, room{ID: 5, Name: "loft", Price: 80})
	ctx := context.Background()
	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	// The patch only carries price; the cached name must come from the server.
	updated, err := s.Update(ctx, 5, map[string]any{"price": 95})
	require.NoError(t, err)
	assert.Equal(t, room{ID: 5, Name: "loft", Price: 95}, updated)

	got, _ := s.Get(5)
	assert.Equal(t, updated, got)
}

func TestFailedUpdateLeavesItemsUnchanged(t *testing.T) {
	s, b := setup(t, room{ID: 5, Name: "loft", Price: 80}, room{ID: 6, Name: "cabin", Price: 60})
	ctx := context.Background()
	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	before, err := json.Marshal(s.Items())
	require.NoError(t, err)

	b.mu.Lock()
	b.fail = http.StatusForbidden
	b.mu.Unlock()

	_, err = s.Update(ctx, 5, map[string]any{"price": 10})
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	after, err := json.Marshal(s.Items())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUpdateRejectsReplyForAnotherID(t *testing.T) {
	s, _ := setup(t, room{ID: 5, Name: "loft", Price: 80}, room{ID: 6, Name: "cabin", Price: 60})
	ctx := context.Background()
	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	// The reply describes room 6 while room 5 was updated.
	_, err = s.UpdateAt(ctx, http.MethodPatch, "/rooms/6", 5, map[string]any{"price": 70})
	assert.Equal(t, errors.KindServerFault, errors.KindOf(err))
	assert.Equal(t, errors.KindServerFault, errors.KindOf(s.LastError()))

	assert.Equal(t, []room{{ID: 5, Name: "loft", Price: 80}, {ID: 6, Name: "cabin", Price: 60}}, s.Items())
}

func TestFetchUpserts(t *testing.T) {
	s, _ := setup(t, room{ID: 1, Name: "loft"}, room{ID: 2, Name: "cabin"})
	ctx := context.Background()

	got, err := s.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "cabin", got.Name)
	assert.Equal(t, []room{{ID: 2, Name: "cabin"}}, s.Items())

	_, err = s.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, s.Items(), 1)
}

// The second update's response is delivered before the first's. Each is
// applied on arrival, so the first request's value ends up cached.
func TestConcurrentUpdatesAreLastArrivalWins(t *testing.T) {
	releaseFirst := make(chan struct{})
	secondDone := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode([]room{{ID: 5, Name: "loft", Price: 1}})
			return
		}
		var patch struct{ Price float64 }
		json.NewDecoder(r.Body).Decode(&patch)
		if patch.Price == 10 {
			<-releaseFirst
		}
		json.NewEncoder(w).Encode(room{ID: 5, Name: "loft", Price: patch.Price})
	}))
	defer srv.Close()

	s := New[room]("rooms", api.New(srv.URL, api.WithLogger(quietLogger())), Routes{Collection: "/rooms"}, WithLogger(quietLogger()))
	ctx := context.Background()
	_, err := s.List(ctx, nil)
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Update(ctx, 5, map[string]any{"price": 10})
		firstDone <- err
	}()
	go func() {
		defer close(secondDone)
		_, err := s.Update(ctx, 5, map[string]any{"price": 20})
		assert.NoError(t, err)
	}()

	<-secondDone
	got, _ := s.Get(5)
	assert.Equal(t, float64(20), got.Price)

	close(releaseFirst)
	require.NoError(t, <-firstDone)
	got, _ = s.Get(5)
	assert.Equal(t, float64(10), got.Price)
}

func TestConcurrentIdenticalListsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		json.NewEncoder(w).Encode([]room{{ID: 1, Name: "loft"}})
	}))
	defer srv.Close()

	s := New[room]("rooms", api.New(srv.URL, api.WithLogger(quietLogger())), Routes{Collection: "/rooms"}, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := s.List(context.Background(), nil)
			assert.NoError(t, err)
			assert.Len(t, items, 1)
		}()
	}

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.inFlight == 3
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.Loading())
}

func TestSubscribeSeesTransitions(t *testing.T) {
	s, _ := setup(t, room{ID: 1, Name: "loft"})
	ch := s.Subscribe()

	_, err := s.List(context.Background(), nil)
	require.NoError(t, err)

	loading := <-ch
	assert.Equal(t, OpList, loading.Op)
	assert.True(t, loading.Snapshot.Loading)
	assert.Equal(t, PhaseLoading, loading.Snapshot.Phase)
	assert.Empty(t, loading.Snapshot.Items, "items are not touched while loading")

	done := <-ch
	assert.Equal(t, PhaseSuccess, done.Snapshot.Phase)
	assert.False(t, done.Snapshot.Loading)
	assert.Len(t, done.Snapshot.Items, 1)

	s.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok, "channel is closed after Unsubscribe")

	// Events after Unsubscribe are discarded; a second Unsubscribe is harmless.
	_, err = s.List(context.Background(), nil)
	require.NoError(t, err)
	s.Unsubscribe(ch)
}

func TestResetDiscardsInFlightResponses(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode([]room{{ID: 1, Name: "previous user's room"}})
	}))
	defer srv.Close()

	s := New[room]("rooms", api.New(srv.URL, api.WithLogger(quietLogger())), Routes{Collection: "/rooms"}, WithLogger(quietLogger()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		items, err := s.List(context.Background(), nil)
		assert.NoError(t, err)
		assert.Len(t, items, 1, "the caller still receives its response")
	}()

	require.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)
	s.Reset()
	close(release)
	<-done

	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Equal(t, PhaseIdle, snap.Phase)
}

func TestRoutesItem(t *testing.T) {
	assert.Equal(t, "/listings/4", Routes{Collection: "/listings/"}.item(4))
	assert.Equal(t, "/admin/listings/4", Routes{Collection: "/admin/listings", Item: "/admin/listings/%d"}.item(4))
	assert.Equal(t, fmt.Sprintf("/bookings/%d", 9), Routes{Collection: "/bookings"}.item(9))
}

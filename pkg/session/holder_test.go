package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/api"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/pkg/resource"
	"github.com/grovetools/bnb/state"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// server records the Authorization header of every request by path.
type server struct {
	mu      sync.Mutex
	auth    map[string][]string
	handler http.HandlerFunc
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.auth[r.Method+" "+r.URL.Path] = append(s.auth[r.Method+" "+r.URL.Path], r.Header.Get("Authorization"))
	s.mu.Unlock()
	s.handler(w, r)
}

func (s *server) authFor(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth[key]...)
}

func setup(t *testing.T, h http.HandlerFunc) (*Holder, *api.Client, state.Storage, *server) {
	t.Helper()
	srv := &server{auth: map[string][]string{}, handler: h}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client := api.New(ts.URL, api.WithLogger(quietLogger()))
	storage := state.NewMemoryStorage()
	return New(client, storage, WithLogger(quietLogger())), client, storage, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// tokenOnlyBackend answers /login with a bare token and serves /me and
// /listings, leaving the identity to a follow-up GET /me.
func tokenOnlyBackend(w http.ResponseWriter, r *http.Request) {
	switch r.Method + " " + r.URL.Path {
	case "POST /login":
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "a@b.com" || req.Password != "x" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password!"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "T1"})
	case "GET /me":
		if r.Header.Get("Authorization") != "Bearer T1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 3, "username": "amina", "email": "a@b.com", "role": "Host"})
	case "GET /listings":
		writeJSON(w, http.StatusOK, []models.Listing{{ID: 1, Title: "Loft"}})
	case "GET /expired":
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has expired"})
	case "DELETE /logout":
		writeJSON(w, http.StatusOK, map[string]string{"success": "Successfully logged out"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func TestLoginAttachesBearerToLaterCalls(t *testing.T) {
	h, client, storage, srv := setup(t, tokenOnlyBackend)
	ctx := context.Background()

	sess, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "T1", sess.Token)
	assert.Equal(t, "T1", h.Token())
	assert.Equal(t, models.Identity{ID: 3, DisplayName: "amina", Email: "a@b.com", Role: models.RoleHost}, sess.Identity)
	assert.True(t, h.HasRole(models.RoleHost))
	assert.False(t, h.HasRole(models.RoleAdmin))

	assert.Equal(t, []string{""}, srv.authFor("POST /login"), "login is sent without a credential")
	assert.Equal(t, []string{"Bearer T1"}, srv.authFor("GET /me"))

	listings := resource.New[models.Listing]("listings", client, resource.Routes{Collection: "/listings"}, resource.WithLogger(quietLogger()))
	_, err = listings.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer T1"}, srv.authFor("GET /listings"))

	token, ok, err := storage.Get(KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "T1", token)

	raw, _, _ := storage.Get(KeyUser)
	assert.JSONEq(t, `{"id":3,"username":"amina","email":"a@b.com","role":"host"}`, raw)
}

func TestLoginUsesIdentityFromResponse(t *testing.T) {
	h, _, _, srv := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "T2",
			"user":         map[string]any{"id": 9, "username": "root", "email": "r@b.com", "role": "admin"},
		})
	})

	sess, err := h.Login(context.Background(), Credentials{Email: "r@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, int64(9), sess.Identity.ID)
	assert.Empty(t, srv.authFor("GET /me"), "identity in the response skips GET /me")
}

func TestLoginRequiresCredentials(t *testing.T) {
	h, _, _, srv := setup(t, tokenOnlyBackend)
	_, err := h.Login(context.Background(), Credentials{Email: " ", Password: "x"})
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
	assert.Empty(t, srv.authFor("POST /login"))
}

func TestFailedLoginKeepsExistingSession(t *testing.T) {
	h, _, storage, _ := setup(t, tokenOnlyBackend)
	ctx := context.Background()

	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	_, err = h.Login(ctx, Credentials{Email: "a@b.com", Password: "wrong"})
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))

	assert.Equal(t, "T1", h.Token())
	token, _, _ := storage.Get(KeyToken)
	assert.Equal(t, "T1", token)
}

func TestLoginFailsWhenIdentityLookupFails(t *testing.T) {
	h, _, storage, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "T9"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db down"})
	})

	_, err := h.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	assert.Equal(t, errors.KindServerFault, errors.KindOf(err))
	assert.False(t, h.Authenticated())
	_, ok, _ := storage.Get(KeyToken)
	assert.False(t, ok, "nothing is stored unless the identity was obtained")
}

func TestLoginWithoutToken(t *testing.T) {
	h, _, _, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"success": "ok"})
	})
	_, err := h.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	assert.Equal(t, errors.KindServerFault, errors.KindOf(err))
}

func TestLogoutThenRestoreIsAbsent(t *testing.T) {
	h, client, storage, srv := setup(t, tokenOnlyBackend)
	ctx := context.Background()

	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	h.Logout(ctx)
	assert.False(t, h.Authenticated())
	assert.Equal(t, []string{"Bearer T1"}, srv.authFor("DELETE /logout"))

	restored := New(client, storage, WithLogger(quietLogger()))
	_, ok := restored.Restore()
	assert.False(t, ok)

	// Idempotent: a second logout neither fails nor calls the server.
	h.Logout(ctx)
	assert.Len(t, srv.authFor("DELETE /logout"), 1)
}

func TestLogoutSurvivesServerFailure(t *testing.T) {
	h, _, storage, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logout" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has expired"})
			return
		}
		tokenOnlyBackend(w, r)
	})
	ctx := context.Background()
	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	ch := h.Subscribe()
	h.Logout(ctx)

	tr := <-ch
	assert.Equal(t, ReasonLogout, tr.Reason)
	assert.False(t, tr.Authenticated())
	select {
	case extra := <-ch:
		t.Fatalf("unexpected transition %v", extra.Reason)
	default:
	}
	_, ok, _ := storage.Get(KeyToken)
	assert.False(t, ok)
}

func TestRestoreFromStorage(t *testing.T) {
	h, client, storage, srv := setup(t, tokenOnlyBackend)
	ctx := context.Background()
	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	next := New(client, storage, WithLogger(quietLogger()))
	sess, ok := next.Restore()
	require.True(t, ok)
	assert.Equal(t, "T1", sess.Token)
	assert.Equal(t, "amina", sess.Identity.DisplayName)
	assert.Len(t, srv.authFor("GET /me"), 1, "restore does not contact the server")
}

func TestRestoreIgnoresCorruptIdentity(t *testing.T) {
	h, _, storage, _ := setup(t, tokenOnlyBackend)
	require.NoError(t, state.SetMany(storage, map[string]string{KeyToken: "T1", KeyUser: "{not json"}))

	_, ok := h.Restore()
	assert.False(t, ok)
	assert.False(t, h.Authenticated())
}

func TestUnauthorizedResponseExpiresSession(t *testing.T) {
	h, client, storage, _ := setup(t, tokenOnlyBackend)
	ctx := context.Background()
	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	err = client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/expired"}, nil)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))

	assert.False(t, h.Authenticated())
	assert.Empty(t, h.Token())
	_, ok, _ := storage.Get(KeyToken)
	assert.False(t, ok)

	tr := <-ch
	assert.Equal(t, ReasonExpired, tr.Reason)
	assert.Nil(t, tr.Session)
}

// hookedStorage runs afterWrite once, after the first batched write lands.
type hookedStorage struct {
	*state.MemoryStorage
	once       sync.Once
	afterWrite func()
}

func (s *hookedStorage) SetMany(values map[string]string) error {
	if err := s.MemoryStorage.SetMany(values); err != nil {
		return err
	}
	if s.afterWrite != nil {
		s.once.Do(s.afterWrite)
	}
	return nil
}

func TestExpiryDuringLoginKeepsNewCredential(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(tokenOnlyBackend))
	t.Cleanup(ts.Close)
	client := api.New(ts.URL, api.WithLogger(quietLogger()))

	old, err := json.Marshal(models.Identity{ID: 9, DisplayName: "old", Role: models.RoleGuest})
	require.NoError(t, err)
	storage := &hookedStorage{MemoryStorage: state.NewMemoryStorage()}
	require.NoError(t, storage.MemoryStorage.SetMany(map[string]string{KeyToken: "OLD", KeyUser: string(old)}))

	h := New(client, storage, WithLogger(quietLogger()))
	_, ok := h.Restore()
	require.True(t, ok)

	ctx := context.Background()
	expired := make(chan struct{})
	storage.afterWrite = func() {
		// The old token is rejected while the new one is being stored.
		go func() {
			defer close(expired)
			_ = client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/expired", Bearer: "OLD"}, nil)
		}()
		select {
		case <-expired:
		case <-time.After(100 * time.Millisecond):
		}
	}

	_, err = h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("rejected request never completed")
	}

	assert.Equal(t, "T1", h.Token())
	token, found, err := storage.Get(KeyToken)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "T1", token)

	next := New(client, storage, WithLogger(quietLogger()))
	sess, ok := next.Restore()
	require.True(t, ok)
	assert.Equal(t, "T1", sess.Token)
}

func TestUnauthorizedWithoutCredentialIsIgnored(t *testing.T) {
	h, client, _, _ := setup(t, tokenOnlyBackend)
	ctx := context.Background()
	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	err = client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/expired", Anonymous: true}, nil)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
	assert.True(t, h.Authenticated())

	// A stale token from an earlier session does not end the current one.
	err = client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/expired", Bearer: "OLD"}, nil)
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
	assert.True(t, h.Authenticated())
}

func TestRegister(t *testing.T) {
	var registered models.RegisterRequest
	h, _, _, srv := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			json.NewDecoder(r.Body).Decode(&registered)
			writeJSON(w, http.StatusCreated, map[string]string{"success": "New user created successfully!"})
		case "/login":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "T5",
				"user":         map[string]any{"id": 5, "username": "new", "email": "n@b.com", "role": "guest"},
			})
		}
	})

	sess, err := h.Register(context.Background(), models.RegisterRequest{Username: "new", Email: "n@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleGuest, registered.Role)
	assert.Equal(t, "T5", sess.Token)
	assert.Len(t, srv.authFor("POST /login"), 1, "a tokenless registration is followed by a login")

	_, err = h.Register(context.Background(), models.RegisterRequest{Username: "x", Email: "x@b.com", Password: "pw", Role: "owner"})
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestUpdateProfileReplacesIdentity(t *testing.T) {
	h, _, storage, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "PATCH /users/3":
			writeJSON(w, http.StatusOK, models.User{ID: 3, Username: "amina-k", Email: "a@b.com", Role: models.RoleHost})
		default:
			tokenOnlyBackend(w, r)
		}
	})
	ctx := context.Background()
	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	name := "amina-k"
	sess, err := h.UpdateProfile(ctx, models.UserPatch{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "amina-k", sess.Identity.DisplayName)

	raw, _, _ := storage.Get(KeyUser)
	assert.Contains(t, raw, "amina-k")
}

func TestDeleteAccountEndsSession(t *testing.T) {
	h, _, _, srv := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/users/3" {
			writeJSON(w, http.StatusOK, map[string]string{"success": "User deleted successfully!"})
			return
		}
		tokenOnlyBackend(w, r)
	})
	ctx := context.Background()
	_, err := h.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	require.NoError(t, h.DeleteAccount(ctx))
	assert.False(t, h.Authenticated())
	assert.Equal(t, []string{"Bearer T1"}, srv.authFor("DELETE /users/3"))

	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(h.DeleteAccount(ctx)))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	assert.True(t, exp.Equal(tokenExpiry(signed)))
	assert.True(t, tokenExpiry("opaque-token").IsZero())

	s := &Session{ExpiresAt: exp}
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(exp.Add(time.Second)))
}

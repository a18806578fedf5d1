package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/logging"
	"github.com/grovetools/bnb/pkg/api"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/state"
)

const subscriberBuffer = 16

// Transport is the part of *api.Client the holder needs.
type Transport interface {
	Do(ctx context.Context, req api.Request, out any) error
	SetCredentials(src api.CredentialSource)
	OnResponse(fn api.Interceptor)
}

// Holder owns the current session. Only the holder writes the credential;
// every request made through the transport reads it via Token.
type Holder struct {
	client  Transport
	storage state.Storage
	logger  *logrus.Entry

	mu          sync.RWMutex
	session     *Session
	subscribers map[<-chan Transition]chan Transition
}

// Option configures a Holder.
type Option func(*Holder)

func WithLogger(logger *logrus.Entry) Option {
	return func(h *Holder) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates an anonymous holder, installs it as client's credential source
// and registers the interceptor that ends the session when the server rejects
// its token.
func New(client Transport, storage state.Storage, opts ...Option) *Holder {
	h := &Holder{
		client:      client,
		storage:     storage,
		subscribers: make(map[<-chan Transition]chan Transition),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logging.NewLogger("session")
	}
	client.SetCredentials(h)
	client.OnResponse(h.observe)
	return h
}

// Token returns the current bearer credential, or "" when anonymous.
func (h *Holder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return ""
	}
	return h.session.Token
}

// Current returns a copy of the current session.
func (h *Holder) Current() (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil, false
	}
	s := *h.session
	return &s, true
}

func (h *Holder) Authenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session != nil
}

// HasRole reports whether the signed-in identity has any of roles.
func (h *Holder) HasRole(roles ...models.Role) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return false
	}
	for _, r := range roles {
		if h.session.Identity.Role.Is(r) {
			return true
		}
	}
	return false
}

// Login exchanges credentials for a token. If the login response does not
// include the identity, it is fetched from GET /me with the new token. The
// existing session is untouched unless every step succeeds.
func (h *Holder) Login(ctx context.Context, creds Credentials) (*Session, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, errors.InvalidInput("email and password are required")
	}

	var resp models.LoginResponse
	err := h.client.Do(ctx, api.Request{
		Method:    http.MethodPost,
		Path:      "/login",
		Body:      models.LoginRequest{Email: email, Password: creds.Password},
		Anonymous: true,
	}, &resp)
	if err != nil {
		h.logger.WithField("kind", errors.KindOf(err)).Debug("login failed")
		return nil, err
	}
	return h.establish(ctx, "/login", resp, ReasonLogin)
}

// Register creates an account and signs in as it. Servers that answer the
// registration without a token are followed by a regular login.
func (h *Holder) Register(ctx context.Context, reg models.RegisterRequest) (*Session, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return nil, errors.InvalidInput("username, email and password are required")
	}
	if reg.Role == "" {
		reg.Role = models.RoleGuest
	} else if r, ok := models.ParseRole(string(reg.Role)); ok {
		reg.Role = r
	} else {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown role %q", reg.Role))
	}

	var resp models.LoginResponse
	err := h.client.Do(ctx, api.Request{
		Method:    http.MethodPost,
		Path:      "/users",
		Body:      reg,
		Anonymous: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		if err := h.client.Do(ctx, api.Request{
			Method:    http.MethodPost,
			Path:      "/login",
			Body:      models.LoginRequest{Email: reg.Email, Password: reg.Password},
			Anonymous: true,
		}, &resp); err != nil {
			return nil, err
		}
	}
	return h.establish(ctx, "/users", resp, ReasonRegister)
}

func (h *Holder) establish(ctx context.Context, path string, resp models.LoginResponse, reason Reason) (*Session, error) {
	if resp.AccessToken == "" {
		return nil, errors.MalformedResponse(http.MethodPost, path, fmt.Errorf("response has no access_token"))
	}

	var identity models.Identity
	if resp.User != nil && resp.User.ID != 0 {
		identity = *resp.User
	} else {
		if err := h.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/me", Bearer: resp.AccessToken}, &identity); err != nil {
			return nil, err
		}
		if identity.ID == 0 {
			return nil, errors.MalformedResponse(http.MethodGet, "/me", fmt.Errorf("identity has no id"))
		}
	}
	if r, ok := models.ParseRole(string(identity.Role)); ok {
		identity.Role = r
	}

	sess := &Session{
		Token:     resp.AccessToken,
		Identity:  identity,
		ExpiresAt: tokenExpiry(resp.AccessToken),
	}
	// Storage and memory change together under the lock.
	h.mu.Lock()
	if err := h.persist(sess); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	h.session = sess
	h.broadcastLocked(reason)
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"user_id": identity.ID,
		"role":    identity.Role,
		"reason":  reason,
	}).Info("signed in")

	out := *sess
	return &out, nil
}

// Logout ends the session locally and asks the server to revoke the token.
// The server call is best-effort. Logout never fails and is idempotent.
func (h *Holder) Logout(ctx context.Context) {
	token := h.clear(ReasonLogout)
	if token == "" {
		return
	}
	err := h.client.Do(ctx, api.Request{Method: http.MethodDelete, Path: "/logout", Bearer: token}, nil)
	if err != nil {
		h.logger.WithField("kind", errors.KindOf(err)).Debug("server logout failed")
	}
}

// Restore loads the session persisted by a previous run. The credential is
// not checked with the server; an expired token is discovered on its first
// rejection.
func (h *Holder) Restore() (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	token, ok, err := h.storage.Get(KeyToken)
	if err != nil {
		h.logger.WithError(err).Warn("failed to read stored session")
		return nil, false
	}
	if !ok || token == "" {
		return nil, false
	}

	raw, ok, err := h.storage.Get(KeyUser)
	if err != nil || !ok {
		h.logger.WithError(err).Warn("stored session has no identity")
		return nil, false
	}
	var identity models.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		h.logger.WithError(err).Warn("stored identity is corrupt")
		return nil, false
	}

	sess := &Session{Token: token, Identity: identity, ExpiresAt: tokenExpiry(token)}
	h.session = sess
	h.broadcastLocked(ReasonRestore)

	out := *sess
	return &out, true
}

// RefreshIdentity re-reads the signed-in identity from GET /me.
func (h *Holder) RefreshIdentity(ctx context.Context) (*Session, error) {
	token := h.Token()
	if token == "" {
		return nil, errors.New(errors.KindUnauthorized, "not signed in")
	}
	var identity models.Identity
	if err := h.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/me", Bearer: token}, &identity); err != nil {
		return nil, err
	}
	return h.replaceIdentity(token, identity)
}

// UpdateProfile patches the signed-in account and replaces the identity with
// the server's representation.
func (h *Holder) UpdateProfile(ctx context.Context, patch models.UserPatch) (*Session, error) {
	cur, ok := h.Current()
	if !ok {
		return nil, errors.New(errors.KindUnauthorized, "not signed in")
	}

	var user models.User
	path := fmt.Sprintf("/users/%d", cur.Identity.ID)
	if err := h.client.Do(ctx, api.Request{Method: http.MethodPatch, Path: path, Body: patch, Bearer: cur.Token}, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		// Acknowledgement without a body; read the result back.
		return h.RefreshIdentity(ctx)
	}
	return h.replaceIdentity(cur.Token, models.IdentityOf(user))
}

// DeleteAccount deletes the signed-in account and ends the session.
func (h *Holder) DeleteAccount(ctx context.Context) error {
	cur, ok := h.Current()
	if !ok {
		return errors.New(errors.KindUnauthorized, "not signed in")
	}
	path := fmt.Sprintf("/users/%d", cur.Identity.ID)
	if err := h.client.Do(ctx, api.Request{Method: http.MethodDelete, Path: path, Bearer: cur.Token}, nil); err != nil {
		return err
	}
	h.clear(ReasonLogout)
	return nil
}

func (h *Holder) replaceIdentity(token string, identity models.Identity) (*Session, error) {
	if r, ok := models.ParseRole(string(identity.Role)); ok {
		identity.Role = r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// The session may have ended or changed while the call was in flight.
	if h.session == nil || h.session.Token != token {
		return nil, errors.New(errors.KindUnauthorized, "session ended")
	}
	next := *h.session
	next.Identity = identity
	if err := h.persist(&next); err != nil {
		return nil, err
	}
	h.session = &next
	h.broadcastLocked(ReasonIdentity)

	out := next
	return &out, nil
}

// observe ends the session when the server rejects the token it carries.
// A rejection of any other token, such as one issued by a login still in
// progress, is ignored.
func (h *Holder) observe(_ context.Context, resp api.Response) {
	if resp.Status != http.StatusUnauthorized || resp.Token == "" {
		return
	}
	h.mu.RLock()
	current := h.session != nil && h.session.Token == resp.Token
	h.mu.RUnlock()
	if !current {
		return
	}

	h.logger.WithFields(logrus.Fields{
		"method":     resp.Method,
		"path":       resp.Path,
		"request_id": resp.RequestID,
	}).Warn("session expired")
	h.clearToken(resp.Token, ReasonExpired)
}

// clear ends whatever session is current and returns its token.
func (h *Holder) clear(reason Reason) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var token string
	if h.session != nil {
		token = h.session.Token
		h.session = nil
		h.broadcastLocked(reason)
	}
	h.wipeLocked()
	return token
}

// clearToken ends the session only if it still holds token.
func (h *Holder) clearToken(token string, reason Reason) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil || h.session.Token != token {
		return
	}
	h.session = nil
	h.broadcastLocked(reason)
	h.wipeLocked()
}

func (h *Holder) wipeLocked() {
	if err := h.storage.Delete(KeyToken, KeyUser); err != nil {
		h.logger.WithError(err).Warn("failed to clear stored session")
	}
}

// persist writes s to storage. The caller holds h.mu.
func (h *Holder) persist(s *Session) error {
	data, err := json.Marshal(s.Identity)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to encode identity")
	}
	if err := state.SetMany(h.storage, map[string]string{
		KeyToken: s.Token,
		KeyUser:  string(data),
	}); err != nil {
		return errors.Storage("write", KeyToken, err)
	}
	return nil
}

// Subscribe returns a channel receiving every session transition.
func (h *Holder) Subscribe() <-chan Transition {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Transition, subscriberBuffer)
	h.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Holder) Unsubscribe(ch <-chan Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if send, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(send)
	}
}

func (h *Holder) broadcastLocked(reason Reason) {
	t := Transition{Reason: reason}
	if h.session != nil {
		s := *h.session
		t.Session = &s
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- t:
		default:
		}
	}
}

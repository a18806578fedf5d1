package fakeapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/grovetools/bnb/pkg/models"
)

type contextKey string

const userIDKey contextKey = "userID"

type claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// AddUser creates an account directly, bypassing registration rules.
func (s *Server) AddUser(username, email, password string, role models.Role) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := models.User{
		ID:        s.id(),
		Username:  username,
		Email:     email,
		Role:      role,
		Status:    models.UserActive,
		CreatedAt: s.stamp(),
		UpdatedAt: s.stamp(),
	}
	s.accounts[u.ID] = &account{user: u, password: hash}
	return u, nil
}

// IssueToken signs a token for userID, for tests that need a credential
// without a login round trip.
func (s *Server) IssueToken(userID int64) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) parseToken(token string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// authenticate rejects requests without a valid, unrevoked bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
			return
		}
		c, err := s.parseToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has expired"})
			return
		}

		s.mu.Lock()
		_, revoked := s.revoked[c.ID]
		acct, exists := s.accounts[c.UserID]
		var status models.UserStatus
		if exists {
			status = acct.user.Status
		}
		s.mu.Unlock()
		if revoked || !exists {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has been revoked"})
			return
		}
		if status == models.UserSuspended {
			writeError(w, http.StatusForbidden, "account suspended")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, c.UserID)
		ctx = context.WithValue(ctx, tokenIDKey, c.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const tokenIDKey contextKey = "tokenID"

func (s *Server) requireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := s.caller(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range roles {
				if u.Role.Is(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Unauthorized")
		})
	}
}

// caller returns the authenticated user.
func (s *Server) caller(r *http.Request) (models.User, bool) {
	id, ok := r.Context().Value(userIDKey).(int64)
	if !ok {
		return models.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return models.User{}, false
	}
	return acct.user, true
}

func selfOrAdmin(u models.User, id int64) bool {
	return u.ID == id || u.Role.Is(models.RoleAdmin)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required to log in")
		return
	}

	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Email, req.Email) {
			snapshot := *a
			found = &snapshot
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.password, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password!")
		return
	}
	if found.user.Status == models.UserSuspended {
		writeError(w, http.StatusForbidden, "account suspended")
		return
	}
	s.respondWithToken(w, http.StatusOK, found.user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	}
	role := models.RoleGuest
	if req.Role != "" {
		parsed, ok := models.ParseRole(string(req.Role))
		if !ok || parsed == models.RoleAdmin {
			writeError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		role = parsed
	}

	s.mu.Lock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Username, req.Username) {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}
		if strings.EqualFold(a.user.Email, req.Email) {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
	}
	s.mu.Unlock()

	u, err := s.AddUser(req.Username, req.Email, req.Password, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	s.respondWithToken(w, http.StatusCreated, u)
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, u models.User) {
	token, err := s.IssueToken(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	id := models.IdentityOf(u)
	writeJSON(w, status, models.LoginResponse{AccessToken: token, User: &id})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.caller(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	jti, _ := r.Context().Value(tokenIDKey).(string)
	s.mu.Lock()
	s.revoked[jti] = struct{}{}
	s.mu.Unlock()
	writeSuccess(w, "Successfully logged out")
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)
	var patch models.UserPatch
	if !decode(w, r, &patch) {
		return
	}

	var hash []byte
	if patch.Password != nil {
		h, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.MinCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		hash = h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, exists := s.accounts[id]
	if !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if !selfOrAdmin(caller, id) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	if patch.Username != nil {
		acct.user.Username = *patch.Username
	}
	if patch.Email != nil {
		acct.user.Email = *patch.Email
	}
	if hash != nil {
		acct.password = hash
	}
	acct.user.UpdatedAt = s.stamp()
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[id]; !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if !selfOrAdmin(caller, id) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	for bid, b := range s.bookings {
		if b.UserID == id {
			delete(s.bookings, bid)
		}
	}
	for fid, f := range s.favorites {
		if f.UserID == id {
			delete(s.favorites, fid)
		}
	}
	for rid, rv := range s.reviews {
		if rv.UserID == id {
			delete(s.reviews, rid)
		}
	}
	delete(s.accounts, id)
	writeSuccess(w, "User deleted successfully!")
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.RoleChange
	if !decode(w, r, &req) {
		return
	}
	role, valid := models.ParseRole(string(req.Role))
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, exists := s.accounts[id]
	if !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	acct.user.Role = role
	acct.user.UpdatedAt = s.stamp()
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.StatusChange
	if !decode(w, r, &req) {
		return
	}
	status := models.UserStatus(strings.ToLower(req.Status))
	if status != models.UserActive && status != models.UserSuspended {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, exists := s.accounts[id]
	if !exists {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	acct.user.Status = status
	acct.user.UpdatedAt = s.stamp()
	writeJSON(w, http.StatusOK, acct.user)
}

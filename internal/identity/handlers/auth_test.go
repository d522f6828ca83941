package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/animewatch/internal/identity/domain"
	"github.com/example/animewatch/internal/identity/store"
	"github.com/example/animewatch/internal/identity/tokens"
	"github.com/example/animewatch/internal/platform/auth"
)

// fakeStore is an in-memory UserStore for handler tests.
type fakeStore struct {
	users         map[string]domain.User // keyed by id
	passwords     map[string]string      // id -> bcrypt hash
	sessions      map[string]store.RefreshSession
	verifications map[string]emailVerification
}

type emailVerification struct {
	userID    uuid.UUID
	expiresAt time.Time
	used      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[string]domain.User),
		passwords:     make(map[string]string),
		sessions:      make(map[string]store.RefreshSession),
		verifications: make(map[string]emailVerification),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, p store.CreateUserParams) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == p.Username || (p.Email != "" && u.Email == p.Email) {
			return domain.User{}, store.ErrConflict
		}
	}
	u := domain.User{
		ID:        uuid.NewString(),
		Email:     p.Email,
		Username:  p.Username,
		CreatedAt: time.Now().UTC(),
	}
	f.users[u.ID] = u
	f.passwords[u.ID] = p.PasswordHash
	return u, nil
}

func (f *fakeStore) FindUserByLogin(_ context.Context, login string) (store.UserRow, error) {
	for id, u := range f.users {
		if u.Username == login || u.Email == login {
			return store.UserRow{User: u, PasswordHash: f.passwords[id]}, nil
		}
	}
	return store.UserRow{}, store.ErrNotFound
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) SetAvatarURL(_ context.Context, userID, url string) error {
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.AvatarURL = url
	f.users[userID] = u
	return nil
}

func (f *fakeStore) CreateRefreshSession(_ context.Context, p store.CreateRefreshSessionParams) error {
	f.sessions[p.TokenHash] = store.RefreshSession{
		ID:        p.SessionID,
		UserID:    p.UserID,
		TokenHash: p.TokenHash,
		ExpiresAt: p.ExpiresAt,
	}
	return nil
}

func (f *fakeStore) GetRefreshSessionByHash(_ context.Context, tokenHash string) (store.RefreshSession, error) {
	s, ok := f.sessions[tokenHash]
	if !ok {
		return store.RefreshSession{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, sessionID uuid.UUID, now time.Time) error {
	for hash, s := range f.sessions {
		if s.ID == sessionID && s.RevokedAt == nil {
			s.RevokedAt = &now
			f.sessions[hash] = s
		}
	}
	return nil
}

func (f *fakeStore) ReplaceRefreshSession(_ context.Context, oldID, _ uuid.UUID, now time.Time) error {
	return f.RevokeRefreshSession(context.Background(), oldID, now)
}

func (f *fakeStore) CreateEmailVerification(_ context.Context, tokenHash string, userID uuid.UUID, expiresAt time.Time) error {
	f.verifications[tokenHash] = emailVerification{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) ConsumeEmailVerification(_ context.Context, tokenHash string, now time.Time) (string, error) {
	v, ok := f.verifications[tokenHash]
	if !ok || v.used || now.After(v.expiresAt) {
		return "", store.ErrNotFound
	}
	v.used = true
	f.verifications[tokenHash] = v
	u := f.users[v.userID.String()]
	u.EmailVerified = true
	f.users[v.userID.String()] = u
	return v.userID.String(), nil
}

type fakeMailer struct {
	sentTo    string
	sentToken string
}

func (m *fakeMailer) SendVerification(email, _, token string) {
	m.sentTo = email
	m.sentToken = token
}

func newAuth(fs *fakeStore, m Mailer) *Auth {
	return &Auth{
		Store: fs,
		Tokens: tokens.Service{
			Secret:          []byte("test-jwt-secret-32-bytes-padded!"),
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Mail: m,
	}
}

func postJSON(handler http.HandlerFunc, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRegister(t *testing.T) {
	fs := newFakeStore()
	mailer := &fakeMailer{}
	a := newAuth(fs, mailer)

	rr := postJSON(a.Register, "/api/auth/register",
		`{"email":"misaki@example.com","username":"misaki","password":"hunter2-long"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp authResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.Username != "misaki" {
		t.Fatalf("expected username 'misaki', got %q", resp.User.Username)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both tokens in response")
	}
	if mailer.sentTo != "misaki@example.com" || mailer.sentToken == "" {
		t.Fatalf("expected verification email, got to=%q token=%q", mailer.sentTo, mailer.sentToken)
	}
}

func TestRegister_Validation(t *testing.T) {
	a := newAuth(newFakeStore(), nil)

	cases := []struct {
		name string
		body string
	}{
		{"bad email", `{"email":"nope","username":"misaki","password":"hunter2-long"}`},
		{"bad username", `{"email":"a@b.co","username":"x","password":"hunter2-long"}`},
		{"short password", `{"email":"a@b.co","username":"misaki","password":"short"}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(a.Register, "/api/auth/register", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	a := newAuth(newFakeStore(), nil)

	body := `{"email":"misaki@example.com","username":"misaki","password":"hunter2-long"}`
	if rr := postJSON(a.Register, "/api/auth/register", body); rr.Code != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", rr.Code)
	}
	if rr := postJSON(a.Register, "/api/auth/register", body); rr.Code != http.StatusConflict {
		t.Fatalf("second register: expected 409, got %d", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	fs := newFakeStore()
	a := newAuth(fs, nil)

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2-long"), bcrypt.MinCost)
	u, _ := fs.CreateUser(context.Background(), store.CreateUserParams{
		Email: "misaki@example.com", Username: "misaki", PasswordHash: string(hash),
	})

	rr := postJSON(a.Login, "/api/auth/login", `{"login":"misaki","password":"hunter2-long"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp authResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, resp.User.ID)
	}

	// Email works as the login too.
	rr = postJSON(a.Login, "/api/auth/login", `{"login":"misaki@example.com","password":"hunter2-long"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for email login, got %d", rr.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	fs := newFakeStore()
	a := newAuth(fs, nil)

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2-long"), bcrypt.MinCost)
	_, _ = fs.CreateUser(context.Background(), store.CreateUserParams{
		Username: "misaki", PasswordHash: string(hash),
	})

	rr := postJSON(a.Login, "/api/auth/login", `{"login":"misaki","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = postJSON(a.Login, "/api/auth/login", `{"login":"ghost","password":"whatever"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rr.Code)
	}
}

func TestRefresh_RotatesSession(t *testing.T) {
	fs := newFakeStore()
	a := newAuth(fs, nil)

	rr := postJSON(a.Register, "/api/auth/register",
		`{"email":"misaki@example.com","username":"misaki","password":"hunter2-long"}`)
	var first authResponse
	if err := json.NewDecoder(rr.Body).Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = postJSON(a.Refresh, "/api/auth/refresh", `{"refresh_token":"`+first.RefreshToken+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var second authResponse
	if err := json.NewDecoder(rr.Body).Decode(&second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	// The old token is single-use.
	rr = postJSON(a.Refresh, "/api/auth/refresh", `{"refresh_token":"`+first.RefreshToken+`"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for reused token, got %d", rr.Code)
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	a := newAuth(newFakeStore(), nil)

	rr := postJSON(a.Refresh, "/api/auth/refresh", `{"refresh_token":"bogus"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	fs := newFakeStore()
	a := newAuth(fs, nil)

	rr := postJSON(a.Register, "/api/auth/register",
		`{"email":"misaki@example.com","username":"misaki","password":"hunter2-long"}`)
	var resp authResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rr = postJSON(a.Logout, "/api/auth/logout", `{"refresh_token":"`+resp.RefreshToken+`"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	sess, err := fs.GetRefreshSessionByHash(context.Background(), tokens.HashToken(resp.RefreshToken))
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if sess.RevokedAt == nil {
		t.Fatal("expected session to be revoked")
	}
}

func TestVerifyEmail(t *testing.T) {
	fs := newFakeStore()
	mailer := &fakeMailer{}
	a := newAuth(fs, mailer)

	postJSON(a.Register, "/api/auth/register",
		`{"email":"misaki@example.com","username":"misaki","password":"hunter2-long"}`)
	if mailer.sentToken == "" {
		t.Fatal("expected a verification token to be issued")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify?token="+mailer.sentToken, nil)
	rr := httptest.NewRecorder()
	a.VerifyEmail(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Tokens are single-use.
	rr = httptest.NewRecorder()
	a.VerifyEmail(rr, httptest.NewRequest(http.MethodGet, "/api/auth/verify?token="+mailer.sentToken, nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reused token, got %d", rr.Code)
	}
}

func TestMe(t *testing.T) {
	fs := newFakeStore()
	a := newAuth(fs, nil)

	u, _ := fs.CreateUser(context.Background(), store.CreateUserParams{Username: "misaki", PasswordHash: "x"})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), u.ID))
	rr := httptest.NewRecorder()
	a.Me(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got domain.User
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Username != "misaki" {
		t.Fatalf("expected username 'misaki', got %q", got.Username)
	}
}

func TestSetProfilePicture(t *testing.T) {
	fs := newFakeStore()
	a := newAuth(fs, nil)

	u, _ := fs.CreateUser(context.Background(), store.CreateUserParams{Username: "misaki", PasswordHash: "x"})

	req := httptest.NewRequest(http.MethodPut, "/api/users/me/avatar",
		bytes.NewBufferString(`{"avatar_url":"https://cdn.example.com/a/1.png"}`))
	req = req.WithContext(auth.WithUserID(req.Context(), u.ID))
	rr := httptest.NewRecorder()
	a.SetProfilePicture(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got domain.User
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.AvatarURL != "https://cdn.example.com/a/1.png" {
		t.Fatalf("unexpected avatar url %q", got.AvatarURL)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/animewatch/internal/identity/domain"
	"github.com/example/animewatch/internal/identity/store"
	"github.com/example/animewatch/internal/identity/tokens"
	"github.com/example/animewatch/internal/platform/analytics"
	"github.com/example/animewatch/internal/platform/api"
	"github.com/example/animewatch/internal/platform/auth"
)

// Verification links stop working after a day.
const verificationTTL = 24 * time.Hour

// UserStore is the slice of the identity store the HTTP layer needs.
type UserStore interface {
	CreateUser(ctx context.Context, p store.CreateUserParams) (domain.User, error)
	FindUserByLogin(ctx context.Context, login string) (store.UserRow, error)
	GetUserByID(ctx context.Context, userID string) (domain.User, error)
	SetAvatarURL(ctx context.Context, userID, url string) error

	CreateRefreshSession(ctx context.Context, p store.CreateRefreshSessionParams) error
	GetRefreshSessionByHash(ctx context.Context, tokenHash string) (store.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error
	ReplaceRefreshSession(ctx context.Context, oldID, newID uuid.UUID, now time.Time) error

	CreateEmailVerification(ctx context.Context, tokenHash string, userID uuid.UUID, expiresAt time.Time) error
	ConsumeEmailVerification(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// Mailer sends the signup verification email.
type Mailer interface {
	SendVerification(email, username, token string)
}

// Auth bundles everything the account endpoints depend on.
type Auth struct {
	Store  UserStore
	Tokens tokens.Service
	Mail   Mailer
	Events *analytics.Publisher
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type avatarRequest struct {
	AvatarURL string `json:"avatar_url"`
}

type authResponse struct {
	User         domain.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
}

// Register handles POST /api/auth/register.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
		return
	}

	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	if !isValidEmail(email) {
		api.BadRequest(w, "VALIDATION_EMAIL", "Invalid email", "", map[string]any{"email": "invalid"})
		return
	}
	if !isValidUsername(username) {
		api.BadRequest(w, "VALIDATION_USERNAME", "Invalid username", "", map[string]any{"username": "3-32 chars, letters, digits, underscore"})
		return
	}
	if len(req.Password) < 8 {
		api.BadRequest(w, "VALIDATION_PASSWORD", "Password too short", "", map[string]any{"password": "min length 8"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		api.Internal(w, "")
		return
	}

	u, err := a.Store.CreateUser(r.Context(), store.CreateUserParams{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			api.Conflict(w, "USER_ALREADY_EXISTS", "User already exists", "", nil)
			return
		}
		api.Internal(w, "")
		return
	}

	a.sendVerification(r.Context(), u)

	resp, err := a.issueTokens(r.Context(), u, clientIP(r), r.UserAgent())
	if err != nil {
		api.Internal(w, "")
		return
	}

	a.Events.Publish(analytics.SubjectAuthRegistered, "auth_registered", u.ID, nil)
	api.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login. Accepts username or email.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
		return
	}
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		api.BadRequest(w, "VALIDATION_LOGIN", "login and password are required", "", nil)
		return
	}

	row, err := a.Store.FindUserByLogin(r.Context(), req.Login)
	if err != nil {
		api.Unauthorized(w, "AUTH_INVALID_CREDENTIALS", "Invalid credentials", "")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)) != nil {
		api.Unauthorized(w, "AUTH_INVALID_CREDENTIALS", "Invalid credentials", "")
		return
	}

	resp, err := a.issueTokens(r.Context(), row.User, clientIP(r), r.UserAgent())
	if err != nil {
		api.Internal(w, "")
		return
	}

	a.Events.Publish(analytics.SubjectAuthLoggedIn, "auth_logged_in", row.User.ID, nil)
	api.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/auth/refresh with single-use rotation: the
// presented session is revoked and linked to its replacement.
func (a *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
		return
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		api.BadRequest(w, "VALIDATION_REFRESH_TOKEN", "refresh_token is required", "", nil)
		return
	}

	sess, err := a.Store.GetRefreshSessionByHash(r.Context(), tokens.HashToken(raw))
	if err != nil {
		api.Unauthorized(w, "AUTH_INVALID_REFRESH", "Invalid refresh token", "")
		return
	}
	now := time.Now().UTC()
	if sess.RevokedAt != nil || now.After(sess.ExpiresAt) {
		api.Unauthorized(w, "AUTH_INVALID_REFRESH", "Invalid refresh token", "")
		return
	}

	u, err := a.Store.GetUserByID(r.Context(), sess.UserID.String())
	if err != nil {
		api.Internal(w, "")
		return
	}

	access, exp, err := a.Tokens.NewAccessToken(u.ID, u.Role(), now)
	if err != nil {
		api.Internal(w, "")
		return
	}
	newRaw, newHash, err := tokens.NewRefreshToken()
	if err != nil {
		api.Internal(w, "")
		return
	}
	newID := uuid.New()
	if err := a.Store.ReplaceRefreshSession(r.Context(), sess.ID, newID, now); err != nil {
		api.Internal(w, "")
		return
	}
	if err := a.Store.CreateRefreshSession(r.Context(), store.CreateRefreshSessionParams{
		SessionID: newID,
		UserID:    sess.UserID,
		TokenHash: newHash,
		ExpiresAt: now.Add(a.Tokens.RefreshTokenTTL),
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
		Now:       now,
	}); err != nil {
		api.Internal(w, "")
		return
	}

	api.WriteJSON(w, http.StatusOK, authResponse{
		User:         u,
		AccessToken:  access,
		RefreshToken: newRaw,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

// Logout handles POST /api/auth/logout. Always succeeds; revocation of
// an unknown token is a no-op.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
		return
	}
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		if sess, err := a.Store.GetRefreshSessionByHash(r.Context(), tokens.HashToken(raw)); err == nil {
			_ = a.Store.RevokeRefreshSession(r.Context(), sess.ID, time.Now().UTC())
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me. Mounted behind RequireUser.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
		return
	}
	u, err := a.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "user not found", "")
			return
		}
		api.Internal(w, "")
		return
	}
	api.WriteJSON(w, http.StatusOK, u)
}

// VerifyEmail handles GET /api/auth/verify?token=...
func (a *Auth) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		api.BadRequest(w, "VALIDATION_TOKEN", "token is required", "", nil)
		return
	}

	userID, err := a.Store.ConsumeEmailVerification(r.Context(), tokens.HashToken(raw), time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.BadRequest(w, "INVALID_TOKEN", "token is invalid, expired or already used", "", nil)
			return
		}
		api.Internal(w, "")
		return
	}

	a.Events.Publish(analytics.SubjectEmailVerified, "email_verified", userID, nil)
	api.WriteJSON(w, http.StatusOK, map[string]any{"verified": true})
}

// SetProfilePicture handles PUT /api/users/me/avatar. Mounted behind
// RequireUser.
func (a *Auth) SetProfilePicture(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
		return
	}

	var req avatarRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
		return
	}
	if strings.TrimSpace(req.AvatarURL) == "" {
		api.BadRequest(w, "VALIDATION_AVATAR", "avatar_url is required", "", nil)
		return
	}

	if err := a.Store.SetAvatarURL(r.Context(), userID, req.AvatarURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "user not found", "")
			return
		}
		api.Internal(w, "")
		return
	}

	u, err := a.Store.GetUserByID(r.Context(), userID)
	if err != nil {
		api.Internal(w, "")
		return
	}
	api.WriteJSON(w, http.StatusOK, u)
}

func (a *Auth) issueTokens(ctx context.Context, u domain.User, ip net.IP, userAgent string) (authResponse, error) {
	now := time.Now().UTC()
	access, exp, err := a.Tokens.NewAccessToken(u.ID, u.Role(), now)
	if err != nil {
		return authResponse{}, err
	}
	refreshRaw, refreshHash, err := tokens.NewRefreshToken()
	if err != nil {
		return authResponse{}, err
	}
	userID, err := uuid.Parse(u.ID)
	if err != nil {
		return authResponse{}, err
	}
	if err := a.Store.CreateRefreshSession(ctx, store.CreateRefreshSessionParams{
		SessionID: uuid.New(),
		UserID:    userID,
		TokenHash: refreshHash,
		ExpiresAt: now.Add(a.Tokens.RefreshTokenTTL),
		UserAgent: userAgent,
		IP:        ip,
		Now:       now,
	}); err != nil {
		return authResponse{}, err
	}

	return authResponse{
		User:         u,
		AccessToken:  access,
		RefreshToken: refreshRaw,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	}, nil
}

func (a *Auth) sendVerification(ctx context.Context, u domain.User) {
	if a.Mail == nil || u.Email == "" {
		return
	}
	raw, hash, err := tokens.NewRefreshToken()
	if err != nil {
		return
	}
	userID, err := uuid.Parse(u.ID)
	if err != nil {
		return
	}
	if err := a.Store.CreateEmailVerification(ctx, hash, userID, time.Now().UTC().Add(verificationTTL)); err != nil {
		return
	}
	a.Mail.SendVerification(u.Email, u.Username, raw)
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

func isValidUsername(s string) bool {
	return usernameRe.MatchString(strings.TrimSpace(s))
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}

// clientIP trusts the first X-Forwarded-For hop when present, falling
// back to the socket peer.
func clientIP(r *http.Request) net.IP {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(parts[0])); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

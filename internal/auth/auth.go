// Package auth issues signed session cookies and guards routes that need a
// logged-in account.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"furnicolor/internal/account"
	"furnicolor/internal/httpx"
	"furnicolor/internal/i18n"
)

type contextKey string

const accountContextKey contextKey = "auth/account"

// SessionManager signs and validates lightweight session tokens.
type SessionManager struct {
	Secret       []byte
	Duration     time.Duration
	CookieName   string
	SecureCookie bool
}

// Claims captures decoded session data.
type Claims struct {
	AccountID string
	ExpiresAt time.Time
}

// Middleware restores the account from the session cookie when one is present.
type Middleware struct {
	Accounts account.Store
	Sessions SessionManager
	Logger   zerolog.Logger
}

// Handler exposes login, logout, me and password endpoints.
type Handler struct {
	Accounts *account.Service
	Sessions SessionManager
	Logger   zerolog.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Restore parses the session cookie (if present) and loads the account into context.
func (m Middleware) Restore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.Sessions.cookieName())
		if err == nil && cookie.Value != "" {
			claims, err := m.Sessions.Parse(cookie.Value)
			switch {
			case err != nil || !claims.ExpiresAt.After(time.Now()):
				// Clear unusable cookies to avoid loops.
				clear := m.Sessions.expiredCookie()
				http.SetCookie(w, &clear)
			default:
				acc, err := m.Accounts.GetByID(r.Context(), claims.AccountID)
				if err == nil {
					r = r.WithContext(WithAccount(r.Context(), acc))
				} else if !errors.Is(err, account.ErrNotFound) {
					m.Logger.Warn().Err(err).Msg("restore session")
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth ensures an account exists in context or returns 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AccountFromContext(r.Context()); !ok {
			httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthOrToken admits a logged-in account or a request carrying
// "Authorization: Bearer <token>". An empty token admits accounts only.
func RequireAuthOrToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := AccountFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if ok && token != "" && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
		})
	}
}

// RequireAdmin ensures the account in context is an administrator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := AccountFromContext(r.Context())
		if !ok {
			httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
			return
		}
		if !acc.IsAdmin {
			httpx.Error(w, r, http.StatusForbidden, i18n.Forbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Login handles POST /api/auth/login.
func (h Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}

	acc, err := h.Accounts.Login(r.Context(), payload.Username, payload.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		httpx.Error(w, r, http.StatusUnauthorized, i18n.InvalidCredentials)
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Msg("login failed")
		httpx.Error(w, r, http.StatusInternalServerError, i18n.Internal)
		return
	}

	if err := h.setSessionCookie(w, acc.ID); err != nil {
		h.Logger.Error().Err(err).Msg("issue session")
		httpx.Error(w, r, http.StatusInternalServerError, i18n.Internal)
		return
	}
	h.Logger.Info().Str("account_id", acc.ID).Msg("login")
	httpx.JSON(w, http.StatusOK, acc)
}

// Logout handles POST /api/auth/logout.
func (h Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	cookie := h.Sessions.expiredCookie()
	http.SetCookie(w, &cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current account, including its credit balance.
func (h Handler) Me(w http.ResponseWriter, r *http.Request) {
	acc, ok := AccountFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

// ChangePassword handles POST /api/auth/password.
func (h Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	acc, ok := AccountFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, http.StatusUnauthorized, i18n.Unauthorized)
		return
	}
	var payload passwordRequest
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, i18n.BadRequest)
		return
	}
	err := h.Accounts.ChangePassword(r.Context(), acc.ID, payload.CurrentPassword, payload.NewPassword)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, account.ErrWeakPassword):
		httpx.Error(w, r, http.StatusBadRequest, i18n.PasswordTooShort, account.MinPasswordLength)
	case errors.Is(err, account.ErrInvalidCredentials):
		httpx.Error(w, r, http.StatusForbidden, i18n.InvalidCredentials)
	default:
		h.Logger.Error().Err(err).Msg("change password")
		httpx.Error(w, r, http.StatusInternalServerError, i18n.Internal)
	}
}

// Parse validates a token and returns session claims.
func (sm SessionManager) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Claims{}, errors.New("invalid token format")
	}
	payload := parts[0]
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, sm.Secret)
	mac.Write([]byte(payload))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Claims{}, errors.New("signature mismatch")
	}

	payloadParts := strings.Split(payload, "|")
	if len(payloadParts) != 2 {
		return Claims{}, errors.New("invalid payload")
	}
	expUnix, err := strconv.ParseInt(payloadParts[1], 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("parse expiry: %w", err)
	}
	return Claims{AccountID: payloadParts[0], ExpiresAt: time.Unix(expUnix, 0)}, nil
}

// Issue builds a signed session token for the given account.
func (sm SessionManager) Issue(accountID string) (string, time.Time, error) {
	if len(sm.Secret) == 0 {
		return "", time.Time{}, errors.New("session secret missing")
	}
	expires := time.Now().Add(sm.sessionDuration())
	payload := fmt.Sprintf("%s|%d", accountID, expires.Unix())
	mac := hmac.New(sha256.New, sm.Secret)
	mac.Write([]byte(payload))
	token := payload + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return token, expires, nil
}

// WithAccount stores the authenticated account in context.
func WithAccount(ctx context.Context, acc account.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, acc)
}

// AccountFromContext extracts the authenticated account from context if present.
func AccountFromContext(ctx context.Context) (account.Account, bool) {
	acc, ok := ctx.Value(accountContextKey).(account.Account)
	return acc, ok
}

func (h Handler) setSessionCookie(w http.ResponseWriter, accountID string) error {
	token, exp, err := h.Sessions.Issue(accountID)
	if err != nil {
		return err
	}
	cookie := h.Sessions.cookie(token, exp)
	http.SetCookie(w, &cookie)
	return nil
}

func (sm SessionManager) cookie(token string, expires time.Time) http.Cookie {
	return http.Cookie{
		Name:     sm.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sm.SecureCookie,
	}
}

func (sm SessionManager) expiredCookie() http.Cookie {
	return http.Cookie{
		Name:     sm.cookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sm.SecureCookie,
	}
}

func (sm SessionManager) cookieName() string {
	if sm.CookieName != "" {
		return sm.CookieName
	}
	return "session_token"
}

func (sm SessionManager) sessionDuration() time.Duration {
	if sm.Duration <= 0 {
		return 7 * 24 * time.Hour
	}
	return sm.Duration
}

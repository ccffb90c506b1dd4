// internal/session/session.go
package session

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clubbackend/internal/config"
	"clubbackend/internal/logger"
	"clubbackend/internal/middleware"
)

// sessionTTL is how long an admin login stays valid.
const sessionTTL = 12 * time.Hour

var (
	sessions   = make(map[string]time.Time)
	sessionsMu sync.Mutex
)

// create registers a new admin session and returns its id.
func create() string {
	id := uuid.NewString()
	sessionsMu.Lock()
	sessions[id] = time.Now().Add(sessionTTL)
	sessionsMu.Unlock()
	return id
}

// valid reports whether the session id exists and has not expired.
func valid(id string) bool {
	sessionsMu.Lock()
	defer sessionsMu.Unlock()

	expiry, ok := sessions[id]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(sessions, id)
		return false
	}
	return true
}

// destroy removes a session id.
func destroy(id string) {
	sessionsMu.Lock()
	delete(sessions, id)
	sessionsMu.Unlock()
}

// CleanExpiredSessions periodically drops expired admin sessions.
func CleanExpiredSessions() {
	ticker := time.NewTicker(time.Minute * 10)
	defer ticker.Stop()

	for range ticker.C {
		sessionsMu.Lock()
		for id, expiry := range sessions {
			if time.Now().After(expiry) {
				delete(sessions, id)
			}
		}
		sessionsMu.Unlock()
	}
}

// IsAdmin reports whether the request carries a live admin session cookie.
func IsAdmin(r *http.Request) bool {
	cookie, err := r.Cookie(config.SessionCookieName)
	if err != nil {
		return false
	}
	return valid(cookie.Value)
}

// RequireAdmin gates a handler behind the admin session.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			middleware.WriteFail(w, http.StatusUnauthorized, "로그인이 필요합니다.")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// passwordMatches checks the submitted password against the configured
// credential: the bcrypt hash when one is set, the shared plaintext otherwise.
func passwordMatches(password string) bool {
	if password == "" {
		return false
	}
	if config.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(config.AdminPasswordHash), []byte(password)) == nil
	}
	if config.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(config.AdminPassword), []byte(password)) == 1
}

// LoginHandler checks the admin password and sets the session cookie.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := middleware.ParseJSONRequest(r, &body); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}

	if !passwordMatches(body.Password) {
		logger.LogWarn("Failed admin login from %s", logger.GetClientIP(r))
		middleware.WriteFail(w, http.StatusUnauthorized, "비밀번호 불일치")
		return
	}

	id := create()
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logger.LogInfo("Admin login from %s", logger.GetClientIP(r))
	middleware.WriteSuccess(w, nil)
}

// LogoutHandler clears the admin session.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(config.SessionCookieName); err == nil {
		destroy(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	middleware.WriteSuccess(w, map[string]interface{}{"message": "로그아웃 되었습니다."})
}

// CheckSessionHandler lets the frontend ask whether it is still logged in.
func CheckSessionHandler(w http.ResponseWriter, r *http.Request) {
	if IsAdmin(r) {
		middleware.WriteSuccess(w, map[string]interface{}{"is_admin": true})
		return
	}
	middleware.WriteFail(w, http.StatusUnauthorized, "세션 만료")
}

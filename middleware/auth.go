package middleware

import (
	"log"
	"net/http"
	"strings"

	"sdstudio/config"

	"github.com/gorilla/sessions"
)

const (
	// SessionName is the key for the cookie session.
	SessionName = "sdstudio-session"
	// UserSessionKey is the key used to store the authenticated status in the session.
	UserSessionKey = "authenticated"
)

// Store will hold the session cookie store.
var Store *sessions.CookieStore

// InitSessionStore initializes the session store.
// It should be called once during application startup.
func InitSessionStore() {
	sessionKey := config.AppConfig.Settings.SessionSecret
	if sessionKey == "a_very_long_and_random_secret_string" {
		log.Println("Warning: SESSION_SECRET is not set or is the default. Using a default, insecure key. Please set a strong secret in your .env file for production.")
	}
	Store = sessions.NewCookieStore([]byte(sessionKey))

	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   false, // Set to true if using HTTPS
		SameSite: http.SameSiteLaxMode,
	}
}

// WebAuthMiddleware protects web routes that require authentication. When no
// web password is configured, authentication is disabled.
func WebAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.AppConfig.Settings.WebPassword == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := Store.Get(r, SessionName)
		if err != nil {
			// This could happen if the cookie secret changes.
			log.Printf("Session error: %v. Forcing login.", err)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		if auth, ok := session.Values[UserSessionKey].(bool); !ok || !auth {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// APIKeyAuthMiddleware protects API routes with an API key. Requests without
// an Authorization header fall through to the web session check, so the
// browser UI keeps working.
func APIKeyAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			WebAuthMiddleware(next).ServeHTTP(w, r)
			return
		}

		apiKey := config.AppConfig.Settings.APIKey
		if apiKey == "" {
			log.Println("Error: API_KEY is not set. API key authentication is disabled.")
			http.Error(w, "API key authentication is not configured on the server.", http.StatusServiceUnavailable)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			http.Error(w, "Invalid Authorization header format. Expected 'Bearer <api_key>'", http.StatusUnauthorized)
			return
		}

		if parts[1] != apiKey {
			http.Error(w, "Invalid API Key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"context"
	"net/http"

	"proprofile/internal/studio"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "proprofile_session"

// Session resolves the caller's studio session from its cookie, creating a
// new one when the cookie is missing or the session has expired.
func Session(store *studio.Store, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
			sess, created := store.GetOrCreate(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sess.ID(),
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) *studio.Session {
	if v, ok := ctx.Value(sessionKey).(*studio.Session); ok {
		return v
	}
	return nil
}

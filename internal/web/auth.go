package web

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nmehra/assistantd/internal/storage"
)

type contextKey string

const identityKey contextKey = "identity"

// identityMiddleware resolves the caller from the auth proxy headers
// and attaches their user record to the request context. Unknown
// callers are provisioned on first sight with the basic role. In dev
// mode the configured dev user is used instead of headers.
func (s *WebState) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, username, role := s.callerIdentity(r)
		if email == "" {
			jsonError(w, "missing identity headers", http.StatusUnauthorized)
			return
		}

		user, err := s.DB.GetUserByEmail(email)
		if err != nil {
			storageError(w, err)
			return
		}
		if user == nil {
			user = &storage.User{
				ID:       uuid.NewString(),
				Username: username,
				Email:    email,
				Role:     role,
				AgentIDs: "[]",
			}
			if err := s.DB.CreateUser(*user); err != nil {
				storageError(w, err)
				return
			}
			log.Printf("[web] provisioned user %s (%s) with role %s", username, email, role)
		}

		ctx := context.WithValue(r.Context(), identityKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerIdentity extracts (email, username, role) for the request.
func (s *WebState) callerIdentity(r *http.Request) (string, string, string) {
	if s.Config.DevMode {
		return s.Config.DevUserEmail, s.Config.DevUserName, s.Config.DevUserRole
	}

	email := r.Header.Get("X-Forwarded-Email")
	if email == "" {
		email = r.Header.Get("X-Auth-Request-Email")
	}
	if email == "" {
		return "", "", ""
	}

	username := r.Header.Get("X-Forwarded-User")
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	return email, username, storage.RoleUser
}

// currentUser returns the authenticated user attached by
// identityMiddleware.
func currentUser(r *http.Request) *storage.User {
	user, _ := r.Context().Value(identityKey).(*storage.User)
	return user
}

// requireRole gates a route on the caller holding one of the roles.
func (s *WebState) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil {
				jsonError(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonError(w, "insufficient permissions", http.StatusForbidden)
		})
	}
}

// handleWhoAmI returns the caller's identity.
func (s *WebState) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, userJSON(currentUser(r)))
}

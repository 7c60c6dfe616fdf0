package api

import (
	"context"
	"net/http"

	"github.com/dailywin/backend/internal/auth"
	"github.com/dailywin/backend/internal/types"
	"github.com/rs/zerolog"
)

type profileKey struct{}

// ProfileLoader resolves the signed-in user's profile
type ProfileLoader interface {
	EnsureProfile(ctx context.Context, userID, email string) (types.Profile, error)
}

// ProfileMiddleware loads the caller's profile after auth.Middleware and
// stores it on the context. First-time users get a bare profile.
func ProfileMiddleware(profiles ProfileLoader, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetUserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			p, err := profiles.EnsureProfile(r.Context(), claims.UserID(), claims.Email)
			if err != nil {
				respondError(w, logger, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), p)))
		})
	}
}

// WithProfile stores p on ctx
func WithProfile(ctx context.Context, p types.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// ProfileFromContext returns the profile stored by ProfileMiddleware
func ProfileFromContext(ctx context.Context) types.Profile {
	p, _ := ctx.Value(profileKey{}).(types.Profile)
	return p
}

// RequireAgency rejects profiles without an agency with 409
func RequireAgency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := ProfileFromContext(r.Context()); !p.AgencyID.Valid || p.AgencyID.String == "" {
			writeError(w, http.StatusConflict, "Join an agency first.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

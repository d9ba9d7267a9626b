package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
	"github.com/gorilla/mux"
)

// ProfileHeader names the request header holding the caller's profile id.
const ProfileHeader = "profile_id"

// ProfileMiddleware resolves the caller from the profile_id header and stores
// the profile in the request context. Unknown or missing ids get a 401.
func ProfileMiddleware(repo repository.ProfileRepo) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(ProfileHeader)
			id, err := strconv.ParseInt(raw, 10, 64)
			if raw == "" || err != nil || id <= 0 {
				writeJSON(w, errorResponse{Error: "unauthorized"}, http.StatusUnauthorized)
				return
			}

			p, err := repo.GetProfile(r.Context(), id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if p == nil {
				logger.Debug("unknown profile", slog.Int64("profile_id", id))
				writeJSON(w, errorResponse{Error: "unauthorized"}, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CtxProfile, p)))
		})
	}
}

// ProfileFromContext returns the caller resolved by ProfileMiddleware.
func ProfileFromContext(ctx context.Context) (*models.Profile, bool) {
	p, ok := ctx.Value(CtxProfile).(*models.Profile)
	return p, ok && p != nil
}

// caller is ProfileFromContext for handlers mounted behind ProfileMiddleware.
func caller(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	p, ok := ProfileFromContext(r.Context())
	if !ok {
		writeJSON(w, errorResponse{Error: "unauthorized"}, http.StatusUnauthorized)
	}
	return p, ok
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil && id > 0
}

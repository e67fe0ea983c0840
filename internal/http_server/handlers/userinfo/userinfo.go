package userinfo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tripchat/internal/http_server/middleware/authn"
	resp "tripchat/internal/lib/api/response"
	sl "tripchat/internal/lib/logger"
	"tripchat/internal/models"
	"tripchat/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	User models.User `json:"user"`
}

type UserProvider interface {
	UserInfo(ctx context.Context, userID string) (models.User, error)
}

func New(
	log *slog.Logger,
	provider UserProvider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.userinfo.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		claims, ok := authn.Claims(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authorization required"))

			return
		}

		user, err := provider.UserInfo(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("user not found"))

				return
			}

			log.Error("failed to load user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			User:     user,
		})
	}
}

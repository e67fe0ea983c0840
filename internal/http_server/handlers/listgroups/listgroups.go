package listgroups

import (
	"context"
	"log/slog"
	"net/http"

	"tripchat/internal/http_server/middleware/authn"
	resp "tripchat/internal/lib/api/response"
	sl "tripchat/internal/lib/logger"
	"tripchat/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Groups []models.Group `json:"groups"`
}

type GroupLister interface {
	ListGroups(ctx context.Context, email string) ([]models.Group, error)
}

func New(
	log *slog.Logger,
	lister GroupLister,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.listgroups.New"

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

		groups, err := lister.ListGroups(r.Context(), claims.Email)
		if err != nil {
			log.Error("failed to list groups", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Groups:   groups,
		})
	}
}

package creategroup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tripchat/internal/http_server/middleware/authn"
	resp "tripchat/internal/lib/api/response"
	sl "tripchat/internal/lib/logger"
	"tripchat/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Name string `json:"name" validate:"required"`
}

type Response struct {
	resp.Response
	Group models.Group `json:"group"`
}

type GroupCreator interface {
	CreateGroup(ctx context.Context, name, ownerEmail string) (models.Group, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	creator GroupCreator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.creategroup.New"

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

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		group, err := creator.CreateGroup(r.Context(), req.Name, claims.Email)
		if err != nil {
			log.Error("failed to create group", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		log.Info("group created", slog.String("group_id", group.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OK(),
			Group:    group,
		})
	}
}

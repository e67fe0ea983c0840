package sendmessage

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

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Text string `json:"text" validate:"required"`
}

type Response struct {
	resp.Response
	Message models.Message `json:"message"`
}

type MessageSender interface {
	SendMessage(ctx context.Context, groupID, sender, text string) (models.Message, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	sender MessageSender,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sendmessage.New"

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

		groupID := chi.URLParam(r, "id")
		if groupID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("missing group id"))

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

		msg, err := sender.SendMessage(r.Context(), groupID, claims.Email, req.Text)
		if err != nil {
			if errors.Is(err, storage.ErrGroupNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("group not found"))

				return
			}
			if errors.Is(err, storage.ErrNotAMember) {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("not a member of this group"))

				return
			}

			log.Error("failed to send message", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  msg,
		})
	}
}

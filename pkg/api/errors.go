package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/services"
)

// errorBody is the uniform error envelope: a stable machine code plus a
// human message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps a services error to an HTTP response. Unknown errors
// become opaque 500s; the detail goes to the log, not the client.
func respondError(c *gin.Context, err error) {
	switch {
	case services.IsValidationError(err):
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})

	case isMentionValidation(c, err):
		// isMentionValidation wrote the 422 body.

	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "resource not found"})

	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, errorBody{Error: "forbidden", Message: "you are not allowed to do that"})

	case errors.Is(err, services.ErrAlreadyExists):
		c.JSON(http.StatusConflict, errorBody{Error: "already_exists", Message: err.Error()})

	case errors.Is(err, services.ErrGameNotJoinable):
		c.JSON(http.StatusConflict, errorBody{Error: "not_joinable", Message: err.Error()})

	case errors.Is(err, services.ErrDefaultTemplate):
		c.JSON(http.StatusBadRequest, errorBody{Error: "default_template", Message: err.Error()})

	case isUpstreamTimeout(err):
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "upstream_unavailable", Message: "a dependency did not answer in time"})

	default:
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"})
	}
}

// mentionErrorBody is the structured 422 for mention validation failures.
// Valid entries ride along so the client does not lose resolved work while
// the user fixes the rest.
type mentionErrorBody struct {
	Error             string                     `json:"error"`
	InvalidMentions   []services.InvalidMention  `json:"invalid_mentions"`
	ValidParticipants []services.ResolvedMention `json:"valid_participants"`
}

func isMentionValidation(c *gin.Context, err error) bool {
	mv, ok := services.IsMentionValidationError(err)
	if !ok {
		return false
	}
	c.JSON(http.StatusUnprocessableEntity, mentionErrorBody{
		Error:             "invalid_mentions",
		InvalidMentions:   mv.Invalid,
		ValidParticipants: mv.Valid,
	})
	return true
}

// isUpstreamTimeout reports whether err is a deadline from a downstream
// chat-API call made on the request's upstream budget.
func isUpstreamTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *discord.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

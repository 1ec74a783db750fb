package routes

import (
	"net/http"
	"strconv"

	"github.com/FrameNetBrasil/daisy/internal/queue"
	"github.com/FrameNetBrasil/daisy/internal/server/middleware"
	"github.com/FrameNetBrasil/daisy/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// RebuildNetworkHandler queues a rebuild of the materialized network of a
// language. The worker does the actual work.
func RebuildNetworkHandler(c echo.Context) error {
	type rebuildNetworkBody struct {
		Language int `json:"language" validate:"required,min=1"`
	}

	type rebuildNetworkResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, rebuildNetworkResponse{
			Message: "Unauthorized",
		})
	}

	data := new(rebuildNetworkBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, rebuildNetworkResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, rebuildNetworkResponse{
			Message: "Invalid request body",
		})
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, rebuildNetworkResponse{
			Message: "Internal server error",
		})
	}

	ctx := c.Request().Context()
	ch := c.(*middleware.AppContext).App.Queue
	err = queue.PublishNetworkRebuild(ctx, ch, queue.NetworkRebuildMsg{
		Language:      data.Language,
		RequestedBy:   strconv.FormatInt(user.UserID, 10),
		CorrelationID: correlationID,
	})
	if err != nil {
		logger.Error("[Server] Failed to queue network rebuild", "language", data.Language, "err", err)
		return c.JSON(http.StatusInternalServerError, rebuildNetworkResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, rebuildNetworkResponse{
		Message:       "Network rebuild queued",
		CorrelationID: correlationID,
	})
}

package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/FrameNetBrasil/daisy/internal/server/middleware"
	"github.com/FrameNetBrasil/daisy/pkg/daisy"
	"github.com/FrameNetBrasil/daisy/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// DisambiguateHandler runs the pipeline for one sentence. Omitted search
// options fall back to the full search with the configured depth.
func DisambiguateHandler(c echo.Context) error {
	type disambiguateResponse struct {
		Message string        `json:"message"`
		Result  *daisy.Result `json:"result,omitempty"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, disambiguateResponse{
			Message: "Unauthorized",
		})
	}

	data := new(daisy.Request)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, disambiguateResponse{
			Message: "Invalid request body",
		})
	}
	if data.SearchType == 0 {
		data.SearchType = daisy.SearchQualia
	}
	data.Sentence = strings.TrimSpace(data.Sentence)

	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, disambiguateResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	client := c.(*middleware.AppContext).App.Daisy
	res, err := client.Disambiguate(ctx, *data)
	if err != nil {
		if errors.Is(err, daisy.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, disambiguateResponse{
				Message: err.Error(),
			})
		}
		logger.Error("[Server] Disambiguation failed", "user_id", user.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, disambiguateResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, disambiguateResponse{
		Message: "Sentence disambiguated successfully",
		Result:  res,
	})
}

package http

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"github.com/photoli93/Projet-7/internal/model"
	"github.com/photoli93/Projet-7/internal/repository"
	"go.uber.org/zap"
)

func historyHandler(repo repository.PredictionsRepository, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		clientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, model.ErrorResult{Error: "invalid client id"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		events, err := repo.ListByClient(c.Request().Context(), clientID, limit, offset)
		if err != nil {
			log.Error("clickhouse list failed", zap.Int64("client_id", clientID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, model.ErrorResult{Error: "query failed"})
		}
		if events == nil {
			events = []model.PredictionEvent{}
		}

		return c.JSON(http.StatusOK, map[string]any{
			"client_id": clientID,
			"limit":     limit,
			"offset":    offset,
			"count":     len(events),
			"results":   events,
		})
	}
}

package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/photoli93/Projet-7/internal/metrics"
	"github.com/photoli93/Projet-7/internal/model"
	"github.com/photoli93/Projet-7/internal/service/prediction"
	"go.uber.org/zap"
)

func homeHandler(svc *prediction.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		msg, err := svc.Home()
		if err != nil {
			return writeError(c, err, log)
		}
		return c.String(http.StatusOK, msg)
	}
}

func predictHandler(svc *prediction.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := svc.Predict(c.Request().Context(), c.QueryParam("id"))
		if err != nil {
			return writeError(c, err, log)
		}
		return c.JSON(http.StatusOK, res)
	}
}

// writeError is the single mapping from service errors to responses.
// Anything unmapped is logged and counted as an internal outcome.
func writeError(c echo.Context, err error, log *zap.Logger) error {
	var (
		notFound  *prediction.ClientNotFoundError
		inference *prediction.InferenceError
	)
	switch {
	case errors.Is(err, prediction.ErrMissingClientID):
		return c.JSON(http.StatusBadRequest, model.ErrorResult{Error: "Missing client id"})
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, model.ErrorResult{Error: notFound.Error()})
	case errors.Is(err, prediction.ErrEmptyDataset):
		return c.JSON(http.StatusServiceUnavailable, model.ErrorResult{Error: "empty dataset"})
	case errors.As(err, &inference):
		return c.JSON(http.StatusUnprocessableEntity, model.ErrorResult{Error: inference.Error()})
	default:
		metrics.PredictionsTotal.WithLabelValues("internal").Inc()
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.JSON(http.StatusInternalServerError, model.ErrorResult{Error: "internal error"})
	}
}

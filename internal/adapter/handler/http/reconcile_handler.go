package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/usecase"
)

// ReconcileHandler exposes the operator dry-run/apply split: preview computes
// proposed schedule corrections without writing, commit applies them.
type ReconcileHandler struct {
	service *usecase.ReconcileService
	logger  *zap.Logger
}

func NewReconcileHandler(service *usecase.ReconcileService, logger *zap.Logger) *ReconcileHandler {
	return &ReconcileHandler{service: service, logger: logger}
}

func (h *ReconcileHandler) Preview(c echo.Context) error {
	result, err := h.service.Preview(c.Request().Context())
	if err != nil {
		h.logger.Error("Reconciliation preview failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (h *ReconcileHandler) Commit(c echo.Context) error {
	result, err := h.service.Commit(c.Request().Context())
	if err != nil {
		h.logger.Error("Reconciliation commit failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

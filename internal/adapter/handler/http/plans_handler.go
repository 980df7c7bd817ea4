package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/domain/repository"
)

type PlansHandler struct {
	plans  repository.PlanRepository
	logger *zap.Logger
}

func NewPlansHandler(plans repository.PlanRepository, logger *zap.Logger) *PlansHandler {
	return &PlansHandler{plans: plans, logger: logger}
}

func (h *PlansHandler) GetPlans(c echo.Context) error {
	plans, err := h.plans.ListActive(c.Request().Context())
	if err != nil {
		h.logger.Error("Error fetching plans", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": err.Error(),
		})
	}

	if plans == nil {
		plans = []model.PaymentPlan{}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"plans": plans,
	})
}

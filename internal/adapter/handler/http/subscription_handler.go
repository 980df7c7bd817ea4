package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainerrors "github.com/nutribox/payment-service/internal/domain/errors"
	"github.com/nutribox/payment-service/internal/domain/gateway"
	"github.com/nutribox/payment-service/internal/domain/model"
	"github.com/nutribox/payment-service/internal/middleware/auth"
	"github.com/nutribox/payment-service/internal/usecase"
)

type SubscriptionHandler struct {
	service  *usecase.SubscriptionService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewSubscriptionHandler(service *usecase.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type createSubscriptionRequest struct {
	PlanCode       string `json:"plan_code" validate:"required"`
	FirstChargeNow bool   `json:"first_charge_now"`
}

type changeTermsRequest struct {
	AmountCents  *int64 `json:"amount_cents" validate:"omitempty,gt=0"`
	TotalPeriods *int   `json:"total_periods" validate:"omitempty,gte=0"`
}

func (h *SubscriptionHandler) Create(c echo.Context) error {
	user, ok := auth.GetAuthUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req createSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	sub, err := h.service.CreateSubscription(c.Request().Context(), user.UserID, req.PlanCode, req.FirstChargeNow)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, sub)
}

func (h *SubscriptionHandler) Get(c echo.Context) error {
	user, ok := auth.GetAuthUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription id"})
	}

	sub, err := h.service.GetSubscription(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	if sub.UserID != user.UserID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": domainerrors.ErrSubscriptionNotFound.Error()})
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) Charges(c echo.Context) error {
	user, ok := auth.GetAuthUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription id"})
	}

	sub, err := h.service.GetSubscription(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	if sub.UserID != user.UserID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": domainerrors.ErrSubscriptionNotFound.Error()})
	}

	charges, err := h.service.ListCharges(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"charges": charges})
}

func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	return h.alterStatus(c, gateway.AlterOpTerminate)
}

func (h *SubscriptionHandler) Suspend(c echo.Context) error {
	return h.alterStatus(c, gateway.AlterOpSuspend)
}

func (h *SubscriptionHandler) Restart(c echo.Context) error {
	return h.alterStatus(c, gateway.AlterOpRestart)
}

func (h *SubscriptionHandler) ChangeTerms(c echo.Context) error {
	user, ok := auth.GetAuthUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription id"})
	}

	var req changeTermsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.AmountCents == nil && req.TotalPeriods == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no changes requested"})
	}

	if err := h.checkOwnership(c, user, id); err != nil {
		return h.writeError(c, err)
	}

	sub, err := h.service.ChangeTerms(c.Request().Context(), id, req.AmountCents, req.TotalPeriods)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) alterStatus(c echo.Context, op gateway.AlterOp) error {
	user, ok := auth.GetAuthUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscription id"})
	}

	if err := h.checkOwnership(c, user, id); err != nil {
		return h.writeError(c, err)
	}

	sub, err := h.service.AlterStatus(c.Request().Context(), id, op)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) checkOwnership(c echo.Context, user *auth.AuthUser, id int64) error {
	sub, err := h.service.GetSubscription(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if sub.UserID != user.UserID {
		return domainerrors.ErrSubscriptionNotFound
	}
	return nil
}

// writeError maps the error taxonomy to responses. The user always sees the
// specific gateway message or transition reason, never a generic failure.
func (h *SubscriptionHandler) writeError(c echo.Context, err error) error {
	var transitionErr *model.StateTransitionError
	if errors.As(err, &transitionErr) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": transitionErr.Error(),
			"code":  "ILLEGAL_TRANSITION",
		})
	}

	var protoErr *gateway.ProtocolError
	if errors.As(err, &protoErr) {
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":  protoErr.Message,
			"status": protoErr.Status,
			"code":   "GATEWAY_REJECTED",
		})
	}

	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		code := "GATEWAY_UNREACHABLE"
		if transportErr.Ambiguous {
			code = "GATEWAY_OUTCOME_UNKNOWN"
		}
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error": transportErr.Error(),
			"code":  code,
		})
	}

	if errors.Is(err, domainerrors.ErrSubscriptionNotFound) || errors.Is(err, domainerrors.ErrPlanNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}

	h.logger.Error("Unhandled subscription error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}

package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/gateway"
	"github.com/nutribox/payment-service/internal/infrastructure/crypto"
	"github.com/nutribox/payment-service/internal/usecase"
)

// NotifyHandler receives async notifications pushed by the gateway.
type NotifyHandler struct {
	service *usecase.NotificationService
	logger  *zap.Logger
}

func NewNotifyHandler(service *usecase.NotificationService, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{service: service, logger: logger}
}

// Handle processes one webhook delivery. The gateway posts the same sealed
// convention it answers with: merchant number in the clear, one opaque
// sealed payload field. The gateway retries until it reads "OK".
func (h *NotifyHandler) Handle(c echo.Context) error {
	sealed := c.FormValue("Params")
	if sealed == "" {
		h.logger.Warn("Notification without sealed payload",
			zap.String("remote_ip", c.RealIP()))
		return c.String(http.StatusBadRequest, "FAIL")
	}

	err := h.service.HandleNotification(c.Request().Context(), sealed, c.RealIP())
	if err != nil {
		var envErr *crypto.EnvelopeError
		if errors.As(err, &envErr) {
			// Undecryptable payloads are rejected outright, never partially
			// applied.
			return c.String(http.StatusBadRequest, "FAIL")
		}
		var protoErr *gateway.ProtocolError
		if errors.As(err, &protoErr) {
			// Decrypted but unparseable, or referencing no plan: the payload
			// itself is bad, so retrying it verbatim can never succeed.
			return c.String(http.StatusBadRequest, "FAIL")
		}
		h.logger.Error("Failed to process gateway notification", zap.Error(err))
		return c.String(http.StatusInternalServerError, "FAIL")
	}

	return c.String(http.StatusOK, "OK")
}

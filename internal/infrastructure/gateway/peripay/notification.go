package peripay

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/domain/gateway"
)

// DecodeNotification opens and parses an async webhook payload. An
// undecryptable or unparseable payload is rejected whole; no field of it is
// ever applied to a subscription.
//
// Field resolution precedence (older gateway versions used different names):
//
//	trade number:    TradeNo, TransNo
//	amount:          Amount, AuthAmount, TradeAmount
//	charged periods: ChargedCount, CompleteTimes
//	charge time:     ChargeTime, PayTime
func (c *Client) DecodeNotification(sealed string) (*gateway.Notification, error) {
	plain, err := c.envelope.Open(sealed)
	if err != nil {
		return nil, err
	}

	// Audit log only; the plaintext is never persisted.
	c.logger.Info("Gateway notification decrypted",
		zap.ByteString("plaintext", plain))

	var payload map[string]interface{}
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, &gateway.ProtocolError{Status: "PARSE_ERROR", Message: "notification is not valid JSON"}
	}

	n := &gateway.Notification{
		TradeNo:        stringField(payload, "TradeNo", "TransNo"),
		PeriodNo:       stringField(payload, "PeriodNo"),
		MerOrderNo:     stringField(payload, "MerOrderNo"),
		NotifyType:     stringField(payload, "NotifyType"),
		Succeeded:      stringField(payload, "Status") == statusSuccess,
		ChargedPeriods: int(intField(payload, "ChargedCount", "CompleteTimes")),
		AmountCents:    intField(payload, "Amount", "AuthAmount", "TradeAmount"),
		ChargedAt:      timeField(payload, "ChargeTime", "PayTime"),
		Raw:            payload,
	}

	if n.PeriodNo == "" && n.MerOrderNo == "" {
		return nil, &gateway.ProtocolError{Status: "PARSE_ERROR", Message: "notification references no plan"}
	}
	return n, nil
}

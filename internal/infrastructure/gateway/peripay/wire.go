package peripay

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/nutribox/payment-service/internal/domain/billing"
)

// Form field names of the outer (unencrypted) request body.
const (
	formFieldMerchant = "MerNo"
	formFieldParams   = "Params"
)

// Wire values of the sealed parameter block.
const (
	statusSuccess = "SUCCESS"

	resultTypeAuth = "AUTH"
	resultTypeAck  = "ACK"

	alterTypeSuspend   = "SUSPEND"
	alterTypeTerminate = "TERMINATE"
	alterTypeRestart   = "RESTART"

	chargeModeNow   = "NOW"
	chargeModePoint = "POINT"

	timeLayout = "2006-01-02 15:04:05"
)

// wireEnvelope is the decrypted JSON shell of every successful response.
type wireEnvelope struct {
	Status  string          `json:"Status"`
	Message string          `json:"Message"`
	Result  json.RawMessage `json:"Result"`
}

// createResult is the Result of a create call. ResultType discriminates the
// two shapes: "AUTH" carries the immediate first-authorization fields,
// "ACK" is a bare acknowledgment. The discriminant, not the presence of
// optional fields, decides which shape this is.
type createResult struct {
	ResultType string `json:"ResultType"`
	PeriodNo   string `json:"PeriodNo"`
	TradeNo    string `json:"TradeNo,omitempty"`
	AuthAmount int64  `json:"AuthAmount,omitempty"`
	PayTime    string `json:"PayTime,omitempty"`
}

type alterResult struct {
	PeriodNo string `json:"PeriodNo"`
}

func periodTypeCode(p billing.PeriodType) string {
	switch p {
	case billing.PeriodTypeDay:
		return "DAY"
	case billing.PeriodTypeWeek:
		return "WEEK"
	case billing.PeriodTypeYear:
		return "YEAR"
	default:
		return "MONTH"
	}
}

func alterTypeCode(op string) string {
	switch op {
	case "suspend":
		return alterTypeSuspend
	case "restart":
		return alterTypeRestart
	default:
		return alterTypeTerminate
	}
}

// stringField resolves the first present, non-empty key from the payload.
// Notification field names drifted across gateway versions; the precedence
// order below is part of the client contract and must stay explicit.
func stringField(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			case json.Number:
				return t.String()
			case float64:
				return strconv.FormatInt(int64(t), 10)
			}
		}
	}
	return ""
}

func intField(payload map[string]interface{}, keys ...string) int64 {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			switch t := v.(type) {
			case float64:
				return int64(t)
			case json.Number:
				if n, err := t.Int64(); err == nil {
					return n
				}
			case string:
				if n, err := strconv.ParseInt(t, 10, 64); err == nil {
					return n
				}
			}
		}
	}
	return 0
}

func timeField(payload map[string]interface{}, keys ...string) time.Time {
	s := stringField(payload, keys...)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Package peripay implements the PeriPay recurring-payment wire protocol:
// canonical key=value parameter blocks sealed with the merchant's fixed-key
// AES envelope, posted as form bodies, answered with either a clear-text
// form-encoded error or a sealed JSON envelope.
package peripay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutribox/payment-service/internal/config"
	"github.com/nutribox/payment-service/internal/domain/gateway"
	"github.com/nutribox/payment-service/internal/infrastructure/crypto"
	"github.com/nutribox/payment-service/internal/metrics"
)

const (
	pathCreate      = "/recurring/create"
	pathAlterStatus = "/recurring/alter-status"
	pathAlterTerms  = "/recurring/alter-terms"
)

// Client is the PeriPay implementation of gateway.RecurringGateway.
type Client struct {
	baseURL    string
	merchantNo string
	notifyURL  string
	envelope   crypto.EnvelopeService
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *config.GatewayConfig, envelope crypto.EnvelopeService, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantNo: cfg.MerchantNo,
		notifyURL:  cfg.NotifyURL,
		envelope:   envelope,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// CreatePlan registers a new recurring plan at the gateway.
func (c *Client) CreatePlan(ctx context.Context, req *gateway.CreatePlanRequest) (*gateway.CreatePlanResponse, error) {
	params := map[string]string{
		"MerOrderNo":  req.MerOrderNo,
		"Amount":      strconv.FormatInt(req.AmountCents, 10),
		"PeriodType":  periodTypeCode(req.PeriodType),
		"PeriodCount": strconv.Itoa(req.TotalPeriods),
		"NotifyURL":   c.notifyURL,
		"ChargeMode":  chargeModePoint,
	}
	if req.PeriodPoint != "" {
		params["PeriodPoint"] = req.PeriodPoint
	}
	if req.FirstChargeNow {
		params["ChargeMode"] = chargeModeNow
	}

	result, err := c.call(ctx, "create", pathCreate, params)
	if err != nil {
		return nil, err
	}

	var res createResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &gateway.ProtocolError{Status: "PARSE_ERROR", Message: "unparseable create result"}
	}
	if res.PeriodNo == "" {
		return nil, &gateway.ProtocolError{Status: "PARSE_ERROR", Message: "create result missing PeriodNo"}
	}

	out := &gateway.CreatePlanResponse{PeriodNo: res.PeriodNo}
	switch res.ResultType {
	case resultTypeAuth:
		paidAt, _ := time.Parse(timeLayout, res.PayTime)
		out.Immediate = &gateway.ImmediateAuth{
			TradeNo:     res.TradeNo,
			AmountCents: res.AuthAmount,
			PaidAt:      paidAt,
		}
	case resultTypeAck:
		// bare acknowledgment, first charge happens at the period point
	default:
		return nil, &gateway.ProtocolError{
			Status:  "PARSE_ERROR",
			Message: fmt.Sprintf("unknown create result type %q", res.ResultType),
		}
	}

	c.logger.Info("Recurring plan created at gateway",
		zap.String("mer_order_no", req.MerOrderNo),
		zap.String("period_no", res.PeriodNo),
		zap.Bool("immediate_auth", out.Immediate != nil))

	return out, nil
}

// AlterStatus suspends, terminates or restarts an existing plan.
func (c *Client) AlterStatus(ctx context.Context, req *gateway.AlterStatusRequest) (*gateway.AlterStatusResponse, error) {
	params := map[string]string{
		"PeriodNo":  req.PeriodNo,
		"AlterType": alterTypeCode(string(req.Op)),
	}

	result, err := c.call(ctx, "alter_status", pathAlterStatus, params)
	if err != nil {
		return nil, err
	}

	var res alterResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &gateway.ProtocolError{Status: "PARSE_ERROR", Message: "unparseable alter result"}
	}

	c.logger.Info("Recurring plan status altered at gateway",
		zap.String("period_no", req.PeriodNo),
		zap.String("op", string(req.Op)))

	return &gateway.AlterStatusResponse{PeriodNo: res.PeriodNo, Op: req.Op}, nil
}

// AlterTerms sends a sparse amount/terms update: only the fields set in req
// go on the wire. Unset optional fields must never be sent, since the gateway
// treats every transmitted field as an assignment.
func (c *Client) AlterTerms(ctx context.Context, req *gateway.AlterTermsRequest) (*gateway.AlterTermsResponse, error) {
	params := map[string]string{
		"PeriodNo": req.PeriodNo,
	}
	if req.AmountCents != nil {
		params["Amount"] = strconv.FormatInt(*req.AmountCents, 10)
	}
	if req.TotalPeriods != nil {
		params["PeriodCount"] = strconv.Itoa(*req.TotalPeriods)
	}
	if len(params) == 1 {
		return nil, &gateway.ProtocolError{Status: "EMPTY_DELTA", Message: "alter terms request carries no changes"}
	}

	result, err := c.call(ctx, "alter_terms", pathAlterTerms, params)
	if err != nil {
		return nil, err
	}

	var res alterResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, &gateway.ProtocolError{Status: "PARSE_ERROR", Message: "unparseable alter result"}
	}

	c.logger.Info("Recurring plan terms altered at gateway",
		zap.String("period_no", req.PeriodNo))

	return &gateway.AlterTermsResponse{PeriodNo: res.PeriodNo}, nil
}

// call runs one build -> seal -> POST -> open -> parse round-trip and returns
// the Result block of the response envelope.
func (c *Client) call(ctx context.Context, op, path string, params map[string]string) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.doCall(ctx, op, path, params)
	metrics.GatewayRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.GatewayRequestsTotal.WithLabelValues(op, outcomeLabel(err)).Inc()
	return result, err
}

func (c *Client) doCall(ctx context.Context, op, path string, params map[string]string) (json.RawMessage, error) {
	plaintext := Canonicalize(params)
	sealed, err := c.envelope.Seal([]byte(plaintext))
	if err != nil {
		return nil, &crypto.EnvelopeError{Op: "seal", Err: err}
	}

	form := url.Values{}
	form.Set(formFieldMerchant, c.merchantNo)
	form.Set(formFieldParams, sealed)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &gateway.TransportError{Op: op, Ambiguous: false, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The request may have reached the gateway before the failure, and
		// create/alter are not idempotent, so this outcome is unknown and
		// must not be blindly retried.
		c.logger.Error("Gateway request failed",
			zap.String("operation", op),
			zap.Error(err))
		return nil, &gateway.TransportError{Op: op, Ambiguous: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gateway.TransportError{Op: op, Ambiguous: true, Err: err}
	}

	// A clear-text form-encoded body is a structured gateway failure.
	if protoErr, ok := parseClearError(body); ok {
		c.logger.Warn("Gateway returned failure",
			zap.String("operation", op),
			zap.String("status", protoErr.Status),
			zap.String("message", protoErr.Message))
		return nil, protoErr
	}

	plain, err := c.envelope.Open(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, err
	}

	// Audit log of the decrypted plaintext; it is not persisted past this
	// log because it may contain masked card metadata.
	c.logger.Info("Gateway response decrypted",
		zap.String("operation", op),
		zap.ByteString("plaintext", plain))

	var env wireEnvelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return nil, &gateway.ProtocolError{Status: "PARSE_ERROR", Message: "response is not a valid envelope"}
	}
	if env.Status != statusSuccess {
		return nil, &gateway.ProtocolError{Status: env.Status, Message: env.Message}
	}
	return env.Result, nil
}

// parseClearError recognizes the gateway's unencrypted error shape:
// a form-encoded body carrying Status and Message. Sealed bodies are pure
// hex and never contain '=', so the probe is unambiguous.
func parseClearError(body []byte) (*gateway.ProtocolError, bool) {
	s := strings.TrimSpace(string(body))
	if !strings.Contains(s, "=") {
		return nil, false
	}
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, false
	}
	status := values.Get("Status")
	if status == "" {
		return nil, false
	}
	return &gateway.ProtocolError{Status: status, Message: values.Get("Message")}, true
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	var protoErr *gateway.ProtocolError
	if errors.As(err, &protoErr) {
		return "rejected"
	}
	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Ambiguous {
			return "ambiguous"
		}
		return "transport"
	}
	return "envelope"
}

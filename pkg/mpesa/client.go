// Package mpesa is a client for the Daraja STK push API.
package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// Daraja timestamps are East Africa Time.
	timestampLayout = "20060102150405"
	tokenLeeway     = 60 * time.Second
)

var eat = time.FixedZone("EAT", 3*60*60)

// Config holds gateway credentials and endpoints.
type Config struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	CallbackURL     string
	TransactionType string
	Timeout         time.Duration
}

func (c Config) validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "base url")
	}
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		missing = append(missing, "consumer credentials")
	}
	if c.ShortCode == "" {
		missing = append(missing, "short code")
	}
	if c.PassKey == "" {
		missing = append(missing, "pass key")
	}
	if c.CallbackURL == "" {
		missing = append(missing, "callback url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mpesa config missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Client talks to the gateway. It is safe for concurrent use.
type Client struct {
	cfg    Config
	tokens TokenCache
	logger *zap.Logger
	now    func() time.Time
}

// NewClient creates a gateway client. A nil cache means an in-process one.
func NewClient(cfg Config, tokens TokenCache, logger *zap.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TransactionType == "" {
		cfg.TransactionType = "CustomerPayBillOnline"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}, nil
}

// InitiatePush asks the gateway to prompt the customer's phone. It returns once
// the gateway acknowledges the request, not once the customer approves it.
func (c *Client) InitiatePush(ctx context.Context, req PushRequest) (*PushResult, error) {
	password, timestamp := c.password()
	desc := req.Description
	if desc == "" {
		desc = "Payment of order " + req.AccountReference
	}
	body := stkPushBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   desc,
	}

	resp, raw, err := c.post(ctx, pushPath, body)
	if err != nil {
		return nil, fmt.Errorf("stk push: %w", err)
	}

	result := &PushResult{
		OK:                resp.ResponseCode == "0" && resp.CheckoutRequestID != "",
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		Description:       resp.description(),
		Raw:               raw,
	}
	c.logger.Info("STK push acknowledged",
		zap.Bool("ok", result.OK),
		zap.String("account_reference", req.AccountReference),
		zap.String("merchant_request_id", result.MerchantRequestID),
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("description", result.Description))
	return result, nil
}

// QueryStatus asks the gateway for the outcome of a push.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	password, timestamp := c.password()
	body := stkQueryBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	resp, raw, err := c.post(ctx, queryPath, body)
	if err != nil {
		return nil, fmt.Errorf("stk query: %w", err)
	}

	result := &StatusResult{
		OK:                resp.ResponseCode == "0",
		ResultCode:        resp.ResultCode,
		ResultDescription: resp.ResultDesc,
		Raw:               raw,
	}
	if result.ResultDescription == "" {
		result.ResultDescription = resp.description()
	}
	c.logger.Debug("STK query answered",
		zap.String("checkout_request_id", checkoutRequestID),
		zap.Bool("ok", result.OK),
		zap.String("result_code", result.ResultCode))
	return result, nil
}

func (c *Client) password() (string, string) {
	timestamp := c.now().In(eat).Format(timestampLayout)
	raw := c.cfg.ShortCode + c.cfg.PassKey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw)), timestamp
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(ctx); ok {
		return token, nil
	}

	a := fiber.Get(c.cfg.BaseURL + tokenPath)
	a.BasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	a.Timeout(c.timeout(ctx))
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("oauth request: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return "", fmt.Errorf("oauth request: unexpected status %d: %s", code, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("oauth response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("oauth response: empty access token")
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenLeeway {
		ttl -= tokenLeeway
	}
	if err := c.tokens.Set(ctx, tr.AccessToken, ttl); err != nil {
		c.logger.Warn("Failed to cache gateway access token", zap.Error(err))
	}
	return tr.AccessToken, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (gatewayResponse, json.RawMessage, error) {
	var resp gatewayResponse

	token, err := c.accessToken(ctx)
	if err != nil {
		return resp, nil, err
	}

	a := fiber.Post(c.cfg.BaseURL + path)
	a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	a.JSON(payload)
	a.Timeout(c.timeout(ctx))
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return resp, nil, errors.Join(errs...)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, nil, fmt.Errorf("undecodable response (status %d): %w", code, err)
	}
	if code >= fiber.StatusBadRequest && resp.description() == "" {
		return resp, nil, fmt.Errorf("unexpected status %d: %s", code, body)
	}
	return resp, json.RawMessage(body), nil
}

// timeout honours a context deadline shorter than the configured timeout.
func (c *Client) timeout(ctx context.Context) time.Duration {
	t := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < t {
			t = left
		}
	}
	if t <= 0 {
		t = time.Millisecond
	}
	return t
}

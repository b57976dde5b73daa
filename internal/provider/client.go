package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"peer-rental-core/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const serviceName = "payment-provider"

// Client is the HTTP client of the provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) InitiateCharge(ctx context.Context, req LegRequest) (*LegResult, error) {
	var out LegResult
	if err := c.do(ctx, http.MethodPost, "/v1/charges", req.IdempotencyKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InitiateDepositHold(ctx context.Context, req LegRequest) (*LegResult, error) {
	var out LegResult
	if err := c.do(ctx, http.MethodPost, "/v1/deposit_holds", req.IdempotencyKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RefundCharge(ctx context.Context, ref, idempotencyKey string) error {
	return c.do(ctx, http.MethodPost, "/v1/charges/"+ref+"/refund", idempotencyKey, nil, nil)
}

func (c *Client) ReleaseDepositHold(ctx context.Context, ref, idempotencyKey string) error {
	return c.do(ctx, http.MethodPost, "/v1/deposit_holds/"+ref+"/release", idempotencyKey, nil, nil)
}

func (c *Client) GetLegStatus(ctx context.Context, ref string) (*LegResult, error) {
	var out LegResult
	if err := c.do(ctx, http.MethodGet, "/v1/legs/"+ref, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InitiateIdentitySession(ctx context.Context, email string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/v1/identity_sessions", "", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InitiatePayoutOnboarding(ctx context.Context, email string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/v1/payout_onboarding", "", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	logger.ExternalServiceCall(serviceName, method+" "+path, "idempotencyKey", idempotencyKey)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	httpReq.SetBasicAuth(c.apiKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.ExternalServiceResult(serviceName, method+" "+path, err)
			return err
		}
		err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		logger.ExternalServiceResult(serviceName, method+" "+path, err)
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		logger.ExternalServiceResult(serviceName, method+" "+path, err, "status", resp.StatusCode)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			err = fmt.Errorf("decode %s response: %w", path, err)
			logger.ExternalServiceResult(serviceName, method+" "+path, err)
			return err
		}
	}
	logger.ExternalServiceResult(serviceName, method+" "+path, nil, "status", resp.StatusCode)
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	case resp.StatusCode == http.StatusPaymentRequired, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrDeclined, strings.TrimSpace(string(msg)))
	default:
		return fmt.Errorf("provider request failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
}

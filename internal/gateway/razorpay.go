package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/and161185/coursemart/internal/model"
)

const DefaultTimeout = 10 * time.Second

// Remote order states reported by Razorpay.
const (
	RemoteCreated   = "created"
	RemoteAttempted = "attempted"
	RemotePaid      = "paid"
)

type Options struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Razorpay talks to the Razorpay Orders API. One instance is built at start
// up and shared; it holds no per-request state.
type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpay(opts Options) *Razorpay {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}

	return &Razorpay{
		keyID:     opts.KeyID,
		keySecret: opts.KeySecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// KeyID is the public key the browser checkout widget needs.
func (r *Razorpay) KeyID() string {
	return r.keyID
}

func (r *Razorpay) CreateRemoteOrder(ctx context.Context, amount int64, currency, receipt string) (model.GatewayOrder, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return model.GatewayOrder{}, fmt.Errorf("encode order request: %w", err)
	}

	return r.do(ctx, http.MethodPost, "/v1/orders", body)
}

func (r *Razorpay) FetchOrder(ctx context.Context, providerOrderRef string) (model.GatewayOrder, error) {
	return r.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(providerOrderRef), nil)
}

func (r *Razorpay) do(ctx context.Context, method, path string, body []byte) (model.GatewayOrder, error) {
	if r.keyID == "" || r.keySecret == "" {
		return model.GatewayOrder{}, fmt.Errorf("%w: razorpay credentials are not configured", errs.ErrGatewayUnavailable)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return model.GatewayOrder{}, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return model.GatewayOrder{}, fmt.Errorf("%w: send request: %v", errs.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.GatewayOrder{}, fmt.Errorf("%w: read response: %v", errs.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var order model.GatewayOrder
		if err := json.Unmarshal(raw, &order); err != nil {
			return model.GatewayOrder{}, fmt.Errorf("%w: decode response: %v", errs.ErrGatewayUnavailable, err)
		}
		if order.ID == "" {
			return model.GatewayOrder{}, fmt.Errorf("%w: response without order id", errs.ErrGatewayUnavailable)
		}
		order.Payload = raw
		return order, nil
	case resp.StatusCode == http.StatusNotFound:
		return model.GatewayOrder{}, fmt.Errorf("remote order %w", errs.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest:
		return model.GatewayOrder{}, fmt.Errorf("%w: gateway rejected request: %s", errs.ErrInvalidArgument, describe(raw))
	default:
		// 401 means our credentials are wrong; the user can do nothing about
		// it either way.
		return model.GatewayOrder{}, fmt.Errorf("%w: unexpected status code %d: %s", errs.ErrGatewayUnavailable, resp.StatusCode, describe(raw))
	}
}

func describe(raw []byte) string {
	var resp struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Error.Description == "" {
		return "no description"
	}
	return resp.Error.Description
}

// internal/adapters/chapa/client.go
package chapa

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

// Client talks to the Chapa transaction API. All calls carry the client's
// timeout; a hung gateway surfaces as ErrGatewayUnavailable, never as
// success.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, timeout time.Duration, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: timeout},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type initializeBody struct {
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	Email         string            `json:"email"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	TxRef         string            `json:"tx_ref"`
	CallbackURL   string            `json:"callback_url"`
	Customization map[string]string `json:"customization,omitempty"`
}

type initializeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status string `json:"status"`
	} `json:"data"`
}

// Initialize creates a checkout session. It is sent exactly once: retrying
// a failed POST could open a second session for the same transaction
// reference, so transient failures surface to the caller, who creates a
// fresh payment record for the retry.
func (c *Client) Initialize(ctx context.Context, req domain.InitializePayment) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(initializeBody{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		TxRef:       req.TxRef,
		CallbackURL: req.CallbackURL,
		Customization: map[string]string{
			"title":       req.Title,
			"description": req.Description,
		},
	})
	if err != nil {
		return "", err
	}

	url := c.base + "/transaction/initialize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(httpReq)

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		observability.ObserveGateway("initialize", 0, time.Since(start))
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	observability.ObserveGateway("initialize", resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: initialize returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode initialize response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= 300 || out.Status != "success" || out.Data.CheckoutURL == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrGatewayRejected, messageOr(out.Message, "initialization declined"))
	}
	return out.Data.CheckoutURL, nil
}

// Verify asks the gateway for the final state of a transaction. The call
// is a read, so transient 429/5xx responses are retried with backoff,
// honoring Retry-After when provided.
func (c *Client) Verify(ctx context.Context, txRef string) (domain.VerifyResult, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return domain.VerifyResult{}, err
	}

	url := c.base + "/transaction/verify/" + txRef
	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return domain.VerifyResult{}, err
		}
		c.setHeaders(req)

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveGateway("verify", 0, time.Since(start))
			if ctx.Err() != nil {
				return domain.VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return domain.VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, lastErr)
		}
		observability.ObserveGateway("verify", resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return domain.VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, ctx.Err())
			}
			return domain.VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, lastErr)

		default:
			var out verifyResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return domain.VerifyResult{}, fmt.Errorf("%w: decode verify response: %v", domain.ErrGatewayUnavailable, err)
			}
			return domain.VerifyResult{
				Succeeded: out.Data.Status == "success",
				Message:   messageOr(out.Message, "verification response received"),
			}, nil
		}
	}
	return domain.VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, lastErr)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "staybook/1.0")
}

func messageOr(m, def string) string {
	if strings.TrimSpace(m) == "" {
		return def
	}
	return m
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}

// Package subscriptions is the client for the subscription API: the
// caller's plan, its resume quota, and checkout/portal redirects.
package subscriptions

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/autoresum/autoresum-go"
)

const (
	routeDetail          = "subscription"
	routeStatus          = "subscription/status"
	routeManage          = "subscription/manage"
	routeCheckoutSession = "subscription/create-checkout-session"
	routePortalSession   = "subscription/create-portal-session"
	routeVerifyPayment   = "subscription/verify-payment"
	routePayments        = "subscription/payments"
)

// Plan names used by the backend.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Subscription mirrors the backend's subscription record.
type Subscription struct {
	Plan              string     `json:"plan"`
	BillingCycle      string     `json:"billing_cycle,omitempty"`
	Status            string     `json:"status,omitempty"`
	ResumeCount       int        `json:"resume_count"`
	IsActive          bool       `json:"is_active"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end,omitempty"`
	PeriodStart       *time.Time `json:"current_period_start,omitempty"`
	PeriodEnd         *time.Time `json:"current_period_end,omitempty"`
	SubscribedAt      *time.Time `json:"subscribed_at,omitempty"`
}

// Premium reports whether the subscription unlocks paid features.
func (s *Subscription) Premium() bool {
	return s != nil && s.IsActive && s.Plan == PlanPremium
}

// Payment is one entry of the payment history.
type Payment struct {
	ID        auth.FlexID `json:"id,omitempty"`
	Amount    float64     `json:"amount,omitempty"`
	Currency  string      `json:"currency,omitempty"`
	Status    string      `json:"status,omitempty"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
}

// Client rides the shared session transport and gate, so the polled
// reads compete for the same concurrency budget as every other
// authenticated call.
type Client struct {
	transport *auth.Transport
	gate      *auth.Gate
}

func NewClient(manager *auth.SessionManager) *Client {
	return &Client{
		transport: manager.Transport(),
		gate:      manager.Gate(),
	}
}

// Current returns the caller's subscription.
func (c *Client) Current(ctx context.Context) (*Subscription, error) {
	var out struct {
		Subscription *Subscription `json:"subscription"`
	}
	err := c.gate.Do(ctx, func() error {
		return c.transport.JSON(ctx, auth.Request{
			Method: http.MethodGet,
			Path:   routeDetail,
		}, &out)
	})
	if err != nil {
		return nil, err
	}
	if out.Subscription == nil {
		return nil, goerrors.New("subscription response missing record", goerrors.CategoryOperation)
	}
	return out.Subscription, nil
}

// Status returns the lightweight status document the UI polls.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.gate.Do(ctx, func() error {
		return c.transport.JSON(ctx, auth.Request{
			Method: http.MethodGet,
			Path:   routeStatus,
		}, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCheckoutSession starts an upgrade and returns the redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, priceID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPost,
		Path:   routeCheckoutSession,
		Body:   map[string]string{"price_id": priceID},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", goerrors.New("checkout response missing redirect URL", goerrors.CategoryOperation)
	}
	return out.URL, nil
}

// CreatePortalSession returns the billing portal redirect URL.
func (c *Client) CreatePortalSession(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPost,
		Path:   routePortalSession,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", goerrors.New("portal response missing redirect URL", goerrors.CategoryOperation)
	}
	return out.URL, nil
}

// VerifyPayment confirms a completed checkout session.
func (c *Client) VerifyPayment(ctx context.Context, sessionID string) (*Subscription, error) {
	var out struct {
		Subscription *Subscription `json:"subscription"`
	}
	err := c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPost,
		Path:   routeVerifyPayment,
		Body:   map[string]string{"session_id": sessionID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Subscription, nil
}

// Cancel schedules cancellation at the end of the current period.
func (c *Client) Cancel(ctx context.Context) error {
	return c.transport.JSON(ctx, auth.Request{
		Method: http.MethodPost,
		Path:   routeManage,
		Body:   map[string]string{"action": "cancel"},
	}, nil)
}

// Payments returns the payment history.
func (c *Client) Payments(ctx context.Context) ([]Payment, error) {
	var out struct {
		Payments []Payment `json:"payments"`
	}
	err := c.gate.Do(ctx, func() error {
		return c.transport.JSON(ctx, auth.Request{
			Method: http.MethodGet,
			Path:   routePayments,
		}, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Payments, nil
}

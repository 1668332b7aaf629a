package msgraph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSubscriptionTTL is how far in the future new subscriptions expire
// when the caller does not pick an expiry.
const DefaultSubscriptionTTL = 72 * time.Hour

// Subscription is a Microsoft Graph change notification subscription.
type Subscription struct {
	ID                 string `json:"id,omitempty"`
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	Resource           string `json:"resource"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState,omitempty"`
}

// Webhooks manages Graph change notification subscriptions.
type Webhooks struct {
	client *Client
}

// NewWebhooks creates a subscription manager.
func NewWebhooks(ctx context.Context, creds Credentials) (*Webhooks, error) {
	client, err := NewClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &Webhooks{client: client}, nil
}

// CreateSubscription registers a new subscription. When sub.ExpirationDateTime
// is empty it defaults to now plus DefaultSubscriptionTTL.
func (w *Webhooks) CreateSubscription(ctx context.Context, sub Subscription) (*Subscription, error) {
	if sub.Resource == "" {
		return nil, fmt.Errorf("subscription resource is required")
	}
	if sub.NotificationURL == "" {
		return nil, fmt.Errorf("subscription notification URL is required")
	}
	if sub.ChangeType == "" {
		sub.ChangeType = "updated"
	}
	if sub.ExpirationDateTime == "" {
		sub.ExpirationDateTime = time.Now().UTC().Add(DefaultSubscriptionTTL).Format(time.RFC3339)
	}

	var created Subscription
	if err := w.client.postJSON(ctx, "/subscriptions", sub, &created); err != nil {
		return nil, fmt.Errorf("failed to create subscription for %s: %w", sub.Resource, err)
	}

	log.Info().Str("subscription_id", created.ID).Str("resource", created.Resource).Msg("created Graph subscription")

	return &created, nil
}

// ListSubscriptions returns all active subscriptions for the application.
func (w *Webhooks) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var resp struct {
		Value []Subscription `json:"value"`
	}
	if err := w.client.getJSON(ctx, "/subscriptions", &resp); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return resp.Value, nil
}

// GetSubscription fetches one subscription by ID.
func (w *Webhooks) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	if err := w.client.getJSON(ctx, "/subscriptions/"+id, &sub); err != nil {
		return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
	}
	return &sub, nil
}

// UpdateSubscription patches mutable subscription fields.
func (w *Webhooks) UpdateSubscription(ctx context.Context, id string, fields map[string]string) (*Subscription, error) {
	var sub Subscription
	if err := w.client.patchJSON(ctx, "/subscriptions/"+id, fields, &sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription %s: %w", id, err)
	}
	return &sub, nil
}

// RenewSubscription moves the expiry forward by ttl from now.
func (w *Webhooks) RenewSubscription(ctx context.Context, id string, ttl time.Duration) (*Subscription, error) {
	if ttl <= 0 {
		ttl = DefaultSubscriptionTTL
	}
	payload := map[string]string{
		"expirationDateTime": time.Now().UTC().Add(ttl).Format(time.RFC3339),
	}

	var sub Subscription
	if err := w.client.patchJSON(ctx, "/subscriptions/"+id, payload, &sub); err != nil {
		return nil, fmt.Errorf("failed to renew subscription %s: %w", id, err)
	}

	log.Debug().Str("subscription_id", id).Str("expires", sub.ExpirationDateTime).Msg("renewed Graph subscription")

	return &sub, nil
}

// DeleteSubscription removes a subscription.
func (w *Webhooks) DeleteSubscription(ctx context.Context, id string) error {
	if err := w.client.do(ctx, http.MethodDelete, "/subscriptions/"+id, nil, "", nil); err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", id, err)
	}
	log.Debug().Str("subscription_id", id).Msg("deleted Graph subscription")
	return nil
}

package svix

import (
	"context"
	"fmt"
	"net/url"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/svix/svix-webhooks/go/models"
	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/types"
)

// Client publishes license events to Svix for downstream subscribers
type Client struct {
	client        *svix.Svix
	applicationID string
	enabled       bool
}

// NewClient creates a new Svix client. A disabled or incomplete
// configuration yields a client whose sends are no-ops.
func NewClient(cfg *config.Configuration) (*Client, error) {
	sc := cfg.Svix
	if !sc.Enabled || sc.AuthToken == "" || sc.ApplicationID == "" {
		return &Client{enabled: false}, nil
	}

	opts := &svix.SvixOptions{}
	if sc.BaseURL != "" {
		serverURL, err := url.Parse(sc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		opts.ServerUrl = serverURL
	}

	svixClient, err := svix.New(sc.AuthToken, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create svix client: %w", err)
	}

	return &Client{
		client:        svixClient,
		applicationID: sc.ApplicationID,
		enabled:       true,
	}, nil
}

// IsEnabled reports whether events are actually sent
func (c *Client) IsEnabled() bool {
	return c.enabled && c.client != nil
}

// SendMessage sends an event to the configured application
func (c *Client) SendMessage(ctx context.Context, eventType types.WebhookEventType, payload interface{}) error {
	if !c.IsEnabled() {
		return nil
	}

	payloadMap, err := toPayloadMap(payload)
	if err != nil {
		return err
	}

	opts := &svix.MessageCreateOptions{}
	if keyed, ok := payload.(idempotent); ok {
		opts.IdempotencyKey = lo.ToPtr(keyed.IdempotencyKey())
	}

	_, err = c.client.Message.Create(ctx, c.applicationID, models.MessageIn{
		EventType: string(eventType),
		Payload:   payloadMap,
	}, opts)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// idempotent payloads carry the key Svix deduplicates resends on
type idempotent interface {
	IdempotencyKey() string
}

// toPayloadMap converts a payload into the generic object Svix expects
func toPayloadMap(payload interface{}) (map[string]interface{}, error) {
	if m, ok := payload.(map[string]interface{}); ok {
		return m, nil
	}

	data, err := jsoniter.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var payloadMap map[string]interface{}
	if err := jsoniter.Unmarshal(data, &payloadMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payloadMap, nil
}

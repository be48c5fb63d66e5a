package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Sender delivers a rendered message and returns the provider message id
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
	IsEnabled() bool
}

// ResendClient sends email through the Resend API
type ResendClient struct {
	client  *resend.Client
	enabled bool
}

// NewResendClient creates a Resend sender. Without an API key the sender is disabled.
func NewResendClient(apiKey string) *ResendClient {
	if apiKey == "" {
		return &ResendClient{enabled: false}
	}
	return &ResendClient{
		client:  resend.NewClient(apiKey),
		enabled: true,
	}
}

// IsEnabled returns whether the email client is enabled
func (c *ResendClient) IsEnabled() bool {
	return c.enabled
}

func (c *ResendClient) Send(ctx context.Context, msg Message) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("email client is disabled")
	}

	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}

package email

import (
	"context"

	"github.com/tradingbrain/licensing/internal/config"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/types"
	"github.com/tradingbrain/licensing/internal/validator"
)

const disabledMessage = "email client is disabled"

// Dispatcher delivers license keys to customers
type Dispatcher struct {
	sender      Sender
	fromAddress string
	replyTo     string
	logger      *logger.Logger
}

// NewDispatcher builds a dispatcher for the configured provider. Missing
// credentials produce a disabled dispatcher, not an error.
func NewDispatcher(cfg *config.Configuration, logger *logger.Logger) *Dispatcher {
	var sender Sender
	switch cfg.Email.Provider {
	case types.EmailProviderResend:
		sender = NewResendClient(cfg.Email.Resend.APIKey)
	default:
		sender = NewSMTPClient(SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
		})
	}

	if !sender.IsEnabled() || cfg.Email.FromAddress == "" {
		logger.Warnw("email delivery is not configured, license emails will be skipped",
			"provider", cfg.Email.Provider,
		)
	}

	return NewDispatcherWithSender(sender, cfg.Email.FromAddress, cfg.Email.ReplyTo, logger)
}

// NewDispatcherWithSender creates a dispatcher over an explicit transport
func NewDispatcherWithSender(sender Sender, fromAddress, replyTo string, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		fromAddress: fromAddress,
		replyTo:     replyTo,
		logger:      logger,
	}
}

// IsEnabled reports whether license emails can be sent
func (d *Dispatcher) IsEnabled() bool {
	return d.sender != nil && d.sender.IsEnabled() && d.fromAddress != ""
}

// SendLicenseEmail sends the license key to the customer. A disabled
// dispatcher reports Success=false without an error; transport failures
// return both a failed response and the error.
func (d *Dispatcher) SendLicenseEmail(ctx context.Context, req SendLicenseEmailRequest) (*SendLicenseEmailResponse, error) {
	if !d.IsEnabled() {
		d.logger.Warnw("email client is disabled, skipping email send",
			"to", types.MaskEmail(req.ToAddress),
			"payment_id", req.PaymentID,
		)
		return &SendLicenseEmailResponse{
			Success: false,
			Error:   disabledMessage,
		}, nil
	}

	if err := validator.ValidateRequest(req); err != nil {
		return &SendLicenseEmailResponse{Success: false, Error: ierr.DisplayMessage(err)}, err
	}

	html, text, err := RenderLicense(req.LicenseKey, req.Tier)
	if err != nil {
		d.logger.Errorw("failed to render license email", "error", err)
		err = ierr.WithError(err).
			WithHint("Failed to render license email").
			Mark(ierr.ErrSystem)
		return &SendLicenseEmailResponse{Success: false, Error: err.Error()}, err
	}

	subject := LicenseSubject(req.Tier)
	messageID, err := d.sender.Send(ctx, Message{
		From:    d.fromAddress,
		To:      req.ToAddress,
		ReplyTo: d.replyTo,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		d.logger.Errorw("failed to send license email",
			"error", err,
			"to", types.MaskEmail(req.ToAddress),
			"payment_id", req.PaymentID,
			"subject", subject,
		)
		return &SendLicenseEmailResponse{
			Success: false,
			Error:   err.Error(),
		}, ierr.WithError(err).
			WithHint("License email could not be delivered").
			Mark(ierr.ErrDelivery)
	}

	d.logger.Infow("license email sent successfully",
		"message_id", messageID,
		"to", types.MaskEmail(req.ToAddress),
		"payment_id", req.PaymentID,
		"tier", req.Tier,
	)

	return &SendLicenseEmailResponse{
		MessageID: messageID,
		Success:   true,
	}, nil
}

package service

import (
	"context"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/tradingbrain/licensing/internal/api/dto"
	"github.com/tradingbrain/licensing/internal/domain/license"
	"github.com/tradingbrain/licensing/internal/email"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/interfaces"
	"github.com/tradingbrain/licensing/internal/security"
	"github.com/tradingbrain/licensing/internal/sentry"
	"github.com/tradingbrain/licensing/internal/types"
)

// defaultEventTimeout bounds the outbound event publish when no http client timeout is set
const defaultEventTimeout = 5 * time.Second

type webhookProcessor struct {
	ServiceParams
}

func NewWebhookProcessor(params ServiceParams) interfaces.WebhookProcessor {
	return &webhookProcessor{
		ServiceParams: params,
	}
}

func (s *webhookProcessor) Process(ctx context.Context, body []byte, signature string) (*dto.ProcessResult, error) {
	if s.Monitor != nil {
		var span *sentrygo.Span
		span, ctx = s.Monitor.StartSpan(ctx, "webhook.process", map[string]interface{}{
			"body_bytes": len(body),
		})
		defer sentry.FinishSpan(span)
	}

	result := &dto.ProcessResult{State: types.NotificationStateReceived}

	payload, err := security.DecodePayload(body)
	if err != nil {
		result.State = types.NotificationStateRejected
		s.Logger.Warnw("rejected malformed notification", "error", err, "body_bytes", len(body))
		return result, err
	}

	if !security.VerifySignature(payload, signature, s.Config.Webhook.IPNSecret) {
		result.State = types.NotificationStateRejected
		s.Logger.Warnw("rejected notification with invalid signature",
			"signature_present", signature != "",
			"secret_configured", s.Config.Webhook.IPNSecret != "",
		)
		return result, ierr.NewError("notification signature mismatch").
			WithHint("Invalid signature").
			Mark(ierr.ErrPermissionDenied)
	}
	result.State = types.NotificationStateVerified
	s.breadcrumb("notification verified", nil)

	n, err := dto.ParseNotification(body)
	if err != nil {
		result.State = types.NotificationStateRejected
		s.Logger.Warnw("rejected verified notification with unexpected field types", "error", err)
		return result, err
	}

	result.PaymentID = n.PaymentID.String()
	result.Status = n.PaymentStatus
	ctx = types.SetPaymentID(ctx, result.PaymentID)
	log := s.Logger.With(
		"payment_id", result.PaymentID,
		"payment_status", n.PaymentStatus,
		"request_id", types.GetRequestID(ctx),
	)

	if err := s.issue(ctx, n, result); err != nil {
		return result, err
	}

	result.State = types.NotificationStateAcknowledged
	log.Infow("notification acknowledged",
		"outcome", result.Outcome,
		"reason", result.Reason,
		"persisted", result.Persisted,
		"emailed", result.Emailed,
	)
	return result, nil
}

// issue runs the post-verification pipeline. It only returns an error when no
// key could be generated, which leaves nothing issued and lets the processor retry.
func (s *webhookProcessor) issue(ctx context.Context, n *dto.Notification, result *dto.ProcessResult) error {
	log := s.Logger.With("payment_id", result.PaymentID)

	if !n.PaymentStatus.IsIssuable() {
		log.Infow("payment not in an issuable state, ignoring", "payment_status", n.PaymentStatus)
		result.Ignore(types.IgnoreReasonStatusNotIssuable)
		return nil
	}

	customerEmail, ok := n.ResolveCustomerEmail()
	if !ok {
		log.Errorw("dropping issuance for confirmed payment: no customer email resolved",
			"order_id", n.OrderID,
		)
		s.report(ctx, ierr.NewError("confirmed payment without customer email").
			WithHint("No customer email could be resolved from the notification").
			Mark(ierr.ErrValidation), result)
		result.Ignore(types.IgnoreReasonNoCustomerEmail)
		return nil
	}
	result.CustomerEmail = customerEmail

	if result.PaymentID == "" {
		log.Errorw("dropping issuance for confirmed payment: missing payment id",
			"email", types.MaskEmail(customerEmail),
			"order_id", n.OrderID,
		)
		s.report(ctx, ierr.NewError("confirmed payment without payment id").
			WithHint("Notification carries no payment id to key the license on").
			Mark(ierr.ErrValidation), result)
		result.Ignore(types.IgnoreReasonMissingPaymentID)
		return nil
	}

	if s.alreadyIssued(ctx, result.PaymentID) {
		log.Infow("license already issued for payment, ignoring redelivery")
		result.Ignore(types.IgnoreReasonDuplicateDelivery)
		return nil
	}

	result.State = types.NotificationStateIssuing
	key, err := license.GenerateKey()
	if err != nil {
		log.Errorw("failed to generate license key", "error", err)
		s.report(ctx, err, result)
		return err
	}

	tier := n.Tier()
	lic := license.New(key, tier, result.PaymentID, customerEmail, n.LicenseMetadata())
	result.Tier = tier
	result.LicenseKey = key

	if duplicate := s.persist(ctx, lic, result); duplicate {
		log.Infow("concurrent delivery already stored a license for payment, discarding new key",
			"license_key", license.MaskKey(key),
		)
		result.LicenseKey = ""
		result.Tier = ""
		result.Ignore(types.IgnoreReasonDuplicateDelivery)
		return nil
	}

	result.State = types.NotificationStateIssued
	result.Outcome = types.NotificationStateIssued
	s.breadcrumb("license issued", map[string]interface{}{
		"payment_id": result.PaymentID,
		"tier":       string(tier),
		"persisted":  result.Persisted,
	})
	s.deliver(ctx, lic, result)

	log.Infow("license issued",
		"license_key", license.MaskKey(key),
		"tier", tier,
		"email", types.MaskEmail(customerEmail),
		"persisted", result.Persisted,
		"emailed", result.Emailed,
	)
	return nil
}

// alreadyIssued checks the store for a license keyed on paymentID. Lookup
// failures are logged and treated as not issued; the store's uniqueness
// constraint still rejects a second insert.
func (s *webhookProcessor) alreadyIssued(ctx context.Context, paymentID string) bool {
	storeCtx, cancel := context.WithTimeout(ctx, s.Config.Store.Timeout)
	defer cancel()

	_, err := s.LicenseRepo.GetByPaymentID(storeCtx, paymentID)
	switch {
	case err == nil:
		return true
	case ierr.IsNotFound(err), ierr.IsNotConfigured(err):
		return false
	default:
		s.Logger.Warnw("idempotency check failed, continuing with issuance",
			"payment_id", paymentID,
			"error", err,
		)
		return false
	}
}

// persist stores the customer and license. It reports true when the store
// already holds a different license for the payment.
func (s *webhookProcessor) persist(ctx context.Context, lic *license.License, result *dto.ProcessResult) bool {
	s.ensureCustomer(ctx, lic)

	storeCtx, cancel := context.WithTimeout(ctx, s.Config.Store.Timeout)
	defer cancel()

	err := s.LicenseRepo.Create(storeCtx, lic)
	if ierr.IsAlreadyExists(err) && s.storedByThisDelivery(ctx, lic) {
		err = nil
	}
	switch {
	case err == nil:
		result.Persisted = true
		s.publish(ctx, lic, result)
		return false
	case ierr.IsAlreadyExists(err):
		return true
	default:
		result.PersistError = err
		if ierr.IsNotConfigured(err) {
			s.Logger.Warnw("license store not configured, license not persisted",
				"payment_id", lic.PaymentID,
				"license_key", license.MaskKey(lic.LicenseKey),
			)
			return false
		}
		s.Logger.Errorw("failed to persist license",
			"payment_id", lic.PaymentID,
			"license_key", license.MaskKey(lic.LicenseKey),
			"error", err,
		)
		s.report(ctx, err, result)
		return false
	}
}

// ensureCustomer registers the buyer under its own timeout. The license row
// carries the email, so a missing customer row is recoverable.
func (s *webhookProcessor) ensureCustomer(ctx context.Context, lic *license.License) {
	customerCtx, cancel := context.WithTimeout(ctx, s.Config.Store.Timeout)
	defer cancel()

	if _, err := s.CustomerRepo.EnsureByEmail(customerCtx, lic.CustomerEmail); err != nil {
		s.Logger.Warnw("failed to register customer",
			"payment_id", lic.PaymentID,
			"email", types.MaskEmail(lic.CustomerEmail),
			"error", err,
		)
	}
}

// storedByThisDelivery reports whether the conflicting row holds lic's own
// key, which happens when an insert committed but its response was lost.
func (s *webhookProcessor) storedByThisDelivery(ctx context.Context, lic *license.License) bool {
	storeCtx, cancel := context.WithTimeout(ctx, s.Config.Store.Timeout)
	defer cancel()

	existing, err := s.LicenseRepo.GetByPaymentID(storeCtx, lic.PaymentID)
	if err != nil {
		s.Logger.Warnw("failed to read back conflicting license",
			"payment_id", lic.PaymentID,
			"error", err,
		)
		return false
	}
	if existing.LicenseKey != lic.LicenseKey {
		return false
	}
	s.Logger.Infow("license insert conflicted with its own earlier write",
		"payment_id", lic.PaymentID,
		"license_key", license.MaskKey(lic.LicenseKey),
	)
	return true
}

// deliver emails the key. A failed delivery never revokes the issued license.
func (s *webhookProcessor) deliver(ctx context.Context, lic *license.License, result *dto.ProcessResult) {
	emailCtx, cancel := context.WithTimeout(ctx, s.Config.Email.Timeout)
	defer cancel()

	resp, err := s.Dispatcher.SendLicenseEmail(emailCtx, email.SendLicenseEmailRequest{
		ToAddress:  lic.CustomerEmail,
		LicenseKey: lic.LicenseKey,
		Tier:       lic.Tier,
		PaymentID:  lic.PaymentID,
	})
	switch {
	case err != nil:
		result.DeliveryError = err
		s.report(ctx, err, result)
	case resp == nil || !resp.Success:
		msg := "email not sent"
		if resp != nil && resp.Error != "" {
			msg = resp.Error
		}
		result.DeliveryError = ierr.NewError(msg).
			WithHint("License email was not sent").
			Mark(ierr.ErrNotConfigured)
	default:
		result.Emailed = true
		result.EmailMessageID = resp.MessageID
	}
}

// publish fans the issued license out to webhook subscribers. Failures are logged only.
func (s *webhookProcessor) publish(ctx context.Context, lic *license.License, result *dto.ProcessResult) {
	if s.EventPublisher == nil || !s.EventPublisher.IsEnabled() {
		return
	}

	timeout := s.Config.HTTPClient.Timeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	eventCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.EventPublisher.SendMessage(eventCtx, types.WebhookEventLicenseIssued, dto.LicenseIssuedEvent{
		LicenseID:     lic.ID,
		PaymentID:     lic.PaymentID,
		OrderID:       lic.Metadata[license.MetadataOrderID],
		Tier:          lic.Tier,
		CustomerEmail: lic.CustomerEmail,
		IssuedAt:      lic.CreatedAt,
	})
	if err != nil {
		s.Logger.Warnw("failed to publish license event",
			"payment_id", lic.PaymentID,
			"event", types.WebhookEventLicenseIssued,
			"error", err,
		)
		return
	}
	result.EventPublished = true
}

func (s *webhookProcessor) breadcrumb(message string, data map[string]interface{}) {
	if s.Monitor == nil {
		return
	}
	s.Monitor.AddBreadcrumb("webhook", message, data)
}

func (s *webhookProcessor) report(ctx context.Context, err error, result *dto.ProcessResult) {
	if s.Monitor == nil {
		return
	}
	s.Monitor.CaptureException(ctx, err, map[string]string{
		"payment_id": result.PaymentID,
		"state":      string(result.State),
	})
}

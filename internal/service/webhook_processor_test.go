package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
	"github.com/tradingbrain/licensing/internal/api/dto"
	"github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/interfaces"
	"github.com/tradingbrain/licensing/internal/security"
	"github.com/tradingbrain/licensing/internal/testutil"
	"github.com/tradingbrain/licensing/internal/types"
)

type WebhookProcessorSuite struct {
	testutil.BaseServiceTestSuite
	processor interfaces.WebhookProcessor
}

func TestWebhookProcessor(t *testing.T) {
	suite.Run(t, new(WebhookProcessorSuite))
}

func (s *WebhookProcessorSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.processor = NewWebhookProcessor(s.params())
}

func (s *WebhookProcessorSuite) params() ServiceParams {
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		CustomerRepo:   s.GetStore(),
		LicenseRepo:    s.GetStore(),
		Dispatcher:     s.GetDispatcher(),
		EventPublisher: s.GetPublisher(),
		Monitor:        s.GetMonitor(),
	}
}

// signed returns body together with its valid signature
func (s *WebhookProcessorSuite) signed(body string) ([]byte, string) {
	payload, err := security.DecodePayload([]byte(body))
	s.Require().NoError(err)
	sig, err := security.Sign(payload, testutil.TestIPNSecret)
	s.Require().NoError(err)
	return []byte(body), sig
}

func (s *WebhookProcessorSuite) process(body string) (*dto.ProcessResult, error) {
	b, sig := s.signed(body)
	return s.processor.Process(s.GetContext(), b, sig)
}

func (s *WebhookProcessorSuite) TestFinishedPaymentIssuesFullLicense() {
	result, err := s.process(`{"payment_id":5077125051,"payment_status":"finished","order_id":"ORD-FULL-1","customer_email":"a@example.com","price_amount":299.99,"price_currency":"usd","pay_currency":"btc"}`)
	s.Require().NoError(err)

	s.Equal(types.NotificationStateAcknowledged, result.State)
	s.Equal(types.NotificationStateIssued, result.Outcome)
	s.True(result.Issued())
	s.True(license.IsValidKey(result.LicenseKey))
	s.Equal(types.LicenseTierFull, result.Tier)
	s.True(result.Persisted)
	s.True(result.Emailed)
	s.NoError(result.PersistError)
	s.NoError(result.DeliveryError)

	licenses := s.GetStore().Licenses()
	s.Require().Len(licenses, 1)
	stored := licenses[0]
	s.Equal(result.LicenseKey, stored.LicenseKey)
	s.Equal(types.LicenseTierFull, stored.Tier)
	s.Equal("5077125051", stored.PaymentID)
	s.Equal("a@example.com", stored.CustomerEmail)
	s.True(stored.IsActive)
	s.Equal("ORD-FULL-1", stored.Metadata[license.MetadataOrderID])
	s.Equal("299.99", stored.Metadata[license.MetadataPriceAmount])

	sent := s.GetDispatcher().Sent()
	s.Require().Len(sent, 1)
	s.Equal("a@example.com", sent[0].ToAddress)
	s.Equal(result.LicenseKey, sent[0].LicenseKey)
	s.Equal(types.LicenseTierFull, sent[0].Tier)

	events := s.GetPublisher().Events()
	s.Require().Len(events, 1)
	s.Equal(types.WebhookEventLicenseIssued, events[0].EventType)
	s.True(result.EventPublished)
	s.Empty(s.GetMonitor().Captured())
	s.Equal([]string{"webhook.process"}, s.GetMonitor().Spans())
	s.Contains(s.GetMonitor().Breadcrumbs(), "webhook: license issued")
}

func (s *WebhookProcessorSuite) TestNonIssuableStatusesAreAcknowledged() {
	for _, status := range []string{"pending", "waiting", "confirming", "partially_paid", "failed", "expired", "refunded", "FINISHED", " finished", "confirmed "} {
		s.Run(status, func() {
			result, err := s.process(fmt.Sprintf(`{"payment_id":"p-%s","payment_status":%q,"order_id":"ORD-FULL-1","customer_email":"a@example.com"}`, status, status))
			s.Require().NoError(err)
			s.Equal(types.NotificationStateIgnored, result.Outcome)
			s.Equal(types.IgnoreReasonStatusNotIssuable, result.Reason)
			s.Equal(types.NotificationStateAcknowledged, result.State)
			s.False(result.Issued())
		})
	}
	s.Empty(s.GetStore().Licenses())
	s.Empty(s.GetDispatcher().Sent())
	s.Zero(s.GetStore().CreateCalls())
}

func (s *WebhookProcessorSuite) TestInvalidSignatureHasNoSideEffects() {
	body, sig := s.signed(`{"payment_id":"1","payment_status":"finished","order_id":"ORD-FULL-1","customer_email":"a@example.com"}`)

	cases := map[string]string{
		"tampered": sig[:len(sig)-1] + flip(sig[len(sig)-1]),
		"empty":    "",
		"upper":    upperHex(sig),
	}
	for name, bad := range cases {
		s.Run(name, func() {
			result, err := s.processor.Process(s.GetContext(), body, bad)
			s.Require().Error(err)
			s.True(ierr.IsPermissionDenied(err))
			s.Equal("Invalid signature", ierr.DisplayMessage(err))
			s.Equal(types.NotificationStateRejected, result.State)
		})
	}

	s.Zero(s.GetStore().CreateCalls())
	s.Empty(s.GetDispatcher().Sent())
	s.Empty(s.GetPublisher().Events())
}

func (s *WebhookProcessorSuite) TestTamperedBodyIsRejected() {
	_, sig := s.signed(`{"payment_id":"1","payment_status":"pending"}`)
	result, err := s.processor.Process(s.GetContext(), []byte(`{"payment_id":"1","payment_status":"finished"}`), sig)
	s.Require().Error(err)
	s.True(ierr.IsPermissionDenied(err))
	s.Equal(types.NotificationStateRejected, result.State)
}

func (s *WebhookProcessorSuite) TestUnconfiguredSecretRejectsEverything() {
	cfg := *s.GetConfig()
	cfg.Webhook.IPNSecret = ""
	params := s.params()
	params.Config = &cfg
	processor := NewWebhookProcessor(params)

	body, sig := s.signed(`{"payment_id":"1","payment_status":"finished","customer_email":"a@example.com"}`)
	_, err := processor.Process(s.GetContext(), body, sig)
	s.Require().Error(err)
	s.True(ierr.IsPermissionDenied(err))
	s.Zero(s.GetStore().CreateCalls())
}

func (s *WebhookProcessorSuite) TestFallbackEmailFromOrderDescription() {
	result, err := s.process(`{"payment_id":"77","payment_status":"confirmed","order_id":"ORD-42","order_description":"Full license | b@example.com"}`)
	s.Require().NoError(err)

	s.True(result.Issued())
	s.Equal("b@example.com", result.CustomerEmail)
	s.Equal(types.LicenseTierBotOnly, result.Tier)

	sent := s.GetDispatcher().Sent()
	s.Require().Len(sent, 1)
	s.Equal("b@example.com", sent[0].ToAddress)
	s.Len(s.GetStore().Licenses(), 1)
}

func (s *WebhookProcessorSuite) TestStoreOutageStillSendsEmail() {
	outage := ierr.NewError("connection refused").Mark(ierr.ErrDatabase)
	s.GetStore().SetCreateError(outage)

	result, err := s.process(`{"payment_id":"88","payment_status":"finished","order_id":"ORD-FULL-9","customer_email":"c@example.com"}`)
	s.Require().NoError(err)

	s.Equal(types.NotificationStateAcknowledged, result.State)
	s.True(result.Issued())
	s.False(result.Persisted)
	s.Require().Error(result.PersistError)
	s.True(ierr.IsDatabase(result.PersistError))
	s.True(result.Emailed)
	s.False(result.EventPublished)

	sent := s.GetDispatcher().Sent()
	s.Require().Len(sent, 1)
	s.Equal(result.LicenseKey, sent[0].LicenseKey)
	s.Empty(s.GetPublisher().Events())

	captured := s.GetMonitor().Captured()
	s.Require().Len(captured, 1)
	s.Equal("88", captured[0].Tags["payment_id"])
}

func (s *WebhookProcessorSuite) TestEmailFailureKeepsLicense() {
	s.GetDispatcher().SetError(ierr.NewError("smtp unavailable").Mark(ierr.ErrDelivery))

	result, err := s.process(`{"payment_id":"89","payment_status":"finished","order_id":"ORD-1","customer_email":"d@example.com"}`)
	s.Require().NoError(err)

	s.True(result.Persisted)
	s.False(result.Emailed)
	s.True(ierr.IsDelivery(result.DeliveryError))
	s.Len(s.GetStore().Licenses(), 1)
	s.Len(s.GetMonitor().Captured(), 1)
}

func (s *WebhookProcessorSuite) TestDisabledDispatcherIsReported() {
	s.GetDispatcher().SetDisabled(true)

	result, err := s.process(`{"payment_id":"90","payment_status":"finished","customer_email":"d@example.com"}`)
	s.Require().NoError(err)

	s.True(result.Persisted)
	s.False(result.Emailed)
	s.True(ierr.IsNotConfigured(result.DeliveryError))
}

func (s *WebhookProcessorSuite) TestSlowDependenciesTimeOut() {
	s.GetStore().SetDelay(time.Second)
	s.GetDispatcher().SetDelay(time.Second)

	start := time.Now()
	result, err := s.process(`{"payment_id":"91","payment_status":"finished","customer_email":"e@example.com"}`)
	s.Require().NoError(err)

	// lookup, customer, insert and email each give up after their own timeout
	s.Less(time.Since(start), 1500*time.Millisecond)
	s.Equal(types.NotificationStateAcknowledged, result.State)
	s.True(result.Issued())
	s.False(result.Persisted)
	s.False(result.Emailed)
	s.Error(result.PersistError)
	s.Error(result.DeliveryError)
}

func (s *WebhookProcessorSuite) TestRedeliveryIssuesOnce() {
	body := `{"payment_id":"5077125051","payment_status":"finished","order_id":"ORD-FULL-1","customer_email":"a@example.com"}`

	first, err := s.process(body)
	s.Require().NoError(err)
	s.True(first.Issued())

	second, err := s.process(body)
	s.Require().NoError(err)
	s.False(second.Issued())
	s.Equal(types.IgnoreReasonDuplicateDelivery, second.Reason)
	s.Equal(types.NotificationStateAcknowledged, second.State)

	s.Len(s.GetStore().Licenses(), 1)
	s.Len(s.GetDispatcher().Sent(), 1)
}

func (s *WebhookProcessorSuite) TestRedeliveryDuringLookupOutageIssuesOnce() {
	body := `{"payment_id":"92","payment_status":"confirmed","customer_email":"a@example.com"}`
	_, err := s.process(body)
	s.Require().NoError(err)

	s.GetStore().SetLookupError(errors.New("lookup unavailable"))
	second, err := s.process(body)
	s.Require().NoError(err)
	s.Equal(types.IgnoreReasonDuplicateDelivery, second.Reason)
	s.Empty(second.LicenseKey)

	s.Len(s.GetStore().Licenses(), 1)
	s.Len(s.GetDispatcher().Sent(), 1)
}

func (s *WebhookProcessorSuite) TestConcurrentRedeliveriesIssueOnce() {
	body, sig := s.signed(`{"payment_id":"93","payment_status":"finished","customer_email":"a@example.com"}`)

	var wg conc.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Go(func() {
			_, _ = s.processor.Process(s.GetContext(), body, sig)
		})
	}
	wg.Wait()

	s.Len(s.GetStore().Licenses(), 1)
	s.Len(s.GetDispatcher().Sent(), 1)
}

func (s *WebhookProcessorSuite) TestMissingCustomerEmailIsIgnored() {
	for name, body := range map[string]string{
		"absent":        `{"payment_id":"94","payment_status":"finished","order_id":"ORD-1"}`,
		"invalid":       `{"payment_id":"95","payment_status":"finished","customer_email":"not-an-email"}`,
		"no_delimiter":  `{"payment_id":"96","payment_status":"finished","order_description":"Full license"}`,
		"garbage_tail":  `{"payment_id":"97","payment_status":"finished","order_description":"Full | license"}`,
		"empty_segment": `{"payment_id":"98","payment_status":"finished","order_description":"b@example.com |"}`,
	} {
		s.Run(name, func() {
			result, err := s.process(body)
			s.Require().NoError(err)
			s.Equal(types.IgnoreReasonNoCustomerEmail, result.Reason)
			s.Equal(types.NotificationStateAcknowledged, result.State)
			s.False(result.Issued())
		})
	}
	s.Zero(s.GetStore().CreateCalls())
	s.Empty(s.GetDispatcher().Sent())
	s.Len(s.GetMonitor().Captured(), 5)
}

func (s *WebhookProcessorSuite) TestMissingPaymentIDIsIgnored() {
	result, err := s.process(`{"payment_status":"finished","customer_email":"a@example.com"}`)
	s.Require().NoError(err)
	s.Equal(types.IgnoreReasonMissingPaymentID, result.Reason)
	s.Zero(s.GetStore().CreateCalls())
	s.Empty(s.GetDispatcher().Sent())
}

func (s *WebhookProcessorSuite) TestMalformedBodyIsRejected() {
	for name, body := range map[string]string{
		"empty":  ``,
		"array":  `[1,2,3]`,
		"broken": `{"payment_id":`,
		"text":   `payment_status=finished`,
	} {
		s.Run(name, func() {
			result, err := s.processor.Process(s.GetContext(), []byte(body), "deadbeef")
			s.Require().Error(err)
			s.True(ierr.IsValidation(err))
			s.Equal(types.NotificationStateRejected, result.State)
		})
	}
	s.Zero(s.GetStore().CreateCalls())
}

func (s *WebhookProcessorSuite) TestUnexpectedFieldTypesAreRejected() {
	_, err := s.process(`{"payment_id":"99","payment_status":{"nested":true},"customer_email":"a@example.com"}`)
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
	s.Zero(s.GetStore().CreateCalls())
}

func (s *WebhookProcessorSuite) TestCustomerFailureDoesNotBlockLicense() {
	s.GetStore().SetCustomerError(errors.New("users table unavailable"))

	result, err := s.process(`{"payment_id":"100","payment_status":"finished","customer_email":"f@example.com"}`)
	s.Require().NoError(err)
	s.True(result.Persisted)
	s.True(result.Emailed)
}

func (s *WebhookProcessorSuite) TestSlowCustomerUpsertDoesNotStarveInsert() {
	s.GetStore().SetCustomerDelay(time.Second)

	result, err := s.process(`{"payment_id":"103","payment_status":"finished","customer_email":"h@example.com"}`)
	s.Require().NoError(err)
	s.True(result.Persisted)
	s.NoError(result.PersistError)
	s.True(result.Emailed)
	s.Len(s.GetStore().Licenses(), 1)
}

func (s *WebhookProcessorSuite) TestLostInsertResponseStillDeliversKey() {
	s.GetStore().SetLostCreateResponse(true)

	result, err := s.process(`{"payment_id":"104","payment_status":"finished","order_id":"ORD-FULL-7","customer_email":"i@example.com"}`)
	s.Require().NoError(err)
	s.True(result.Issued())
	s.True(result.Persisted)
	s.True(result.Emailed)
	s.Empty(result.Reason)

	stored := s.GetStore().Licenses()
	s.Require().Len(stored, 1)
	s.Equal(stored[0].LicenseKey, result.LicenseKey)

	sent := s.GetDispatcher().Sent()
	s.Require().Len(sent, 1)
	s.Equal(result.LicenseKey, sent[0].LicenseKey)
	s.Len(s.GetPublisher().Events(), 1)
}

func (s *WebhookProcessorSuite) TestEventFailureIsNotFatal() {
	s.GetPublisher().SetError(errors.New("svix down"))

	result, err := s.process(`{"payment_id":"101","payment_status":"finished","customer_email":"g@example.com"}`)
	s.Require().NoError(err)
	s.True(result.Persisted)
	s.True(result.Emailed)
	s.False(result.EventPublished)
}

func (s *WebhookProcessorSuite) TestDisabledPublisherIsSkipped() {
	s.GetPublisher().SetEnabled(false)

	result, err := s.process(`{"payment_id":"102","payment_status":"finished","customer_email":"g@example.com"}`)
	s.Require().NoError(err)
	s.True(result.Persisted)
	s.False(result.EventPublished)
	s.Empty(s.GetPublisher().Events())
}

func flip(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}

func upperHex(sig string) string {
	out := []byte(sig)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

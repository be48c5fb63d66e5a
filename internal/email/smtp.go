package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/tradingbrain/licensing/internal/types"
)

// implicitTLSPort is the SMTPS port where TLS starts before the greeting
const implicitTLSPort = 465

// SMTPConfig holds the SMTP transport settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPClient sends email over SMTP, upgrading with STARTTLS when offered and
// authenticating with PLAIN
type SMTPClient struct {
	cfg     SMTPConfig
	enabled bool
}

// NewSMTPClient creates an SMTP sender. It is disabled unless host and credentials are set.
func NewSMTPClient(cfg SMTPConfig) *SMTPClient {
	return &SMTPClient{
		cfg:     cfg,
		enabled: cfg.Host != "" && cfg.Username != "" && cfg.Password != "",
	}
}

// IsEnabled returns whether the email client is enabled
func (c *SMTPClient) IsEnabled() bool {
	return c.enabled
}

func (c *SMTPClient) Send(ctx context.Context, msg Message) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("email client is disabled")
	}

	messageID := fmt.Sprintf("<%s@%s>", types.GenerateUUID(), domainOf(msg.From, c.cfg.Host))
	body, err := buildMIME(msg, messageID)
	if err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	defer conn.Close()

	// net/smtp has no context support; the deadline bounds every command
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return "", fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return "", fmt.Errorf("smtp starttls failed: %w", err)
		}
	}

	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return "", fmt.Errorf("smtp authentication failed: %w", err)
	}
	envelopeFrom := msg.From
	if addr, err := mail.ParseAddress(msg.From); err == nil {
		envelopeFrom = addr.Address
	}
	if err := client.Mail(envelopeFrom); err != nil {
		return "", fmt.Errorf("smtp MAIL FROM rejected: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return "", fmt.Errorf("smtp RCPT TO rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("smtp DATA rejected: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("smtp server rejected message: %w", err)
	}

	// the message is accepted once DATA completes
	_ = client.Quit()
	return messageID, nil
}

func (c *SMTPClient) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	if c.cfg.Port == implicitTLSPort {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: c.cfg.Host, MinVersion: tls.VersionTLS12},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

// buildMIME renders msg as a multipart/alternative message with text and HTML parts
func buildMIME(msg Message, messageID string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ key, value string }{
		{"From", msg.From},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", time.Now().UTC().Format(time.RFC1123Z)},
		{"Message-ID", messageID},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary())},
	}
	if msg.ReplyTo != "" {
		headers = append(headers, struct{ key, value string }{"Reply-To", msg.ReplyTo})
	}

	var head strings.Builder
	for _, h := range headers {
		head.WriteString(h.key + ": " + h.value + "\r\n")
	}
	head.WriteString("\r\n")

	var out bytes.Buffer
	out.WriteString(head.String())

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

func domainOf(address, fallback string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return strings.Trim(address[at+1:], "> ")
	}
	return fallback
}

package email

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTPServer accepts one session without TLS and records the commands and
// message data it receives
type fakeSMTPServer struct {
	listener net.Listener
	mu       sync.Mutex
	commands []string
	data     string
	done     chan struct{}
}

func newFakeSMTPServer(t *testing.T) *fakeSMTPServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTPServer{listener: l, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() { _ = l.Close() })
	return s
}

func (s *fakeSMTPServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	defer close(s.done)
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	write := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	write("220 127.0.0.1 ESMTP ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO":
			write("250-127.0.0.1")
			write("250 AUTH PLAIN")
		case "AUTH":
			write("235 2.7.0 Authentication successful")
		case "MAIL", "RCPT":
			write("250 OK")
		case "DATA":
			write("354 End data with <CR><LF>.<CR><LF>")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			s.mu.Lock()
			s.data = data.String()
			s.mu.Unlock()
			write("250 OK queued")
		case "QUIT":
			write("221 Bye")
			return
		default:
			write("502 Command not implemented")
		}
	}
}

func TestSMTPClient_Send(t *testing.T) {
	server := newFakeSMTPServer(t)
	client := NewSMTPClient(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     server.port(),
		Username: "licenses@tradingbrainz.com",
		Password: "secret",
	})
	require.True(t, client.IsEnabled())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	html, text, err := RenderLicense("TB-1A2B-3C4D-5E6F-7A8B", "FULL")
	require.NoError(t, err)

	id, err := client.Send(ctx, Message{
		From:    "TradingBrain <licenses@tradingbrainz.com>",
		To:      "buyer@example.com",
		Subject: "Your TradingBrain Full System License - License Key",
		HTML:    html,
		Text:    text,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@tradingbrainz.com>"), id)

	<-server.done
	server.mu.Lock()
	defer server.mu.Unlock()

	assert.Contains(t, server.commands, "MAIL FROM:<licenses@tradingbrainz.com>")
	assert.Contains(t, server.commands, "RCPT TO:<buyer@example.com>")
	assert.Contains(t, server.data, "Message-ID: "+id)
	assert.Contains(t, server.data, "multipart/alternative")
	assert.Contains(t, server.data, "TB-1A2B-3C4D-5E6F-7A8B")
}

func TestSMTPClient_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	client := NewSMTPClient(SMTPConfig{Host: "127.0.0.1", Port: port, Username: "u", Password: "p"})
	_, err = client.Send(context.Background(), Message{From: "a@b.co", To: "c@d.co", Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestSMTPClient_Disabled(t *testing.T) {
	client := NewSMTPClient(SMTPConfig{Host: "smtp.zoho.com", Port: 587})
	assert.False(t, client.IsEnabled())
	_, err := client.Send(context.Background(), Message{})
	require.Error(t, err)
}

func TestBuildMIME(t *testing.T) {
	body, err := buildMIME(Message{
		From:    "a@b.co",
		To:      "c@d.co",
		ReplyTo: "support@b.co",
		Subject: "Hello",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}, "<id@b.co>")
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, "Reply-To: support@b.co\r\n")
	assert.Contains(t, s, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, s, "Content-Type: text/html; charset=utf-8")
	assert.Equal(t, 1, strings.Count(s, "MIME-Version: 1.0"))
}

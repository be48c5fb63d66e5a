package testutil

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/tradingbrain/licensing/internal/httpclient"
)

// MockHTTPClient implements httpclient.Client for testing. Like the default
// client it turns responses with status >= 400 into *httpclient.Error.
type MockHTTPClient struct {
	mu       sync.RWMutex
	routes   []mockRoute
	requests []httpclient.Request
}

type mockRoute struct {
	method string
	path   string
	resp   MockResponse
}

// MockResponse represents a mock HTTP response. A non-nil Err is returned as a
// transport failure.
type MockResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
	Err        error
}

// NewMockHTTPClient creates a new mock HTTP client
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// RegisterResponse registers a response for requests whose method matches and
// whose URL contains path. Later registrations take precedence.
func (m *MockHTTPClient) RegisterResponse(method, path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append([]mockRoute{{method: method, path: path, resp: resp}}, m.routes...)
}

// Send implements the httpclient.Client interface
func (m *MockHTTPClient) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	routes := m.routes
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, route := range routes {
		if route.method != req.Method || !strings.Contains(req.URL, route.path) {
			continue
		}
		if route.resp.Err != nil {
			return nil, route.resp.Err
		}
		if route.resp.StatusCode >= http.StatusBadRequest {
			return nil, httpclient.NewError(route.resp.StatusCode, route.resp.Body)
		}
		return &httpclient.Response{
			StatusCode: route.resp.StatusCode,
			Body:       route.resp.Body,
			Headers:    route.resp.Headers,
		}, nil
	}

	return nil, httpclient.NewError(http.StatusNotFound, []byte("Not Found"))
}

// Requests returns every request sent so far
func (m *MockHTTPClient) Requests() []httpclient.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]httpclient.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Clear removes all registered responses and recorded requests
func (m *MockHTTPClient) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = nil
	m.requests = nil
}

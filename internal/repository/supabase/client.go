package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tradingbrain/licensing/internal/config"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/httpclient"
	"github.com/tradingbrain/licensing/internal/logger"
)

const (
	restPath      = "/rest/v1"
	usersTable    = "users"
	licensesTable = "licenses"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to the Supabase PostgREST API with the service role key
type Client struct {
	http       httpclient.Client
	baseURL    string
	serviceKey string
	logger     *logger.Logger
}

// NewClient creates a Supabase REST client. A client without base url or
// service key is valid; every call on it fails with ErrNotConfigured.
func NewClient(cfg config.SupabaseConfig, client httpclient.Client, logger *logger.Logger) *Client {
	return &Client{
		http:       client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		logger:     logger,
	}
}

// IsConfigured reports whether the client has credentials to call Supabase
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.serviceKey != ""
}

func (c *Client) errNotConfigured() error {
	return ierr.NewError("supabase is not configured").
		WithHint("Set store.supabase.base_url and store.supabase.service_key").
		Mark(ierr.ErrNotConfigured)
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"apikey":        c.serviceKey,
		"Authorization": "Bearer " + c.serviceKey,
		"Prefer":        "return=representation",
		"Accept":        "application/json",
	}
}

// insert posts row to table and decodes the returned representation into out
func (c *Client) insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	body, err := json.Marshal(row)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to encode %s row", table).
			Mark(ierr.ErrSystem)
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + restPath + "/" + table,
		Headers: c.headers(),
		Body:    body,
	})
	if err != nil {
		return err
	}
	// the row is stored at this point; a bad representation must not read as a failed insert
	if err := c.decode(table, resp, out); err != nil {
		c.logger.Warnw("ignoring undecodable supabase insert response",
			"table", table,
			"error", err,
		)
	}
	return nil
}

// selectRows runs a filtered GET against table
func (c *Client) selectRows(ctx context.Context, table string, query url.Values, out interface{}) error {
	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + restPath + "/" + table + "?" + query.Encode(),
		Headers: c.headers(),
	})
	if err != nil {
		return err
	}
	return c.decode(table, resp, out)
}

func (c *Client) decode(table string, resp *httpclient.Response, out interface{}) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return ierr.WithError(err).
			WithHintf("Unexpected response from supabase %s table", table).
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

// statusOf returns the HTTP status of a failed call, 0 for transport errors
func statusOf(err error) int {
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		return httpErr.StatusCode
	}
	return 0
}

// rowID accepts PostgREST ids serialised either as strings (uuid) or numbers (bigserial)
type rowID string

func (r *rowID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*r = rowID(s)
	return nil
}

// timestamp is a nullable timestamptz column
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return nil
}

package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradingbrain/licensing/internal/config"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/httpclient"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/testutil"
	"github.com/tradingbrain/licensing/internal/types"
)

func TestNewStore_Memory(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Store.Driver = types.StoreDriverMemory

	store, err := NewStore(cfg, testutil.NewMockHTTPClient(), logger.NewNoopLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Licenses.Create(ctx, newTestLicense("p-1")))
	got, err := store.Licenses.GetByPaymentID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.PaymentID)
}

func TestNewStore_UnconfiguredSupabase(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Store.Driver = types.StoreDriverSupabase

	http := testutil.NewMockHTTPClient()
	store, err := NewStore(cfg, http, logger.NewNoopLogger())
	require.NoError(t, err)

	err = store.Licenses.Create(context.Background(), newTestLicense("p-1"))
	require.Error(t, err)
	assert.True(t, ierr.IsNotConfigured(err))
	assert.Empty(t, http.Requests())
}

func TestNewStore_UnknownDriver(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Store.Driver = "sqlite"

	_, err := NewStore(cfg, testutil.NewMockHTTPClient(), logger.NewNoopLogger())
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

// committingSupabase stores the first license insert but answers it with a
// 502, then rejects any further insert with a 409 like the unique index does.
type committingSupabase struct {
	mu    sync.Mutex
	row   []byte
	posts int
}

func (f *committingSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodPost:
		f.posts++
		if f.row != nil {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value"}`))
			return
		}
		f.row, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusBadGateway)
	case http.MethodGet:
		if f.row == nil {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write(append(append([]byte("["), f.row...), ']'))
	}
}

func TestNewStore_SupabaseInsertWithLostResponse(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Store.Driver = types.StoreDriverSupabase
	cfg.Store.Retry.InitialInterval = 10 * time.Millisecond
	cfg.HTTPClient.RetryMax = 3

	supabase := &committingSupabase{}
	srv := httptest.NewServer(supabase)
	defer srv.Close()
	cfg.Store.Supabase.BaseURL = srv.URL
	cfg.Store.Supabase.ServiceKey = "service-key"

	log := logger.NewNoopLogger()
	store, err := NewStore(cfg, httpclient.NewDefaultClient(cfg, log), log)
	require.NoError(t, err)

	lic := newTestLicense("P1")
	require.NoError(t, store.Licenses.Create(context.Background(), lic))

	got, err := store.Licenses.GetByPaymentID(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, lic.LicenseKey, got.LicenseKey)

	supabase.mu.Lock()
	defer supabase.mu.Unlock()
	assert.Equal(t, 1, supabase.posts)
}

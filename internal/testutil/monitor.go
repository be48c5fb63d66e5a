package testutil

import (
	"context"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/tradingbrain/licensing/internal/interfaces"
)

// CapturedError is a single reported failure
type CapturedError struct {
	Err  error
	Tags map[string]string
}

// RecordingMonitor collects captured exceptions and breadcrumbs
type RecordingMonitor struct {
	mu          sync.Mutex
	errors      []CapturedError
	breadcrumbs []string
	spans       []string
}

var _ interfaces.Monitor = (*RecordingMonitor)(nil)

func NewRecordingMonitor() *RecordingMonitor {
	return &RecordingMonitor{}
}

func (r *RecordingMonitor) CaptureException(ctx context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, CapturedError{Err: err, Tags: tags})
}

func (r *RecordingMonitor) AddBreadcrumb(category, message string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, category+": "+message)
}

// StartSpan records the operation and returns no span
func (r *RecordingMonitor) StartSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, operation)
	return nil, ctx
}

func (r *RecordingMonitor) Captured() []CapturedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CapturedError, len(r.errors))
	copy(out, r.errors)
	return out
}

func (r *RecordingMonitor) Breadcrumbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.breadcrumbs))
	copy(out, r.breadcrumbs)
	return out
}

func (r *RecordingMonitor) Spans() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.spans))
	copy(out, r.spans)
	return out
}

func (r *RecordingMonitor) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = nil
	r.breadcrumbs = nil
	r.spans = nil
}

package tracer_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/tracer"
	"auditcore/pkg/domain"
)

func TestOTLPExporter_EncodesIDsAsBase64(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exp := tracer.NewOTLPExporter(srv.URL, "auditcore")
	span := domain.TraceSpan{Name: "ingest", StartedAt: time.Now(), Status: domain.SpanOK}
	span = span.Finish(time.Now(), domain.SpanOK)

	require.NoError(t, exp.Export(context.Background(), []domain.TraceSpan{span}))
	require.NotNil(t, captured)

	resourceSpans := captured["resourceSpans"].([]any)
	scopeSpans := resourceSpans[0].(map[string]any)["scopeSpans"].([]any)
	spans := scopeSpans[0].(map[string]any)["spans"].([]any)
	got := spans[0].(map[string]any)
	// The span's IDs are unset (all zero bytes): 16 for the trace, 8 for the span.
	assert.Equal(t, base64.StdEncoding.EncodeToString(make([]byte, 16)), got["traceId"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(make([]byte, 8)), got["spanId"])
}

func TestOTLPExporter_RetriesOn429ThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exp := tracer.NewOTLPExporter(srv.URL, "auditcore")
	span := domain.TraceSpan{Name: "seal", StartedAt: time.Now()}
	span = span.Finish(time.Now(), domain.SpanOK)

	require.NoError(t, exp.Export(context.Background(), []domain.TraceSpan{span}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestOTLPExporter_NonRetryable4xxFailsFast(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	exp := tracer.NewOTLPExporter(srv.URL, "auditcore")
	span := domain.TraceSpan{Name: "enqueue", StartedAt: time.Now()}
	span = span.Finish(time.Now(), domain.SpanOK)

	err := exp.Export(context.Background(), []domain.TraceSpan{span})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestOTLPExporter_CompressesLargeBatches(t *testing.T) {
	var gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exp := tracer.NewOTLPExporter(srv.URL, "auditcore")
	var spans []domain.TraceSpan
	for i := 0; i < 200; i++ {
		s := domain.TraceSpan{Name: "worker.execute-" + strconv.Itoa(i), StartedAt: time.Now()}
		spans = append(spans, s.Finish(time.Now(), domain.SpanOK))
	}

	require.NoError(t, exp.Export(context.Background(), spans))
	assert.Equal(t, "gzip", gotEncoding)
}

package tracer

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

const compressThresholdBytes = 1024

// otlpSpanKind mirrors OTLP's numeric span kind enum (spec §6): 1..5.
const otlpSpanKindInternal = 1

// otlpStatusCode mirrors OTLP's numeric status code enum: 0=unset,1=ok,2=error.
func otlpStatusCode(s domain.SpanStatus) int {
	switch s {
	case domain.SpanOK:
		return 1
	case domain.SpanError, domain.SpanTimeout, domain.SpanCancelled:
		return 2
	default:
		return 0
	}
}

type otlpSpan struct {
	TraceID           string `json:"traceId"`
	SpanID            string `json:"spanId"`
	ParentSpanID      string `json:"parentSpanId,omitempty"`
	Name              string `json:"name"`
	Kind              int    `json:"kind"`
	StartTimeUnixNano string `json:"startTimeUnixNano"`
	EndTimeUnixNano   string `json:"endTimeUnixNano"`
	Status            struct {
		Code int `json:"code"`
	} `json:"status"`
}

type otlpScopeSpans struct {
	Scope struct {
		Name string `json:"name"`
	} `json:"scope"`
	Spans []otlpSpan `json:"spans"`
}

type otlpResourceSpans struct {
	Resource struct {
		Attributes []otlpAttribute `json:"attributes"`
	} `json:"resource"`
	ScopeSpans []otlpScopeSpans `json:"scopeSpans"`
}

type otlpAttribute struct {
	Key   string `json:"key"`
	Value struct {
		StringValue string `json:"stringValue"`
	} `json:"value"`
}

type otlpExportBody struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

// OTLPExporter posts spans to an OTLP/HTTP collector per spec §4.13/§6:
// base64-encoded trace/span IDs, optional gzip compression above 1KiB,
// exponential-backoff retry up to 3 attempts honouring Retry-After on 429,
// and non-retryable treatment of other 4xx responses.
type OTLPExporter struct {
	Endpoint     string
	ServiceName  string
	BearerToken  string
	CustomHeader [2]string // [name, value]; unused when name is empty
	HTTPClient   *http.Client
	MaxAttempts  int
}

// NewOTLPExporter constructs an OTLPExporter with spec defaults (3 attempts).
func NewOTLPExporter(endpoint, serviceName string) *OTLPExporter {
	return &OTLPExporter{
		Endpoint:    endpoint,
		ServiceName: serviceName,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		MaxAttempts: 3,
	}
}

func traceIDBase64(s domain.TraceSpan) string {
	return base64.StdEncoding.EncodeToString(mustHex(s.TraceIDHex()))
}

func spanIDBase64(s domain.TraceSpan) string {
	return base64.StdEncoding.EncodeToString(mustHex(s.SpanIDHex()))
}

func parentSpanIDBase64(s domain.TraceSpan) string {
	if !s.HasParent() {
		return ""
	}
	return base64.StdEncoding.EncodeToString(mustHex(s.ParentSpanID.String()))
}

func mustHex(hexStr string) []byte {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil
	}
	return b
}

func (e *OTLPExporter) buildBody(spans []domain.TraceSpan) ([]byte, error) {
	scopeSpans := otlpScopeSpans{}
	scopeSpans.Scope.Name = "auditcore"
	for _, s := range spans {
		os := otlpSpan{
			TraceID:           traceIDBase64(s),
			SpanID:            spanIDBase64(s),
			ParentSpanID:      parentSpanIDBase64(s),
			Name:              s.Name,
			Kind:              otlpSpanKindInternal,
			StartTimeUnixNano: strconv.FormatInt(s.StartedAt.UnixNano(), 10),
			EndTimeUnixNano:   strconv.FormatInt(s.EndedAt.UnixNano(), 10),
		}
		os.Status.Code = otlpStatusCode(s.Status)
		scopeSpans.Spans = append(scopeSpans.Spans, os)
	}

	rs := otlpResourceSpans{ScopeSpans: []otlpScopeSpans{scopeSpans}}
	rs.Resource.Attributes = []otlpAttribute{{Key: "service.name"}}
	rs.Resource.Attributes[0].Value.StringValue = e.ServiceName

	body := otlpExportBody{ResourceSpans: []otlpResourceSpans{rs}}
	return json.Marshal(body)
}

func (e *OTLPExporter) Export(ctx context.Context, spans []domain.TraceSpan) error {
	payload, err := e.buildBody(spans)
	if err != nil {
		return errs.Wrap(errs.CodeSerializaton, "marshal OTLP export body failed", err)
	}

	compressed := false
	if len(payload) > compressThresholdBytes {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(payload); err == nil && gz.Close() == nil {
			payload = buf.Bytes()
			compressed = true
		}
	}

	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryAfter, err := e.post(ctx, payload, compressed)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.Retryable(errs.CodeOf(err)) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		delay := retryAfter
		if delay <= 0 {
			delay = time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (e *OTLPExporter) post(ctx context.Context, payload []byte, compressed bool) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, errs.Wrap(errs.CodeNetwork, "build OTLP request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if e.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.BearerToken)
	}
	if e.CustomHeader[0] != "" {
		req.Header.Set(e.CustomHeader[0], e.CustomHeader[1])
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return 0, errs.Wrap(errs.CodeNetwork, "OTLP export request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return retryAfter, errs.New(errs.CodeRateLimit, "OTLP collector rate limited export")
	}
	if resp.StatusCode >= 500 {
		return 0, errs.New(errs.CodeTransient, "OTLP collector returned server error")
	}
	if resp.StatusCode >= 400 {
		return 0, errs.New(errs.CodeAuth, "OTLP collector rejected export")
	}
	return 0, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		return time.Until(when)
	}
	return 0
}

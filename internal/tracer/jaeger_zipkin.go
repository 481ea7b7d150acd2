package tracer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// JaegerExporter posts spans to a Jaeger collector's JSON HTTP endpoint. The
// example pack carries no Jaeger Thrift client, so this speaks Jaeger's
// plain JSON batch submission format rather than Thrift-over-UDP.
type JaegerExporter struct {
	Endpoint    string
	ServiceName string
	HTTPClient  *http.Client
}

type jaegerSpan struct {
	TraceID       string            `json:"traceID"`
	SpanID        string            `json:"spanID"`
	OperationName string            `json:"operationName"`
	StartTime     int64             `json:"startTime"`
	Duration      int64             `json:"duration"`
	Tags          map[string]string `json:"tags,omitempty"`
}

type jaegerBatch struct {
	Process struct {
		ServiceName string `json:"serviceName"`
	} `json:"process"`
	Spans []jaegerSpan `json:"spans"`
}

// NewJaegerExporter constructs a JaegerExporter.
func NewJaegerExporter(endpoint, serviceName string) *JaegerExporter {
	return &JaegerExporter{Endpoint: endpoint, ServiceName: serviceName, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (e *JaegerExporter) Export(ctx context.Context, spans []domain.TraceSpan) error {
	batch := jaegerBatch{}
	batch.Process.ServiceName = e.ServiceName
	for _, s := range spans {
		batch.Spans = append(batch.Spans, jaegerSpan{
			TraceID:       s.TraceIDHex(),
			SpanID:        s.SpanIDHex(),
			OperationName: s.Name,
			StartTime:     s.StartedAt.UnixMicro(),
			Duration:      s.Duration().Microseconds(),
			Tags:          map[string]string{"status": string(s.Status)},
		})
	}
	return postJSON(ctx, e.HTTPClient, e.Endpoint, batch)
}

// ZipkinExporter posts spans to a Zipkin v2 JSON HTTP endpoint.
type ZipkinExporter struct {
	Endpoint    string
	ServiceName string
	HTTPClient  *http.Client
}

type zipkinSpan struct {
	TraceID       string `json:"traceId"`
	ID            string `json:"id"`
	ParentID      string `json:"parentId,omitempty"`
	Name          string `json:"name"`
	Timestamp     int64  `json:"timestamp"`
	Duration      int64  `json:"duration"`
	LocalEndpoint struct {
		ServiceName string `json:"serviceName"`
	} `json:"localEndpoint"`
}

// NewZipkinExporter constructs a ZipkinExporter.
func NewZipkinExporter(endpoint, serviceName string) *ZipkinExporter {
	return &ZipkinExporter{Endpoint: endpoint, ServiceName: serviceName, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (e *ZipkinExporter) Export(ctx context.Context, spans []domain.TraceSpan) error {
	var batch []zipkinSpan
	for _, s := range spans {
		zs := zipkinSpan{
			TraceID:   s.TraceIDHex(),
			ID:        s.SpanIDHex(),
			Name:      s.Name,
			Timestamp: s.StartedAt.UnixMicro(),
			Duration:  s.Duration().Microseconds(),
		}
		if s.HasParent() {
			zs.ParentID = s.ParentSpanID.String()
		}
		zs.LocalEndpoint.ServiceName = e.ServiceName
		batch = append(batch, zs)
	}
	return postJSON(ctx, e.HTTPClient, e.Endpoint, batch)
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(errs.CodeSerializaton, "marshal export body failed", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(errs.CodeNetwork, "build export request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errs.Wrap(errs.CodeNetwork, "export request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errs.New(errs.CodeNetwork, "export endpoint rejected batch")
	}
	return nil
}

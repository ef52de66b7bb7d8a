package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_TagsServiceName(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := NewProvider("contui-test", sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "agent.session")
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Name() != "agent.session" {
		t.Errorf("span name = %q", ended[0].Name())
	}
	found := false
	for _, kv := range ended[0].Resource().Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "contui-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("service.name missing from resource: %v", ended[0].Resource().Attributes())
	}
}

func TestNewProvider_DefaultServiceName(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := NewProvider("", sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "x")
	span.End()

	for _, kv := range sr.Ended()[0].Resource().Attributes() {
		if string(kv.Key) == "service.name" {
			if kv.Value.AsString() != "contui" {
				t.Errorf("service.name = %q, want contui", kv.Value.AsString())
			}
			return
		}
	}
	t.Error("service.name missing")
}

func TestSetup_ExportsToCollector(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	shutdown, err := Setup(context.Background(), Config{
		ServiceName: "contui",
		Endpoint:    strings.TrimPrefix(srv.URL, "http://"),
		Insecure:    true,
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "action.read_file")
	span.End()

	if err := (Closer{Shutdown: shutdown, Timeout: 5 * time.Second}).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) == 0 {
		t.Fatal("collector received no export")
	}
	if paths[0] != "/v1/traces" {
		t.Errorf("export path = %q, want /v1/traces", paths[0])
	}
}

func TestCloser_NilShutdown(t *testing.T) {
	if err := (Closer{}).Close(); err != nil {
		t.Errorf("Close with no shutdown: %v", err)
	}
}

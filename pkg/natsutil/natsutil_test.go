package natsutil

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type event struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*headerCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestNewMsgAndDecodeRoundTrip(t *testing.T) {
	hdr := nats.Header{}
	hdr.Set("X-Retry-Count", "2")

	msg, err := NewMsg(context.Background(), "documents.ingested", event{DocID: "r1", Chunks: 3}, hdr)
	if err != nil {
		t.Fatalf("NewMsg: %v", err)
	}
	if msg.Header.Get("X-Retry-Count") != "2" {
		t.Fatal("expected header to be copied")
	}

	_, got, err := Decode[event](msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.DocID != "r1" || got.Chunks != 3 {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	msg := &nats.Msg{Subject: "x", Data: []byte("{invalid")}
	if _, _, err := Decode[event](msg); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTraceContextPropagates(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg, err := NewMsg(ctx, "s", event{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Header.Get("traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	got, _, err := Decode[event](msg)
	if err != nil {
		t.Fatal(err)
	}
	if trace.SpanContextFromContext(got).TraceID() != traceID {
		t.Fatal("trace id did not survive the round trip")
	}
}

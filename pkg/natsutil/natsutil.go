// Package natsutil wraps NATS with JSON payloads, OpenTelemetry trace
// propagation through message headers, and JetStream key/value buckets.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
)

// headerCarrier lets the OTel propagator read and write nats.Msg headers.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NewMsg encodes v as JSON on subject, copies hdr and injects the trace
// context from ctx.
func NewMsg[T any](ctx context.Context, subject string, v T, hdr nats.Header) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, vals := range hdr {
		for _, val := range vals {
			msg.Header.Add(k, val)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Publish sends v as JSON on subject.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := NewMsg(ctx, subject, v, nil)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Decode unmarshals msg into T and returns a context carrying the
// publisher's trace.
func Decode[T any](msg *nats.Msg) (context.Context, T, error) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return nil, v, fmt.Errorf("natsutil: decode %s: %w", msg.Subject, err)
	}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	return ctx, v, nil
}

// Subscribe calls handler with every message on subject that decodes as T.
// Messages that fail to decode go to onBad when it is non-nil.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T, *nats.Msg), onBad func(*nats.Msg, error)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, v, err := Decode[T](msg)
		if err != nil {
			if onBad != nil {
				onBad(msg, err)
			}
			return
		}
		handler(ctx, v, msg)
	})
}

// KeyValue opens the JetStream key/value bucket called bucket, creating it
// when missing. ttl bounds how long any entry survives in the bucket.
func KeyValue(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("natsutil: jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		TTL:     ttl,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("natsutil: kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

package ingest

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/WessleyAI/career-agent/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const retryHeader = "X-Retry-Count"

type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

type consumer struct {
	svc *Service
	pub msgPublisher
	log *slog.Logger
}

// StartConsumer ingests every Request published on RequestSubject. Failed
// requests are republished with an incremented X-Retry-Count header and go
// to DLQSubject after MaxRetries attempts.
func StartConsumer(nc *nats.Conn, svc *Service, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &consumer{svc: svc, pub: nc, log: log}
	return natsutil.Subscribe(nc, RequestSubject, c.handle, func(msg *nats.Msg, err error) {
		log.Error("ingest: bad request message", "subject", msg.Subject, "err", err)
	})
}

func (c *consumer) handle(ctx context.Context, req Request, msg *nats.Msg) {
	retries := 0
	if msg.Header != nil {
		if v := msg.Header.Get(retryHeader); v != "" {
			retries, _ = strconv.Atoi(v)
		}
	}

	if _, err := c.svc.Ingest(ctx, req); err != nil {
		retries++
		c.log.Error("ingest: pipeline failed", "err", err, "doc_id", req.DocID, "retry", retries)

		var out *nats.Msg
		var encErr error
		if retries >= MaxRetries {
			out, encErr = natsutil.NewMsg(ctx, DLQSubject, dlqMessage{Request: req, Error: err.Error(), Retries: retries}, nil)
		} else {
			hdr := nats.Header{}
			hdr.Set(retryHeader, strconv.Itoa(retries))
			out, encErr = natsutil.NewMsg(ctx, RequestSubject, req, hdr)
		}
		if encErr == nil {
			encErr = c.pub.PublishMsg(out)
		}
		if encErr != nil {
			c.log.Error("ingest: requeue failed", "err", encErr, "doc_id", req.DocID)
		}
	}

	if msg.Reply != "" {
		_ = msg.Ack()
	}
}

package bus

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HandlerFunc handles a single command payload and returns the reply body.
// Known domain failures must be encoded into the reply by the handler; a
// returned error means the request could not be served and yields a generic
// internal error reply.
type HandlerFunc func(ctx context.Context, data []byte) ([]byte, error)

// ServerConfig holds the RPC server settings.
type ServerConfig struct {
	// Queue is the queue group name; replicas of the service share it so
	// each command is handled by exactly one instance.
	Queue string
	// Timeout bounds the handling of a single command, including the
	// product validation round-trip and datastore writes.
	Timeout time.Duration
}

// Server dispatches NATS request/reply commands to registered handlers.
// Each inbound request is handled on its own goroutine; the server itself
// holds no per-request state.
type Server struct {
	conn     *nats.Conn
	cfg      ServerConfig
	lg       *zap.Logger
	tracer   trace.Tracer
	requests metric.Int64Counter

	handlers map[string]HandlerFunc
	subs     []*nats.Subscription
	wg       sync.WaitGroup
}

// NewServer creates a Server. Handlers are registered with Handle before
// calling Run.
func NewServer(
	conn *nats.Conn,
	cfg ServerConfig,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Server, error) {
	requests, err := mp.Meter("orders-service/bus").Int64Counter("rpc.server.requests",
		metric.WithDescription("Handled RPC commands"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create request counter")
	}

	return &Server{
		conn:     conn,
		cfg:      cfg,
		lg:       lg,
		tracer:   tp.Tracer("orders-service/bus"),
		requests: requests,
		handlers: make(map[string]HandlerFunc),
	}, nil
}

// Handle registers a handler for a command subject. Must be called before Run.
func (s *Server) Handle(subject string, h HandlerFunc) {
	s.handlers[subject] = h
}

// Run subscribes all registered handlers and blocks until the context is
// cancelled, then drains the subscriptions and waits for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	for subject, h := range s.handlers {
		sub, err := s.conn.QueueSubscribe(subject, s.cfg.Queue, func(msg *nats.Msg) {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.dispatch(ctx, subject, h, msg)
			}()
		})
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", subject)
		}
		s.subs = append(s.subs, sub)
	}
	if err := s.conn.Flush(); err != nil {
		return errors.Wrap(err, "flush subscriptions")
	}
	s.lg.Info("RPC server listening",
		zap.String("queue", s.cfg.Queue),
		zap.Int("commands", len(s.handlers)),
	)

	<-ctx.Done()

	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			s.lg.Warn("Drain subscription", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.wg.Wait()
	return nil
}

func (s *Server) dispatch(ctx context.Context, subject string, h HandlerFunc, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, subject, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	start := time.Now()
	resp, err := h(ctx, msg.Data)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		s.lg.Error("Command failed",
			zap.String("command", subject),
			zap.Error(err),
		)
		resp = internalErrorBody()
	}

	s.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", subject),
		attribute.String("outcome", outcome),
	))

	if msg.Reply != "" {
		if err := msg.Respond(resp); err != nil {
			s.lg.Error("Respond failed", zap.String("command", subject), zap.Error(err))
		}
	}

	s.lg.Debug("Command handled",
		zap.String("command", subject),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	)
}

// internalErrorBody is the reply for failures the handler did not encode
// itself. The detail stays in the server log.
func internalErrorBody() []byte {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("error")
	e.ObjStart()
	e.FieldStart("status")
	e.Int(500)
	e.FieldStart("message")
	e.Str("internal error")
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

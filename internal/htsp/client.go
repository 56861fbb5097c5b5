// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package htsp is a client for the Tvheadend HTSP protocol.
//
// A Client multiplexes request/response calls over one TCP connection. Each
// in-flight request owns a single-slot mailbox that the reader goroutine
// fills with the matching reply; the caller waits on it for at most the
// request timeout. Messages without a sequence number are asynchronous
// events and are handed to an EventHandler through a bounded buffer.
package htsp

import (
	"bufio"
	"context"
	"crypto/sha1" // #nosec G505 -- HTSP digest is defined as SHA-1
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/tvhgate/internal/deadline"
	xglog "github.com/ManuGH/tvhgate/internal/log"
	"github.com/ManuGH/tvhgate/internal/metrics"
	"github.com/ManuGH/tvhgate/internal/queue"
	"github.com/ManuGH/tvhgate/internal/resilience"
	"github.com/ManuGH/tvhgate/internal/telemetry"
)

// ProtocolVersion is the HTSP version announced in hello.
const ProtocolVersion = 34

const (
	defaultDialTimeout      = 5 * time.Second
	defaultRequestTimeout   = 10 * time.Second
	defaultEventBuffer      = 256
	defaultRateLimit        = 50
	defaultRateLimitBurst   = 100
	defaultBreakerThreshold = 3
	defaultBreakerReset     = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	Addr          string
	Username      string
	Password      string
	ClientName    string
	ClientVersion string

	DialTimeout    time.Duration
	RequestTimeout time.Duration

	// EventBuffer is the capacity of the asynchronous event queue.
	EventBuffer int
	// Handler receives asynchronous events. Nil discards them.
	Handler EventHandler

	RateLimit      rate.Limit
	RateLimitBurst int

	BreakerThreshold int
	BreakerReset     time.Duration

	Logger *zerolog.Logger
}

func normalizeOptions(opts Options) Options {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = defaultBreakerThreshold
	}
	if opts.BreakerReset <= 0 {
		opts.BreakerReset = defaultBreakerReset
	}
	if strings.TrimSpace(opts.ClientName) == "" {
		opts.ClientName = "tvhgate"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "dev"
	}
	return opts
}

// Client is one HTSP session.
type Client struct {
	opts      Options
	conn      net.Conn
	logger    zerolog.Logger
	sessionID string
	info      ServerInfo

	// writes must not interleave frames
	wmu sync.Mutex

	seq     atomic.Uint32
	pmu     sync.Mutex
	pending map[uint32]*queue.Bounded[Message]

	events  *queue.Bounded[Message]
	handler EventHandler

	runner  deadline.Runner[Message]
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	tracer  trace.Tracer

	// ctx lives as long as the connection; its cause is the terminal error.
	ctx       context.Context
	cancel    context.CancelCauseFunc
	group     errgroup.Group
	closeOnce sync.Once
}

// Dial connects, performs the hello handshake and authenticates when a
// username is configured.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts = normalizeOptions(opts)

	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Addr, errors.Join(ErrTransport, err))
	}

	c := newClient(conn, opts)
	c.start()

	if err := c.handshake(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	metrics.SetHTSPConnected(true)
	c.logger.Info().
		Str(xglog.FieldEvent, "htsp.connected").
		Str(xglog.FieldServer, opts.Addr).
		Str("server_name", c.info.Name).
		Str("server_version", c.info.Version).
		Int64("htsp_version", c.info.HTSPVersion).
		Msg("HTSP session established")
	return c, nil
}

func newClient(conn net.Conn, opts Options) *Client {
	sessionID := uuid.NewString()
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = xglog.WithComponent("htsp")
	}
	logger = logger.With().Str(xglog.FieldSessionID, sessionID).Logger()

	handler := opts.Handler
	if handler == nil {
		handler = EventHandlerFunc(func(context.Context, Message) {})
	}

	ctx := xglog.ContextWithSessionID(context.Background(), sessionID)
	ctx = logger.WithContext(ctx)
	ctx, cancel := context.WithCancelCause(ctx)

	return &Client{
		opts:      opts,
		conn:      conn,
		logger:    logger,
		sessionID: sessionID,
		pending:   make(map[uint32]*queue.Bounded[Message]),
		events:    queue.New[Message](opts.EventBuffer),
		handler:   handler,
		runner:    deadline.Runner[Message]{Timeout: opts.RequestTimeout, Name: "htsp_reply"},
		limiter:   rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		breaker: resilience.NewCircuitBreaker("htsp", opts.BreakerThreshold, opts.BreakerReset,
			resilience.WithFailureFilter(countsAsFailure)),
		tracer: telemetry.Tracer("tvhgate/htsp"),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) start() {
	c.group.Go(c.readLoop)
	c.group.Go(c.eventLoop)
}

func (c *Client) handshake(ctx context.Context) error {
	reply, err := c.Call(ctx, "hello", Message{
		"htspversion":   int64(ProtocolVersion),
		"clientname":    c.opts.ClientName,
		"clientversion": c.opts.ClientVersion,
	})
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	c.info.Name, _ = reply.Str("servername")
	c.info.Version, _ = reply.Str("serverversion")
	c.info.HTSPVersion, _ = reply.Int("htspversion")
	c.info.WebRoot, _ = reply.Str("webroot")
	if caps, ok := reply.List("servercapability"); ok {
		for _, v := range caps {
			if s, ok := v.(string); ok {
				c.info.Capabilities = append(c.info.Capabilities, s)
			}
		}
	}

	if c.opts.Username == "" {
		return nil
	}
	challenge, _ := reply.Bytes("challenge")
	if _, err := c.Call(ctx, "authenticate", Message{
		"username": c.opts.Username,
		"digest":   Digest(c.opts.Password, challenge),
	}); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	return nil
}

// Digest computes the HTSP authentication digest SHA-1(password || challenge).
func Digest(password string, challenge []byte) []byte {
	h := sha1.New() // #nosec G401 -- mandated by the protocol
	h.Write([]byte(password))
	h.Write(challenge)
	return h.Sum(nil)
}

// Info returns what the server announced during the handshake.
func (c *Client) Info() ServerInfo { return c.info }

// SessionID identifies this connection in logs.
func (c *Client) SessionID() string { return c.sessionID }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.ctx.Done() }

// Err returns the reason the connection ended, or nil while it is alive.
func (c *Client) Err() error {
	if c.ctx.Err() == nil {
		return nil
	}
	return context.Cause(c.ctx)
}

// Close tears down the connection and waits for the client's goroutines.
// Buffered events not yet handled are dropped. Close is idempotent.
func (c *Client) Close() error {
	c.shutdown(ErrClosed)
	err := c.group.Wait()
	if errors.Is(context.Cause(c.ctx), ErrClosed) {
		return nil
	}
	return err
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.cancel(cause)
		_ = c.conn.Close()
		metrics.SetHTSPConnected(false)
		if !errors.Is(cause, ErrClosed) {
			c.logger.Warn().
				Err(cause).
				Str(xglog.FieldEvent, "htsp.disconnected").
				Msg("HTSP connection lost")
		}
	})
}

// Call sends method with args and waits for the matching reply for at most
// the configured request timeout.
func (c *Client) Call(ctx context.Context, method string, args Message) (Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "htsp.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.HTSPCallAttributes(c.opts.Addr, method)...),
	)
	defer span.End()

	var reply Message
	err := c.breaker.Execute(func() error {
		var err error
		reply, err = c.roundTrip(ctx, span, method, args)
		return err
	})

	result := callResult(err)
	metrics.ObserveHTSPCall(method, result, time.Since(start))
	span.SetAttributes(attribute.String(telemetry.HTSPResultKey, result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		logger := xglog.WithContext(ctx, c.logger)
		logger.Debug().
			Err(err).
			Str(xglog.FieldEvent, "htsp.call_failed").
			Str(xglog.FieldMethod, method).
			Dur(xglog.FieldElapsed, time.Since(start)).
			Msg("HTSP call failed")
		return nil, err
	}
	return reply, nil
}

func (c *Client) roundTrip(ctx context.Context, span trace.Span, method string, args Message) (Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	seq := c.seq.Add(1)
	span.SetAttributes(attribute.Int64(telemetry.HTSPSeqKey, int64(seq)))

	req := make(Message, len(args)+2)
	for k, v := range args {
		req[k] = v
	}
	req["method"] = method
	req["seq"] = int64(seq)

	mailbox := queue.New[Message](1)
	c.pmu.Lock()
	if c.ctx.Err() != nil {
		c.pmu.Unlock()
		return nil, c.closedError(method, seq)
	}
	c.pending[seq] = mailbox
	c.pmu.Unlock()

	metrics.HTSPInFlight.Inc()
	defer metrics.HTSPInFlight.Dec()

	if err := c.write(req); err != nil {
		c.forget(seq)
		return nil, &CallError{Sentinel: ErrTransport, Method: method, Seq: seq, Err: err}
	}

	res, err := c.runner.Run(ctx, func() (Message, error) {
		return mailbox.DequeueContext(c.ctx)
	})
	if err != nil {
		c.forget(seq)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, c.closedError(method, seq)
	}
	if res.TimedOut {
		c.forget(seq)
		span.SetAttributes(attribute.Bool(telemetry.HTSPTimedOutKey, true))
		logger := xglog.WithContext(ctx, c.logger)
		logger.Warn().
			Str(xglog.FieldEvent, "htsp.no_response").
			Str(xglog.FieldMethod, method).
			Uint32(xglog.FieldSeq, seq).
			Dur(xglog.FieldTimeout, c.opts.RequestTimeout).
			Msg("server did not reply within deadline")
		return nil, &CallError{Sentinel: ErrNoResponse, Method: method, Seq: seq}
	}

	reply := res.Value
	if msg, ok := reply.Str("error"); ok {
		return nil, &CallError{Sentinel: ErrServer, Method: method, Seq: seq, Message: msg}
	}
	if denied, ok := reply.Int("noaccess"); ok && denied != 0 {
		return nil, &CallError{Sentinel: ErrAccessDenied, Method: method, Seq: seq}
	}
	return reply, nil
}

func (c *Client) closedError(method string, seq uint32) error {
	cause := context.Cause(c.ctx)
	if errors.Is(cause, ErrClosed) {
		cause = nil
	}
	return &CallError{Sentinel: ErrClosed, Method: method, Seq: seq, Err: cause}
}

// forget drops the mailbox of a request that stopped waiting. If the reply
// has not been dispatched yet, an empty message is posted so the abandoned
// dequeue returns instead of waiting for the connection to close.
func (c *Client) forget(seq uint32) {
	c.pmu.Lock()
	mailbox, ok := c.pending[seq]
	delete(c.pending, seq)
	c.pmu.Unlock()
	if ok {
		mailbox.TryEnqueue(nil)
	}
}

func (c *Client) write(m Message) error {
	frame, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout)); err != nil {
		return err
	}
	_, err = c.conn.Write(frame)
	return err
}

func (c *Client) readLoop() error {
	r := bufio.NewReader(c.conn)
	for {
		msg, err := ReadMessage(r)
		if err != nil {
			if c.ctx.Err() != nil {
				return nil
			}
			err = errors.Join(ErrTransport, err)
			c.shutdown(err)
			return err
		}
		c.dispatch(msg)
	}
}

// dispatch routes a reply to its mailbox, or an event to the event queue.
func (c *Client) dispatch(msg Message) {
	seq, ok := msg.Seq()
	if !ok {
		metrics.IncHTSPEvent(msg.Method())
		// Blocks while the handler is behind, which stops reading from the
		// socket and pushes back on the server.
		if err := c.events.EnqueueContext(c.ctx, msg); err == nil {
			metrics.HTSPEventQueueDepth.Set(float64(c.events.Len()))
		}
		return
	}

	c.pmu.Lock()
	mailbox, found := c.pending[seq]
	delete(c.pending, seq)
	c.pmu.Unlock()

	if !found {
		metrics.HTSPLateReplies.Inc()
		c.logger.Debug().
			Str(xglog.FieldEvent, "htsp.late_reply").
			Uint32(xglog.FieldSeq, seq).
			Msg("dropping reply for request that is no longer waiting")
		return
	}
	// Capacity 1 and exactly one reply per registered seq: never blocks.
	mailbox.Enqueue(msg)
}

func (c *Client) eventLoop() error {
	for {
		msg, err := c.events.DequeueContext(c.ctx)
		if err != nil {
			return nil
		}
		metrics.HTSPEventQueueDepth.Set(float64(c.events.Len()))
		c.handler.HandleEvent(c.ctx, msg)
	}
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoResponse):
		return "timeout"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrServer), errors.Is(err, ErrAccessDenied):
		return "server_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport_error"
	}
}

package grpcstream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/hostwatch/agent/internal/transport/wire"
)

// method is this pipeline's single bidirectional RPC, mirroring the
// one-stream-does-everything shape of the collector's
// sensor.CollectorService.Communicate this package is modeled on.
const method = "/hostwatch.agent.v1.AgentService/Communicate"

var streamDesc = &grpc.StreamDesc{
	StreamName:    "Communicate",
	ServerStreams: true,
	ClientStreams: true,
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// session wraps one live stream and the "has this stream died" signal
// any Send/Recv/Ack caller can trip.
type session struct {
	stream grpc.ClientStream

	sendMu sync.Mutex

	brokenOnce sync.Once
	broken     chan struct{}
}

func newSession(stream grpc.ClientStream) *session {
	return &session{stream: stream, broken: make(chan struct{})}
}

func (s *session) trip() {
	s.brokenOnce.Do(func() { close(s.broken) })
}

// Client implements transport.Transport over a reconnecting gRPC
// stream. Reconnection runs in its own goroutine (Run), started by the
// caller (cmd/hostwatch-agent) alongside the ingestion and reporter
// threads, with exponential back-off capped at 30s (spec §7 taxonomy
// item 2).
type Client struct {
	target   string
	dialOpts []grpc.DialOption

	mu   sync.Mutex
	conn *grpc.ClientConn
	sess *session

	ready atomic.Bool
}

// New creates a Client that will dial target when Run is started.
func New(target string, dialOpts ...grpc.DialOption) *Client {
	opts := append([]grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	}, dialOpts...)
	return &Client{target: target, dialOpts: opts}
}

// Run owns the connect/reconnect loop until ctx is cancelled,
// mirroring Service::Run's "WaitForChannelReady, then SessionLoop,
// then reconnect" shape.
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff
	for ctx.Err() == nil {
		sess, err := c.connect(ctx)
		if err != nil {
			log.Printf("grpcstream: connect to %s failed: %v", c.target, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		c.ready.Store(true)
		log.Printf("grpcstream: connected to %s", c.target)

		select {
		case <-sess.broken:
			c.ready.Store(false)
			log.Printf("grpcstream: stream to %s broken, reconnecting", c.target)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) connect(ctx context.Context) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := grpc.DialContext(ctx, c.target, c.dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		c.conn = conn
	}

	stream, err := c.conn.NewStream(ctx, streamDesc, method)
	if err != nil {
		return nil, fmt.Errorf("new stream: %w", err)
	}

	sess := newSession(stream)
	c.sess = sess
	return sess, nil
}

func (c *Client) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Ready implements transport.Transport.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Send implements transport.Transport.
func (c *Client) Send(ctx context.Context, msg *wire.UpdateMessage) error {
	sess := c.current()
	if sess == nil {
		return fmt.Errorf("grpcstream: not connected")
	}
	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()

	if err := sess.stream.SendMsg(msg); err != nil {
		sess.trip()
		return fmt.Errorf("grpcstream: send: %w", err)
	}
	return nil
}

// Recv implements transport.Transport.
func (c *Client) Recv(ctx context.Context) (*wire.ConfigMessage, error) {
	sess := c.current()
	if sess == nil {
		return nil, fmt.Errorf("grpcstream: not connected")
	}

	var msg wire.ConfigMessage
	if err := sess.stream.RecvMsg(&msg); err != nil {
		sess.trip()
		return nil, fmt.Errorf("grpcstream: recv: %w", err)
	}
	return &msg, nil
}

// Ack implements transport.Transport.
func (c *Client) Ack(ctx context.Context, configErr error) error {
	sess := c.current()
	if sess == nil {
		return fmt.Errorf("grpcstream: not connected")
	}
	ack := &ackPayload{}
	if configErr != nil {
		ack.ConfigError = configErr.Error()
	}

	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()

	if err := sess.stream.SendMsg(ack); err != nil {
		sess.trip()
		return fmt.Errorf("grpcstream: ack: %w", err)
	}
	return nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

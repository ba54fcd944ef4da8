package engine

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/esjclog"
	"github.com/michael-schnell/esjc/internal/proto"
)

// Dialer opens the underlying transport. Implementations of DialContext
// decide plaintext vs TLS; the engine only ever calls one of these per
// connect attempt.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext implements Dialer.
func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// DefaultDialer opens a plain TCP connection.
var DefaultDialer Dialer = DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
})

// TLSDialer wraps a Dialer so every connection it opens is then upgraded to
// TLS with cfg.
func TLSDialer(base Dialer, cfg *tls.Config) Dialer {
	return DialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		nc, err := base.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		tlsConn := tls.Client(nc, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, err
		}
		return tlsConn, nil
	})
}

// channel wraps one live net.Conn: a length-prefixed package reader loop
// feeding onPackage, a mutex-serialized writer, and a close observer invoked
// at most once with the reason the transport went away.
type channel struct {
	id   uuid.UUID
	conn net.Conn
	log  *esjclog.Logger

	onPackage func(proto.Package)
	onClosed  func(error)

	writeMu  sync.Mutex
	closeMu  sync.Mutex
	closed   bool
	closedCh chan struct{}
}

func newChannel(conn net.Conn, log *esjclog.Logger, onPackage func(proto.Package), onClosed func(error)) *channel {
	return &channel{
		id:        uuid.New(),
		conn:      conn,
		log:       log,
		onPackage: onPackage,
		onClosed:  onClosed,
		closedCh:  make(chan struct{}),
	}
}

// ID implements operations.Channel and subscriptions.Channel.
func (c *channel) ID() uuid.UUID { return c.id }

// Write implements operations.Channel and subscriptions.Channel.
func (c *channel) Write(pkg proto.Package) error {
	body, err := proto.Encode(pkg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return proto.WriteFrame(c.conn, body)
}

// readLoop reads framed packages off the connection until it errors or
// close is called, then invokes onClosed exactly once.
func (c *channel) readLoop() {
	for {
		body, err := proto.ReadFrame(c.conn)
		if err != nil {
			c.fail(err)
			return
		}
		pkg, err := proto.Decode(body)
		if err != nil {
			c.fail(err)
			return
		}
		c.onPackage(pkg)
	}
}

func (c *channel) fail(err error) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	close(c.closedCh)
	c.closeMu.Unlock()

	c.conn.Close()
	if c.onClosed != nil {
		c.onClosed(err)
	}
}

// close tears the transport down from the engine side, waiting up to
// timeout for the read loop to notice and unwind.
func (c *channel) close(timeout time.Duration) {
	c.closeMu.Lock()
	alreadyClosed := c.closed
	c.closeMu.Unlock()
	if alreadyClosed {
		return
	}

	c.conn.SetReadDeadline(time.Now())
	c.conn.Close()

	select {
	case <-c.closedCh:
	case <-time.After(timeout):
	}
}

package engine

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/michael-schnell/esjc/internal/proto"
)

// localPipe returns a connected pair of net.Conns over a real loopback
// socket, grounded on nettest.NewLocalListener's dial-the-listener-you-just-
// opened pattern (used in place of net.Pipe since the channel relies on
// SetReadDeadline, which net.Pipe's in-memory conn never implemented).
func localPipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		accepted <- c
	}()

	client, err = net.Dial(ln.Addr().Network(), ln.Addr().String())
	require.NoError(t, err)

	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	return client, server
}

func TestChannelWriteIsReadableOnThePeer(t *testing.T) {
	client, server := localPipe(t)
	defer client.Close()
	defer server.Close()

	ch := newChannel(client, nil, func(proto.Package) {}, func(error) {})

	pkg := proto.NewPackage(0x30, []byte("payload"), nil)
	require.NoError(t, ch.Write(pkg))

	body, err := proto.ReadFrame(server)
	require.NoError(t, err)

	got, err := proto.Decode(body)
	require.NoError(t, err)
	require.Equal(t, pkg.Command, got.Command)
	require.Equal(t, pkg.Payload, got.Payload)
}

func TestChannelReadLoopDeliversInboundPackages(t *testing.T) {
	client, server := localPipe(t)
	defer client.Close()
	defer server.Close()

	received := make(chan proto.Package, 1)
	ch := newChannel(client, nil, func(p proto.Package) { received <- p }, func(error) {})
	go ch.readLoop()

	pkg := proto.NewPackage(proto.CommandHeartbeatRequest, nil, nil)
	body, err := proto.Encode(pkg)
	require.NoError(t, err)
	require.NoError(t, proto.WriteFrame(server, body))

	select {
	case got := <-received:
		require.Equal(t, pkg.Command, got.Command)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound package")
	}
}

func TestChannelCloseUnblocksReadLoop(t *testing.T) {
	client, server := localPipe(t)
	defer server.Close()

	closed := make(chan error, 1)
	ch := newChannel(client, nil, func(proto.Package) {}, func(err error) { closed <- err })
	go ch.readLoop()

	ch.close(time.Second)

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for onClosed")
	}
}

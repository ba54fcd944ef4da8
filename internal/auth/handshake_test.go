package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/michael-schnell/esjc/internal/proto"
)

func TestHandshakeIgnoredWithoutCredentials(t *testing.T) {
	h := New(nil, time.Second, func(proto.Package) error { return nil })
	done, _, sent := h.Start()
	require.False(t, sent)
	require.Equal(t, Ignored, <-done)
}

func TestHandshakeSuccess(t *testing.T) {
	h := New(&proto.Credentials{Login: "u", Password: "p"}, time.Second, func(proto.Package) error { return nil })
	done, req, sent := h.Start()
	require.True(t, sent)

	h.Respond(proto.Package{Command: proto.CommandAuthenticated, CorrelationID: req.CorrelationID})
	require.Equal(t, Success, <-done)
}

func TestHandshakeFailure(t *testing.T) {
	h := New(&proto.Credentials{Login: "u", Password: "wrong"}, time.Second, func(proto.Package) error { return nil })
	done, req, _ := h.Start()

	h.Respond(proto.Package{Command: proto.CommandNotAuthenticated, CorrelationID: req.CorrelationID})
	require.Equal(t, Failed, <-done)
}

func TestHandshakeTimeout(t *testing.T) {
	h := New(&proto.Credentials{Login: "u", Password: "p"}, 10*time.Millisecond, func(proto.Package) error { return nil })
	done, _, _ := h.Start()

	require.Equal(t, Timeout, <-done)
}

func TestHandshakeSendFailure(t *testing.T) {
	h := New(&proto.Credentials{Login: "u", Password: "p"}, time.Second, func(proto.Package) error {
		return errors.New("boom")
	})
	done, _, _ := h.Start()
	require.Equal(t, Failed, <-done)
}

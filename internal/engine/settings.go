package engine

import (
	"crypto/tls"
	"time"

	"github.com/michael-schnell/esjc/internal/discovery"
	"github.com/michael-schnell/esjc/internal/esjclog"
	"github.com/michael-schnell/esjc/internal/proto"
	"github.com/michael-schnell/esjc/internal/tasks"
)

// TCPSettings groups the transport-level knobs.
type TCPSettings struct {
	KeepAlive      time.Duration
	NoDelay        bool
	SendBufferSize int
	RecvBufferSize int
	ConnectTimeout time.Duration
	CloseTimeout   time.Duration
}

// TLSSettings groups the TLS knobs.
type TLSSettings struct {
	Enabled            bool
	ValidateServerCert bool
	ExpectedCommonName string
	Config             *tls.Config
}

// Settings is the full set of recognized engine knobs.
type Settings struct {
	OperationTimeout             time.Duration
	OperationTimeoutCheckInterval time.Duration
	ReconnectionDelay            time.Duration
	MaxReconnections             int
	MaxOperationRetries          int
	MaxOperationQueueSize        int
	MaxConcurrentOperations      int
	HeartbeatInterval            time.Duration
	HeartbeatTimeout             time.Duration
	RequireMaster                bool

	TCP TCPSettings
	SSL TLSSettings

	UserCredentials *proto.Credentials
	Executor        func(func())

	Discoverer discovery.Discoverer
	Dialer     Dialer
	Log        *esjclog.Logger
}

// DefaultSettings returns the knob values used when a caller supplies none.
func DefaultSettings() Settings {
	return Settings{
		OperationTimeout:              7 * time.Second,
		OperationTimeoutCheckInterval: 1 * time.Second,
		ReconnectionDelay:             200 * time.Millisecond,
		MaxReconnections:              10,
		MaxOperationRetries:           10,
		MaxOperationQueueSize:         5000,
		MaxConcurrentOperations:       5000,
		HeartbeatInterval:             750 * time.Millisecond,
		HeartbeatTimeout:              1500 * time.Millisecond,
		TCP: TCPSettings{
			NoDelay:        true,
			ConnectTimeout: 5 * time.Second,
			CloseTimeout:   1 * time.Second,
		},
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.OperationTimeout <= 0 {
		s.OperationTimeout = def.OperationTimeout
	}
	if s.OperationTimeoutCheckInterval <= 0 {
		s.OperationTimeoutCheckInterval = def.OperationTimeoutCheckInterval
	}
	if s.ReconnectionDelay <= 0 {
		s.ReconnectionDelay = def.ReconnectionDelay
	}
	if s.MaxOperationQueueSize <= 0 {
		s.MaxOperationQueueSize = def.MaxOperationQueueSize
	}
	if s.MaxConcurrentOperations <= 0 {
		s.MaxConcurrentOperations = def.MaxConcurrentOperations
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = def.HeartbeatInterval
	}
	if s.HeartbeatTimeout <= 0 {
		s.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if s.TCP.ConnectTimeout <= 0 {
		s.TCP.ConnectTimeout = def.TCP.ConnectTimeout
	}
	if s.TCP.CloseTimeout <= 0 {
		s.TCP.CloseTimeout = def.TCP.CloseTimeout
	}
	if s.Dialer == nil {
		s.Dialer = DefaultDialer
	}
	if s.Log == nil {
		s.Log = esjclog.Discard()
	}
	return s
}

// pickEndpoint chooses the secure address when TLS is enabled and present,
// falling back to plaintext; reports false if neither is usable.
func (s Settings) pickEndpoint(endpoints tasks.NodeEndpoints) (address string, secure bool, ok bool) {
	if s.SSL.Enabled && endpoints.SecureTCP != "" {
		return endpoints.SecureTCP, true, true
	}
	if endpoints.TCP != "" {
		return endpoints.TCP, false, true
	}
	return "", false, false
}

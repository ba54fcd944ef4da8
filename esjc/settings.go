package esjc

import (
	"crypto/tls"
	"time"

	"github.com/michael-schnell/esjc/internal/discovery"
	"github.com/michael-schnell/esjc/internal/engine"
	"github.com/michael-schnell/esjc/internal/esjclog"
	"github.com/michael-schnell/esjc/internal/proto"
	"github.com/michael-schnell/esjc/internal/tasks"
)

// Settings holds every recognized connection knob (§3, §6). Built through
// SettingsBuilder's Set* accumulator-function style, matching the teacher's
// options-builder shape.
type Settings struct {
	OperationTimeout              time.Duration
	OperationTimeoutCheckInterval time.Duration
	ReconnectionDelay             time.Duration
	MaxReconnections              int
	MaxOperationRetries           int
	MaxOperationQueueSize         int
	MaxConcurrentOperations       int
	HeartbeatInterval             time.Duration
	HeartbeatTimeout              time.Duration
	RequireMaster                 bool

	TCPKeepAlive      time.Duration
	TCPNoDelay        bool
	TCPSendBufferSize int
	TCPRecvBufferSize int
	TCPConnectTimeout time.Duration
	TCPCloseTimeout   time.Duration

	SSLEnabled            bool
	SSLValidateServerCert bool
	SSLExpectedCommonName string
	TLSConfig             *tls.Config

	DefaultUserCredentials *UserCredentials
	Executor               func(func())
	Codec                  Codec

	Discoverer discovery.Discoverer
	Log        *esjclog.Logger
}

// UserCredentials is the login/password pair presented at the
// authentication handshake (§4.7).
type UserCredentials struct {
	Username string
	Password string
}

func (c *UserCredentials) toProto() *proto.Credentials {
	if c == nil {
		return nil
	}
	return &proto.Credentials{Login: c.Username, Password: c.Password}
}

// SettingsBuilder accumulates Set* calls into a Settings value, mirroring
// the teacher's CountOptionsBuilder/ArgsSetters accumulator shape.
type SettingsBuilder struct {
	opts []func(*Settings)
}

// Create starts a new SettingsBuilder at the package defaults.
func Create() *SettingsBuilder { return &SettingsBuilder{} }

func (b *SettingsBuilder) set(f func(*Settings)) *SettingsBuilder {
	b.opts = append(b.opts, f)
	return b
}

// SetOperationTimeout sets the per-attempt deadline for one-shot operations.
func (b *SettingsBuilder) SetOperationTimeout(d time.Duration) *SettingsBuilder {
	return b.set(func(s *Settings) { s.OperationTimeout = d })
}

// SetOperationTimeoutCheckPeriod sets the minimum interval between timeout
// sweeps.
func (b *SettingsBuilder) SetOperationTimeoutCheckPeriod(d time.Duration) *SettingsBuilder {
	return b.set(func(s *Settings) { s.OperationTimeoutCheckInterval = d })
}

// SetReconnectionDelayOnError sets the delay between reconnection attempts.
func (b *SettingsBuilder) SetReconnectionDelayOnError(d time.Duration) *SettingsBuilder {
	return b.set(func(s *Settings) { s.ReconnectionDelay = d })
}

// SetMaxReconnections sets the reconnection attempt bound (-1 = unbounded).
func (b *SettingsBuilder) SetMaxReconnections(n int) *SettingsBuilder {
	return b.set(func(s *Settings) { s.MaxReconnections = n })
}

// SetMaxRetries sets the per-operation and per-subscription retry budget.
func (b *SettingsBuilder) SetMaxRetries(n int) *SettingsBuilder {
	return b.set(func(s *Settings) { s.MaxOperationRetries = n })
}

// SetMaxOperationQueueSize sets the admission spin-wait bound (§4.9).
func (b *SettingsBuilder) SetMaxOperationQueueSize(n int) *SettingsBuilder {
	return b.set(func(s *Settings) { s.MaxOperationQueueSize = n })
}

// SetMaxConcurrentItems sets the operation manager's active-set capacity.
func (b *SettingsBuilder) SetMaxConcurrentItems(n int) *SettingsBuilder {
	return b.set(func(s *Settings) { s.MaxConcurrentOperations = n })
}

// SetHeartbeatInterval sets the read-idle interval before a heartbeat
// request is sent.
func (b *SettingsBuilder) SetHeartbeatInterval(d time.Duration) *SettingsBuilder {
	return b.set(func(s *Settings) { s.HeartbeatInterval = d })
}

// SetHeartbeatTimeout sets how long a heartbeat request may go unanswered
// before the channel is declared dead.
func (b *SettingsBuilder) SetHeartbeatTimeout(d time.Duration) *SettingsBuilder {
	return b.set(func(s *Settings) { s.HeartbeatTimeout = d })
}

// SetRequireMaster sets whether operations must target the cluster's write
// master.
func (b *SettingsBuilder) SetRequireMaster(v bool) *SettingsBuilder {
	return b.set(func(s *Settings) { s.RequireMaster = v })
}

// SetTCPKeepAlive records the TCP keep-alive period in the settings. The
// engine's dialers do not apply it; sockets keep the net package default.
func (b *SettingsBuilder) SetTCPKeepAlive(d time.Duration) *SettingsBuilder {
	return b.set(func(s *Settings) { s.TCPKeepAlive = d })
}

// SetTCPBufferSizes records the socket send/receive buffer sizes in the
// settings. The engine's dialers do not apply them; sockets keep the OS
// default sizes.
func (b *SettingsBuilder) SetTCPBufferSizes(send, recv int) *SettingsBuilder {
	return b.set(func(s *Settings) {
		s.TCPSendBufferSize = send
		s.TCPRecvBufferSize = recv
	})
}

// SetConnectTimeout sets the per-attempt dial deadline.
func (b *SettingsBuilder) SetConnectTimeout(d time.Duration) *SettingsBuilder {
	return b.set(func(s *Settings) { s.TCPConnectTimeout = d })
}

// SetDefaultUserCredentials sets the credentials presented at every
// connection's authentication handshake.
func (b *SettingsBuilder) SetDefaultUserCredentials(c *UserCredentials) *SettingsBuilder {
	return b.set(func(s *Settings) { s.DefaultUserCredentials = c })
}

// UseSslConnection enables TLS, optionally validating the server
// certificate's common name.
func (b *SettingsBuilder) UseSslConnection(validateServerCert bool, cfg *tls.Config) *SettingsBuilder {
	return b.set(func(s *Settings) {
		s.SSLEnabled = true
		s.SSLValidateServerCert = validateServerCert
		s.TLSConfig = cfg
	})
}

// SetExpectedCommonName sets the server certificate common name TLS
// validation expects.
func (b *SettingsBuilder) SetExpectedCommonName(cn string) *SettingsBuilder {
	return b.set(func(s *Settings) { s.SSLExpectedCommonName = cn })
}

// SetExecutor sets the callback dispatcher for listener notifications.
// Defaults to spawning a goroutine per callback. Future completions do not
// go through it.
func (b *SettingsBuilder) SetExecutor(exec func(func())) *SettingsBuilder {
	return b.set(func(s *Settings) { s.Executor = exec })
}

// SetCodec overrides the payload codec used to encode/decode operation and
// subscription payloads. Defaults to DefaultCodec (JSON).
func (b *SettingsBuilder) SetCodec(c Codec) *SettingsBuilder {
	return b.set(func(s *Settings) { s.Codec = c })
}

// SetClusterDiscoverer overrides endpoint discovery with a custom
// discovery.Discoverer (static list, DNS/gossip cluster, or a test double).
func (b *SettingsBuilder) SetClusterDiscoverer(d discovery.Discoverer) *SettingsBuilder {
	return b.set(func(s *Settings) { s.Discoverer = d })
}

// SetLog overrides the structured logger. Defaults to discarding all
// output.
func (b *SettingsBuilder) SetLog(log *esjclog.Logger) *SettingsBuilder {
	return b.set(func(s *Settings) { s.Log = log })
}

// Build applies every accumulated setter over the package defaults and
// returns the resulting Settings.
func (b *SettingsBuilder) Build() Settings {
	s := defaultSettings()
	for _, f := range b.opts {
		f(&s)
	}
	return s
}

func defaultSettings() Settings {
	def := engine.DefaultSettings()
	return Settings{
		OperationTimeout:              def.OperationTimeout,
		OperationTimeoutCheckInterval: def.OperationTimeoutCheckInterval,
		ReconnectionDelay:             def.ReconnectionDelay,
		MaxReconnections:              def.MaxReconnections,
		MaxOperationRetries:           def.MaxOperationRetries,
		MaxOperationQueueSize:         def.MaxOperationQueueSize,
		MaxConcurrentOperations:       def.MaxConcurrentOperations,
		HeartbeatInterval:             def.HeartbeatInterval,
		HeartbeatTimeout:              def.HeartbeatTimeout,
		TCPNoDelay:                    def.TCP.NoDelay,
		TCPConnectTimeout:             def.TCP.ConnectTimeout,
		TCPCloseTimeout:               def.TCP.CloseTimeout,
		Codec:                         DefaultCodec,
	}
}

func (s Settings) toEngineSettings(dialer engine.Dialer) engine.Settings {
	es := engine.Settings{
		OperationTimeout:              s.OperationTimeout,
		OperationTimeoutCheckInterval: s.OperationTimeoutCheckInterval,
		ReconnectionDelay:             s.ReconnectionDelay,
		MaxReconnections:              s.MaxReconnections,
		MaxOperationRetries:           s.MaxOperationRetries,
		MaxOperationQueueSize:         s.MaxOperationQueueSize,
		MaxConcurrentOperations:       s.MaxConcurrentOperations,
		HeartbeatInterval:             s.HeartbeatInterval,
		HeartbeatTimeout:              s.HeartbeatTimeout,
		RequireMaster:                 s.RequireMaster,
		TCP: engine.TCPSettings{
			KeepAlive:      s.TCPKeepAlive,
			NoDelay:        s.TCPNoDelay,
			SendBufferSize: s.TCPSendBufferSize,
			RecvBufferSize: s.TCPRecvBufferSize,
			ConnectTimeout: s.TCPConnectTimeout,
			CloseTimeout:   s.TCPCloseTimeout,
		},
		SSL: engine.TLSSettings{
			Enabled:            s.SSLEnabled,
			ValidateServerCert: s.SSLValidateServerCert,
			ExpectedCommonName: s.SSLExpectedCommonName,
			Config:             s.TLSConfig,
		},
		UserCredentials: s.DefaultUserCredentials.toProto(),
		Executor:        s.Executor,
		Discoverer:      s.Discoverer,
		Log:             s.Log,
	}
	if dialer != nil {
		es.Dialer = dialer
	}
	return es
}

// StaticEndpoint builds a discoverer that always offers the given
// plaintext/secure address pair, for single-node deployments.
func StaticEndpoint(tcpAddr, secureTCPAddr string) discovery.Discoverer {
	return discovery.NewStatic(tasks.NodeEndpoints{TCP: tcpAddr, SecureTCP: secureTCPAddr})
}

// ClusterEndpoint builds a DNS/gossip cluster discoverer, resolving seeds
// via seeds and polling each one's gossip endpoint via gossip.
func ClusterEndpoint(clusterDNS string, gossipPort, maxDiscoverAttempts int, seeds discovery.SeedResolver, gossip discovery.GossipClient) discovery.Discoverer {
	return discovery.NewCluster(clusterDNS, gossipPort, maxDiscoverAttempts, seeds, gossip)
}

package engine

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/michael-schnell/esjc/internal/auth"
	"github.com/michael-schnell/esjc/internal/esjclog"
	"github.com/michael-schnell/esjc/internal/esjcerr"
	"github.com/michael-schnell/esjc/internal/heartbeat"
	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
	"github.com/michael-schnell/esjc/internal/subscriptions"
	"github.com/michael-schnell/esjc/internal/tasks"
)

const tickerPeriod = 200 * time.Millisecond

// Engine is the connection state machine: it owns the active channel, the
// connecting phase, the reconnection clock, and the operation/subscription
// managers, and is driven entirely by tasks dequeued on its own control
// goroutine.
type Engine struct {
	settings Settings
	log      *esjclog.Logger
	exec     func(func())

	q         *tasks.Queue
	ops       *operations.Manager
	subs      *subscriptions.Manager
	listeners listenerSet

	mu                        sync.Mutex
	phase                     ConnectingPhase
	closed                    bool
	channel                   *channel
	channelAddress            string
	pendingChannel            *channel
	pendingAddress            string
	handshake                 *auth.Handshake
	hb                        *heartbeat.Monitor
	reconnectAttempt          int
	reconnectLastTouch        time.Time
	lastOperationTimeoutCheck time.Time
	discoveryEpoch            uint64
	lastFailedEndpoint        *tasks.NodeEndpoints
	connectDone               chan error

	tickerStop     chan struct{}
	stopTickerOnce sync.Once
}

// New builds an Engine from settings, registering every task handler. Call
// Start to begin running its control loop and reconnection ticker.
func New(settings Settings) *Engine {
	s := settings.withDefaults()
	exec := s.Executor
	if exec == nil {
		exec = func(f func()) { go f() }
	}

	e := &Engine{
		settings: s,
		log:      s.Log,
		exec:     exec,
		phase:    PhaseInvalid,
	}
	e.q = tasks.New(512)
	e.ops = operations.NewManager(s.MaxConcurrentOperations, e.onReconnectHint, s.Log)
	e.subs = subscriptions.NewManager(subscriptions.Executor(exec), s.Log)
	e.registerHandlers()
	return e
}

// Start spawns the control loop and the 200ms reconnection/timeout ticker.
func (e *Engine) Start() {
	e.tickerStop = make(chan struct{})
	go e.q.Run()
	go e.runTicker()
}

func (e *Engine) runTicker() {
	ticker := time.NewTicker(tickerPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.q.Enqueue(tasks.Tick{})
		case <-e.tickerStop:
			return
		}
	}
}

func (e *Engine) registerHandlers() {
	tasks.Register(e.q, e.handleStartConnection)
	tasks.Register(e.q, e.handleCloseConnection)
	tasks.Register(e.q, e.handleEstablishTCPConnection)
	tasks.Register(e.q, e.handleTCPConnectionEstablished)
	tasks.Register(e.q, e.handleTCPConnectionClosed)
	tasks.Register(e.q, e.handleAuthenticationCompleted)
	tasks.Register(e.q, e.handleReconnectTo)
	tasks.Register(e.q, e.handleTick)
	tasks.Register(e.q, e.handleStartOperation)
	tasks.Register(e.q, e.handleStartSubscription)
	tasks.Register(e.q, e.handleStartPersistentSubscription)
	tasks.Register(e.q, e.handlePackageInbound)
	tasks.Register(e.q, e.handleDiscoveryCompleted)
}

// AddListener registers l for lifecycle notifications.
func (e *Engine) AddListener(l Listener) { e.listeners.Add(l) }

// RemoveListener unregisters l.
func (e *Engine) RemoveListener(l Listener) { e.listeners.Remove(l) }

func (e *Engine) emit(fn func(Listener)) {
	e.listeners.each(e.exec, fn)
}

// State reports the coarse connection state.
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coarseStateLocked()
}

func (e *Engine) coarseStateLocked() ConnectionState {
	switch {
	case e.closed:
		return StateClosed
	case e.phase == PhaseConnected:
		return StateConnected
	case e.phase == PhaseInvalid:
		return StateInit
	default:
		return StateConnecting
	}
}

// OperationCounts exposes the operation manager's active/waiting counts for
// the facade's admission control.
func (e *Engine) OperationCounts() (active, waiting int) { return e.ops.Counts() }

// Connect starts (or reports the status of) a single connection attempt.
// The returned error is ctx.Err() if ctx ends first; any other non-nil
// error is an *esjcerr.Error.
func (e *Engine) Connect(ctx context.Context) error {
	done := make(chan error, 1)
	e.q.Enqueue(tasks.StartConnection{Done: done})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the connection down permanently.
func (e *Engine) Close(reason string) {
	e.q.Enqueue(tasks.CloseConnection{Reason: reason})
}

// SubmitOperation admits a one-shot operation.
func (e *Engine) SubmitOperation(item *operations.Item) {
	e.q.Enqueue(startOperation{Item: item})
}

// SubmitSubscription admits a volatile subscription.
func (e *Engine) SubmitSubscription(item *subscriptions.Item) {
	e.q.Enqueue(startSubscription{Item: item})
}

// SubmitPersistentSubscription admits a persistent subscription.
func (e *Engine) SubmitPersistentSubscription(item *subscriptions.Item) {
	e.q.Enqueue(startPersistentSubscription{Item: item})
}

// WriteOnActiveChannel writes pkg on the currently connected channel, used
// for fire-and-forget protocol messages that aren't modeled as an Operation
// (persistent-subscription ack/nak). Returns esjcerr.KindNoConnection if no
// channel is currently connected.
func (e *Engine) WriteOnActiveChannel(pkg proto.Package) error {
	e.mu.Lock()
	ch := e.channel
	e.mu.Unlock()
	if ch == nil {
		return esjcerr.New(esjcerr.KindNoConnection, "no connection")
	}
	return ch.Write(pkg)
}

// --- task handlers (all run on the control goroutine) ---

func (e *Engine) handleStartConnection(t tasks.StartConnection) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		t.Done <- esjcerr.New(esjcerr.KindConnectionClosed, "closed")
		return
	}
	if e.phase != PhaseInvalid {
		e.mu.Unlock()
		t.Done <- esjcerr.New(esjcerr.KindInvalidArgument, "connection already active")
		return
	}
	e.connectDone = t.Done
	e.phase = PhaseReconnecting
	e.reconnectLastTouch = time.Now()
	e.mu.Unlock()

	e.enterEndpointDiscovery()
}

func (e *Engine) handleTick(tasks.Tick) {
	e.mu.Lock()
	closed := e.closed
	phase := e.phase
	e.mu.Unlock()
	if closed {
		return
	}

	if phase == PhaseReconnecting {
		e.mu.Lock()
		elapsed := time.Since(e.reconnectLastTouch)
		e.mu.Unlock()
		if elapsed > e.settings.ReconnectionDelay {
			e.mu.Lock()
			e.reconnectAttempt++
			attempt := e.reconnectAttempt
			e.mu.Unlock()

			if e.settings.MaxReconnections >= 0 && attempt > e.settings.MaxReconnections {
				e.enqueueClose("reconnection limit reached", nil)
			} else {
				e.emit(func(l Listener) { l.ClientReconnecting() })
				e.enterEndpointDiscovery()
			}
		}
	}

	if phase == PhaseConnected {
		e.mu.Lock()
		due := time.Since(e.lastOperationTimeoutCheck) > e.settings.OperationTimeoutCheckInterval
		if due {
			e.lastOperationTimeoutCheck = time.Now()
		}
		e.mu.Unlock()
		if due {
			e.checkOperationTimeout()
		}
	}
}

// enterEndpointDiscovery moves a RECONNECTING attempt into ENDPOINT_DISCOVERY
// and resolves the next candidate endpoint off the control goroutine.
func (e *Engine) enterEndpointDiscovery() {
	e.mu.Lock()
	if e.phase != PhaseReconnecting {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseEndpointDiscovery
	e.discoveryEpoch++
	epoch := e.discoveryEpoch
	failed := e.lastFailedEndpoint
	discoverer := e.settings.Discoverer
	e.mu.Unlock()

	if discoverer == nil {
		e.q.Enqueue(discoveryCompleted{Epoch: epoch, Err: esjcerr.New(esjcerr.KindCannotEstablishConnection, "no discoverer configured")})
		return
	}

	go func() {
		endpoints, err := discoverer.Discover(context.Background(), failed)
		e.q.Enqueue(discoveryCompleted{Epoch: epoch, Endpoints: endpoints, Err: err})
	}()
}

func (e *Engine) handleDiscoveryCompleted(t discoveryCompleted) {
	e.mu.Lock()
	stale := t.Epoch != e.discoveryEpoch
	e.mu.Unlock()
	if stale {
		return
	}

	if t.Err != nil {
		e.retryAfterAttemptFailure("", esjcerr.Wrap(esjcerr.KindCannotEstablishConnection, "endpoint discovery failed", t.Err))
		return
	}
	e.q.Enqueue(tasks.EstablishTCPConnection{Endpoints: t.Endpoints})
}

// retryAfterAttemptFailure implements closeTcpConnection for an attempt
// that never reached a live channel (dial failure): it tears down the
// pending attempt state and returns the engine to RECONNECTING so the
// ticker schedules the next attempt, bounded by maxReconnections. It never
// fails the pending connect future itself -- only a terminal
// CloseConnection (issued by the ticker once the reconnection limit is
// exceeded) does that.
func (e *Engine) retryAfterAttemptFailure(failedAddress string, cause error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if failedAddress == "" {
		failedAddress = e.pendingAddress
	}
	e.pendingChannel = nil
	e.pendingAddress = ""
	e.phase = PhaseReconnecting
	e.reconnectLastTouch = time.Now()
	if failedAddress != "" {
		e.lastFailedEndpoint = &tasks.NodeEndpoints{TCP: failedAddress}
	}
	e.mu.Unlock()

	if cause != nil {
		e.log.Warn("engine: connection attempt failed, will retry", "error", cause)
	}
}

func (e *Engine) handleEstablishTCPConnection(t tasks.EstablishTCPConnection) {
	e.mu.Lock()
	if e.closed || e.phase != PhaseEndpointDiscovery {
		e.mu.Unlock()
		return
	}
	address, secure, ok := e.settings.pickEndpoint(t.Endpoints)
	if !ok {
		e.mu.Unlock()
		e.enqueueClose("no usable endpoint for current TLS setting", nil)
		return
	}
	e.phase = PhaseConnectionEstablishing
	epoch := e.discoveryEpoch
	e.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.settings.TCP.ConnectTimeout)
		defer cancel()
		dialer := e.settings.Dialer
		if secure {
			cfg := e.settings.SSL.Config
			if cfg == nil {
				serverName := e.settings.SSL.ExpectedCommonName
				if serverName == "" {
					serverName, _, _ = net.SplitHostPort(address)
				}
				cfg = &tls.Config{ServerName: serverName, InsecureSkipVerify: !e.settings.SSL.ValidateServerCert}
			}
			dialer = TLSDialer(dialer, cfg)
		}
		conn, err := dialer.DialContext(ctx, "tcp", address)

		e.mu.Lock()
		if epoch != e.discoveryEpoch {
			e.mu.Unlock()
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			e.mu.Unlock()
			e.retryAfterAttemptFailure(address, err)
			return
		}
		ch := newChannel(conn, e.log, e.onPackageFromChannel, e.onChannelClosed)
		e.pendingChannel = ch
		e.pendingAddress = address
		e.mu.Unlock()

		e.q.Enqueue(tasks.TCPConnectionEstablished{ChannelID: ch.ID()})
	}()
}

func (e *Engine) handleTCPConnectionEstablished(t tasks.TCPConnectionEstablished) {
	e.mu.Lock()
	ch := e.pendingChannel
	address := e.pendingAddress
	ok := ch != nil && ch.ID() == t.ChannelID && e.phase == PhaseConnectionEstablishing && !e.closed
	if ok {
		e.pendingChannel = nil
		e.channel = ch
		e.channelAddress = address
		e.phase = PhaseAuthentication
	}
	e.mu.Unlock()
	if !ok {
		if ch != nil {
			ch.close(0)
		}
		return
	}

	go ch.readLoop()
	e.startAuthentication(ch)
}

func (e *Engine) startAuthentication(ch *channel) {
	hs := auth.New(e.settings.UserCredentials, e.settings.OperationTimeout, func(pkg proto.Package) error {
		return ch.Write(pkg)
	})
	e.mu.Lock()
	e.handshake = hs
	e.mu.Unlock()

	done, _, _ := hs.Start()
	go func() {
		status := <-done
		e.q.Enqueue(tasks.AuthenticationCompleted{ChannelID: ch.ID(), Status: mapAuthStatus(status)})
	}()
}

func mapAuthStatus(s auth.Status) tasks.AuthStatus {
	switch s {
	case auth.Success:
		return tasks.AuthSuccess
	case auth.Failed:
		return tasks.AuthFailed
	case auth.Timeout:
		return tasks.AuthTimeout
	default:
		return tasks.AuthIgnored
	}
}

func (e *Engine) handleAuthenticationCompleted(t tasks.AuthenticationCompleted) {
	e.mu.Lock()
	current := e.channel != nil && e.channel.ID() == t.ChannelID && e.phase == PhaseAuthentication
	address := e.channelAddress
	e.mu.Unlock()
	if !current {
		return
	}

	switch t.Status {
	case tasks.AuthSuccess, tasks.AuthIgnored:
		e.gotoConnectedPhase(address)
	default:
		e.emit(func(l Listener) { l.AuthenticationFailed() })
		// Closing the channel (not the connection) sends the engine back
		// through handleTCPConnectionClosed into another attempt.
		e.mu.Lock()
		ch := e.channel
		e.mu.Unlock()
		ch.close(e.settings.TCP.CloseTimeout)
	}
}

func (e *Engine) gotoConnectedPhase(remote string) {
	e.mu.Lock()
	e.phase = PhaseConnected
	e.reconnectAttempt = 0
	e.lastOperationTimeoutCheck = time.Now()
	ch := e.channel
	e.mu.Unlock()

	e.startHeartbeat(ch)
	e.ops.ScheduleWaiting(ch)
	e.subs.ScheduleWaiting(ch)
	e.checkOperationTimeout()
	e.emit(func(l Listener) { l.ClientConnected(remote) })
	e.resolveConnect(nil)
}

func (e *Engine) startHeartbeat(ch *channel) {
	mon := heartbeat.New(e.settings.HeartbeatInterval, e.settings.HeartbeatTimeout,
		func() error { return ch.Write(proto.NewPackage(proto.CommandHeartbeatRequest, nil, nil)) },
		func(error) { ch.close(e.settings.TCP.CloseTimeout) },
	)
	e.mu.Lock()
	e.hb = mon
	e.mu.Unlock()
	go mon.Run()
}

// onPackageFromChannel runs on the channel's own read-loop goroutine; it
// only touches the heartbeat monitor (safe from any goroutine) and then
// hands the package to the control thread for everything else.
func (e *Engine) onPackageFromChannel(pkg proto.Package) {
	e.mu.Lock()
	mon := e.hb
	e.mu.Unlock()
	if mon != nil {
		mon.Touch()
	}
	e.q.Enqueue(packageInbound{Package: pkg})
}

func (e *Engine) handlePackageInbound(t packageInbound) {
	switch t.Package.Command {
	case proto.CommandAuthenticated, proto.CommandNotAuthenticated:
		e.mu.Lock()
		hs := e.handshake
		e.mu.Unlock()
		if hs != nil {
			hs.Respond(t.Package)
		}
	case proto.CommandBadRequest:
		e.enqueueClose("server BadRequest", nil)
	case proto.CommandHeartbeatResponse:
		// liveness already recorded in onPackageFromChannel.
	default:
		e.ops.HandleResponse(t.Package)
		e.subs.HandlePackage(t.Package)
	}
}

func (e *Engine) onChannelClosed(cause error) {
	e.mu.Lock()
	id := e.channelIDOrPending()
	e.mu.Unlock()
	e.q.Enqueue(tasks.TCPConnectionClosed{ChannelID: id, Cause: cause})
}

func (e *Engine) channelIDOrPending() uuid.UUID {
	if e.channel != nil {
		return e.channel.ID()
	}
	if e.pendingChannel != nil {
		return e.pendingChannel.ID()
	}
	return uuid.UUID{}
}

func (e *Engine) handleTCPConnectionClosed(t tasks.TCPConnectionClosed) {
	e.subs.PurgeSubscribedAndDropped(t.ChannelID, t.Cause)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	isCurrent := e.channel != nil && e.channel.ID() == t.ChannelID
	if !isCurrent {
		e.mu.Unlock()
		return
	}
	failed := e.channelAddress
	e.channel = nil
	e.phase = PhaseReconnecting
	e.reconnectLastTouch = time.Now()
	if failed != "" {
		e.lastFailedEndpoint = &tasks.NodeEndpoints{TCP: failed}
	}
	e.mu.Unlock()

	if mon := e.swapHeartbeat(nil); mon != nil {
		mon.Stop()
	}
	e.emit(func(l Listener) { l.ConnectionClosed(t.Cause) })
}

func (e *Engine) swapHeartbeat(next *heartbeat.Monitor) *heartbeat.Monitor {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.hb
	e.hb = next
	return old
}

func (e *Engine) onReconnectHint(endpoints operations.NodeEndpoints) {
	e.handleReconnectTo(tasks.ReconnectTo{Endpoints: endpoints})
}

func (e *Engine) handleReconnectTo(t tasks.ReconnectTo) {
	e.mu.Lock()
	if e.closed || e.phase != PhaseConnected || e.channel == nil {
		e.mu.Unlock()
		return
	}
	if e.channelAddress == t.Endpoints.TCP || (t.Endpoints.SecureTCP != "" && e.channelAddress == t.Endpoints.SecureTCP) {
		e.mu.Unlock()
		return
	}
	old := e.channel
	e.channel = nil
	e.phase = PhaseEndpointDiscovery
	e.discoveryEpoch++
	e.mu.Unlock()

	old.close(e.settings.TCP.CloseTimeout)
	if mon := e.swapHeartbeat(nil); mon != nil {
		mon.Stop()
	}
	e.q.Enqueue(tasks.EstablishTCPConnection{Endpoints: t.Endpoints})
}

func (e *Engine) handleCloseConnection(t tasks.CloseConnection) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Info("engine: close requested but already closed", "reason", t.Reason)
		return
	}
	e.mu.Unlock()

	if t.Cause != nil {
		e.emit(func(l Listener) { l.ErrorOccurred(t.Cause) })
	}
	e.disconnect(t.Reason, t.Cause)
}

func (e *Engine) disconnect(reason string, cause error) {
	e.mu.Lock()
	e.closed = true
	ch := e.channel
	e.channel = nil
	e.phase = PhaseInvalid
	e.mu.Unlock()

	e.stopTickerOnce.Do(func() {
		if e.tickerStop != nil {
			close(e.tickerStop)
		}
	})

	// Stop accepting new tasks once drained, so Run's goroutine returns
	// instead of idling forever after a permanent disconnect. Close only
	// closes a channel; it's safe to call from the Run goroutine itself.
	e.q.Close()

	// Heartbeat stop, manager cleanup, and the channel's own close handshake
	// are independent; fan them in rather than paying their latencies
	// serially on the control goroutine.
	var g errgroup.Group
	g.Go(func() error {
		if mon := e.swapHeartbeat(nil); mon != nil {
			mon.Stop()
		}
		return nil
	})
	g.Go(func() error {
		e.ops.CleanUp()
		return nil
	})
	g.Go(func() error {
		e.subs.CleanUp()
		return nil
	})
	g.Go(func() error {
		if ch != nil {
			ch.close(e.settings.TCP.CloseTimeout)
		}
		return nil
	})
	g.Wait()

	e.emit(func(l Listener) { l.ClientDisconnected() })

	if cause != nil {
		e.failConnect(esjcerr.Wrap(esjcerr.KindConnectionClosed, reason, cause))
	} else {
		e.failConnect(esjcerr.New(esjcerr.KindConnectionClosed, reason))
	}
}

func (e *Engine) enqueueClose(reason string, cause error) {
	e.q.Enqueue(tasks.CloseConnection{Reason: reason, Cause: cause})
}

func (e *Engine) failConnect(err error) { e.resolveConnect(err) }

func (e *Engine) resolveConnect(err error) {
	e.mu.Lock()
	done := e.connectDone
	e.connectDone = nil
	e.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case done <- err:
	default:
	}
}

func (e *Engine) checkOperationTimeout() {
	e.mu.Lock()
	ch := e.channel
	e.mu.Unlock()
	if ch == nil {
		return
	}
	e.ops.CheckTimeoutsAndRetry(ch)
	e.subs.CheckTimeoutsAndRetry(ch)
}

func (e *Engine) handleStartOperation(t startOperation) {
	e.mu.Lock()
	state := e.coarseStateLocked()
	ch := e.channel
	e.mu.Unlock()

	switch state {
	case StateClosed:
		t.Item.Operation.Fail(esjcerr.New(esjcerr.KindConnectionClosed, "connection closed"))
	case StateInit:
		t.Item.Operation.Fail(esjcerr.New(esjcerr.KindNoConnection, "no connection"))
	case StateConnecting:
		e.ops.EnqueueOperation(t.Item)
	case StateConnected:
		e.ops.ScheduleOperation(t.Item, ch)
	}
}

func (e *Engine) handleStartSubscription(t startSubscription) {
	e.admitSubscription(t.Item)
}

func (e *Engine) handleStartPersistentSubscription(t startPersistentSubscription) {
	e.admitSubscription(t.Item)
}

func (e *Engine) admitSubscription(item *subscriptions.Item) {
	e.mu.Lock()
	state := e.coarseStateLocked()
	ch := e.channel
	e.mu.Unlock()

	switch state {
	case StateClosed:
		e.exec(func() { item.Subscription.Listener.OnDropped("connectionClosed", esjcerr.New(esjcerr.KindConnectionClosed, "connection closed")) })
	case StateInit:
		e.exec(func() { item.Subscription.Listener.OnDropped("noConnection", esjcerr.New(esjcerr.KindNoConnection, "no connection")) })
	case StateConnecting:
		e.subs.EnqueueSubscription(item)
	case StateConnected:
		e.subs.StartSubscription(item, ch)
	}
}

package esjc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/engine"
	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
	"github.com/michael-schnell/esjc/internal/subscriptions"
)

const maxReadCount = 4096

// maxQueueSpinWait bounds how long AppendToStream and friends spin-wait for
// admission under MaxOperationQueueSize before giving up and submitting
// anyway. Per spec.md §9 Open Question 1 this stays a spin-wait rather than
// a backpressure error, since that's what the source specifies.
const maxQueueSpinWait = time.Second

// Connection is the public facade: thin validation plus task enqueue onto
// the connection engine (§4.9). Every data verb returns a Future that
// completes exactly once; the configured Executor is used for listener
// callbacks, not for Future completions.
type Connection struct {
	eng      *engine.Engine
	settings Settings
	codec    Codec
}

// NewConnection builds a Connection from settings. Call Connect before
// issuing any data-plane call.
func NewConnection(settings Settings) *Connection {
	if settings.Codec == nil {
		settings.Codec = DefaultCodec
	}
	eng := engine.New(settings.toEngineSettings(nil))
	return &Connection{eng: eng, settings: settings, codec: settings.Codec}
}

// Connect starts (or reports the status of) a single connection attempt.
func (c *Connection) Connect(ctx context.Context) error {
	c.eng.Start()
	return c.eng.Connect(ctx)
}

// Close tears the connection down permanently, failing every in-flight
// operation and subscription with ConnectionClosed.
func (c *Connection) Close() { c.eng.Close("client close") }

// State reports the coarse connection state.
func (c *Connection) State() engine.ConnectionState { return c.eng.State() }

// AddListener registers l for connection lifecycle notifications
// (clientConnected, clientDisconnected, clientReconnecting,
// connectionClosed, errorOccurred, authenticationFailed).
func (c *Connection) AddListener(l Listener) { c.eng.AddListener(engineListenerAdapter{l}) }

// RemoveListener unregisters l.
func (c *Connection) RemoveListener(l Listener) { c.eng.RemoveListener(engineListenerAdapter{l}) }

func (c *Connection) credentials(override *UserCredentials) *proto.Credentials {
	if override != nil {
		return override.toProto()
	}
	return c.settings.DefaultUserCredentials.toProto()
}

func (c *Connection) admit(item *operations.Item) {
	deadline := time.Now().Add(maxQueueSpinWait)
	for {
		active, waiting := c.eng.OperationCounts()
		if active+waiting < c.settings.MaxOperationQueueSize || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	c.eng.SubmitOperation(item)
}

// --- validation helpers, §4.9 ---

func validateStream(stream string) error {
	if stream == "" {
		return newError(KindInvalidArgument, "stream must not be empty")
	}
	return nil
}

func validateNonMetastream(stream string) error {
	if err := validateStream(stream); err != nil {
		return err
	}
	if isMetastream(stream) {
		return newError(KindInvalidArgument, fmt.Sprintf("%q is a metastream; metadata operations must not target it directly", stream))
	}
	return nil
}

func validateReadCount(count int) error {
	if count <= 0 || count >= maxReadCount {
		return newError(KindInvalidArgument, fmt.Sprintf("count must satisfy 0 < count < %d", maxReadCount))
	}
	return nil
}

func validateEventNumber(eventNumber int64) error {
	if eventNumber < -1 {
		return newError(KindInvalidArgument, "eventNumber must be >= -1")
	}
	return nil
}

// --- write operations ---

// AppendToStream appends events to stream, guarded by expectedVersion.
func (c *Connection) AppendToStream(stream string, expectedVersion ExpectedVersion, events []EventData, userCredentials *UserCredentials) *Future[*WriteResult] {
	if err := validateStream(stream); err != nil {
		return completedFuture[*WriteResult](nil, err)
	}
	op, future := newAppendOperation(c.codec, c.credentials(userCredentials), stream, int64(expectedVersion), events, c.settings.RequireMaster)
	c.admit(operations.NewItem(op, c.settings.MaxOperationRetries, c.settings.OperationTimeout))
	return future
}

// DeleteStream deletes stream, guarded by expectedVersion.
func (c *Connection) DeleteStream(stream string, expectedVersion ExpectedVersion, hardDelete bool, userCredentials *UserCredentials) *Future[*WriteResult] {
	if err := validateStream(stream); err != nil {
		return completedFuture[*WriteResult](nil, err)
	}
	op, future := newDeleteOperation(c.codec, c.credentials(userCredentials), stream, int64(expectedVersion), hardDelete, c.settings.RequireMaster)
	c.admit(operations.NewItem(op, c.settings.MaxOperationRetries, c.settings.OperationTimeout))
	return future
}

// --- read operations ---

// ReadEvent reads a single event at eventNumber from stream. eventNumber =
// -1 reads the stream's last event.
func (c *Connection) ReadEvent(stream string, eventNumber int64, resolveLinkTos bool, userCredentials *UserCredentials) *Future[*ReadEventResult] {
	if err := validateStream(stream); err != nil {
		return completedFuture[*ReadEventResult](nil, err)
	}
	if err := validateEventNumber(eventNumber); err != nil {
		return completedFuture[*ReadEventResult](nil, err)
	}
	op, future := newReadEventOperation(c.codec, c.credentials(userCredentials), stream, eventNumber, resolveLinkTos, c.settings.RequireMaster)
	c.admit(operations.NewItem(op, c.settings.MaxOperationRetries, c.settings.OperationTimeout))
	return future
}

// ReadStreamEventsForward reads up to count events from stream starting at
// fromEventNumber, oldest first.
func (c *Connection) ReadStreamEventsForward(stream string, fromEventNumber int64, count int, resolveLinkTos bool, userCredentials *UserCredentials) *Future[*StreamEventsSlice] {
	return c.readStream(Forward, stream, fromEventNumber, count, resolveLinkTos, userCredentials)
}

// ReadStreamEventsBackward reads up to count events from stream starting at
// fromEventNumber, newest first.
func (c *Connection) ReadStreamEventsBackward(stream string, fromEventNumber int64, count int, resolveLinkTos bool, userCredentials *UserCredentials) *Future[*StreamEventsSlice] {
	return c.readStream(Backward, stream, fromEventNumber, count, resolveLinkTos, userCredentials)
}

func (c *Connection) readStream(direction ReadDirection, stream string, fromEventNumber int64, count int, resolveLinkTos bool, userCredentials *UserCredentials) *Future[*StreamEventsSlice] {
	if err := validateStream(stream); err != nil {
		return completedFuture[*StreamEventsSlice](nil, err)
	}
	if err := validateReadCount(count); err != nil {
		return completedFuture[*StreamEventsSlice](nil, err)
	}
	if err := validateEventNumber(fromEventNumber); err != nil {
		return completedFuture[*StreamEventsSlice](nil, err)
	}
	op, future := newReadStreamOperation(c.codec, c.credentials(userCredentials), direction, stream, fromEventNumber, count, resolveLinkTos, c.settings.RequireMaster)
	c.admit(operations.NewItem(op, c.settings.MaxOperationRetries, c.settings.OperationTimeout))
	return future
}

// ReadAllEventsForward reads up to count events from the $all stream
// starting at from, oldest first.
func (c *Connection) ReadAllEventsForward(from Position, count int, resolveLinkTos bool, userCredentials *UserCredentials) *Future[*AllEventsSlice] {
	return c.readAll(Forward, from, count, resolveLinkTos, userCredentials)
}

// ReadAllEventsBackward reads up to count events from the $all stream
// starting at from, newest first.
func (c *Connection) ReadAllEventsBackward(from Position, count int, resolveLinkTos bool, userCredentials *UserCredentials) *Future[*AllEventsSlice] {
	return c.readAll(Backward, from, count, resolveLinkTos, userCredentials)
}

func (c *Connection) readAll(direction ReadDirection, from Position, count int, resolveLinkTos bool, userCredentials *UserCredentials) *Future[*AllEventsSlice] {
	if err := validateReadCount(count); err != nil {
		return completedFuture[*AllEventsSlice](nil, err)
	}
	op, future := newReadAllOperation(c.codec, c.credentials(userCredentials), direction, from, count, resolveLinkTos, c.settings.RequireMaster)
	c.admit(operations.NewItem(op, c.settings.MaxOperationRetries, c.settings.OperationTimeout))
	return future
}

// --- transactions ---

// StartTransaction opens a multi-append transaction against stream.
func (c *Connection) StartTransaction(stream string, expectedVersion ExpectedVersion, userCredentials *UserCredentials) *Future[*Transaction] {
	if err := validateStream(stream); err != nil {
		return completedFuture[*Transaction](nil, err)
	}
	op, future := newTransactionStartOperation(c.codec, c.credentials(userCredentials), stream, int64(expectedVersion), c.settings.RequireMaster)
	c.admit(operations.NewItem(op, c.settings.MaxOperationRetries, c.settings.OperationTimeout))

	out := newFuture[*Transaction]()
	future.OnComplete(func(id int64, err error) {
		if err != nil {
			out.complete(nil, err)
			return
		}
		out.complete(&Transaction{TransactionID: id, conn: c, stream: stream}, nil)
	})
	return out
}

// Write appends events within the transaction.
func (t *Transaction) Write(events []EventData, userCredentials *UserCredentials) *Future[struct{}] {
	op, future := newTransactionWriteOperation(t.conn.codec, t.conn.credentials(userCredentials), t.TransactionID, events, t.conn.settings.RequireMaster)
	t.conn.admit(operations.NewItem(op, t.conn.settings.MaxOperationRetries, t.conn.settings.OperationTimeout))
	return future
}

// Commit finalizes the transaction.
func (t *Transaction) Commit(userCredentials *UserCredentials) *Future[*WriteResult] {
	op, future := newTransactionCommitOperation(t.conn.codec, t.conn.credentials(userCredentials), t.TransactionID, t.conn.settings.RequireMaster)
	t.conn.admit(operations.NewItem(op, t.conn.settings.MaxOperationRetries, t.conn.settings.OperationTimeout))
	return future
}

// --- stream metadata (§4.9) ---

// SetStreamMetadata writes metadata to stream's metastream as a single
// system event.
func (c *Connection) SetStreamMetadata(stream string, expectedVersion ExpectedVersion, metadata StreamMetadata, userCredentials *UserCredentials) *Future[*WriteResult] {
	if err := validateNonMetastream(stream); err != nil {
		return completedFuture[*WriteResult](nil, err)
	}
	body, err := c.codec.Marshal(metadata)
	if err != nil {
		return completedFuture[*WriteResult](nil, wrapError(KindInvalidArgument, "encode stream metadata", err))
	}
	event := EventData{EventType: "$metadata", IsJSON: true, Data: body}
	return c.AppendToStream(metastreamFor(stream), expectedVersion, []EventData{event}, userCredentials)
}

// GetStreamMetadata reads stream's current metadata, mapping NotFound/
// NoStream to an empty result and StreamDeleted to a deleted result.
func (c *Connection) GetStreamMetadata(stream string, userCredentials *UserCredentials) *Future[*StreamMetadataResult] {
	out := newFuture[*StreamMetadataResult]()
	if err := validateNonMetastream(stream); err != nil {
		out.complete(nil, err)
		return out
	}

	inner := c.ReadEvent(metastreamFor(stream), -1, false, userCredentials)
	inner.OnComplete(func(r *ReadEventResult, err error) {
		if err != nil {
			out.complete(nil, err)
			return
		}
		switch r.Status {
		case ReadEventNotFound, ReadEventNoStream:
			out.complete(&StreamMetadataResult{Stream: stream, MetastreamVersion: -1}, nil)
		case ReadEventStreamDeleted:
			out.complete(&StreamMetadataResult{Stream: stream, IsStreamDeleted: true, MetastreamVersion: 1<<63 - 1}, nil)
		default:
			var md StreamMetadata
			if decErr := c.codec.Unmarshal(r.Event.Data, &md); decErr != nil {
				out.complete(nil, wrapError(KindServerError, "decode stream metadata", decErr))
				return
			}
			out.complete(&StreamMetadataResult{
				Stream:            stream,
				MetastreamVersion: r.Event.EventNumber,
				StreamMetadata:    md,
			}, nil)
		}
	})
	return out
}

// --- subscriptions ---

// SubscribeToStream opens a volatile subscription to every new event
// appended to stream after this call.
func (c *Connection) SubscribeToStream(stream string, resolveLinkTos bool, listener SubscriptionListener, userCredentials *UserCredentials) (*Subscription, error) {
	if err := validateStream(stream); err != nil {
		return nil, err
	}
	return c.startVolatile(subscriptions.VolatileStream, stream, resolveLinkTos, listener, userCredentials)
}

// SubscribeToAll opens a volatile subscription to every new event appended
// to any stream after this call.
func (c *Connection) SubscribeToAll(resolveLinkTos bool, listener SubscriptionListener, userCredentials *UserCredentials) (*Subscription, error) {
	return c.startVolatile(subscriptions.VolatileAll, "", resolveLinkTos, listener, userCredentials)
}

func (c *Connection) startVolatile(kind subscriptions.Kind, stream string, resolveLinkTos bool, listener SubscriptionListener, userCredentials *UserCredentials) (*Subscription, error) {
	handle := &Subscription{stream: stream, conn: c}
	adapt := &subscriptionListenerAdapter{user: listener, codec: c.codec}
	adapt.onID = func(id uuid.UUID) { handle.id = id }

	sub := &subscriptions.Subscription{
		Kind:           kind,
		StreamID:       stream,
		ResolveLinkTos: resolveLinkTos,
		Credentials:    c.credentials(userCredentials),
		BufferSize:     500,
		Listener:       adapt,
	}
	creds := sub.Credentials
	sub.CreateRequestFn = func(correlationID uuid.UUID) proto.Package {
		body, err := c.codec.Marshal(subscribeToStreamWire{EventStreamID: stream, ResolveLinkTos: resolveLinkTos})
		if err != nil {
			body = nil
		}
		p := proto.NewPackage(proto.CommandSubscribeToStream, body, creds)
		p.CorrelationID = correlationID
		return p
	}
	item := subscriptions.NewItem(sub, c.settings.MaxOperationRetries, c.settings.OperationTimeout)
	c.eng.SubmitSubscription(item)
	return handle, nil
}

// ConnectToPersistentSubscription connects to an existing persistent
// subscription group on stream.
func (c *Connection) ConnectToPersistentSubscription(stream, groupName string, listener SubscriptionListener, bufferSize int, autoAck bool, userCredentials *UserCredentials) (*Subscription, error) {
	if err := validateStream(stream); err != nil {
		return nil, err
	}
	if groupName == "" {
		return nil, newError(KindInvalidArgument, "groupName must not be empty")
	}
	if bufferSize <= 0 {
		bufferSize = 10
	}

	handle := &Subscription{stream: stream, conn: c}
	adapt := &subscriptionListenerAdapter{user: listener, codec: c.codec}
	adapt.onID = func(id uuid.UUID) { handle.id = id }

	sub := &subscriptions.Subscription{
		Kind:        subscriptions.Persistent,
		StreamID:    stream,
		GroupName:   groupName,
		AutoAck:     autoAck,
		Credentials: c.credentials(userCredentials),
		BufferSize:  bufferSize,
		Listener:    adapt,
	}
	creds := sub.Credentials
	sub.CreateRequestFn = func(correlationID uuid.UUID) proto.Package {
		body, err := c.codec.Marshal(connectToPersistentSubscriptionWire{
			EventStreamID:           stream,
			GroupName:               groupName,
			AllowedInFlightMessages: bufferSize,
		})
		if err != nil {
			body = nil
		}
		p := proto.NewPackage(proto.CommandConnectToPersistentSubscription, body, creds)
		p.CorrelationID = correlationID
		return p
	}
	item := subscriptions.NewItem(sub, c.settings.MaxOperationRetries, c.settings.OperationTimeout)
	c.eng.SubmitPersistentSubscription(item)
	return handle, nil
}

// --- persistent subscription CRUD ---

// CreatePersistentSubscription creates a new persistent subscription group
// on stream.
func (c *Connection) CreatePersistentSubscription(stream, groupName string, settings PersistentSubscriptionSettings, userCredentials *UserCredentials) *Future[struct{}] {
	return c.persistentCRUD(cmdCreatePersistentSubscription, cmdCreatePersistentSubscriptionCompleted, stream, groupName, settings, userCredentials)
}

// UpdatePersistentSubscription updates an existing persistent subscription
// group's settings.
func (c *Connection) UpdatePersistentSubscription(stream, groupName string, settings PersistentSubscriptionSettings, userCredentials *UserCredentials) *Future[struct{}] {
	return c.persistentCRUD(cmdUpdatePersistentSubscription, cmdUpdatePersistentSubscriptionCompleted, stream, groupName, settings, userCredentials)
}

// DeletePersistentSubscription deletes a persistent subscription group.
func (c *Connection) DeletePersistentSubscription(stream, groupName string, userCredentials *UserCredentials) *Future[struct{}] {
	return c.persistentCRUD(cmdDeletePersistentSubscription, cmdDeletePersistentSubscriptionCompleted, stream, groupName, PersistentSubscriptionSettings{}, userCredentials)
}

func (c *Connection) persistentCRUD(cmd, completed byte, stream, groupName string, settings PersistentSubscriptionSettings, userCredentials *UserCredentials) *Future[struct{}] {
	if err := validateStream(stream); err != nil {
		return completedFuture[struct{}](struct{}{}, err)
	}
	if groupName == "" {
		return completedFuture[struct{}](struct{}{}, newError(KindInvalidArgument, "groupName must not be empty"))
	}
	op, future := newPersistentCRUDOperation(c.codec, c.credentials(userCredentials), cmd, completed, stream, groupName, settings)
	c.admit(operations.NewItem(op, c.settings.MaxOperationRetries, c.settings.OperationTimeout))
	return future
}

func (c *Connection) ackPersistent(subscriptionID uuid.UUID, eventIDs [][16]byte) error {
	body, err := c.codec.Marshal(nakPayload{EventIDs: eventIDs})
	if err != nil {
		return wrapError(KindInvalidArgument, "encode ack", err)
	}
	p := proto.NewPackage(proto.CommandPersistentSubscriptionAck, body, nil)
	p.CorrelationID = subscriptionID
	return c.eng.WriteOnActiveChannel(p)
}

func (c *Connection) nakPersistent(subscriptionID uuid.UUID, action NakAction, message string, eventIDs [][16]byte) error {
	body, err := c.codec.Marshal(nakPayload{Action: action, Message: message, EventIDs: eventIDs})
	if err != nil {
		return wrapError(KindInvalidArgument, "encode nak", err)
	}
	p := proto.NewPackage(proto.CommandPersistentSubscriptionNak, body, nil)
	p.CorrelationID = subscriptionID
	return c.eng.WriteOnActiveChannel(p)
}

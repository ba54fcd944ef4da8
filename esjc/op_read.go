package esjc

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
)

type readEventRequest struct {
	EventStreamID  string
	EventNumber    int64
	ResolveLinkTos bool
	RequireMaster  bool
}

type readEventResponse struct {
	Result    operationResult
	Event     *recordedEventWire
	NotMaster *notMasterEndpoint
}

type readEventOperation struct {
	codec  Codec
	auth   *proto.Credentials
	req    readEventRequest
	future *Future[*ReadEventResult]
}

func newReadEventOperation(codec Codec, auth *proto.Credentials, stream string, eventNumber int64, resolveLinkTos, requireMaster bool) (*readEventOperation, *Future[*ReadEventResult]) {
	f := newFuture[*ReadEventResult]()
	return &readEventOperation{
		codec: codec,
		auth:  auth,
		req: readEventRequest{
			EventStreamID:  stream,
			EventNumber:    eventNumber,
			ResolveLinkTos: resolveLinkTos,
			RequireMaster:  requireMaster,
		},
		future: f,
	}, f
}

func (o *readEventOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode read-event request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(cmdReadEvent, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *readEventOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != cmdReadEventCompleted {
		return operations.NotHandled{}
	}
	var resp readEventResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode read-event response", err))
		return operations.EndOperation{}
	}
	if resp.Result == resultNotMaster {
		return operations.Reconnect{Endpoints: resp.NotMaster.toNodeEndpoints()}
	}

	result := &ReadEventResult{}
	switch resp.Result {
	case resultSuccess:
		result.Status = ReadEventSuccess
	case resultStreamDeleted:
		result.Status = ReadEventStreamDeleted
	default:
		result.Status = ReadEventNotFound
	}
	if resp.Event != nil {
		ev := resp.Event.toRecordedEvent()
		result.Event = &ev
	}
	o.future.complete(result, nil)
	return operations.EndOperation{}
}

func (o *readEventOperation) Fail(err error) { o.future.complete(nil, err) }

type readStreamEventsRequest struct {
	EventStreamID  string
	FromEventNumber int64
	MaxCount        int
	ResolveLinkTos  bool
	RequireMaster   bool
}

type readStreamEventsResponse struct {
	Result          operationResult
	Events          []recordedEventWire
	NextEventNumber int64
	LastEventNumber int64
	IsEndOfStream   bool
	NotMaster       *notMasterEndpoint
}

type readStreamOperation struct {
	codec     Codec
	auth      *proto.Credentials
	cmd       byte
	completed byte
	req       readStreamEventsRequest
	future    *Future[*StreamEventsSlice]
}

func newReadStreamOperation(codec Codec, auth *proto.Credentials, direction ReadDirection, stream string, fromEventNumber int64, maxCount int, resolveLinkTos, requireMaster bool) (*readStreamOperation, *Future[*StreamEventsSlice]) {
	f := newFuture[*StreamEventsSlice]()
	cmd, completed := cmdReadStreamEventsForward, cmdReadStreamEventsForwardCompleted
	if direction == Backward {
		cmd, completed = cmdReadStreamEventsBackward, cmdReadStreamEventsBackwardCompleted
	}
	return &readStreamOperation{
		codec:     codec,
		auth:      auth,
		cmd:       cmd,
		completed: completed,
		req: readStreamEventsRequest{
			EventStreamID:   stream,
			FromEventNumber: fromEventNumber,
			MaxCount:        maxCount,
			ResolveLinkTos:  resolveLinkTos,
			RequireMaster:   requireMaster,
		},
		future: f,
	}, f
}

func (o *readStreamOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode read-stream request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(o.cmd, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *readStreamOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != o.completed {
		return operations.NotHandled{}
	}
	var resp readStreamEventsResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode read-stream response", err))
		return operations.EndOperation{}
	}
	if resp.Result == resultNotMaster {
		return operations.Reconnect{Endpoints: resp.NotMaster.toNodeEndpoints()}
	}

	slice := &StreamEventsSlice{
		Stream:          o.req.EventStreamID,
		FromEventNumber: o.req.FromEventNumber,
		NextEventNumber: resp.NextEventNumber,
		LastEventNumber: resp.LastEventNumber,
		IsEndOfStream:   resp.IsEndOfStream,
	}
	switch resp.Result {
	case resultSuccess:
		slice.Status = SliceReadSuccess
	case resultStreamDeleted:
		slice.Status = SliceReadStreamDeleted
	default:
		slice.Status = SliceReadNoStream
	}
	for _, w := range resp.Events {
		slice.Events = append(slice.Events, w.toRecordedEvent())
	}
	o.future.complete(slice, nil)
	return operations.EndOperation{}
}

func (o *readStreamOperation) Fail(err error) { o.future.complete(nil, err) }

type readAllEventsRequest struct {
	CommitPosition  int64
	PreparePosition int64
	MaxCount        int
	ResolveLinkTos  bool
	RequireMaster   bool
}

type readAllEventsResponse struct {
	Result              operationResult
	Events              []recordedEventWire
	NextCommitPosition  int64
	NextPreparePosition int64
	IsEndOfStream       bool
	NotMaster           *notMasterEndpoint
}

type readAllOperation struct {
	codec     Codec
	auth      *proto.Credentials
	direction ReadDirection
	cmd       byte
	completed byte
	req       readAllEventsRequest
	future    *Future[*AllEventsSlice]
}

func newReadAllOperation(codec Codec, auth *proto.Credentials, direction ReadDirection, from Position, maxCount int, resolveLinkTos, requireMaster bool) (*readAllOperation, *Future[*AllEventsSlice]) {
	f := newFuture[*AllEventsSlice]()
	cmd, completed := cmdReadAllEventsForward, cmdReadAllEventsForwardCompleted
	if direction == Backward {
		cmd, completed = cmdReadAllEventsBackward, cmdReadAllEventsBackwardCompleted
	}
	return &readAllOperation{
		codec:     codec,
		auth:      auth,
		direction: direction,
		cmd:       cmd,
		completed: completed,
		req: readAllEventsRequest{
			CommitPosition:  from.CommitPosition,
			PreparePosition: from.PreparePosition,
			MaxCount:        maxCount,
			ResolveLinkTos:  resolveLinkTos,
			RequireMaster:   requireMaster,
		},
		future: f,
	}, f
}

func (o *readAllOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode read-all request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(o.cmd, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *readAllOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != o.completed {
		return operations.NotHandled{}
	}
	var resp readAllEventsResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode read-all response", err))
		return operations.EndOperation{}
	}
	if resp.Result == resultNotMaster {
		return operations.Reconnect{Endpoints: resp.NotMaster.toNodeEndpoints()}
	}

	slice := &AllEventsSlice{
		ReadDirection: o.direction,
		FromPosition:  Position{CommitPosition: o.req.CommitPosition, PreparePosition: o.req.PreparePosition},
		NextPosition:  Position{CommitPosition: resp.NextCommitPosition, PreparePosition: resp.NextPreparePosition},
		IsEndOfStream: resp.IsEndOfStream,
	}
	for _, w := range resp.Events {
		slice.Events = append(slice.Events, w.toRecordedEvent())
	}
	o.future.complete(slice, nil)
	return operations.EndOperation{}
}

func (o *readAllOperation) Fail(err error) { o.future.complete(nil, err) }

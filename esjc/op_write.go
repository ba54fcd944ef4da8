package esjc

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
)

// writeEventsRequest is the append payload: a target stream, the caller's
// expected version guard, and the events to append.
type writeEventsRequest struct {
	EventStreamID   string
	ExpectedVersion int64
	Events          []eventDataWire
	RequireMaster   bool
}

type writeEventsResponse struct {
	Result              operationResult
	Message             string
	CurrentVersion      int64
	PreparePosition     int64
	CommitPosition      int64
	NotMaster           *notMasterEndpoint
}

// appendOperation implements operations.Operation for a single append
// request, completing future with a WriteResult on success.
type appendOperation struct {
	codec   Codec
	auth    *proto.Credentials
	req     writeEventsRequest
	future  *Future[*WriteResult]
}

func newAppendOperation(codec Codec, auth *proto.Credentials, stream string, expectedVersion int64, events []EventData, requireMaster bool) (*appendOperation, *Future[*WriteResult]) {
	f := newFuture[*WriteResult]()
	return &appendOperation{
		codec: codec,
		auth:  auth,
		req: writeEventsRequest{
			EventStreamID:   stream,
			ExpectedVersion: expectedVersion,
			Events:          toEventDataWire(events),
			RequireMaster:   requireMaster,
		},
		future: f,
	}, f
}

func (o *appendOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode append request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(cmdWriteEvents, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *appendOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != cmdWriteEventsCompleted {
		return operations.NotHandled{}
	}
	var resp writeEventsResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode append response", err))
		return operations.EndOperation{}
	}
	if resp.Result == resultNotMaster {
		return operations.Reconnect{Endpoints: resp.NotMaster.toNodeEndpoints()}
	}
	if err := resp.Result.toError(resp.Message); err != nil {
		o.Fail(err)
		return operations.EndOperation{}
	}
	o.future.complete(&WriteResult{
		NextExpectedVersion: resp.CurrentVersion,
		CommitPosition:      Position{CommitPosition: resp.CommitPosition, PreparePosition: resp.PreparePosition},
	}, nil)
	return operations.EndOperation{}
}

func (o *appendOperation) Fail(err error) { o.future.complete(nil, err) }

// deleteStreamRequest is the delete payload: target stream, expected
// version guard, and whether the delete is a permanent (hard) delete.
type deleteStreamRequest struct {
	EventStreamID   string
	ExpectedVersion int64
	HardDelete      bool
	RequireMaster   bool
}

type deleteStreamResponse struct {
	Result          operationResult
	Message         string
	PreparePosition int64
	CommitPosition  int64
	NotMaster       *notMasterEndpoint
}

type deleteOperation struct {
	codec  Codec
	auth   *proto.Credentials
	req    deleteStreamRequest
	future *Future[*WriteResult]
}

func newDeleteOperation(codec Codec, auth *proto.Credentials, stream string, expectedVersion int64, hardDelete, requireMaster bool) (*deleteOperation, *Future[*WriteResult]) {
	f := newFuture[*WriteResult]()
	return &deleteOperation{
		codec: codec,
		auth:  auth,
		req: deleteStreamRequest{
			EventStreamID:   stream,
			ExpectedVersion: expectedVersion,
			HardDelete:      hardDelete,
			RequireMaster:   requireMaster,
		},
		future: f,
	}, f
}

func (o *deleteOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode delete request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(cmdDeleteStream, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *deleteOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != cmdDeleteStreamCompleted {
		return operations.NotHandled{}
	}
	var resp deleteStreamResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode delete response", err))
		return operations.EndOperation{}
	}
	if resp.Result == resultNotMaster {
		return operations.Reconnect{Endpoints: resp.NotMaster.toNodeEndpoints()}
	}
	if err := resp.Result.toError(resp.Message); err != nil {
		o.Fail(err)
		return operations.EndOperation{}
	}
	o.future.complete(&WriteResult{
		CommitPosition: Position{CommitPosition: resp.CommitPosition, PreparePosition: resp.PreparePosition},
	}, nil)
	return operations.EndOperation{}
}

func (o *deleteOperation) Fail(err error) { o.future.complete(nil, err) }

package esjc

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
)

type transactionStartRequest struct {
	EventStreamID   string
	ExpectedVersion int64
	RequireMaster   bool
}

type transactionStartResponse struct {
	Result        operationResult
	Message       string
	TransactionID int64
	NotMaster     *notMasterEndpoint
}

type transactionStartOperation struct {
	codec  Codec
	auth   *proto.Credentials
	req    transactionStartRequest
	future *Future[int64]
}

func newTransactionStartOperation(codec Codec, auth *proto.Credentials, stream string, expectedVersion int64, requireMaster bool) (*transactionStartOperation, *Future[int64]) {
	f := newFuture[int64]()
	return &transactionStartOperation{
		codec: codec,
		auth:  auth,
		req: transactionStartRequest{
			EventStreamID:   stream,
			ExpectedVersion: expectedVersion,
			RequireMaster:   requireMaster,
		},
		future: f,
	}, f
}

func (o *transactionStartOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode transaction-start request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(cmdTransactionStart, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *transactionStartOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != cmdTransactionStartCompleted {
		return operations.NotHandled{}
	}
	var resp transactionStartResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode transaction-start response", err))
		return operations.EndOperation{}
	}
	if resp.Result == resultNotMaster {
		return operations.Reconnect{Endpoints: resp.NotMaster.toNodeEndpoints()}
	}
	if err := resp.Result.toError(resp.Message); err != nil {
		o.Fail(err)
		return operations.EndOperation{}
	}
	o.future.complete(resp.TransactionID, nil)
	return operations.EndOperation{}
}

func (o *transactionStartOperation) Fail(err error) { o.future.complete(0, err) }

type transactionWriteRequest struct {
	TransactionID int64
	Events        []eventDataWire
	RequireMaster bool
}

type transactionWriteResponse struct {
	Result    operationResult
	Message   string
	NotMaster *notMasterEndpoint
}

type transactionWriteOperation struct {
	codec  Codec
	auth   *proto.Credentials
	req    transactionWriteRequest
	future *Future[struct{}]
}

func newTransactionWriteOperation(codec Codec, auth *proto.Credentials, transactionID int64, events []EventData, requireMaster bool) (*transactionWriteOperation, *Future[struct{}]) {
	f := newFuture[struct{}]()
	return &transactionWriteOperation{
		codec: codec,
		auth:  auth,
		req: transactionWriteRequest{
			TransactionID: transactionID,
			Events:        toEventDataWire(events),
			RequireMaster: requireMaster,
		},
		future: f,
	}, f
}

func (o *transactionWriteOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode transaction-write request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(cmdTransactionWrite, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *transactionWriteOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != cmdTransactionWriteCompleted {
		return operations.NotHandled{}
	}
	var resp transactionWriteResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode transaction-write response", err))
		return operations.EndOperation{}
	}
	if resp.Result == resultNotMaster {
		return operations.Reconnect{Endpoints: resp.NotMaster.toNodeEndpoints()}
	}
	if err := resp.Result.toError(resp.Message); err != nil {
		o.Fail(err)
		return operations.EndOperation{}
	}
	o.future.complete(struct{}{}, nil)
	return operations.EndOperation{}
}

func (o *transactionWriteOperation) Fail(err error) { o.future.complete(struct{}{}, err) }

type transactionCommitRequest struct {
	TransactionID int64
	RequireMaster bool
}

type transactionCommitResponse struct {
	Result          operationResult
	Message         string
	CurrentVersion  int64
	PreparePosition int64
	CommitPosition  int64
	NotMaster       *notMasterEndpoint
}

type transactionCommitOperation struct {
	codec  Codec
	auth   *proto.Credentials
	req    transactionCommitRequest
	future *Future[*WriteResult]
}

func newTransactionCommitOperation(codec Codec, auth *proto.Credentials, transactionID int64, requireMaster bool) (*transactionCommitOperation, *Future[*WriteResult]) {
	f := newFuture[*WriteResult]()
	return &transactionCommitOperation{
		codec: codec,
		auth:  auth,
		req: transactionCommitRequest{
			TransactionID: transactionID,
			RequireMaster: requireMaster,
		},
		future: f,
	}, f
}

func (o *transactionCommitOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode transaction-commit request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(cmdTransactionCommit, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *transactionCommitOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != cmdTransactionCommitCompleted {
		return operations.NotHandled{}
	}
	var resp transactionCommitResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode transaction-commit response", err))
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

func (o *transactionCommitOperation) Fail(err error) { o.future.complete(nil, err) }

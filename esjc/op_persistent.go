package esjc

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
)

// PersistentSubscriptionSettings configures a persistent-subscription
// group's server-side behavior (checkpointing, buffer sizes, retry limits).
type PersistentSubscriptionSettings struct {
	ResolveLinkTos        bool
	StartFrom             int64
	ExtraStatistics       bool
	MessageTimeout        int64 // milliseconds
	MaxRetryCount         int
	LiveBufferSize        int
	ReadBatchSize         int
	HistoryBufferSize     int
	CheckPointAfter       int64 // milliseconds
	MinCheckPointCount    int
	MaxCheckPointCount    int
	MaxSubscriberCount    int
	NamedConsumerStrategy string
}

type persistentSubscriptionCRUDRequest struct {
	EventStreamID string
	GroupName     string
	Settings      PersistentSubscriptionSettings
}

type persistentSubscriptionCRUDResponse struct {
	Result    operationResult
	Message   string
	NotMaster *notMasterEndpoint
}

type persistentCRUDOperation struct {
	codec     Codec
	auth      *proto.Credentials
	cmd       byte
	completed byte
	req       persistentSubscriptionCRUDRequest
	future    *Future[struct{}]
}

func newPersistentCRUDOperation(codec Codec, auth *proto.Credentials, cmd, completed byte, stream, group string, settings PersistentSubscriptionSettings) (*persistentCRUDOperation, *Future[struct{}]) {
	f := newFuture[struct{}]()
	return &persistentCRUDOperation{
		codec:     codec,
		auth:      auth,
		cmd:       cmd,
		completed: completed,
		req: persistentSubscriptionCRUDRequest{
			EventStreamID: stream,
			GroupName:     group,
			Settings:      settings,
		},
		future: f,
	}, f
}

func (o *persistentCRUDOperation) CreateRequest(correlationID uuid.UUID) proto.Package {
	body, err := o.codec.Marshal(o.req)
	if err != nil {
		o.Fail(wrapError(KindInvalidArgument, "encode persistent-subscription request", err))
		return proto.Package{}
	}
	p := proto.NewPackage(o.cmd, body, o.auth)
	p.CorrelationID = correlationID
	return p
}

func (o *persistentCRUDOperation) Inspect(response proto.Package) operations.Decision {
	if response.Command != o.completed {
		return operations.NotHandled{}
	}
	var resp persistentSubscriptionCRUDResponse
	if err := o.codec.Unmarshal(response.Payload, &resp); err != nil {
		o.Fail(wrapError(KindServerError, "decode persistent-subscription response", err))
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

func (o *persistentCRUDOperation) Fail(err error) { o.future.complete(struct{}{}, err) }

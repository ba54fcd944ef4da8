package esjc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
)

// notMasterResponse builds a *Completed wire response carrying
// resultNotMaster and a redirect endpoint, for exercising the reconnect
// path of each operation's Inspect.
func notMasterResponse(t *testing.T, cmd byte, v interface{}) proto.Package {
	t.Helper()
	body, err := DefaultCodec.Marshal(v)
	require.NoError(t, err)
	return proto.NewPackage(cmd, body, nil)
}

func TestAppendOperationInspectReconnectsOnNotMaster(t *testing.T) {
	op, future := newAppendOperation(DefaultCodec, nil, "orders-1", int64(ExpectedVersionAny), nil, false)

	resp := notMasterResponse(t, cmdWriteEventsCompleted, writeEventsResponse{
		Result:    resultNotMaster,
		NotMaster: &notMasterEndpoint{TCP: "10.0.0.2:1113"},
	})

	decision := op.Inspect(resp)
	reconnect, ok := decision.(operations.Reconnect)
	require.True(t, ok)
	require.Equal(t, "10.0.0.2:1113", reconnect.Endpoints.TCP)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := future.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "a Reconnect decision must leave the caller's future pending")
}

func TestDeleteOperationInspectReconnectsOnNotMaster(t *testing.T) {
	op, _ := newDeleteOperation(DefaultCodec, nil, "orders-1", int64(ExpectedVersionAny), false, false)

	resp := notMasterResponse(t, cmdDeleteStreamCompleted, deleteStreamResponse{
		Result:    resultNotMaster,
		NotMaster: &notMasterEndpoint{TCP: "10.0.0.2:1113"},
	})

	decision := op.Inspect(resp)
	_, ok := decision.(operations.Reconnect)
	require.True(t, ok)
}

func TestReadEventOperationInspectReconnectsOnNotMaster(t *testing.T) {
	op, _ := newReadEventOperation(DefaultCodec, nil, "orders-1", 0, false, true)

	resp := notMasterResponse(t, cmdReadEventCompleted, readEventResponse{
		Result:    resultNotMaster,
		NotMaster: &notMasterEndpoint{SecureTCP: "10.0.0.2:1114"},
	})

	decision := op.Inspect(resp)
	reconnect, ok := decision.(operations.Reconnect)
	require.True(t, ok)
	require.Equal(t, "10.0.0.2:1114", reconnect.Endpoints.SecureTCP)
}

func TestTransactionStartOperationInspectReconnectsOnNotMaster(t *testing.T) {
	op, _ := newTransactionStartOperation(DefaultCodec, nil, "orders-1", int64(ExpectedVersionAny), true)

	resp := notMasterResponse(t, cmdTransactionStartCompleted, transactionStartResponse{
		Result:    resultNotMaster,
		NotMaster: &notMasterEndpoint{TCP: "10.0.0.2:1113"},
	})

	decision := op.Inspect(resp)
	_, ok := decision.(operations.Reconnect)
	require.True(t, ok)
}

func TestPersistentCRUDOperationInspectReconnectsOnNotMaster(t *testing.T) {
	op, _ := newPersistentCRUDOperation(DefaultCodec, nil, cmdCreatePersistentSubscription, cmdCreatePersistentSubscriptionCompleted, "orders-1", "group-a", PersistentSubscriptionSettings{})

	resp := notMasterResponse(t, cmdCreatePersistentSubscriptionCompleted, persistentSubscriptionCRUDResponse{
		Result:    resultNotMaster,
		NotMaster: &notMasterEndpoint{TCP: "10.0.0.2:1113"},
	})

	decision := op.Inspect(resp)
	_, ok := decision.(operations.Reconnect)
	require.True(t, ok)
}

func TestNotMasterEndpointNilIsSafe(t *testing.T) {
	var n *notMasterEndpoint
	require.Equal(t, operations.NodeEndpoints{}, n.toNodeEndpoints())
}

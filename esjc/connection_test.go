package esjc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestConnection() *Connection {
	settings := Create().
		SetClusterDiscoverer(StaticEndpoint("127.0.0.1:0", "")).
		Build()
	return NewConnection(settings)
}

func TestValidateStreamRejectsEmpty(t *testing.T) {
	require.Error(t, validateStream(""))
	require.NoError(t, validateStream("orders-1"))
}

func TestValidateNonMetastreamRejectsMetastream(t *testing.T) {
	require.Error(t, validateNonMetastream("$$orders-1"))
	require.NoError(t, validateNonMetastream("orders-1"))
}

func TestValidateReadCountBounds(t *testing.T) {
	require.Error(t, validateReadCount(0))
	require.Error(t, validateReadCount(maxReadCount))
	require.NoError(t, validateReadCount(1))
	require.NoError(t, validateReadCount(maxReadCount-1))
}

func TestValidateEventNumber(t *testing.T) {
	require.Error(t, validateEventNumber(-2))
	require.NoError(t, validateEventNumber(-1))
	require.NoError(t, validateEventNumber(0))
}

func TestAppendToStreamRejectsEmptyStreamWithoutTouchingEngine(t *testing.T) {
	conn := newTestConnection()

	future := conn.AppendToStream("", ExpectedVersionAny, nil, nil)
	_, err := future.Get(context.Background())

	require.Error(t, err)
	var esjcErr *Error
	require.ErrorAs(t, err, &esjcErr)
	require.Equal(t, KindInvalidArgument, esjcErr.Kind)
}

func TestReadStreamEventsForwardRejectsOversizedCount(t *testing.T) {
	conn := newTestConnection()

	future := conn.ReadStreamEventsForward("orders-1", 0, maxReadCount+1, false, nil)
	_, err := future.Get(context.Background())

	require.Error(t, err)
}

func TestSetStreamMetadataRejectsMetastreamTarget(t *testing.T) {
	conn := newTestConnection()

	future := conn.SetStreamMetadata("$$orders-1", ExpectedVersionAny, StreamMetadata{}, nil)
	_, err := future.Get(context.Background())

	require.Error(t, err)
	var esjcErr *Error
	require.ErrorAs(t, err, &esjcErr)
	require.Equal(t, KindInvalidArgument, esjcErr.Kind)
}

func TestGetStreamMetadataRejectsMetastreamTarget(t *testing.T) {
	conn := newTestConnection()

	future := conn.GetStreamMetadata("$$orders-1", nil)
	_, err := future.Get(context.Background())

	require.Error(t, err)
}

func TestConnectToPersistentSubscriptionRequiresGroupName(t *testing.T) {
	conn := newTestConnection()

	_, err := conn.ConnectToPersistentSubscription("orders-1", "", nil, 0, true, nil)
	require.Error(t, err)
}

func TestCreatePersistentSubscriptionRequiresGroupName(t *testing.T) {
	conn := newTestConnection()

	future := conn.CreatePersistentSubscription("orders-1", "", PersistentSubscriptionSettings{}, nil)
	_, err := future.Get(context.Background())
	require.Error(t, err)
}

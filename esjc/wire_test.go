package esjc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOperationResultToError(t *testing.T) {
	cases := []struct {
		result operationResult
		kind   Kind
		isNil  bool
	}{
		{resultSuccess, 0, true},
		{resultWrongExpectedVersion, KindWrongExpectedVersion, false},
		{resultStreamDeleted, KindStreamDeleted, false},
		{resultAccessDenied, KindAccessDenied, false},
		{resultCommitTimeout, KindCommitTimeout, false},
		{resultPrepareTimeout, KindCommitTimeout, false},
		{resultForwardTimeout, KindCommitTimeout, false},
		{resultInvalidTransaction, KindServerError, false},
		// resultNotMaster is intercepted by each operation's Inspect before
		// toError is ever consulted; toError's default mapping only matters
		// if that check were ever skipped.
		{resultNotMaster, KindServerError, false},
	}

	for _, tc := range cases {
		err := tc.result.toError("detail")
		if tc.isNil {
			require.NoError(t, err)
			continue
		}
		require.Error(t, err)
		var esjcErr *Error
		require.ErrorAs(t, err, &esjcErr)
		require.Equal(t, tc.kind, esjcErr.Kind)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	type payload struct {
		Name  string
		Count int
	}
	in := payload{Name: "x", Count: 3}

	body, err := DefaultCodec.Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, DefaultCodec.Unmarshal(body, &out))
	require.Equal(t, in, out)
}

func TestToEventDataWireRoundTrip(t *testing.T) {
	id := [16]byte{1, 2, 3}
	events := []EventData{{EventID: id, EventType: "created", IsJSON: true, Data: []byte("{}")}}

	wire := toEventDataWire(events)
	require.Len(t, wire, 1)
	require.Equal(t, id, wire[0].EventID)
	require.Equal(t, "created", wire[0].EventType)
	require.True(t, wire[0].IsJSON)
}

func TestRecordedEventWireToRecordedEvent(t *testing.T) {
	now := time.Now().UTC().Round(time.Second)
	w := recordedEventWire{
		EventStreamID:   "orders-1",
		EventNumber:     5,
		EventType:       "created",
		Data:            []byte("{}"),
		CreatedUnixNano: now.UnixNano(),
	}

	ev := w.toRecordedEvent()
	require.Equal(t, "orders-1", ev.EventStreamID)
	require.Equal(t, int64(5), ev.EventNumber)
	require.True(t, ev.Created.Equal(now))
}

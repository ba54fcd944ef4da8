package esjc

import (
	"encoding/json"
	"time"

	"github.com/michael-schnell/esjc/internal/operations"
)

func timeFromUnixNano(nano int64) time.Time {
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano).UTC()
}

// Command bytes for the operation kinds this facade implements. These are
// a collaborator concern layered on top of internal/proto's core command
// set (heartbeat, auth, subscription confirm/drop) -- the wire payload
// schema for each is this package's own JSON encoding, not a transcription
// of any particular server's actual format.
const (
	cmdWriteEvents          byte = 0x30
	cmdWriteEventsCompleted byte = 0x31

	cmdDeleteStream          byte = 0x32
	cmdDeleteStreamCompleted byte = 0x33

	cmdReadEvent          byte = 0x34
	cmdReadEventCompleted byte = 0x35

	cmdReadStreamEventsForward           byte = 0x36
	cmdReadStreamEventsForwardCompleted  byte = 0x37
	cmdReadStreamEventsBackward          byte = 0x38
	cmdReadStreamEventsBackwardCompleted byte = 0x39

	cmdReadAllEventsForward           byte = 0x3A
	cmdReadAllEventsForwardCompleted  byte = 0x3B
	cmdReadAllEventsBackward          byte = 0x3C
	cmdReadAllEventsBackwardCompleted byte = 0x3D

	cmdTransactionStart           byte = 0x3E
	cmdTransactionStartCompleted  byte = 0x3F
	cmdTransactionWrite           byte = 0x40
	cmdTransactionWriteCompleted  byte = 0x41
	cmdTransactionCommit          byte = 0x42
	cmdTransactionCommitCompleted byte = 0x43

	cmdCreatePersistentSubscription          byte = 0x44
	cmdCreatePersistentSubscriptionCompleted byte = 0x45
	cmdUpdatePersistentSubscription          byte = 0x46
	cmdUpdatePersistentSubscriptionCompleted byte = 0x47
	cmdDeletePersistentSubscription          byte = 0x48
	cmdDeletePersistentSubscriptionCompleted byte = 0x49
)

// operationResult is the shared outcome enum carried on every *Completed
// wire response, mirroring the server-rejection kinds enumerated in the
// error taxonomy (§7).
type operationResult int

const (
	resultSuccess operationResult = iota
	resultPrepareTimeout
	resultCommitTimeout
	resultForwardTimeout
	resultWrongExpectedVersion
	resultStreamDeleted
	resultInvalidTransaction
	resultAccessDenied
	resultNotMaster
)

func (r operationResult) toError(message string) error {
	switch r {
	case resultSuccess:
		return nil
	case resultWrongExpectedVersion:
		return newError(KindWrongExpectedVersion, message)
	case resultStreamDeleted:
		return newError(KindStreamDeleted, message)
	case resultAccessDenied:
		return newError(KindAccessDenied, message)
	case resultCommitTimeout, resultPrepareTimeout, resultForwardTimeout:
		return newError(KindCommitTimeout, message)
	default:
		return newError(KindServerError, message)
	}
}

// notMasterEndpoint carries the redirect target a server attaches to a
// resultNotMaster response, so an Inspect implementation can ask the
// operation manager to reconnect and replay the request instead of
// completing the caller's future with an error.
type notMasterEndpoint struct {
	TCP       string
	SecureTCP string
}

func (n *notMasterEndpoint) toNodeEndpoints() operations.NodeEndpoints {
	if n == nil {
		return operations.NodeEndpoints{}
	}
	return operations.NodeEndpoints{TCP: n.TCP, SecureTCP: n.SecureTCP}
}

// Codec encodes and decodes operation payloads. The wire schema for each
// operation kind is a collaborator concern (spec.md §1); Codec is the seam
// a caller swaps out to match a real server's actual payload format. The
// default codec encodes with encoding/json, since none of the teacher's or
// the pack's dependencies provide a serialization format for a bespoke
// binary payload -- see DESIGN.md.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// DefaultCodec is the facade's built-in payload codec.
var DefaultCodec Codec = jsonCodec{}

type subscribeToStreamWire struct {
	EventStreamID  string
	ResolveLinkTos bool
}

type connectToPersistentSubscriptionWire struct {
	EventStreamID           string
	GroupName               string
	AllowedInFlightMessages int
}

type eventDataWire struct {
	EventID   [16]byte
	EventType string
	IsJSON    bool
	Data      []byte
	Metadata  []byte
}

func toEventDataWire(events []EventData) []eventDataWire {
	out := make([]eventDataWire, len(events))
	for i, e := range events {
		out[i] = eventDataWire{
			EventID:   e.EventID,
			EventType: e.EventType,
			IsJSON:    e.IsJSON,
			Data:      e.Data,
			Metadata:  e.Metadata,
		}
	}
	return out
}

type recordedEventWire struct {
	EventStreamID string
	EventID       [16]byte
	EventNumber   int64
	EventType     string
	Data          []byte
	Metadata      []byte
	CreatedUnixNano int64
}

func (w recordedEventWire) toRecordedEvent() RecordedEvent {
	return RecordedEvent{
		EventStreamID: w.EventStreamID,
		EventID:       w.EventID,
		EventNumber:   w.EventNumber,
		EventType:     w.EventType,
		Data:          w.Data,
		Metadata:      w.Metadata,
		Created:       timeFromUnixNano(w.CreatedUnixNano),
	}
}

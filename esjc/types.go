// Package esjc is the public facade of the event-stream client: thin
// validation plus task enqueue onto the connection engine. Payload encoding
// for each operation kind is a collaborator concern (see Codec); this
// package owns correlation, retry, and the user-visible Future surface.
package esjc

import "time"

// ExpectedVersion carries the sentinel values recognized by write
// operations, alongside any concrete non-negative event number.
type ExpectedVersion int64

// Recognized ExpectedVersion sentinels.
const (
	ExpectedVersionAny          ExpectedVersion = -2
	ExpectedVersionNoStream     ExpectedVersion = -1
	ExpectedVersionStreamExists ExpectedVersion = -4
)

// EventData is one event a caller appends to a stream.
type EventData struct {
	EventID      [16]byte
	EventType    string
	IsJSON       bool
	Data         []byte
	Metadata     []byte
}

// RecordedEvent is one event as read back from the server.
type RecordedEvent struct {
	EventStreamID string
	EventID       [16]byte
	EventNumber   int64
	EventType     string
	Data          []byte
	Metadata      []byte
	Created       time.Time
}

// WriteResult is returned by a successful append or transaction commit.
type WriteResult struct {
	NextExpectedVersion int64
	CommitPosition      Position
}

// Position identifies a record in the global event log.
type Position struct {
	CommitPosition  int64
	PreparePosition int64
}

// ReadDirection distinguishes forward (oldest-first) from backward
// (newest-first) stream and $all reads.
type ReadDirection int

// Recognized ReadDirection values.
const (
	Forward ReadDirection = iota
	Backward
)

// ReadEventResult is the outcome of a single-event read.
type ReadEventResult struct {
	Status ReadEventStatus
	Event  *RecordedEvent
}

// ReadEventStatus classifies a single-event read's outcome.
type ReadEventStatus int

// Recognized ReadEventStatus values.
const (
	ReadEventSuccess ReadEventStatus = iota
	ReadEventNotFound
	ReadEventNoStream
	ReadEventStreamDeleted
)

// StreamEventsSlice is the outcome of a stream read.
type StreamEventsSlice struct {
	Status       SliceReadStatus
	Stream       string
	FromEventNumber int64
	NextEventNumber int64
	LastEventNumber int64
	IsEndOfStream   bool
	Events          []RecordedEvent
}

// AllEventsSlice is the outcome of a $all read.
type AllEventsSlice struct {
	ReadDirection ReadDirection
	FromPosition  Position
	NextPosition  Position
	IsEndOfStream bool
	Events        []RecordedEvent
}

// SliceReadStatus classifies a stream-slice read's outcome.
type SliceReadStatus int

// Recognized SliceReadStatus values.
const (
	SliceReadSuccess SliceReadStatus = iota
	SliceReadNoStream
	SliceReadStreamDeleted
)

// StreamMetadataResult is the outcome of GetStreamMetadata.
type StreamMetadataResult struct {
	Stream        string
	IsStreamDeleted bool
	MetastreamVersion int64
	StreamMetadata  StreamMetadata
}

// StreamMetadata is the JSON-encodable metadata document attached to a
// stream's metastream.
type StreamMetadata struct {
	MaxCount      *int64
	MaxAge        *time.Duration
	TruncateBefore *int64
	CacheControl *time.Duration
	Acl          *StreamACL
	CustomProperties map[string]interface{}
}

// StreamACL restricts who may read, write, delete, or administer a stream
// and its metadata.
type StreamACL struct {
	ReadRoles      []string
	WriteRoles     []string
	DeleteRoles    []string
	MetaReadRoles  []string
	MetaWriteRoles []string
}

// Transaction is a handle to an in-progress multi-append transaction
// opened by StartTransaction.
type Transaction struct {
	TransactionID int64
	conn          *Connection
	stream        string
}

const metastreamPrefix = "$$"

func metastreamFor(stream string) string { return metastreamPrefix + stream }

func isMetastream(stream string) bool {
	return len(stream) >= len(metastreamPrefix) && stream[:len(metastreamPrefix)] == metastreamPrefix
}

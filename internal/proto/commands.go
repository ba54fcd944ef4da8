package proto

// Reserved command bytes. Operation-kind command bytes (append, read,
// delete, metadata, persistent-subscription CRUD, and their payload
// schemas) are a collaborator concern; only the commands the core itself
// must recognize to drive the heartbeat, authentication, and subscription
// state machines are enumerated here.
const (
	CommandHeartbeatRequest  byte = 0x01
	CommandHeartbeatResponse byte = 0x02

	CommandAuthenticate       byte = 0x03
	CommandAuthenticated      byte = 0x04
	CommandNotAuthenticated   byte = 0x05

	CommandBadRequest byte = 0x06
	CommandNotHandled byte = 0x07 // carries a NotMaster-style redirect in payload

	CommandSubscribeToStream               byte = 0x10
	CommandSubscriptionConfirmation         byte = 0x11
	CommandStreamEventAppeared              byte = 0x12
	CommandUnsubscribeFromStream            byte = 0x13
	CommandSubscriptionDropped              byte = 0x14

	CommandConnectToPersistentSubscription            byte = 0x20
	CommandPersistentSubscriptionConfirmation         byte = 0x21
	CommandPersistentSubscriptionStreamEventAppeared  byte = 0x22
	CommandPersistentSubscriptionAck                  byte = 0x23
	CommandPersistentSubscriptionNak                  byte = 0x24
)

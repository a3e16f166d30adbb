package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds used across the client. Subscribers filter by namespace
// prefix, e.g. "server." receives every pushed server event.
const (
	// Published by the websocket read loop, in arrival order.
	KindServerMessage   = "server.message"
	KindServerPresence  = "server.presence"
	KindServerStatus    = "server.message_status"
	KindServerSeen      = "server.messages_seen"
	KindServerConnected = "server.connected"
	KindServerDropped   = "server.disconnected"

	// Published by the session manager on credential changes.
	KindSessionChanged   = "session.credentials_changed"
	KindSessionLoggedOut = "session.logged_out"

	// Connection state machine transitions.
	KindConnStatusChanged = "conn.status_changed"

	// Published by the chat engine for UI refresh.
	KindChatThread     = "chat.thread_updated"
	KindChatRoster     = "chat.roster_updated"
	KindChatPresence   = "chat.presence_updated"
	KindChatSendFailed = "chat.send_failed"
	KindChatIncoming   = "chat.incoming_message"
)

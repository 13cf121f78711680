package realtime

import "encoding/json"

// Inbound (client → server) event names.
const (
	EventSendDirectMessage           = "send-direct-message"
	EventSendChannelMessage          = "send-channel-message"
	EventDeleteDirectMessage         = "delete-direct-message"
	EventDeleteChannelMessage        = "delete-channel-message"
	EventDeleteChannelMessageByAdmin = "delete-channel-message-by-admin"
)

// Outbound (server → client) event names.
const (
	EventOnlineUsers                  = "online-users"
	EventReceiveMessage               = "receiveMessage"
	EventReceiveChannelMessage        = "receive-channel-message"
	EventDirectMessageDeleted         = "direct-message-deleted"
	EventChannelMessageDeleted        = "channel-message-deleted"
	EventChannelMessageDeletedByAdmin = "channel-message-deleted-by-admin"
	EventChannelCreated               = "channel-created"
	EventChannelUpdated               = "channel-updated"
	EventChannelDeleted               = "channel-deleted"
	EventMemberAdded                  = "member-added"
	EventMemberRemoved                = "member-removed"
	EventLeaveChannel                 = "leave-channel"
	EventError                        = "event-error"
)

// Envelope is the frame written to a websocket connection.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// InboundEnvelope is the frame read from a websocket connection.
type InboundEnvelope struct {
	Event         string          `json:"event"`
	Data          json.RawMessage `json:"data"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

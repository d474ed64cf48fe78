package transport

import "context"

// MessageTypeDefault is the gateway message type of a regular user message.
// Replies, joins, pins and other system messages use other values.
const MessageTypeDefault = 0

// MessageEvent is one MESSAGE_CREATE notification as seen by the trigger.
// It is read-only once built by an adapter.
type MessageEvent struct {
	GuildID   string // empty for direct messages
	ChannelID string
	Message   Message
}

type Message struct {
	ID      string
	Type    int
	Content string
	Author  Author
}

type Author struct {
	ID       string
	Username string
	// GlobalName is the account-wide display name. nil when the user never set one.
	GlobalName *string
	Bot        bool
}

// MessageHandler is invoked synchronously for every incoming message.
type MessageHandler func(ev MessageEvent)

// Adapter is a chat gateway that produces message events.
type Adapter interface {
	Start(ctx context.Context, h MessageHandler) error
	Stop(ctx context.Context) error
}

// Sender posts plain text into a channel. The log sink uses it.
type Sender interface {
	SendText(ctx context.Context, channelID string, text string) error
}

// MemberLookup resolves per-guild nicknames from the adapter's cache.
type MemberLookup interface {
	MemberNickname(guildID, userID string) (string, bool)
}

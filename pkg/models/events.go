package models

// EventKind names one of the realtime event variants pushed to connected
// clients. The set is closed; every kind has a fixed field schema below.
type EventKind string

const (
	// EventNewMessage is delivered to the receiver's personal channel.
	EventNewMessage EventKind = "chat.new_message"
	// EventMessagesRead is delivered to the thread channel.
	EventMessagesRead EventKind = "chat.messages_read"
	// EventTyping is delivered to the thread channel and never persisted.
	EventTyping EventKind = "chat.typing"
)

// Event is the wire form of a realtime push. Only the fields of the
// addressed kind are populated.
type Event struct {
	Kind     EventKind `json:"event"`
	ThreadID string    `json:"thread_id"`

	// chat.new_message
	Message *Message `json:"message,omitempty"`

	// chat.messages_read
	ReaderID string `json:"reader_id,omitempty"`
	ReadTS   int64  `json:"read_ts,omitempty"`

	// chat.typing
	UserID   string `json:"user_id,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// NewMessageEvent builds the chat.new_message variant.
func NewMessageEvent(threadID string, msg *Message) Event {
	return Event{Kind: EventNewMessage, ThreadID: threadID, Message: msg}
}

// MessagesReadEvent builds the chat.messages_read variant.
func MessagesReadEvent(threadID, readerID string, readTS int64) Event {
	return Event{Kind: EventMessagesRead, ThreadID: threadID, ReaderID: readerID, ReadTS: readTS}
}

// TypingEvent builds the chat.typing variant.
func TypingEvent(threadID, userID string, isTyping bool) Event {
	return Event{Kind: EventTyping, ThreadID: threadID, UserID: userID, IsTyping: isTyping}
}

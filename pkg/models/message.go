package models

// Message is one chat message inside a thread. Messages are immutable after
// creation except for the read transition (IsRead/ReadTS).
type Message struct {
	ID     string `json:"id"`
	Thread string `json:"thread"`
	// Post is a denormalized copy of the owning thread's post id.
	Post     string `json:"post"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	// At least one of Body/AttachmentURL must be non-empty.
	Body          string `json:"body,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	IsRead        bool   `json:"is_read"`
	// ReadTS is the read-receipt timestamp (ns); zero while unread.
	ReadTS int64 `json:"read_ts,omitempty"`
	// CreatedTS (ns) plus Seq define the total order of messages within a
	// thread; Seq breaks ties when two messages share a nanosecond.
	CreatedTS int64  `json:"created_ts"`
	Seq       uint64 `json:"seq"`
}

// HasContent reports whether the message carries text or an attachment.
func (m *Message) HasContent() bool {
	return m.Body != "" || m.AttachmentURL != ""
}

package chat

import "net/http"

// Error is a chat failure with a stable machine code and the HTTP status it
// maps to at the API edge.
type Error struct {
	Code   string
	Status int
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

var (
	// ErrSelfChat rejects a thread between a user and themself.
	ErrSelfChat = &Error{Code: "self_chat", Status: http.StatusBadRequest, Msg: "cannot start a chat with yourself"}
	// ErrNotFriends rejects a thread between users who are not friends.
	ErrNotFriends = &Error{Code: "not_friends", Status: http.StatusForbidden, Msg: "users are not friends"}
	// ErrPostNotFound rejects a thread anchored on a missing post.
	ErrPostNotFound = &Error{Code: "post_not_found", Status: http.StatusNotFound, Msg: "post not found"}
	// ErrThreadNotFound is returned when the referenced thread does not exist.
	ErrThreadNotFound = &Error{Code: "thread_not_found", Status: http.StatusNotFound, Msg: "thread not found"}
	// ErrForbidden is returned when the caller is not a thread participant.
	ErrForbidden = &Error{Code: "forbidden", Status: http.StatusForbidden, Msg: "not a participant of this thread"}
	// ErrInvalidMessage is returned when a message has neither body nor attachment.
	ErrInvalidMessage = &Error{Code: "invalid_message", Status: http.StatusBadRequest, Msg: "message requires a body or an attachment"}
)

// Invalid wraps a validation failure message into a 400 error.
func Invalid(msg string) *Error {
	return &Error{Code: "validation_error", Status: http.StatusBadRequest, Msg: msg}
}

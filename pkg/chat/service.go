// Package chat implements the thread and message engine: thread identity
// resolution, participant checks, message append and read receipts, and the
// hand-off to realtime delivery.
package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pixchat/pkg/logger"
	"pixchat/pkg/models"
	"pixchat/pkg/store"
	"pixchat/pkg/utils"
	"pixchat/pkg/validation"
)

// FriendChecker answers whether two users are friends.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// PostSnapshot is the subset of a post shown on a thread summary.
type PostSnapshot struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id"`
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption,omitempty"`
}

// PostDirectory resolves posts that chat threads are anchored on.
type PostDirectory interface {
	PostExists(ctx context.Context, id string) (bool, error)
	PostSnapshot(ctx context.Context, id string) (*PostSnapshot, error)
}

// NotificationSink receives new-message notifications for offline delivery.
// Implementations are best-effort; errors are logged and never surfaced to
// the sender.
type NotificationSink interface {
	NotifyNewMessage(ctx context.Context, msg *models.Message) error
}

// EventPublisher pushes chat events to connected clients.
type EventPublisher interface {
	Publish(ev models.Event)
}

// MessagesPage is one page of a thread's history, newest first.
type MessagesPage struct {
	Messages        []models.Message `json:"messages"`
	HasMore         bool             `json:"has_more"`
	OldestTimestamp int64            `json:"oldest_timestamp,omitempty"`
}

// ThreadSummary is one row of a user's thread list.
type ThreadSummary struct {
	Thread      models.Thread   `json:"thread"`
	OtherUserID string          `json:"other_user_id"`
	UnreadCount int             `json:"unread_count"`
	LastMessage *models.Message `json:"last_message,omitempty"`
	Post        *PostSnapshot   `json:"post,omitempty"`
}

// ThreadsPage is one page of a user's thread list plus pagination state.
type ThreadsPage struct {
	Threads []ThreadSummary `json:"threads"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// Service orchestrates thread and message operations. All collaborators are
// injected; tests swap in fakes.
type Service struct {
	store   *store.Store
	friends FriendChecker
	posts   PostDirectory
	notify  NotificationSink
	events  EventPublisher
}

// NewService builds a Service. friends, posts, notify and events may be nil;
// nil collaborators degrade the corresponding behavior (nil friends denies
// creation, nil posts skips post checks).
func NewService(st *store.Store, friends FriendChecker, posts PostDirectory, notify NotificationSink, events EventPublisher) *Service {
	return &Service{store: st, friends: friends, posts: posts, notify: notify, events: events}
}

// SetEventPublisher installs the realtime publisher after construction; the
// gateway needs the service for join checks, so the two are wired in order.
func (s *Service) SetEventPublisher(p EventPublisher) { s.events = p }

// GetOrCreateThread resolves the thread for (postID, caller, other), creating
// it when absent. Both participant orders resolve to the same thread.
func (s *Service) GetOrCreateThread(ctx context.Context, callerID, otherID, postID string) (*models.Thread, bool, error) {
	if err := validation.CheckUserID(callerID); err != nil {
		return nil, false, Invalid(err.Error())
	}
	if err := validation.CheckUserID(otherID); err != nil {
		return nil, false, Invalid(err.Error())
	}
	if err := validation.CheckPostID(postID); err != nil {
		return nil, false, Invalid(err.Error())
	}
	if callerID == otherID {
		return nil, false, ErrSelfChat
	}

	if s.posts != nil {
		ok, err := s.posts.PostExists(ctx, postID)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, ErrPostNotFound
		}
	}

	if s.friends == nil {
		return nil, false, ErrNotFriends
	}
	ok, err := s.friends.AreFriends(ctx, callerID, otherID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrNotFriends
	}

	return s.store.GetOrCreateThread(postID, callerID, otherID)
}

// SendMessage appends a message to a thread on behalf of callerID. The
// receiver is derived from the thread row, never from the request. Push
// notification and realtime delivery are best-effort; a persisted message is
// returned even when they fail.
func (s *Service) SendMessage(ctx context.Context, callerID, threadID, body, attachmentURL string) (*models.Message, error) {
	if err := validation.CheckThreadID(threadID); err != nil {
		return nil, Invalid(err.Error())
	}
	if err := validation.CheckBody(body); err != nil {
		return nil, Invalid(err.Error())
	}

	th, err := s.loadAuthorized(threadID, callerID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:            utils.GenMessageID(),
		Thread:        th.ID,
		Post:          th.PostID,
		Sender:        callerID,
		Receiver:      th.OtherParticipant(callerID),
		Body:          body,
		AttachmentURL: attachmentURL,
	}
	if err := s.store.AppendMessage(msg); err != nil {
		if err == store.ErrEmptyMessage {
			return nil, ErrInvalidMessage
		}
		return nil, err
	}
	if err := s.store.TouchThread(th.ID, msg.CreatedTS); err != nil {
		logger.Warn("thread_touch_failed", zap.String("thread", th.ID), zap.Error(err))
	}

	if s.events != nil {
		s.events.Publish(models.NewMessageEvent(msg.Thread, msg))
	}
	if s.notify != nil {
		if nerr := s.notify.NotifyNewMessage(ctx, msg); nerr != nil {
			logger.Warn("notify_failed", zap.String("message", msg.ID), zap.Error(nerr))
		}
	}
	return msg, nil
}

// MarkRead marks every unread message addressed to callerID in the thread as
// read. Repeated calls are no-ops returning zero.
func (s *Service) MarkRead(ctx context.Context, callerID, threadID string) (int, error) {
	if err := validation.CheckThreadID(threadID); err != nil {
		return 0, Invalid(err.Error())
	}
	th, err := s.loadAuthorized(threadID, callerID)
	if err != nil {
		return 0, err
	}

	readTS := time.Now().UnixNano()
	n, err := s.store.MarkRead(th.ID, callerID, readTS)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.events != nil {
		s.events.Publish(models.MessagesReadEvent(th.ID, callerID, readTS))
	}
	return n, nil
}

// ListMessages returns one page of thread history, newest first. before is
// an exclusive nanosecond cursor; zero means start from the newest message.
func (s *Service) ListMessages(ctx context.Context, callerID, threadID string, limit int, before int64) (*MessagesPage, error) {
	if err := validation.CheckThreadID(threadID); err != nil {
		return nil, Invalid(err.Error())
	}
	limit, err := validation.MessageLimit(limit)
	if err != nil {
		return nil, Invalid(err.Error())
	}
	th, err := s.loadAuthorized(threadID, callerID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessagesBefore(th.ID, limit, before)
	if err != nil {
		return nil, err
	}
	page := &MessagesPage{Messages: msgs, HasMore: len(msgs) == limit}
	if len(msgs) > 0 {
		page.OldestTimestamp = msgs[len(msgs)-1].CreatedTS
	}
	return page, nil
}

// ListThreads returns one page of the caller's threads ordered by recent
// activity, each enriched with unread count, last message and a post
// snapshot. Snapshot lookups are best-effort; a failing post directory is
// logged and the row is returned without it.
func (s *Service) ListThreads(ctx context.Context, callerID string, limit, offset int) (*ThreadsPage, error) {
	if err := validation.CheckUserID(callerID); err != nil {
		return nil, Invalid(err.Error())
	}
	limit, err := validation.ThreadLimit(limit)
	if err != nil {
		return nil, Invalid(err.Error())
	}
	offset, err = validation.Offset(offset)
	if err != nil {
		return nil, Invalid(err.Error())
	}

	threads, total, err := s.store.ListThreadsForUser(callerID, limit, offset)
	if err != nil {
		return nil, err
	}

	page := &ThreadsPage{
		Threads: make([]ThreadSummary, 0, len(threads)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(threads) < total,
	}
	for _, th := range threads {
		row := ThreadSummary{Thread: th, OtherUserID: th.OtherParticipant(callerID)}
		if row.UnreadCount, err = s.store.CountUnread(th.ID, callerID); err != nil {
			return nil, err
		}
		if row.LastMessage, err = s.store.LastMessage(th.ID); err != nil {
			return nil, err
		}
		if s.posts != nil {
			snap, perr := s.posts.PostSnapshot(ctx, th.PostID)
			if perr != nil {
				logger.Warn("post_snapshot_failed", zap.String("post", th.PostID), zap.Error(perr))
			} else {
				row.Post = snap
			}
		}
		page.Threads = append(page.Threads, row)
	}
	return page, nil
}

// IsParticipant reports whether userID may read and join threadID. Used by
// the realtime gateway to guard channel joins.
func (s *Service) IsParticipant(threadID, userID string) (bool, error) {
	ok, err := s.store.IsParticipant(threadID, userID)
	if err == store.ErrNotFound {
		return false, ErrThreadNotFound
	}
	return ok, err
}

// loadAuthorized loads a thread and checks the caller is a participant.
func (s *Service) loadAuthorized(threadID, callerID string) (*models.Thread, error) {
	th, err := s.store.GetThread(threadID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	if !th.HasParticipant(callerID) {
		return nil, ErrForbidden
	}
	return th, nil
}

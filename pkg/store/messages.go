package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"pixchat/pkg/logger"
	"pixchat/pkg/models"
)

// Message keys sort chronologically within a thread:
//
//	thread:<id>:msg:<%020d createdTS>-<%06d seq>
//
// The zero-padded nanosecond timestamp gives byte order == time order; the
// sequence suffix breaks ties when two messages land on the same nanosecond.

func msgKey(threadID string, ts int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("thread:%s:msg:%020d-%06d", threadID, ts, seq))
}

func msgPrefix(threadID string) []byte {
	return []byte(fmt.Sprintf("thread:%s:msg:", threadID))
}

// AppendMessage persists a message. The store assigns CreatedTS (if unset)
// and Seq. Returns ErrEmptyMessage when the message has neither body nor
// attachment.
func (s *Store) AppendMessage(msg *models.Message) error {
	if !msg.HasContent() {
		return ErrEmptyMessage
	}
	if msg.CreatedTS == 0 {
		msg.CreatedTS = time.Now().UnixNano()
	}
	msg.Seq = s.nextSeq()

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.db.Set(msgKey(msg.Thread, msg.CreatedTS, msg.Seq), data, pebble.Sync); err != nil {
		logger.Error("message_append_failed", zap.String("thread", msg.Thread), zap.Error(err))
		return err
	}
	messagesAppended.Inc()
	return nil
}

// ListMessagesBefore returns up to limit messages of a thread, newest first.
// When beforeTS > 0 only messages strictly older than beforeTS are returned;
// a bare timestamp bound sorts before every real key carrying that
// timestamp, so the cursor is exclusive.
func (s *Store) ListMessagesBefore(threadID string, limit int, beforeTS int64) ([]models.Message, error) {
	prefix := msgPrefix(threadID)
	upper := keyUpperBound(prefix)
	if beforeTS > 0 {
		upper = []byte(fmt.Sprintf("thread:%s:msg:%020d", threadID, beforeTS))
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []models.Message
	for ok := iter.Last(); ok && (limit <= 0 || len(out) < limit); ok = iter.Prev() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastMessage returns the newest message of a thread, or nil when the thread
// has none.
func (s *Store) LastMessage(threadID string) (*models.Message, error) {
	msgs, err := s.ListMessagesBefore(threadID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// CountUnread counts messages in the thread addressed to userID that have
// not been read.
func (s *Store) CountUnread(threadID, userID string) (int, error) {
	prefix := msgPrefix(threadID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return 0, err
		}
		if m.Receiver == userID && !m.IsRead {
			n++
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	return n, nil
}

// MarkRead marks every unread message addressed to receiverID in the thread
// as read, stamping readTS. Returns the number of messages updated; calling
// it again is a no-op returning zero.
func (s *Store) MarkRead(threadID, receiverID string, readTS int64) (int, error) {
	prefix := msgPrefix(threadID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return 0, err
		}
		if m.Receiver != receiverID || m.IsRead {
			continue
		}
		m.IsRead = true
		m.ReadTS = readTS
		data, merr := json.Marshal(&m)
		if merr != nil {
			return 0, merr
		}
		key := append([]byte(nil), iter.Key()...)
		if err := b.Set(key, data, nil); err != nil {
			return 0, err
		}
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("mark_read_failed", zap.String("thread", threadID), zap.Error(err))
		return 0, err
	}
	messagesMarkedRead.Add(float64(n))
	return n, nil
}

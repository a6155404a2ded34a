package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"pixchat/pkg/logger"
	"pixchat/pkg/models"
	"pixchat/pkg/utils"
)

// Key layout:
//
//	thread:<id>:meta                    -> thread JSON
//	pair:<postID>:<low>:<high>          -> thread id
//	user:<userID>:thread:<threadID>     -> thread id
//
// The pair index makes get-or-create a point lookup; the user index makes
// listing a user's threads a prefix scan.

func threadMetaKey(id string) []byte {
	return []byte(fmt.Sprintf("thread:%s:meta", id))
}

func pairKey(postID, low, high string) []byte {
	return []byte(fmt.Sprintf("pair:%s:%s:%s", postID, low, high))
}

func userThreadKey(userID, threadID string) []byte {
	return []byte(fmt.Sprintf("user:%s:thread:%s", userID, threadID))
}

func userThreadPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("user:%s:thread:", userID))
}

// keySafe reports whether an id may be embedded in a composite key. The
// separator ':' would make distinct (post, low, high) triples collide on one
// pair key, so it is never allowed through.
func keySafe(id string) bool {
	return id != "" && !strings.Contains(id, ":")
}

// GetOrCreateThread returns the thread for (postID, userA, userB), creating
// it if none exists. Participant order does not matter; both orders resolve
// to the same row. The boolean reports whether the thread was created by
// this call.
func (s *Store) GetOrCreateThread(postID, userA, userB string) (*models.Thread, bool, error) {
	if !keySafe(postID) || !keySafe(userA) || !keySafe(userB) {
		return nil, false, ErrInvalidID
	}
	low, high := models.CanonicalPair(userA, userB)
	pk := pairKey(postID, low, high)

	release := s.creation.Lock(string(pk))
	defer release()

	if tid, err := s.get(pk); err == nil {
		th, gerr := s.GetThread(string(tid))
		if gerr != nil {
			return nil, false, gerr
		}
		return th, false, nil
	} else if err != ErrNotFound {
		return nil, false, err
	}

	now := time.Now().UnixNano()
	th := &models.Thread{
		ID:              utils.GenThreadID(),
		PostID:          postID,
		ParticipantLow:  low,
		ParticipantHigh: high,
		CreatedTS:       now,
		UpdatedTS:       now,
	}
	data, err := json.Marshal(th)
	if err != nil {
		return nil, false, err
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(threadMetaKey(th.ID), data, nil); err != nil {
		return nil, false, err
	}
	if err := b.Set(pk, []byte(th.ID), nil); err != nil {
		return nil, false, err
	}
	if err := b.Set(userThreadKey(low, th.ID), []byte(th.ID), nil); err != nil {
		return nil, false, err
	}
	if err := b.Set(userThreadKey(high, th.ID), []byte(th.ID), nil); err != nil {
		return nil, false, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("thread_create_failed", zap.String("post", postID), zap.Error(err))
		return nil, false, err
	}
	threadsCreated.Inc()
	logger.Info("thread_created", zap.String("thread", th.ID), zap.String("post", postID))
	return th, true, nil
}

// GetThread loads a thread by id. Returns ErrNotFound if it does not exist.
func (s *Store) GetThread(id string) (*models.Thread, error) {
	data, err := s.get(threadMetaKey(id))
	if err != nil {
		return nil, err
	}
	var th models.Thread
	if err := json.Unmarshal(data, &th); err != nil {
		return nil, err
	}
	return &th, nil
}

// IsParticipant reports whether userID is a participant of threadID.
// Returns ErrNotFound if the thread does not exist.
func (s *Store) IsParticipant(threadID, userID string) (bool, error) {
	th, err := s.GetThread(threadID)
	if err != nil {
		return false, err
	}
	return th.HasParticipant(userID), nil
}

// TouchThread bumps the thread's activity timestamp. Timestamps never move
// backwards; a touch older than the stored value is ignored.
func (s *Store) TouchThread(id string, ts int64) error {
	release := s.creation.Lock("touch:" + id)
	defer release()

	th, err := s.GetThread(id)
	if err != nil {
		return err
	}
	if ts <= th.UpdatedTS {
		return nil
	}
	th.UpdatedTS = ts
	data, err := json.Marshal(th)
	if err != nil {
		return err
	}
	return s.db.Set(threadMetaKey(id), data, pebble.Sync)
}

// ListThreadsForUser returns the user's threads ordered by most recent
// activity, plus the total count before offset/limit are applied.
func (s *Store) ListThreadsForUser(userID string, limit, offset int) ([]models.Thread, int, error) {
	prefix := userThreadPrefix(userID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, 0, err
	}
	defer iter.Close()

	var out []models.Thread
	for iter.First(); iter.Valid(); iter.Next() {
		tid := strings.TrimPrefix(string(iter.Key()), string(prefix))
		th, gerr := s.GetThread(tid)
		if gerr == ErrNotFound {
			continue // index entry without meta; skip
		}
		if gerr != nil {
			return nil, 0, gerr
		}
		out = append(out, *th)
	}
	if err := iter.Error(); err != nil {
		return nil, 0, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedTS != out[j].UpdatedTS {
			return out[i].UpdatedTS > out[j].UpdatedTS
		}
		return out[i].ID < out[j].ID
	})

	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

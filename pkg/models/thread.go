package models

// Thread is the persistent conversation identity for one post shared between
// exactly two users. Participants are stored in canonical order (see
// CanonicalPair), never in caller-supplied order, so a pair maps to the same
// row regardless of call direction.
type Thread struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	// ParticipantLow sorts strictly before ParticipantHigh.
	ParticipantLow  string `json:"participant_low"`
	ParticipantHigh string `json:"participant_high"`
	// Created/Updated timestamps (ns). UpdatedTS is bumped on every new
	// message so thread listings order by recent activity.
	CreatedTS int64 `json:"created_ts"`
	UpdatedTS int64 `json:"updated_ts"`
}

// HasParticipant reports whether the given user is one of the thread's two
// participants.
func (t *Thread) HasParticipant(userID string) bool {
	return userID != "" && (userID == t.ParticipantLow || userID == t.ParticipantHigh)
}

// OtherParticipant returns the participant that is not userID, or "" when
// userID is not a participant.
func (t *Thread) OtherParticipant(userID string) string {
	switch userID {
	case t.ParticipantLow:
		return t.ParticipantHigh
	case t.ParticipantHigh:
		return t.ParticipantLow
	}
	return ""
}

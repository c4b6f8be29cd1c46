package domain

import "time"

// ReactionKind is a kind of audience reaction.
type ReactionKind string

const (
	ReactionLike ReactionKind = "like"
	ReactionGift ReactionKind = "gift"
)

// ReactionKinds lists the accepted kinds.
var ReactionKinds = []ReactionKind{ReactionLike, ReactionGift}

// ParseReactionKind returns the kind named by s.
func ParseReactionKind(s string) (ReactionKind, bool) {
	for _, k := range ReactionKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ReactionSummary maps each kind to its count. Kinds with no reactions
// are absent.
type ReactionSummary map[ReactionKind]int64

// Reaction is one ledger entry.
type Reaction struct {
	ID        string       `json:"id"`
	RoomName  string       `json:"room"`
	Identity  string       `json:"identity"`
	Kind      ReactionKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReactionRequest sends a reaction.
type ReactionRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// ReactionSummaryResponse wraps a summary for the API.
type ReactionSummaryResponse struct {
	Room    string          `json:"room"`
	Summary ReactionSummary `json:"summary"`
}
